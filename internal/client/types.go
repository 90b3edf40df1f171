package client

import (
	"fmt"

	"fsanano/foodshare/internal/model"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("foodshare api error: %d %s", e.StatusCode, e.Message)
}

// CityOverview is everything a client shows for one city.
type CityOverview struct {
	City      string           `json:"city"`
	Donors    []model.Account  `json:"donors"`
	Receivers []model.Account  `json:"receivers"`
	Donations []model.Donation `json:"donations"`
}

type donationResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message,omitempty"`
	Donation *model.Donation `json:"donation,omitempty"`
}
