package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fsanano/foodshare/internal/metrics"
	"fsanano/foodshare/internal/model"
	"fsanano/foodshare/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// FlexString decodes from either a JSON string or a JSON number. The mobile client sends
// quantities both ways.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

type DonationInput struct {
	Username    string     `json:"username" validate:"max=64"`
	City        string     `json:"city" validate:"max=128"`
	FoodName    string     `json:"foodName" validate:"required,max=200"`
	Quantity    FlexString `json:"quantity" validate:"required,max=100"`
	Description string     `json:"description" validate:"max=2000"`
	ExpiryDate  string     `json:"expiryDate" validate:"max=64"`
	FoodImage   string     `json:"foodImage" validate:"max=2048"`
}

type FoodRequestInput struct {
	Username   string     `json:"username" validate:"max=64"`
	Name       string     `json:"name" validate:"max=128"`
	Phone      string     `json:"phone" validate:"max=32"`
	Address    string     `json:"address" validate:"max=500"`
	ItemNeeded string     `json:"itemNeeded" validate:"required,max=200"`
	Quantity   FlexString `json:"quantity" validate:"max=100"`
	DonorName  string     `json:"donorName" validate:"max=128"`
	Location   string     `json:"location" validate:"max=200"`
}

// ListingService handles donation offers and food requests. Listings share the
// account match window: only recent ones are listed.
type ListingService struct {
	store    repository.ListingStore
	validate *validator.Validate
	metrics  *metrics.Metrics
	window   time.Duration
	now      func() time.Time
}

func NewListingService(store repository.ListingStore, window time.Duration, m *metrics.Metrics) *ListingService {
	if window <= 0 {
		window = DefaultMatchWindow
	}
	return &ListingService{
		store:    store,
		validate: newValidator(),
		metrics:  m,
		window:   window,
		now:      time.Now,
	}
}

func (s *ListingService) SubmitDonation(ctx context.Context, in DonationInput) (*model.Donation, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	d := &model.Donation{
		ID:          uuid.NewString(),
		Username:    in.Username,
		City:        in.City,
		FoodName:    in.FoodName,
		Quantity:    string(in.Quantity),
		Description: in.Description,
		ExpiryDate:  in.ExpiryDate,
		FoodImage:   in.FoodImage,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateDonation(ctx, d); err != nil {
		return nil, err
	}
	s.metrics.Event(metrics.EventDonation)
	return d, nil
}

func (s *ListingService) ListDonations(ctx context.Context, city string) ([]model.Donation, error) {
	return s.store.ListDonations(ctx, city, s.now().UTC().Add(-s.window))
}

func (s *ListingService) SubmitRequest(ctx context.Context, in FoodRequestInput) (*model.FoodRequest, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	r := &model.FoodRequest{
		ID:         uuid.NewString(),
		Username:   in.Username,
		Name:       in.Name,
		Phone:      in.Phone,
		Address:    in.Address,
		ItemNeeded: in.ItemNeeded,
		Quantity:   string(in.Quantity),
		DonorName:  in.DonorName,
		Location:   in.Location,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateRequest(ctx, r); err != nil {
		return nil, err
	}
	s.metrics.Event(metrics.EventFoodRequest)
	return r, nil
}

func (s *ListingService) ListRequests(ctx context.Context) ([]model.FoodRequest, error) {
	return s.store.ListRequests(ctx, s.now().UTC().Add(-s.window))
}
