package handler

import (
	"net/http"

	"fsanano/foodshare/internal/model"
	"fsanano/foodshare/internal/service"

	"github.com/sirupsen/logrus"
)

type ListingHandler struct {
	svc *service.ListingService
	log logrus.FieldLogger
}

func NewListingHandler(svc *service.ListingService, log logrus.FieldLogger) *ListingHandler {
	return &ListingHandler{svc: svc, log: log}
}

// DonationResponse keeps the {success, message} envelope the mobile donate screen reads.
type DonationResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message,omitempty"`
	Donation *model.Donation `json:"donation,omitempty"`
}

func (h *ListingHandler) SubmitDonation(w http.ResponseWriter, r *http.Request) {
	var in service.DonationInput
	if err := decodeJSON(w, r, &in); err != nil {
		status, msg := errorStatus(h.log, r, err)
		writeJSON(w, status, DonationResponse{Message: msg})
		return
	}

	d, err := h.svc.SubmitDonation(r.Context(), in)
	if err != nil {
		status, msg := errorStatus(h.log, r, err)
		writeJSON(w, status, DonationResponse{Message: msg})
		return
	}
	writeJSON(w, http.StatusCreated, DonationResponse{Success: true, Donation: d})
}

func (h *ListingHandler) ListDonations(w http.ResponseWriter, r *http.Request) {
	donations, err := h.svc.ListDonations(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		status, msg := errorStatus(h.log, r, err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, donations)
}

func (h *ListingHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var in service.FoodRequestInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fr, err := h.svc.SubmitRequest(r.Context(), in)
	if err != nil {
		status, msg := errorStatus(h.log, r, err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusCreated, fr)
}

func (h *ListingHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.svc.ListRequests(r.Context())
	if err != nil {
		status, msg := errorStatus(h.log, r, err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}
