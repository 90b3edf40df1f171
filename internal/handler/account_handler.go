package handler

import (
	"net/http"

	"fsanano/foodshare/internal/service"

	"github.com/sirupsen/logrus"
)

type AccountHandler struct {
	svc *service.AccountService
	log logrus.FieldLogger
}

func NewAccountHandler(svc *service.AccountService, log logrus.FieldLogger) *AccountHandler {
	return &AccountHandler{svc: svc, log: log}
}

func (h *AccountHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(h.log, r, err)
	writeError(w, status, msg)
}

func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}

	a, err := h.svc.Signup(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	a, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AccountHandler) Search(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.Search(r.Context(), pathParam(r, "city"), pathParam(r, "role"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *AccountHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.Leaderboard(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

type AddBalanceRequest struct {
	Amount *int64 `json:"amount"`
}

func (h *AccountHandler) AddBalance(w http.ResponseWriter, r *http.Request) {
	var req AddBalanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Amount == nil {
		writeError(w, http.StatusBadRequest, "amount is required")
		return
	}

	a, err := h.svc.AddBalance(r.Context(), pathParam(r, "username"), *req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AccountHandler) ReceiveFood(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.ReceiveFood(r.Context(), pathParam(r, "username"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type FoodDetailsRequest struct {
	FoodDetails string `json:"foodDetails"`
}

func (h *AccountHandler) UpdateFoodDetails(w http.ResponseWriter, r *http.Request) {
	var req FoodDetailsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	a, err := h.svc.UpdateFoodDetails(r.Context(), pathParam(r, "username"), req.FoodDetails)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
