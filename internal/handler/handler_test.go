package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"fsanano/foodshare/internal/handler"
	"fsanano/foodshare/internal/metrics"
	"fsanano/foodshare/internal/model"
	"fsanano/foodshare/internal/repository"
	"fsanano/foodshare/internal/service"

	"github.com/andybalholm/brotli"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{}

func (brokenStore) Ping(context.Context) error { return errors.New("connection refused") }

func newTestHandler(t *testing.T, opts handler.Options, pinger handler.Pinger) http.Handler {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := repository.NewMemoryStore()
	if pinger == nil {
		pinger = store
	}
	m := metrics.New()

	accounts := handler.NewAccountHandler(service.NewAccountService(store, 0, m), log)
	listings := handler.NewListingHandler(service.NewListingService(store, 0, m), log)
	return handler.NewHandler(accounts, listings, pinger, m, log, opts)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			buf, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(buf)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func signupBody(username, city, role string) map[string]string {
	return map[string]string{
		"username": username,
		"name":     username,
		"email":    username + "@x.com",
		"password": "pw",
		"city":     city,
		"role":     role,
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body["error"]
}

func TestSignupAndSearch(t *testing.T) {
	h := newTestHandler(t, handler.Options{}, nil)

	rr := do(t, h, http.MethodPost, "/api/users/signup", signupBody("alice", "Mumbai", "donor"))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.NotContains(t, rr.Body.String(), "password")

	var alice model.Account
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&alice))
	assert.Equal(t, "alice", alice.Username)
	assert.Equal(t, model.RoleDonor, alice.Role)
	assert.NotEmpty(t, alice.ID)

	rr = do(t, h, http.MethodPost, "/api/users/signup", signupBody("alice", "Mumbai", "donor"))
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/users/signup", signupBody("bob", "Mumbai", "receiver"))
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = do(t, h, http.MethodPost, "/api/users/signup", signupBody("carol", "Pune", "receiver"))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/users/search/Mumbai/donor", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var matches []model.Account
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&matches))
	require.Len(t, matches, 1)
	assert.Equal(t, "bob", matches[0].Username)
}

func TestSearch_EscapedCity(t *testing.T) {
	h := newTestHandler(t, handler.Options{}, nil)

	rr := do(t, h, http.MethodPost, "/api/users/signup", signupBody("dan", "New Delhi", "receiver"))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/users/search/New%20Delhi/donor", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var matches []model.Account
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&matches))
	require.Len(t, matches, 1)
	assert.Equal(t, "dan", matches[0].Username)
}

func TestSearch_InvalidRole(t *testing.T) {
	h := newTestHandler(t, handler.Options{}, nil)

	rr := do(t, h, http.MethodGet, "/api/users/search/Mumbai/chef", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSignup_Validation(t *testing.T) {
	h := newTestHandler(t, handler.Options{}, nil)

	rr := do(t, h, http.MethodPost, "/api/users/signup", signupBody("", "Mumbai", "donor"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeError(t, rr), "username is required")

	rr = do(t, h, http.MethodPost, "/api/users/signup", `{"username":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid request body", decodeError(t, rr))
}

func TestLogin(t *testing.T) {
	h := newTestHandler(t, handler.Options{}, nil)

	rr := do(t, h, http.MethodPost, "/api/users/signup", signupBody("alice", "Mumbai", "donor"))
	require.Equal(t, http.StatusCreated, rr.Code)

	tests := []struct {
		name     string
		username string
		password string
		want     int
	}{
		{"valid", "alice", "pw", http.StatusOK},
		{"wrong password", "alice", "nope", http.StatusNotFound},
		{"unknown user", "zoe", "pw", http.StatusNotFound},
		{"empty", "", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/api/users/login", map[string]string{
				"username": tt.username,
				"password": tt.password,
			})
			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusNotFound {
				assert.Equal(t, "Invalid credentials", decodeError(t, rr))
			}
		})
	}
}

func TestBalanceAndPickups(t *testing.T) {
	h := newTestHandler(t, handler.Options{}, nil)

	for _, name := range []string{"kiran", "lee"} {
		rr := do(t, h, http.MethodPost, "/api/users/signup", signupBody(name, "Mumbai", "receiver"))
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := do(t, h, http.MethodPut, "/api/users/add-balance/kiran", map[string]int64{"amount": 50})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, h, http.MethodPut, "/api/users/add-balance/kiran", map[string]int64{"amount": -20})
	require.Equal(t, http.StatusOK, rr.Code)

	var a model.Account
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&a))
	assert.Equal(t, int64(30), a.Balance)

	rr = do(t, h, http.MethodPut, "/api/users/add-balance/kiran", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPut, "/api/users/add-balance/ghost", map[string]int64{"amount": 5})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	for i := 0; i < 3; i++ {
		rr = do(t, h, http.MethodPost, "/api/users/receive-food/lee", nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr = do(t, h, http.MethodPost, "/api/users/receive-food/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/users/leaderboard", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var top []model.Account
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&top))
	require.Len(t, top, 2)
	assert.Equal(t, "lee", top[0].Username)
	assert.Equal(t, int64(3), top[0].TotalOrders)
	assert.Equal(t, "kiran", top[1].Username)
}

func TestUpdateFoodDetails(t *testing.T) {
	h := newTestHandler(t, handler.Options{}, nil)

	rr := do(t, h, http.MethodPost, "/api/users/signup", signupBody("alice", "Mumbai", "donor"))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, h, http.MethodPut, "/api/users/food-details/alice", map[string]string{"foodDetails": "20 rotis"})
	require.Equal(t, http.StatusOK, rr.Code)

	var a model.Account
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&a))
	assert.Equal(t, "20 rotis", a.FoodDetails)
}

func TestDonations(t *testing.T) {
	h := newTestHandler(t, handler.Options{}, nil)

	rr := do(t, h, http.MethodPost, "/api/users/signup", signupBody("alice", "Mumbai", "donor"))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/donations/submit", `{"username":"alice","foodName":"Rice","quantity":5}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp handler.DonationResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Donation)
	assert.Equal(t, "Mumbai", resp.Donation.City)
	assert.Equal(t, "5", resp.Donation.Quantity)

	rr = do(t, h, http.MethodPost, "/api/donations/submit", `{"username":"ghost","foodName":"Rice","quantity":"1"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	resp = handler.DonationResponse{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)

	rr = do(t, h, http.MethodPost, "/api/donations/submit", `{"quantity":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/donations?city=Mumbai", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var donations []model.Donation
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&donations))
	require.Len(t, donations, 1)
	assert.Equal(t, "Rice", donations[0].FoodName)

	rr = do(t, h, http.MethodGet, "/api/donations?city=Pune", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestFoodRequests(t *testing.T) {
	h := newTestHandler(t, handler.Options{}, nil)

	rr := do(t, h, http.MethodPost, "/api/requests", `{"name":"Bob","itemNeeded":"Milk","quantity":"2"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/requests", `{"name":"Bob"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/requests", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var requests []model.FoodRequest
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&requests))
	require.Len(t, requests, 1)
	assert.Equal(t, "Milk", requests[0].ItemNeeded)
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, handler.Options{}, nil)

	rr := do(t, h, http.MethodGet, "/api", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "working!", rr.Body.String())

	rr = do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "foodshare_http_requests_total")

	broken := newTestHandler(t, handler.Options{}, brokenStore{})
	rr = do(t, broken, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRateLimit(t *testing.T) {
	h := newTestHandler(t, handler.Options{RateLimitRPS: 0.001, RateLimitBurst: 1}, nil)

	rr := do(t, h, http.MethodPost, "/api/users/login", map[string]string{"username": "a", "password": "b"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/users/login", map[string]string{"username": "a", "password": "b"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// Other routes are not throttled.
	rr = do(t, h, http.MethodGet, "/api/users/leaderboard", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimit_IgnoresForwardedHeaders(t *testing.T) {
	h := newTestHandler(t, handler.Options{RateLimitRPS: 0.001, RateLimitBurst: 1}, nil)

	codes := map[int]int{}
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/users/login", bytes.NewBufferString(`{"username":"a","password":"b"}`))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes[rr.Code]++
	}
	assert.Equal(t, 1, codes[http.StatusNotFound])
	assert.Equal(t, 19, codes[http.StatusTooManyRequests])
}

func TestRateLimit_TrustedProxyHeaders(t *testing.T) {
	h := newTestHandler(t, handler.Options{RateLimitRPS: 0.001, RateLimitBurst: 1, TrustProxyHeaders: true}, nil)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/users/login", bytes.NewBufferString(`{"username":"a","password":"b"}`))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code, "each forwarded client has its own bucket")
	}
}

func TestMetrics_UnmatchedRoutesShareLabel(t *testing.T) {
	h := newTestHandler(t, handler.Options{}, nil)

	for i := 0; i < 5; i++ {
		rr := do(t, h, http.MethodGet, fmt.Sprintf("/random-%d", i), nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	}

	rr := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `foodshare_http_requests_total{method="GET",route="unmatched",status="404"} 5`)
	assert.NotContains(t, body, "/random-")
}

func TestBrotliResponse(t *testing.T) {
	h := newTestHandler(t, handler.Options{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	req.Header.Set("Accept-Encoding", "br")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "br", rr.Header().Get("Content-Encoding"))

	body, err := io.ReadAll(brotli.NewReader(rr.Body))
	require.NoError(t, err)
	assert.Equal(t, "working!", string(body))
}
