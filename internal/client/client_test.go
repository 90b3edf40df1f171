package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"fsanano/foodshare/internal/model"
	"fsanano/foodshare/internal/service"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBrotliJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Encoding", "br")
	bw := brotli.NewWriter(w)
	json.NewEncoder(bw).Encode(v)
	bw.Close()
}

func TestSearch_BrotliAndEscaping(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "br", r.Header.Get("Accept-Encoding"))
		assert.Equal(t, "/api/users/search/New Delhi/donor", r.URL.Path)
		writeBrotliJSON(w, []model.Account{
			{Username: "bob", City: "New Delhi", Role: model.RoleReceiver},
		})
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL + "/"})

	accounts, err := client.Search(context.Background(), "New Delhi", model.RoleDonor)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "bob", accounts[0].Username)
	assert.Equal(t, model.RoleReceiver, accounts[0].Role)
}

func TestSignup_Conflict(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in service.SignupInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "alice", in.Username)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"username already exists"}`))
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})
	_, err := client.Signup(context.Background(), service.SignupInput{Username: "alice", Password: "pw", Role: "donor"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "username already exists", apiErr.Message)
}

func TestLogin_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Invalid credentials"}`))
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})
	_, err := client.Login(context.Background(), "alice", "wrong")
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestLeaderboard_Cache(t *testing.T) {
	var requestCount atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/leaderboard":
			requestCount.Add(1)
			json.NewEncoder(w).Encode([]model.Account{{Username: "k", TotalOrders: 3}})
		case "/api/users/receive-food/k":
			json.NewEncoder(w).Encode(model.Account{Username: "k", TotalOrders: 4})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})

	top, err := client.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Len(t, top, 1)
	assert.Equal(t, int32(1), requestCount.Load())

	_, err = client.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), requestCount.Load(), "Should not increment request count due to caching")

	a, err := client.ReceiveFood(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int64(4), a.TotalOrders)

	_, err = client.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), requestCount.Load(), "pickup should invalidate the cache")
}

func TestLeaderboard_CopiesAndBalanceInvalidation(t *testing.T) {
	var requestCount atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/leaderboard":
			requestCount.Add(1)
			json.NewEncoder(w).Encode([]model.Account{{Username: "k", Balance: 10, TotalOrders: 3}})
		case "/api/users/add-balance/k":
			json.NewEncoder(w).Encode(model.Account{Username: "k", Balance: 60, TotalOrders: 3})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})

	top, err := client.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, top, 1)
	top[0].Username = "mutated"

	top, err = client.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k", top[0].Username, "callers must not share the cached slice")
	assert.Equal(t, int32(1), requestCount.Load())

	_, err = client.AddBalance(context.Background(), "k", 50)
	require.NoError(t, err)

	_, err = client.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), requestCount.Load(), "balance credit should invalidate the cache")
}

func TestCityOverview(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/search/Mumbai/receiver":
			json.NewEncoder(w).Encode([]model.Account{{Username: "alice", Role: model.RoleDonor}})
		case "/api/users/search/Mumbai/donor":
			json.NewEncoder(w).Encode([]model.Account{{Username: "bob", Role: model.RoleReceiver}, {Username: "dan", Role: model.RoleReceiver}})
		case "/api/donations":
			assert.Equal(t, "Mumbai", r.URL.Query().Get("city"))
			json.NewEncoder(w).Encode([]model.Donation{{FoodName: "Rice", City: "Mumbai"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})
	overview, err := client.CityOverview(context.Background(), "Mumbai")
	require.NoError(t, err)

	assert.Equal(t, "Mumbai", overview.City)
	require.Len(t, overview.Donors, 1)
	assert.Equal(t, "alice", overview.Donors[0].Username)
	assert.Len(t, overview.Receivers, 2)
	require.Len(t, overview.Donations, 1)
	assert.Equal(t, "Rice", overview.Donations[0].FoodName)
}

func TestCityOverview_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal server error"}`))
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})
	_, err := client.CityOverview(context.Background(), "Mumbai")
	assert.Error(t, err)
	// Error could come from any of the three fetches
	assert.Contains(t, err.Error(), "failed to fetch")
}

func TestSubmitDonation_Rejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"message":"validation failed: foodName is required"}`))
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})
	_, err := client.SubmitDonation(context.Background(), service.DonationInput{Quantity: "1"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "foodName is required")
}

func TestInvalidJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`invalid-json`))
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})
	_, err := client.ListRequests(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid character")
}
