package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"fsanano/foodshare/internal/model"
	"fsanano/foodshare/internal/service"

	"github.com/andybalholm/brotli"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL        string
	Timeout        time.Duration
	LeaderboardTTL time.Duration
}

type cachedLeaderboard struct {
	accounts []model.Account
	expiry   time.Time
}

type Client struct {
	client *http.Client
	config Config

	cacheMu     sync.RWMutex
	leaderboard cachedLeaderboard
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.LeaderboardTTL <= 0 {
		cfg.LeaderboardTTL = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		client: &http.Client{
			Transport: &EncodingTransport{Base: http.DefaultTransport},
			Timeout:   cfg.Timeout,
		},
		config: cfg,
	}
}

// EncodingTransport asks for brotli-compressed JSON and decodes it transparently.
type EncodingTransport struct {
	Base http.RoundTripper
}

func (t *EncodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br")

	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.Header.Get("Content-Encoding") == "br" {
		resp.Body = &readCloserWrapper{Reader: brotli.NewReader(resp.Body), Closer: resp.Body}
		resp.Header.Del("Content-Encoding")
		resp.Header.Del("Content-Length")
		resp.ContentLength = -1
	}
	return resp, nil
}

func (c *Client) Signup(ctx context.Context, in service.SignupInput) (*model.Account, error) {
	var a model.Account
	if err := c.do(ctx, http.MethodPost, "/api/users/signup", in, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*model.Account, error) {
	body := map[string]string{"username": username, "password": password}
	var a model.Account
	if err := c.do(ctx, http.MethodPost, "/api/users/login", body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Search returns active accounts in city holding the role opposite to role.
func (c *Client) Search(ctx context.Context, city string, role model.Role) ([]model.Account, error) {
	path := fmt.Sprintf("/api/users/search/%s/%s", url.PathEscape(city), url.PathEscape(string(role)))
	var accounts []model.Account
	if err := c.do(ctx, http.MethodGet, path, nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Leaderboard is cached for Config.LeaderboardTTL. Callers get their own copy.
func (c *Client) Leaderboard(ctx context.Context) ([]model.Account, error) {
	c.cacheMu.RLock()
	data := c.leaderboard
	if data.accounts != nil && time.Now().Before(data.expiry) {
		c.cacheMu.RUnlock()
		return slices.Clone(data.accounts), nil
	}
	c.cacheMu.RUnlock()

	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	// Double check logic
	data = c.leaderboard
	if data.accounts != nil && time.Now().Before(data.expiry) {
		return slices.Clone(data.accounts), nil
	}

	accounts := make([]model.Account, 0)
	if err := c.do(ctx, http.MethodGet, "/api/users/leaderboard", nil, &accounts); err != nil {
		return nil, err
	}

	c.leaderboard = cachedLeaderboard{
		accounts: accounts,
		expiry:   time.Now().Add(c.config.LeaderboardTTL),
	}
	return slices.Clone(accounts), nil
}

func (c *Client) invalidateLeaderboard() {
	c.cacheMu.Lock()
	c.leaderboard = cachedLeaderboard{}
	c.cacheMu.Unlock()
}

// AddBalance credits amount and drops the cached leaderboard, which carries balances.
func (c *Client) AddBalance(ctx context.Context, username string, amount int64) (*model.Account, error) {
	body := map[string]int64{"amount": amount}
	var a model.Account
	if err := c.do(ctx, http.MethodPut, "/api/users/add-balance/"+url.PathEscape(username), body, &a); err != nil {
		return nil, err
	}

	c.invalidateLeaderboard()
	return &a, nil
}

// ReceiveFood records a pickup and drops the cached leaderboard.
func (c *Client) ReceiveFood(ctx context.Context, username string) (*model.Account, error) {
	var a model.Account
	if err := c.do(ctx, http.MethodPost, "/api/users/receive-food/"+url.PathEscape(username), nil, &a); err != nil {
		return nil, err
	}

	c.invalidateLeaderboard()
	return &a, nil
}

func (c *Client) UpdateFoodDetails(ctx context.Context, username, details string) (*model.Account, error) {
	body := map[string]string{"foodDetails": details}
	var a model.Account
	if err := c.do(ctx, http.MethodPut, "/api/users/food-details/"+url.PathEscape(username), body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) SubmitDonation(ctx context.Context, in service.DonationInput) (*model.Donation, error) {
	var resp donationResponse
	if err := c.do(ctx, http.MethodPost, "/api/donations/submit", in, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Donation == nil {
		return nil, fmt.Errorf("donation rejected: %s", resp.Message)
	}
	return resp.Donation, nil
}

func (c *Client) ListDonations(ctx context.Context, city string) ([]model.Donation, error) {
	path := "/api/donations"
	if city != "" {
		path += "?" + url.Values{"city": {city}}.Encode()
	}
	var donations []model.Donation
	if err := c.do(ctx, http.MethodGet, path, nil, &donations); err != nil {
		return nil, err
	}
	return donations, nil
}

func (c *Client) SubmitRequest(ctx context.Context, in service.FoodRequestInput) (*model.FoodRequest, error) {
	var r model.FoodRequest
	if err := c.do(ctx, http.MethodPost, "/api/requests", in, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ListRequests(ctx context.Context) ([]model.FoodRequest, error) {
	var requests []model.FoodRequest
	if err := c.do(ctx, http.MethodGet, "/api/requests", nil, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// CityOverview fetches active donors, active receivers and recent donations for city
// concurrently. The first failure cancels the others.
func (c *Client) CityOverview(ctx context.Context, city string) (*CityOverview, error) {
	g, ctx := errgroup.WithContext(ctx)
	overview := &CityOverview{City: city}

	// Searching as a receiver yields donors, and the other way round.
	g.Go(func() error {
		var err error
		overview.Donors, err = c.Search(ctx, city, model.RoleReceiver)
		if err != nil {
			return fmt.Errorf("failed to fetch donors: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		overview.Receivers, err = c.Search(ctx, city, model.RoleDonor)
		if err != nil {
			return fmt.Errorf("failed to fetch receivers: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		overview.Donations, err = c.ListDonations(ctx, city)
		if err != nil {
			return fmt.Errorf("failed to fetch donations: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return overview, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = decodeFallbackMessage(raw)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeFallbackMessage handles error bodies that are not {"error": ...}, such as the
// {"success": false, "message": ...} shape of the donation endpoint or plain text.
func decodeFallbackMessage(raw []byte) string {
	var dr donationResponse
	if err := json.Unmarshal(raw, &dr); err == nil && dr.Message != "" {
		return dr.Message
	}
	return strings.TrimSpace(string(raw))
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type readCloserWrapper struct {
	io.Reader
	io.Closer
}

func (r *readCloserWrapper) Read(p []byte) (n int, err error) {
	return r.Reader.Read(p)
}

func (r *readCloserWrapper) Close() error {
	return r.Closer.Close()
}
