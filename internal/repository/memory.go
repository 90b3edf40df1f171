package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fsanano/foodshare/internal/model"
)

// MemoryStore keeps everything in process memory. It backs local development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[string]*model.Account
	donations []model.Donation
	requests  []model.FoodRequest
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*model.Account)}
}

func (m *MemoryStore) Ping(context.Context) error  { return nil }
func (m *MemoryStore) Close(context.Context) error { return nil }

func (m *MemoryStore) CreateAccount(_ context.Context, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[a.Username]; ok {
		return fmt.Errorf("account %q: %w", a.Username, ErrDuplicate)
	}
	stored := *a
	m.accounts[a.Username] = &stored
	return nil
}

func (m *MemoryStore) GetAccountByUsername(_ context.Context, username string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[username]
	if !ok {
		return nil, fmt.Errorf("get account: %w", ErrNotFound)
	}
	out := *a
	return &out, nil
}

func (m *MemoryStore) TouchLastActive(_ context.Context, username string, at time.Time) (*model.Account, error) {
	return m.update(username, "touch account", func(a *model.Account) {
		a.LastActive = at
	})
}

func (m *MemoryStore) FindActiveByCityRole(_ context.Context, city string, role model.Role, since time.Time) ([]model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Account, 0)
	for _, a := range m.accounts {
		if a.City == city && a.Role == role && !a.LastActive.Before(since) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActive.Equal(out[j].LastActive) {
			return out[i].LastActive.After(out[j].LastActive)
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}

func (m *MemoryStore) TopByOrders(_ context.Context, limit int) ([]model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalOrders != out[j].TotalOrders {
			return out[i].TotalOrders > out[j].TotalOrders
		}
		return out[i].Username < out[j].Username
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) IncrementBalance(_ context.Context, username string, amount int64, at time.Time) (*model.Account, error) {
	return m.update(username, "update balance", func(a *model.Account) {
		a.Balance += amount
		a.LastActive = at
	})
}

func (m *MemoryStore) IncrementOrders(_ context.Context, username string, at time.Time) (*model.Account, error) {
	return m.update(username, "update orders", func(a *model.Account) {
		a.TotalOrders++
		a.LastActive = at
	})
}

func (m *MemoryStore) UpdateFoodDetails(_ context.Context, username, details string, at time.Time) (*model.Account, error) {
	return m.update(username, "update food details", func(a *model.Account) {
		a.FoodDetails = details
		a.LastActive = at
	})
}

func (m *MemoryStore) update(username, op string, fn func(a *model.Account)) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[username]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	fn(a)
	out := *a
	return &out, nil
}

func (m *MemoryStore) CreateDonation(_ context.Context, d *model.Donation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d.Username != "" {
		a, ok := m.accounts[d.Username]
		if !ok {
			return fmt.Errorf("donor %q: %w", d.Username, ErrNotFound)
		}
		a.LastActive = d.CreatedAt
		d.City = a.City
	}
	m.donations = append(m.donations, *d)
	return nil
}

func (m *MemoryStore) ListDonations(_ context.Context, city string, since time.Time) ([]model.Donation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Donation, 0)
	for i := len(m.donations) - 1; i >= 0; i-- {
		d := m.donations[i]
		if d.CreatedAt.Before(since) || (city != "" && d.City != city) {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CreateRequest(_ context.Context, r *model.FoodRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, *r)
	return nil
}

func (m *MemoryStore) ListRequests(_ context.Context, since time.Time) ([]model.FoodRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.FoodRequest, 0)
	for i := len(m.requests) - 1; i >= 0; i-- {
		if !m.requests[i].CreatedAt.Before(since) {
			out = append(out, m.requests[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
