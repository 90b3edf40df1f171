package repository

import (
	"context"
	"time"

	"fsanano/foodshare/internal/model"
)

// AccountStore persists accounts. Every mutation that touches a counter must be a
// single atomic update in the backing store.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *model.Account) error
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
	TouchLastActive(ctx context.Context, username string, at time.Time) (*model.Account, error)
	FindActiveByCityRole(ctx context.Context, city string, role model.Role, since time.Time) ([]model.Account, error)
	TopByOrders(ctx context.Context, limit int) ([]model.Account, error)
	IncrementBalance(ctx context.Context, username string, amount int64, at time.Time) (*model.Account, error)
	IncrementOrders(ctx context.Context, username string, at time.Time) (*model.Account, error)
	UpdateFoodDetails(ctx context.Context, username, details string, at time.Time) (*model.Account, error)
}

// ListingStore persists donations and food requests.
type ListingStore interface {
	// CreateDonation stores d. When d.Username is set the donor must exist; its city is
	// copied onto d and its last-active time is set to d.CreatedAt.
	CreateDonation(ctx context.Context, d *model.Donation) error
	ListDonations(ctx context.Context, city string, since time.Time) ([]model.Donation, error)
	CreateRequest(ctx context.Context, r *model.FoodRequest) error
	ListRequests(ctx context.Context, since time.Time) ([]model.FoodRequest, error)
}

type Store interface {
	AccountStore
	ListingStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
