package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fsanano/foodshare/internal/metrics"
	"fsanano/foodshare/internal/model"
	"fsanano/foodshare/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultMatchWindow is how recently a counterparty must have been active to be matched.
	DefaultMatchWindow = 20 * time.Hour
	LeaderboardSize    = 10
)

// dummyHash is compared against when the username is unknown so both failure paths
// spend the same bcrypt time.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("foodshare-dummy-password"), bcrypt.DefaultCost)

type SignupInput struct {
	Username    string `json:"username" validate:"required,max=64"`
	Name        string `json:"name" validate:"max=128"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	Password    string `json:"password" validate:"required,max=72"`
	City        string `json:"city" validate:"max=128"`
	Role        string `json:"role" validate:"required,oneof=donor receiver"`
	FoodDetails string `json:"foodDetails" validate:"max=1000"`
}

type AccountService struct {
	store    repository.AccountStore
	validate *validator.Validate
	metrics  *metrics.Metrics
	window   time.Duration
	now      func() time.Time
	compare  func(hash, password []byte) error
}

func NewAccountService(store repository.AccountStore, window time.Duration, m *metrics.Metrics) *AccountService {
	if window <= 0 {
		window = DefaultMatchWindow
	}
	return &AccountService{
		store:    store,
		validate: newValidator(),
		metrics:  m,
		window:   window,
		now:      time.Now,
		compare:  bcrypt.CompareHashAndPassword,
	}
}

func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*model.Account, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	// bcrypt limit is in bytes, the validator counts runes.
	if len(in.Password) > 72 {
		return nil, fmt.Errorf("%w: password must be at most 72 bytes", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	a := &model.Account{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		City:         in.City,
		Role:         model.Role(in.Role),
		FoodDetails:  in.FoodDetails,
		LastActive:   now,
		CreatedAt:    now,
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	s.metrics.Event(metrics.EventSignup)
	return a, nil
}

// Login checks the password against the stored hash and refreshes last-active on success.
// An unknown username and a wrong password are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, username, password string) (*model.Account, error) {
	if username == "" || password == "" {
		s.metrics.Event(metrics.EventLoginFailed)
		return nil, ErrInvalidCredentials
	}

	a, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = s.compare(dummyHash, []byte(password))
			s.metrics.Event(metrics.EventLoginFailed)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.compare([]byte(a.PasswordHash), []byte(password)); err != nil {
		s.metrics.Event(metrics.EventLoginFailed)
		return nil, ErrInvalidCredentials
	}

	a, err = s.store.TouchLastActive(ctx, username, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.metrics.Event(metrics.EventLogin)
	return a, nil
}

// Search returns accounts in city holding the opposite of role that were active within
// the match window.
func (s *AccountService) Search(ctx context.Context, city, role string) ([]model.Account, error) {
	r, err := model.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRole, err)
	}
	since := s.now().UTC().Add(-s.window)
	return s.store.FindActiveByCityRole(ctx, city, r.Opposite(), since)
}

func (s *AccountService) Leaderboard(ctx context.Context) ([]model.Account, error) {
	return s.store.TopByOrders(ctx, LeaderboardSize)
}

// AddBalance credits amount, which may be negative, to the account.
func (s *AccountService) AddBalance(ctx context.Context, username string, amount int64) (*model.Account, error) {
	a, err := s.store.IncrementBalance(ctx, username, amount, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.metrics.Event(metrics.EventBalanceCredit)
	return a, nil
}

// ReceiveFood records one completed pickup.
func (s *AccountService) ReceiveFood(ctx context.Context, username string) (*model.Account, error) {
	a, err := s.store.IncrementOrders(ctx, username, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.metrics.Event(metrics.EventPickup)
	return a, nil
}

func (s *AccountService) UpdateFoodDetails(ctx context.Context, username, details string) (*model.Account, error) {
	if err := s.validate.Var(details, "max=1000"); err != nil {
		return nil, fmt.Errorf("%w: foodDetails must be at most 1000 characters", ErrValidation)
	}
	return s.store.UpdateFoodDetails(ctx, username, details, s.now().UTC())
}
