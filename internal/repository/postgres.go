package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fsanano/foodshare/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, username, name, email, password_hash, city, role, food_details, balance, total_orders, last_active, created_at`

const uniqueViolation = "23505"

type PostgresStore struct {
	db *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// RunAtomic executes fn within a transaction. Store methods called with the ctx passed
// to fn run on that transaction.
func (r *PostgresStore) RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// No-op once committed.
	defer tx.Rollback(ctx)

	ctx = context.WithValue(ctx, txKey{}, tx)

	if err := fn(ctx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

type txKey struct{}

func (r *PostgresStore) getExecutor(ctx context.Context) PgxExecutor {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return r.db
}

// PgxExecutor is an interface that matches both *pgxpool.Pool and pgx.Tx
type PgxExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PostgresStore) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *PostgresStore) Close(context.Context) error {
	r.db.Close()
	return nil
}

func (r *PostgresStore) CreateAccount(ctx context.Context, a *model.Account) error {
	_, err := r.getExecutor(ctx).Exec(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, a.Username, a.Name, a.Email, a.PasswordHash, a.City, string(a.Role), a.FoodDetails,
		a.Balance, a.TotalOrders, a.LastActive, a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("account %q: %w", a.Username, ErrDuplicate)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *PostgresStore) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	row := r.getExecutor(ctx).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username)
	return scanAccountRow(row, "get account")
}

func (r *PostgresStore) TouchLastActive(ctx context.Context, username string, at time.Time) (*model.Account, error) {
	row := r.getExecutor(ctx).QueryRow(ctx,
		`UPDATE accounts SET last_active = $1 WHERE username = $2 RETURNING `+accountColumns, at, username)
	return scanAccountRow(row, "touch account")
}

func (r *PostgresStore) FindActiveByCityRole(ctx context.Context, city string, role model.Role, since time.Time) ([]model.Account, error) {
	rows, err := r.getExecutor(ctx).Query(ctx,
		`SELECT `+accountColumns+` FROM accounts
		WHERE city = $1 AND role = $2 AND last_active >= $3
		ORDER BY last_active DESC, username`, city, string(role), since)
	if err != nil {
		return nil, fmt.Errorf("failed to search accounts: %w", err)
	}
	return collectAccounts(rows)
}

func (r *PostgresStore) TopByOrders(ctx context.Context, limit int) ([]model.Account, error) {
	rows, err := r.getExecutor(ctx).Query(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY total_orders DESC, username ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard: %w", err)
	}
	return collectAccounts(rows)
}

func (r *PostgresStore) IncrementBalance(ctx context.Context, username string, amount int64, at time.Time) (*model.Account, error) {
	row := r.getExecutor(ctx).QueryRow(ctx,
		`UPDATE accounts SET balance = balance + $1, last_active = $2 WHERE username = $3 RETURNING `+accountColumns,
		amount, at, username)
	return scanAccountRow(row, "update balance")
}

func (r *PostgresStore) IncrementOrders(ctx context.Context, username string, at time.Time) (*model.Account, error) {
	row := r.getExecutor(ctx).QueryRow(ctx,
		`UPDATE accounts SET total_orders = total_orders + 1, last_active = $1 WHERE username = $2 RETURNING `+accountColumns,
		at, username)
	return scanAccountRow(row, "update orders")
}

func (r *PostgresStore) UpdateFoodDetails(ctx context.Context, username, details string, at time.Time) (*model.Account, error) {
	row := r.getExecutor(ctx).QueryRow(ctx,
		`UPDATE accounts SET food_details = $1, last_active = $2 WHERE username = $3 RETURNING `+accountColumns,
		details, at, username)
	return scanAccountRow(row, "update food details")
}

func (r *PostgresStore) CreateDonation(ctx context.Context, d *model.Donation) error {
	return r.RunAtomic(ctx, func(ctx context.Context) error {
		if d.Username != "" {
			var city string
			err := r.getExecutor(ctx).QueryRow(ctx,
				`UPDATE accounts SET last_active = $1 WHERE username = $2 RETURNING city`,
				d.CreatedAt, d.Username).Scan(&city)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("donor %q: %w", d.Username, ErrNotFound)
				}
				return fmt.Errorf("failed to touch donor: %w", err)
			}
			d.City = city
		}

		_, err := r.getExecutor(ctx).Exec(ctx,
			`INSERT INTO donations (id, username, city, food_name, quantity, description, expiry_date, food_image, created_at)
			VALUES ($1, NULLIF($2::text, ''), $3, $4, $5, $6, $7, $8, $9)`,
			d.ID, d.Username, d.City, d.FoodName, d.Quantity, d.Description, d.ExpiryDate, d.FoodImage, d.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create donation: %w", err)
		}
		return nil
	})
}

func (r *PostgresStore) ListDonations(ctx context.Context, city string, since time.Time) ([]model.Donation, error) {
	rows, err := r.getExecutor(ctx).Query(ctx,
		`SELECT id, COALESCE(username, ''), city, food_name, quantity, description, expiry_date, food_image, created_at
		FROM donations
		WHERE created_at >= $1 AND ($2::text = '' OR city = $2::text)
		ORDER BY created_at DESC`, since, city)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	defer rows.Close()

	donations := make([]model.Donation, 0)
	for rows.Next() {
		var d model.Donation
		if err := rows.Scan(&d.ID, &d.Username, &d.City, &d.FoodName, &d.Quantity, &d.Description, &d.ExpiryDate, &d.FoodImage, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan donation: %w", err)
		}
		donations = append(donations, d)
	}
	return donations, rows.Err()
}

func (r *PostgresStore) CreateRequest(ctx context.Context, fr *model.FoodRequest) error {
	_, err := r.getExecutor(ctx).Exec(ctx,
		`INSERT INTO food_requests (id, username, name, phone, address, item_needed, quantity, donor_name, location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		fr.ID, fr.Username, fr.Name, fr.Phone, fr.Address, fr.ItemNeeded, fr.Quantity, fr.DonorName, fr.Location, fr.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create food request: %w", err)
	}
	return nil
}

func (r *PostgresStore) ListRequests(ctx context.Context, since time.Time) ([]model.FoodRequest, error) {
	rows, err := r.getExecutor(ctx).Query(ctx,
		`SELECT id, username, name, phone, address, item_needed, quantity, donor_name, location, created_at
		FROM food_requests WHERE created_at >= $1 ORDER BY created_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list food requests: %w", err)
	}
	defer rows.Close()

	requests := make([]model.FoodRequest, 0)
	for rows.Next() {
		var fr model.FoodRequest
		if err := rows.Scan(&fr.ID, &fr.Username, &fr.Name, &fr.Phone, &fr.Address, &fr.ItemNeeded, &fr.Quantity, &fr.DonorName, &fr.Location, &fr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan food request: %w", err)
		}
		requests = append(requests, fr)
	}
	return requests, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*model.Account, error) {
	var a model.Account
	var role string
	err := s.Scan(&a.ID, &a.Username, &a.Name, &a.Email, &a.PasswordHash, &a.City, &role, &a.FoodDetails,
		&a.Balance, &a.TotalOrders, &a.LastActive, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Role = model.Role(role)
	return &a, nil
}

func scanAccountRow(row pgx.Row, op string) (*model.Account, error) {
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return a, nil
}

func collectAccounts(rows pgx.Rows) ([]model.Account, error) {
	defer rows.Close()

	accounts := make([]model.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}
