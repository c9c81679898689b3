package repository

import (
	"context"
	"errors"
	"time"

	"moonyetis/internal/domain"
)

const userColumns = `id, username, email, password_hash, mooncoins_balance,
	COALESCE(associated_wallet, ''), COALESCE(wallet_type, ''), total_purchased,
	referral_code, referred_by, is_active, created_at, last_login`

type UserRepo struct {
	db querier
}

func NewUserRepository(db querier) *UserRepo {
	return &UserRepo{db: db}
}

func scanUser(row interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.MooncoinsBalance,
		&u.AssociatedWallet,
		&u.WalletType,
		&u.TotalPurchased,
		&u.ReferralCode,
		&u.ReferredBy,
		&u.IsActive,
		&u.CreatedAt,
		&u.LastLogin,
	); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// Create inserts a new user and fills in ID and CreatedAt.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, referral_code, referred_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, mooncoins_balance, is_active, created_at`,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.ReferralCode,
		u.ReferredBy,
	).Scan(&u.ID, &u.MooncoinsBalance, &u.IsActive, &u.CreatedAt)
	return mapError(err)
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByUsernameOrEmail matches either column exactly.
func (r *UserRepo) GetByUsernameOrEmail(ctx context.Context, identifier string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $1
		 ORDER BY (username = $1) DESC LIMIT 1`, identifier))
}

func (r *UserRepo) GetByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code))
}

func (r *UserRepo) Exists(ctx context.Context, username, email string) (bool, bool, error) {
	var usernameTaken, emailTaken bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $1),
		        EXISTS(SELECT 1 FROM users WHERE email = $2 OR username = $2)`,
		username, email,
	).Scan(&usernameTaken, &emailTaken)
	return usernameTaken, emailTaken, mapError(err)
}

func (r *UserRepo) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE referral_code = $1)`, code,
	).Scan(&exists)
	return exists, mapError(err)
}

// AddBalance applies delta and returns the new balance. The balance never
// goes below zero.
func (r *UserRepo) AddBalance(ctx context.Context, userID, delta int64) (int64, error) {
	var newBalance int64
	err := r.db.QueryRow(ctx,
		`UPDATE users SET mooncoins_balance = mooncoins_balance + $1
		 WHERE id = $2 AND mooncoins_balance + $1 >= 0
		 RETURNING mooncoins_balance`,
		delta, userID,
	).Scan(&newBalance)
	if err == nil {
		return newBalance, nil
	}
	err = mapError(err)
	if errors.Is(err, ErrNotFound) {
		// either no such user or the guard rejected the change
		var exists bool
		_ = r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
		if exists {
			return 0, ErrInsufficientFunds
		}
	}
	return 0, err
}

func (r *UserRepo) AddPurchased(ctx context.Context, userID int64, amount float64) error {
	return r.execOne(ctx,
		`UPDATE users SET total_purchased = total_purchased + $1 WHERE id = $2`,
		amount, userID)
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	return r.execOne(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, userID)
}

func (r *UserRepo) SetWallet(ctx context.Context, userID int64, address, walletType string) error {
	return r.execOne(ctx,
		`UPDATE users SET associated_wallet = NULLIF($1, ''), wallet_type = NULLIF($2, '') WHERE id = $3`,
		address, walletType, userID)
}

func (r *UserRepo) SetActive(ctx context.Context, userID int64, active bool) error {
	return r.execOne(ctx, `UPDATE users SET is_active = $1 WHERE id = $2`, active, userID)
}

func (r *UserRepo) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
