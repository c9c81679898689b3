package repository

import (
	"context"
	"errors"
	"time"

	"moonyetis/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrInsufficientFunds is returned when a balance change would go negative.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// DuplicateError reports a unique constraint violation. Field names the
// violated column ("username", "email", "referral_code", ...).
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return "duplicate " + e.Field
}

// IsDuplicate reports whether err is a unique violation, optionally on field.
func IsDuplicate(err error, field string) bool {
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		return false
	}
	return field == "" || dup.Field == field
}

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsernameOrEmail(ctx context.Context, identifier string) (*domain.User, error)
	GetByReferralCode(ctx context.Context, code string) (*domain.User, error)
	// Exists checks each value against both login columns.
	Exists(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error)
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
	AddBalance(ctx context.Context, userID, delta int64) (int64, error)
	AddPurchased(ctx context.Context, userID int64, amount float64) error
	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error
	SetWallet(ctx context.Context, userID int64, address, walletType string) error
	SetActive(ctx context.Context, userID int64, active bool) error
}

type StreakRepository interface {
	Create(ctx context.Context, userID int64) error
	Get(ctx context.Context, userID int64) (*domain.LoginStreak, error)
	// GetOrCreateForUpdate returns the row, creating an empty one if absent,
	// and holds it for the rest of the transaction.
	GetOrCreateForUpdate(ctx context.Context, userID int64) (*domain.LoginStreak, error)
	// Update writes s only if the stored last_login_date still equals
	// prevDate; it reports false when another claim got there first.
	Update(ctx context.Context, s *domain.LoginStreak, prevDate string) (bool, error)
}

type ReferralRepository interface {
	Create(ctx context.Context, r *domain.Referral) error
	GetByID(ctx context.Context, id int64) (*domain.Referral, error)
	GetByReferred(ctx context.Context, referredID int64) (*domain.Referral, error)
	// MarkRewarded latches reward_claimed and completes the referral. It
	// reports false when the latch was already set.
	MarkRewarded(ctx context.Context, id int64, at time.Time) (bool, error)
	ListByReferrer(ctx context.Context, referrerID int64, limit int) ([]domain.ReferralDetail, error)
	StatsByReferrer(ctx context.Context, referrerID int64) (domain.ReferralStats, error)
}

type RewardLogRepository interface {
	Append(ctx context.Context, l *domain.RewardLog) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.RewardLog, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, t *domain.Transaction) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.Transaction, error)
}

// Repos bundles the repositories bound to one connection or transaction.
type Repos struct {
	Users        UserRepository
	Streaks      StreakRepository
	Referrals    ReferralRepository
	Rewards      RewardLogRepository
	Transactions TransactionRepository
}

// Store is the persistence boundary the services depend on.
type Store interface {
	// Repos returns repositories outside any transaction, for reads.
	Repos() Repos
	// WithTx runs fn in one transaction. A non-nil error from fn rolls back
	// every write made through the given Repos.
	WithTx(ctx context.Context, fn func(r Repos) error) error
	Ping(ctx context.Context) error
}
