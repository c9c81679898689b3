package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func newRepos(q querier) Repos {
	return Repos{
		Users:        NewUserRepository(q),
		Streaks:      NewStreakRepository(q),
		Referrals:    NewReferralRepository(q),
		Rewards:      NewRewardLogRepository(q),
		Transactions: NewTransactionRepository(q),
	}
}

func (s *PostgresStore) Repos() Repos {
	return newRepos(s.db)
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(r Repos) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(newRepos(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// mapError converts driver errors into repository errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			// referenced row missing, e.g. a streak for an unknown user
			return ErrNotFound
		case "23505":
			return &DuplicateError{Field: fieldFromConstraint(pgErr.ConstraintName)}
		case "23514":
			if strings.Contains(pgErr.ConstraintName, "balance") {
				return ErrInsufficientFunds
			}
		}
	}
	return err
}

// fieldFromConstraint turns "users_referral_code_key" into "referral_code".
func fieldFromConstraint(name string) string {
	for _, table := range []string{"users_", "login_streaks_", "referrals_", "transactions_", "reward_logs_"} {
		if strings.HasPrefix(name, table) {
			name = strings.TrimPrefix(name, table)
			break
		}
	}
	name = strings.TrimSuffix(name, "_key")
	name = strings.TrimSuffix(name, "_once")
	return name
}
