package repository

import (
	"context"
	"encoding/json"

	"moonyetis/internal/domain"

	"github.com/jackc/pgx/v5"
)

type TransactionRepo struct {
	db querier
}

func NewTransactionRepository(db querier) *TransactionRepo {
	return &TransactionRepo{db: db}
}

// Create inserts a transaction. A repeated (user_id, external_ref) pair is a
// DuplicateError on "external_ref".
func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	metaJSON, err := json.Marshal(t.Meta)
	if err != nil || t.Meta == nil {
		metaJSON = []byte("{}")
	}

	var externalRef *string
	if t.ExternalRef != "" {
		externalRef = &t.ExternalRef
	}

	err = r.db.QueryRow(ctx,
		`INSERT INTO transactions (user_id, type, amount, usd_amount, external_ref, meta)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		t.UserID, t.Type, t.Amount, t.USDAmount, externalRef, metaJSON,
	).Scan(&t.ID, &t.CreatedAt)
	return mapError(err)
}

// ListByUser returns recent transactions for a user, newest first.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, type, amount, usd_amount, COALESCE(external_ref, ''), meta, created_at
		 FROM transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	result := []*domain.Transaction{}
	for rows.Next() {
		var (
			t        domain.Transaction
			metaJSON []byte
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.USDAmount, &t.ExternalRef, &metaJSON, &t.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &t.Meta)
		}
		result = append(result, &t)
	}
	return result, rows.Err()
}
