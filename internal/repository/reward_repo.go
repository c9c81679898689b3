package repository

import (
	"context"
	"encoding/json"

	"moonyetis/internal/domain"

	"github.com/jackc/pgx/v5"
)

// RewardLogRepo writes the reward ledger. It only ever inserts.
type RewardLogRepo struct {
	db querier
}

func NewRewardLogRepository(db querier) *RewardLogRepo {
	return &RewardLogRepo{db: db}
}

func (r *RewardLogRepo) Append(ctx context.Context, l *domain.RewardLog) error {
	metadataJSON, err := json.Marshal(l.Metadata)
	if err != nil || l.Metadata == nil {
		metadataJSON = []byte("{}")
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO reward_logs (user_id, type, amount, reason, streak_day, referral_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, l.UserID, l.Type, l.Amount, l.Reason, l.StreakDay, l.ReferralID, metadataJSON,
	).Scan(&l.ID, &l.CreatedAt)
	return mapError(err)
}

func (r *RewardLogRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.RewardLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, type, amount, reason, streak_day, referral_id, metadata, created_at
		FROM reward_logs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	return scanRewardLogs(rows)
}

func scanRewardLogs(rows pgx.Rows) ([]*domain.RewardLog, error) {
	logs := []*domain.RewardLog{}
	for rows.Next() {
		var l domain.RewardLog
		var metadataJSON []byte
		if err := rows.Scan(&l.ID, &l.UserID, &l.Type, &l.Amount, &l.Reason, &l.StreakDay, &l.ReferralID, &metadataJSON, &l.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		if err := json.Unmarshal(metadataJSON, &l.Metadata); err != nil {
			l.Metadata = make(map[string]any)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
