package repository

import (
	"context"
	"time"

	"moonyetis/internal/domain"
)

const referralColumns = `r.id, r.referrer_id, r.referred_id, r.status, r.reward_claimed,
	r.purchase_date, r.reward_amount, r.created_at`

type ReferralRepo struct {
	db querier
}

func NewReferralRepository(db querier) *ReferralRepo {
	return &ReferralRepo{db: db}
}

func scanReferral(row interface{ Scan(dest ...any) error }) (*domain.Referral, error) {
	var ref domain.Referral
	if err := row.Scan(
		&ref.ID,
		&ref.ReferrerID,
		&ref.ReferredID,
		&ref.Status,
		&ref.RewardClaimed,
		&ref.PurchaseDate,
		&ref.RewardAmount,
		&ref.CreatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &ref, nil
}

// Create inserts a pending referral. referred_id is unique, so a user can be
// referred at most once.
func (r *ReferralRepo) Create(ctx context.Context, ref *domain.Referral) error {
	if ref.RewardAmount == 0 {
		ref.RewardAmount = domain.ReferralReward
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO referrals (referrer_id, referred_id, reward_amount)
		 VALUES ($1, $2, $3)
		 RETURNING id, status, reward_claimed, created_at`,
		ref.ReferrerID, ref.ReferredID, ref.RewardAmount,
	).Scan(&ref.ID, &ref.Status, &ref.RewardClaimed, &ref.CreatedAt)
	return mapError(err)
}

func (r *ReferralRepo) GetByID(ctx context.Context, id int64) (*domain.Referral, error) {
	return scanReferral(r.db.QueryRow(ctx,
		`SELECT `+referralColumns+` FROM referrals r WHERE r.id = $1`, id))
}

func (r *ReferralRepo) GetByReferred(ctx context.Context, referredID int64) (*domain.Referral, error) {
	return scanReferral(r.db.QueryRow(ctx,
		`SELECT `+referralColumns+` FROM referrals r WHERE r.referred_id = $1`, referredID))
}

func (r *ReferralRepo) MarkRewarded(ctx context.Context, id int64, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE referrals
		 SET status = 'completed', reward_claimed = TRUE, purchase_date = COALESCE(purchase_date, $2)
		 WHERE id = $1 AND reward_claimed = FALSE`,
		id, at,
	)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByReferrer returns the referrer's referrals, newest first. limit <= 0
// means no limit.
func (r *ReferralRepo) ListByReferrer(ctx context.Context, referrerID int64, limit int) ([]domain.ReferralDetail, error) {
	sql := `SELECT ` + referralColumns + `, u.username
		FROM referrals r
		JOIN users u ON u.id = r.referred_id
		WHERE r.referrer_id = $1
		ORDER BY r.created_at DESC, r.id DESC`
	args := []any{referrerID}
	if limit > 0 {
		sql += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	referrals := []domain.ReferralDetail{}
	for rows.Next() {
		var d domain.ReferralDetail
		if err := rows.Scan(
			&d.ID,
			&d.ReferrerID,
			&d.ReferredID,
			&d.Status,
			&d.RewardClaimed,
			&d.PurchaseDate,
			&d.RewardAmount,
			&d.CreatedAt,
			&d.ReferredUsername,
		); err != nil {
			return nil, mapError(err)
		}
		referrals = append(referrals, d)
	}
	return referrals, rows.Err()
}

// StatsByReferrer aggregates counts and the total paid to the referrer.
func (r *ReferralRepo) StatsByReferrer(ctx context.Context, referrerID int64) (domain.ReferralStats, error) {
	var stats domain.ReferralStats
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'completed'),
		        COUNT(*) FILTER (WHERE status = 'pending'),
		        COALESCE((SELECT SUM(amount) FROM reward_logs
		                  WHERE user_id = $1 AND type = 'referral'), 0)
		 FROM referrals WHERE referrer_id = $1`,
		referrerID,
	).Scan(&stats.TotalReferrals, &stats.SuccessfulReferrals, &stats.PendingReferrals, &stats.TotalEarned)
	return stats, mapError(err)
}
