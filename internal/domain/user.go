package domain

import "time"

type User struct {
	ID               int64      `db:"id" json:"id"`
	Username         string     `db:"username" json:"username"`
	Email            string     `db:"email" json:"email"`
	PasswordHash     string     `db:"password_hash" json:"-"`
	MooncoinsBalance int64      `db:"mooncoins_balance" json:"mooncoins_balance"`
	AssociatedWallet string     `db:"associated_wallet" json:"associated_wallet,omitempty"`
	WalletType       string     `db:"wallet_type" json:"wallet_type,omitempty"`
	TotalPurchased   float64    `db:"total_purchased" json:"total_purchased"`
	ReferralCode     string     `db:"referral_code" json:"referral_code"`
	ReferredBy       *int64     `db:"referred_by" json:"referred_by,omitempty"`
	IsActive         bool       `db:"is_active" json:"is_active"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	LastLogin        *time.Time `db:"last_login" json:"last_login,omitempty"`
}

// Public is the client-facing view of a user.
func (u *User) Public() map[string]any {
	return map[string]any{
		"id":                u.ID,
		"username":          u.Username,
		"email":             u.Email,
		"mooncoins_balance": u.MooncoinsBalance,
		"associated_wallet": u.AssociatedWallet,
		"wallet_type":       u.WalletType,
		"total_purchased":   u.TotalPurchased,
		"referral_code":     u.ReferralCode,
		"created_at":        u.CreatedAt,
		"last_login":        u.LastLogin,
	}
}
