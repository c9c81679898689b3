package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"moonyetis/internal/domain"
	"moonyetis/internal/logger"
	"moonyetis/internal/metrics"
	"moonyetis/internal/repository"
)

const (
	minUsernameLen  = 3
	maxUsernameLen  = 20
	minPasswordLen  = 6
	maxEmailLen     = 254
	maxWalletLen    = 128
	maxCodeAttempts = 10
)

// DailyLoginProcessor is invoked once per successful login.
type DailyLoginProcessor interface {
	ProcessDailyLogin(ctx context.Context, userID int64) (*domain.DailyReward, error)
}

type RegisterInput struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	ReferralCode string `json:"referral_code"`
}

type RegisterResult struct {
	UserID       int64  `json:"user_id"`
	ReferralCode string `json:"referral_code"`
	ReferredBy   *int64 `json:"referred_by,omitempty"`
}

type LoginResult struct {
	Token       string              `json:"token"`
	ExpiresAt   time.Time           `json:"expires_at"`
	User        *domain.User        `json:"user"`
	DailyReward *domain.DailyReward `json:"daily_reward,omitempty"`
}

// IdentityService registers and authenticates users and owns the only
// reward-crediting path (AddCoins / AddCoinsTx).
type IdentityService struct {
	store    repository.Store
	hasher   *PasswordHasher
	tokens   *TokenIssuer
	daily    DailyLoginProcessor
	notifier Notifier
	now      Clock
	codeGen  func() (string, error)
}

func NewIdentityService(store repository.Store, hasher *PasswordHasher, tokens *TokenIssuer) *IdentityService {
	return &IdentityService{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		notifier: nopNotifier{},
		now:      time.Now,
		codeGen:  GenerateReferralCode,
	}
}

// UseDailyLogin wires the streak engine that runs on every login.
func (s *IdentityService) UseDailyLogin(p DailyLoginProcessor) { s.daily = p }

func (s *IdentityService) UseNotifier(n Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// GenerateReferralCode returns "MOON" followed by four random characters.
func GenerateReferralCode() (string, error) {
	var b strings.Builder
	b.WriteString(domain.ReferralCodePrefix)
	alphabetLen := big.NewInt(int64(len(domain.ReferralCodeAlphabet)))
	for i := len(domain.ReferralCodePrefix); i < domain.ReferralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		b.WriteByte(domain.ReferralCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func validateRegistration(in *RegisterInput) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.ReferralCode = strings.TrimSpace(in.ReferralCode)

	if n := utf8.RuneCountInString(in.Username); n < minUsernameLen || n > maxUsernameLen {
		return domain.NewValidationError("username", "must be between 3 and 20 characters")
	}
	// login accepts a username or an email, so a username must never look like one
	if strings.Contains(in.Username, "@") {
		return domain.NewValidationError("username", "must not contain @")
	}
	if in.Email == "" || len(in.Email) > maxEmailLen || !strings.Contains(in.Email, "@") {
		return domain.NewValidationError("email", "must be a valid email address")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		return domain.NewValidationError("password", "must be at least 6 characters")
	}
	return nil
}

// Register creates the user, its empty login streak and, when a referral
// code is given, a pending referral, all in one transaction.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	res, err := s.register(ctx, in)
	switch {
	case err == nil:
		metrics.Registrations.WithLabelValues("created").Inc()
	case errors.Is(err, domain.ErrExhausted):
		metrics.Registrations.WithLabelValues("exhausted").Inc()
		logger.Error("referral code allocation exhausted", "username", in.Username, "attempts", maxCodeAttempts)
	default:
		metrics.Registrations.WithLabelValues("rejected").Inc()
	}
	return res, err
}

func (s *IdentityService) register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if err := validateRegistration(&in); err != nil {
		return nil, err
	}

	repos := s.store.Repos()

	var referrerID *int64
	if in.ReferralCode != "" {
		if !domain.ValidReferralCodeFormat(in.ReferralCode) {
			return nil, domain.ErrInvalidReferralCode
		}
		referrer, err := repos.Users.GetByReferralCode(ctx, in.ReferralCode)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, domain.ErrInvalidReferralCode
			}
			return nil, storeError("lookup referral code", err)
		}
		referrerID = &referrer.ID
	}

	usernameTaken, emailTaken, err := repos.Users.Exists(ctx, in.Username, in.Email)
	if err != nil {
		return nil, storeError("check existing user", err)
	}
	if usernameTaken {
		return nil, domain.ErrUsernameTaken
	}
	if emailTaken {
		return nil, domain.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	code, err := s.allocateReferralCode(ctx, repos.Users)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		ReferralCode: code,
		ReferredBy:   referrerID,
	}

	err = s.store.WithTx(ctx, func(r repository.Repos) error {
		if err := r.Users.Create(ctx, user); err != nil {
			return err
		}
		if err := r.Streaks.Create(ctx, user.ID); err != nil {
			return err
		}
		if referrerID != nil {
			return r.Referrals.Create(ctx, &domain.Referral{
				ReferrerID:   *referrerID,
				ReferredID:   user.ID,
				RewardAmount: domain.ReferralReward,
			})
		}
		return nil
	})
	if err != nil {
		switch {
		case repository.IsDuplicate(err, "username"):
			return nil, domain.ErrUsernameTaken
		case repository.IsDuplicate(err, "email"):
			return nil, domain.ErrEmailTaken
		case repository.IsDuplicate(err, ""):
			return nil, fmt.Errorf("%w: registration raced with another request", domain.ErrConflict)
		}
		return nil, storeError("create user", err)
	}

	logger.Info("user registered", "user_id", user.ID, "referred_by", referrerID)
	return &RegisterResult{UserID: user.ID, ReferralCode: code, ReferredBy: referrerID}, nil
}

func (s *IdentityService) allocateReferralCode(ctx context.Context, users repository.UserRepository) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := s.codeGen()
		if err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}
		exists, err := users.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", storeError("check referral code", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", domain.ErrCodeAllocationExhausted
}

// Login authenticates by username or email, runs the daily streak claim and
// issues a session token.
func (s *IdentityService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, domain.NewValidationError("credentials", "username/email and password are required")
	}

	repos := s.store.Repos()
	user, err := repos.Users.GetByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, storeError("lookup user", err)
	}

	if err := s.hasher.Compare(ctx, user.PasswordHash, password); err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrAccountDeactivated
	}

	now := s.now()
	if err := repos.Users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, storeError("update last login", err)
	}
	user.LastLogin = &now

	var reward *domain.DailyReward
	if s.daily != nil {
		reward, err = s.daily.ProcessDailyLogin(ctx, user.ID)
		if err != nil {
			// the login itself succeeded; the claim can be retried on the next login
			logger.Error("daily login reward failed", "user_id", user.ID, "error", err)
			reward = nil
		} else if reward != nil && !reward.AlreadyClaimed {
			user.MooncoinsBalance += reward.Reward
		}
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user, DailyReward: reward}, nil
}

func (s *IdentityService) VerifyToken(token string) (*Claims, error) {
	return s.tokens.Verify(token)
}

// Authenticate verifies the token and checks that its user still exists and
// is active. A token of a deleted user is ErrInvalidToken; a deactivated one
// is ErrAccountDeactivated.
func (s *IdentityService) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	u, err := s.store.Repos().Users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, storeError("authenticate", err)
	}
	if !u.IsActive {
		return nil, domain.ErrAccountDeactivated
	}
	return claims, nil
}

func (s *IdentityService) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.store.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, storeError("get user", err)
	}
	return u, nil
}

// LinkWallet stores the user's wallet address. Ownership of the address is
// not verified here.
func (s *IdentityService) LinkWallet(ctx context.Context, userID int64, address, walletType string) error {
	address = strings.TrimSpace(address)
	walletType = strings.ToLower(strings.TrimSpace(walletType))
	if address == "" || len(address) > maxWalletLen {
		return domain.NewValidationError("address", "must be a non-empty wallet address")
	}
	if walletType == "" || len(walletType) > 32 {
		return domain.NewValidationError("wallet_type", "is required")
	}
	err := s.store.Repos().Users.SetWallet(ctx, userID, address, walletType)
	if err != nil {
		return notFoundAs(err, domain.ErrUserNotFound)
	}
	return nil
}

// Deactivate soft-deletes a user. Users are never removed.
func (s *IdentityService) Deactivate(ctx context.Context, userID int64) error {
	if err := s.store.Repos().Users.SetActive(ctx, userID, false); err != nil {
		return notFoundAs(err, domain.ErrUserNotFound)
	}
	logger.Warn("user deactivated", "user_id", userID)
	return nil
}

// RewardHistory returns the newest reward ledger entries for a user.
func (s *IdentityService) RewardHistory(ctx context.Context, userID int64, limit int) ([]*domain.RewardLog, error) {
	logs, err := s.store.Repos().Rewards.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, storeError("list rewards", err)
	}
	return logs, nil
}

// AddCoins credits amount to the user and appends the ledger entry in one
// transaction. entry supplies type, reason and references.
func (s *IdentityService) AddCoins(ctx context.Context, userID, amount int64, entry domain.RewardLog) (int64, error) {
	var balance int64
	err := s.store.WithTx(ctx, func(r repository.Repos) error {
		var err error
		balance, err = s.AddCoinsTx(ctx, r, userID, amount, entry)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.Announce(userID, amount, balance, entry)
	return balance, nil
}

// AddCoinsTx is AddCoins inside a caller's transaction. The caller commits
// and then calls Announce.
func (s *IdentityService) AddCoinsTx(ctx context.Context, r repository.Repos, userID, amount int64, entry domain.RewardLog) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	switch entry.Type {
	case domain.RewardTypeDailyLogin, domain.RewardTypeReferral, domain.RewardTypeManual:
	default:
		return 0, domain.NewValidationError("type", "unknown reward type "+entry.Type)
	}

	balance, err := r.Users.AddBalance(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, domain.ErrUserNotFound
		}
		return 0, storeError("credit balance", err)
	}

	entry.ID = 0
	entry.UserID = userID
	entry.Amount = amount
	if err := r.Rewards.Append(ctx, &entry); err != nil {
		if repository.IsDuplicate(err, "referral") {
			return 0, domain.ErrReferralAlreadyClaimed
		}
		return 0, storeError("append reward log", err)
	}
	return balance, nil
}

// Announce records metrics and pushes the event once a credit is committed.
func (s *IdentityService) Announce(userID, amount, balance int64, entry domain.RewardLog) {
	metrics.RewardsGranted.WithLabelValues(entry.Type).Inc()
	metrics.RewardCoins.WithLabelValues(entry.Type).Add(float64(amount))
	s.notifier.NotifyReward(userID, domain.RewardEvent{
		Type:       entry.Type,
		Amount:     amount,
		NewBalance: balance,
		Reason:     entry.Reason,
	})
}
