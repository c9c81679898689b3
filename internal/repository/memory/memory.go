// Package memory is an in-process Store. Transactions are serialised by a
// single mutex and rolled back by restoring a snapshot, which is enough for
// tests and single-instance development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"moonyetis/internal/domain"
	"moonyetis/internal/repository"
)

type state struct {
	users        map[int64]*domain.User
	streaks      map[int64]*domain.LoginStreak
	referrals    map[int64]*domain.Referral
	rewards      []*domain.RewardLog
	transactions []*domain.Transaction
	seq          int64
}

func newState() *state {
	return &state{
		users:     make(map[int64]*domain.User),
		streaks:   make(map[int64]*domain.LoginStreak),
		referrals: make(map[int64]*domain.Referral),
	}
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *state) clone() *state {
	c := &state{
		users:        make(map[int64]*domain.User, len(s.users)),
		streaks:      make(map[int64]*domain.LoginStreak, len(s.streaks)),
		referrals:    make(map[int64]*domain.Referral, len(s.referrals)),
		rewards:      append([]*domain.RewardLog(nil), s.rewards...),
		transactions: append([]*domain.Transaction(nil), s.transactions...),
		seq:          s.seq,
	}
	for id, u := range s.users {
		cp := *u
		c.users[id] = &cp
	}
	for id, st := range s.streaks {
		cp := *st
		c.streaks[id] = &cp
	}
	for id, r := range s.referrals {
		cp := *r
		c.referrals[id] = &cp
	}
	return c
}

// Store implements repository.Store in memory.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

// SetClock overrides the timestamp source for created_at/updated_at fields.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Repos() repository.Repos {
	return s.repos(false)
}

func (s *Store) WithTx(ctx context.Context, fn func(r repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(s.repos(true)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) repos(inTx bool) repository.Repos {
	c := conn{store: s, inTx: inTx}
	return repository.Repos{
		Users:        userRepo{c},
		Streaks:      streakRepo{c},
		Referrals:    referralRepo{c},
		Rewards:      rewardRepo{c},
		Transactions: transactionRepo{c},
	}
}

// conn locks the store per call unless it already runs inside WithTx.
type conn struct {
	store *Store
	inTx  bool
}

func (c conn) lock() func() {
	if c.inTx {
		return func() {}
	}
	c.store.mu.Lock()
	return c.store.mu.Unlock
}

func (c conn) state() *state { return c.store.st }

func (c conn) now() time.Time { return c.store.now() }

type userRepo struct{ conn }

func (r userRepo) Create(_ context.Context, u *domain.User) error {
	defer r.lock()()
	st := r.state()
	for _, existing := range st.users {
		switch {
		case existing.Username == u.Username:
			return &repository.DuplicateError{Field: "username"}
		case existing.Email == u.Email:
			return &repository.DuplicateError{Field: "email"}
		case existing.ReferralCode == u.ReferralCode:
			return &repository.DuplicateError{Field: "referral_code"}
		}
	}
	if u.ReferredBy != nil {
		if _, ok := st.users[*u.ReferredBy]; !ok {
			return repository.ErrNotFound
		}
	}
	u.ID = st.nextID()
	u.IsActive = true
	u.CreatedAt = r.now()
	cp := *u
	st.users[u.ID] = &cp
	return nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	defer r.lock()()
	u, ok := r.state().users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) GetByUsernameOrEmail(_ context.Context, identifier string) (*domain.User, error) {
	defer r.lock()()
	var byEmail *domain.User
	for _, u := range r.state().users {
		if u.Username == identifier {
			cp := *u
			return &cp, nil
		}
		if u.Email == identifier {
			byEmail = u
		}
	}
	if byEmail == nil {
		return nil, repository.ErrNotFound
	}
	cp := *byEmail
	return &cp, nil
}

func (r userRepo) GetByReferralCode(_ context.Context, code string) (*domain.User, error) {
	defer r.lock()()
	for _, u := range r.state().users {
		if u.ReferralCode == code {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) Exists(_ context.Context, username, email string) (bool, bool, error) {
	defer r.lock()()
	var usernameTaken, emailTaken bool
	for _, u := range r.state().users {
		usernameTaken = usernameTaken || u.Username == username || u.Email == username
		emailTaken = emailTaken || u.Email == email || u.Username == email
	}
	return usernameTaken, emailTaken, nil
}

func (r userRepo) ReferralCodeExists(_ context.Context, code string) (bool, error) {
	defer r.lock()()
	for _, u := range r.state().users {
		if u.ReferralCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r userRepo) AddBalance(_ context.Context, userID, delta int64) (int64, error) {
	defer r.lock()()
	u, ok := r.state().users[userID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if u.MooncoinsBalance+delta < 0 {
		return 0, repository.ErrInsufficientFunds
	}
	u.MooncoinsBalance += delta
	return u.MooncoinsBalance, nil
}

func (r userRepo) update(userID int64, fn func(u *domain.User)) error {
	defer r.lock()()
	u, ok := r.state().users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	return nil
}

func (r userRepo) AddPurchased(_ context.Context, userID int64, amount float64) error {
	return r.update(userID, func(u *domain.User) { u.TotalPurchased += amount })
}

func (r userRepo) TouchLastLogin(_ context.Context, userID int64, at time.Time) error {
	return r.update(userID, func(u *domain.User) { u.LastLogin = &at })
}

func (r userRepo) SetWallet(_ context.Context, userID int64, address, walletType string) error {
	return r.update(userID, func(u *domain.User) {
		u.AssociatedWallet = address
		u.WalletType = walletType
	})
}

func (r userRepo) SetActive(_ context.Context, userID int64, active bool) error {
	return r.update(userID, func(u *domain.User) { u.IsActive = active })
}

type streakRepo struct{ conn }

func (r streakRepo) Create(_ context.Context, userID int64) error {
	defer r.lock()()
	st := r.state()
	if _, ok := st.users[userID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := st.streaks[userID]; ok {
		return &repository.DuplicateError{Field: "user_id"}
	}
	st.streaks[userID] = &domain.LoginStreak{UserID: userID, UpdatedAt: r.now()}
	return nil
}

func (r streakRepo) Get(_ context.Context, userID int64) (*domain.LoginStreak, error) {
	defer r.lock()()
	s, ok := r.state().streaks[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r streakRepo) GetOrCreateForUpdate(_ context.Context, userID int64) (*domain.LoginStreak, error) {
	defer r.lock()()
	st := r.state()
	if _, ok := st.users[userID]; !ok {
		return nil, repository.ErrNotFound
	}
	s, ok := st.streaks[userID]
	if !ok {
		s = &domain.LoginStreak{UserID: userID, UpdatedAt: r.now()}
		st.streaks[userID] = s
	}
	cp := *s
	return &cp, nil
}

func (r streakRepo) Update(_ context.Context, s *domain.LoginStreak, prevDate string) (bool, error) {
	defer r.lock()()
	cur, ok := r.state().streaks[s.UserID]
	if !ok || cur.LastLoginDate != prevDate {
		return false, nil
	}
	cp := *s
	cp.UpdatedAt = r.now()
	r.state().streaks[s.UserID] = &cp
	return true, nil
}

type referralRepo struct{ conn }

func (r referralRepo) Create(_ context.Context, ref *domain.Referral) error {
	defer r.lock()()
	st := r.state()
	for _, existing := range st.referrals {
		if existing.ReferredID == ref.ReferredID {
			return &repository.DuplicateError{Field: "referred_id"}
		}
	}
	if ref.RewardAmount == 0 {
		ref.RewardAmount = domain.ReferralReward
	}
	ref.ID = st.nextID()
	ref.Status = domain.ReferralStatusPending
	ref.RewardClaimed = false
	ref.CreatedAt = r.now()
	cp := *ref
	st.referrals[ref.ID] = &cp
	return nil
}

func (r referralRepo) GetByID(_ context.Context, id int64) (*domain.Referral, error) {
	defer r.lock()()
	ref, ok := r.state().referrals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *ref
	return &cp, nil
}

func (r referralRepo) GetByReferred(_ context.Context, referredID int64) (*domain.Referral, error) {
	defer r.lock()()
	for _, ref := range r.state().referrals {
		if ref.ReferredID == referredID {
			cp := *ref
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r referralRepo) MarkRewarded(_ context.Context, id int64, at time.Time) (bool, error) {
	defer r.lock()()
	ref, ok := r.state().referrals[id]
	if !ok || ref.RewardClaimed {
		return false, nil
	}
	ref.Status = domain.ReferralStatusCompleted
	ref.RewardClaimed = true
	if ref.PurchaseDate == nil {
		ref.PurchaseDate = &at
	}
	return true, nil
}

func (r referralRepo) ListByReferrer(_ context.Context, referrerID int64, limit int) ([]domain.ReferralDetail, error) {
	defer r.lock()()
	st := r.state()
	out := []domain.ReferralDetail{}
	for _, ref := range st.referrals {
		if ref.ReferrerID != referrerID {
			continue
		}
		d := domain.ReferralDetail{Referral: *ref}
		if u, ok := st.users[ref.ReferredID]; ok {
			d.ReferredUsername = u.Username
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r referralRepo) StatsByReferrer(_ context.Context, referrerID int64) (domain.ReferralStats, error) {
	defer r.lock()()
	st := r.state()
	var stats domain.ReferralStats
	for _, ref := range st.referrals {
		if ref.ReferrerID != referrerID {
			continue
		}
		stats.TotalReferrals++
		switch ref.Status {
		case domain.ReferralStatusCompleted:
			stats.SuccessfulReferrals++
		case domain.ReferralStatusPending:
			stats.PendingReferrals++
		}
	}
	for _, l := range st.rewards {
		if l.UserID == referrerID && l.Type == domain.RewardTypeReferral {
			stats.TotalEarned += l.Amount
		}
	}
	return stats, nil
}

type rewardRepo struct{ conn }

func (r rewardRepo) Append(_ context.Context, l *domain.RewardLog) error {
	defer r.lock()()
	st := r.state()
	if _, ok := st.users[l.UserID]; !ok {
		return repository.ErrNotFound
	}
	if l.Type == domain.RewardTypeReferral && l.ReferralID != nil {
		for _, existing := range st.rewards {
			if existing.Type == domain.RewardTypeReferral && existing.ReferralID != nil && *existing.ReferralID == *l.ReferralID {
				return &repository.DuplicateError{Field: "referral"}
			}
		}
	}
	l.ID = st.nextID()
	l.CreatedAt = r.now()
	cp := *l
	st.rewards = append(st.rewards, &cp)
	return nil
}

func (r rewardRepo) ListByUser(_ context.Context, userID int64, limit int) ([]*domain.RewardLog, error) {
	defer r.lock()()
	if limit <= 0 {
		limit = 50
	}
	out := []*domain.RewardLog{}
	rewards := r.state().rewards
	for i := len(rewards) - 1; i >= 0 && len(out) < limit; i-- {
		if rewards[i].UserID == userID {
			cp := *rewards[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

type transactionRepo struct{ conn }

func (r transactionRepo) Create(_ context.Context, t *domain.Transaction) error {
	defer r.lock()()
	st := r.state()
	if _, ok := st.users[t.UserID]; !ok {
		return repository.ErrNotFound
	}
	if t.ExternalRef != "" {
		for _, existing := range st.transactions {
			if existing.UserID == t.UserID && existing.ExternalRef == t.ExternalRef {
				return &repository.DuplicateError{Field: "external_ref"}
			}
		}
	}
	t.ID = st.nextID()
	t.CreatedAt = r.now()
	cp := *t
	st.transactions = append(st.transactions, &cp)
	return nil
}

func (r transactionRepo) ListByUser(_ context.Context, userID int64, limit int) ([]*domain.Transaction, error) {
	defer r.lock()()
	if limit <= 0 {
		limit = 100
	}
	out := []*domain.Transaction{}
	txs := r.state().transactions
	for i := len(txs) - 1; i >= 0 && len(out) < limit; i-- {
		if txs[i].UserID == userID {
			cp := *txs[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}
