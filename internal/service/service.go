package service

import (
	"errors"
	"fmt"
	"time"

	"moonyetis/internal/domain"
	"moonyetis/internal/repository"
)

// Notifier receives reward events after they are committed.
type Notifier interface {
	NotifyReward(userID int64, ev domain.RewardEvent)
}

type nopNotifier struct{}

func (nopNotifier) NotifyReward(int64, domain.RewardEvent) {}

// Clock returns the current time. Streak dates are derived from it in UTC.
type Clock func() time.Time

func calendarDate(t time.Time) string {
	return t.UTC().Format(domain.DateLayout)
}

// storeError wraps an unexpected persistence error so callers never see a
// raw driver error.
func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

func notFoundAs(err error, target error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}
	return err
}
