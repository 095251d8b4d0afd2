package subscriber

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Store loads and saves the whole subscriber list.
type Store interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, emails []string) error
}

type Outcome string

const (
	Added             Outcome = "added"
	AlreadySubscribed Outcome = "already_subscribed"
	InvalidEmail      Outcome = "invalid_email"
)

type Service struct {
	store  Store
	logger *zap.Logger

	// serializes load-modify-save within this process; separate
	// processes sharing the store still race (last writer wins)
	mu sync.Mutex
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// ValidEmail is the only check applied: the address must contain "@".
func ValidEmail(email string) bool {
	return strings.Contains(email, "@")
}

// Subscribe appends email unless it is already present (exact match).
func (s *Service) Subscribe(ctx context.Context, email string) (Outcome, error) {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return InvalidEmail, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	emails, err := s.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load subscribers: %w", err)
	}
	for _, existing := range emails {
		if existing == email {
			return AlreadySubscribed, nil
		}
	}

	if err := s.store.Save(ctx, append(emails, email)); err != nil {
		return "", err
	}
	s.logger.Info("subscriber added", zap.String("email", email), zap.Int("total", len(emails)+1))
	return Added, nil
}

// Unsubscribe removes an exact match and reports whether one was found.
func (s *Service) Unsubscribe(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	emails, err := s.store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load subscribers: %w", err)
	}

	kept := make([]string, 0, len(emails))
	for _, existing := range emails {
		if existing != email {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(emails) {
		return false, nil
	}

	if err := s.store.Save(ctx, kept); err != nil {
		return false, err
	}
	s.logger.Info("subscriber removed", zap.String("email", email))
	return true, nil
}

// List returns the subscribers in insertion order.
func (s *Service) List(ctx context.Context) ([]string, error) {
	return s.store.Load(ctx)
}
