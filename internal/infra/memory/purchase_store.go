package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"moral-quiz-service/internal/domain"
)

// PurchaseStore is an in-memory implementation of app.PurchaseRepository.
type PurchaseStore struct {
	mu        sync.RWMutex
	tracking  map[string]domain.PurchaseTracking
	bySession map[string]string
	guests    map[string]domain.GuestPurchase
}

func NewPurchaseStore() *PurchaseStore {
	return &PurchaseStore{
		tracking:  make(map[string]domain.PurchaseTracking),
		bySession: make(map[string]string),
		guests:    make(map[string]domain.GuestPurchase),
	}
}

func (s *PurchaseStore) CreateTracking(_ context.Context, tracking *domain.PurchaseTracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracking[tracking.ID] = *tracking
	if tracking.StripeSessionID != "" {
		s.bySession[tracking.StripeSessionID] = tracking.ID
	}
	return nil
}

func (s *PurchaseStore) GetTracking(_ context.Context, id string) (domain.PurchaseTracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tracking, ok := s.tracking[id]
	if !ok {
		return domain.PurchaseTracking{}, domain.ErrPurchaseNotFound
	}
	return tracking, nil
}

func (s *PurchaseStore) GetTrackingBySession(_ context.Context, sessionID string) (domain.PurchaseTracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySession[sessionID]
	if !ok {
		return domain.PurchaseTracking{}, domain.ErrPurchaseNotFound
	}
	return s.tracking[id], nil
}

func (s *PurchaseStore) AttachSession(_ context.Context, id, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracking, ok := s.tracking[id]
	if !ok {
		return domain.ErrPurchaseNotFound
	}
	tracking.StripeSessionID = sessionID
	s.tracking[id] = tracking
	s.bySession[sessionID] = id
	return nil
}

func (s *PurchaseStore) CompleteTracking(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracking, ok := s.tracking[id]
	if !ok {
		return false, domain.ErrPurchaseNotFound
	}
	if tracking.Status == domain.PurchaseCompleted {
		return false, nil
	}
	tracking.Status = domain.PurchaseCompleted
	tracking.CompletedAt = &at
	tracking.VerificationDeferred = false
	s.tracking[id] = tracking
	return true, nil
}

func (s *PurchaseStore) FailTracking(_ context.Context, id string) error {
	return s.update(id, func(t *domain.PurchaseTracking) {
		if t.Status != domain.PurchaseCompleted {
			t.Status = domain.PurchaseFailed
		}
	})
}

func (s *PurchaseStore) DeferTracking(_ context.Context, id string) error {
	return s.update(id, func(t *domain.PurchaseTracking) {
		if t.Status == domain.PurchasePending {
			t.VerificationDeferred = true
		}
	})
}

func (s *PurchaseStore) ListPending(_ context.Context, createdBefore time.Time, limit int) ([]domain.PurchaseTracking, error) {
	s.mu.RLock()
	pending := make([]domain.PurchaseTracking, 0)
	for _, tracking := range s.tracking {
		if tracking.Status == domain.PurchasePending && tracking.CreatedAt.Before(createdBefore) {
			pending = append(pending, tracking)
		}
	}
	s.mu.RUnlock()
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *PurchaseStore) RecordGuestPurchase(_ context.Context, purchase *domain.GuestPurchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.guests[purchase.ID]; ok {
		return nil
	}
	s.guests[purchase.ID] = *purchase
	return nil
}

// GuestPurchases returns the recorded guest purchases for an email.
func (s *PurchaseStore) GuestPurchases(email string) []domain.GuestPurchase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.GuestPurchase
	for _, purchase := range s.guests {
		if purchase.Email == email {
			out = append(out, purchase)
		}
	}
	return out
}

func (s *PurchaseStore) update(id string, fn func(*domain.PurchaseTracking)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracking, ok := s.tracking[id]
	if !ok {
		return domain.ErrPurchaseNotFound
	}
	fn(&tracking)
	s.tracking[id] = tracking
	return nil
}
