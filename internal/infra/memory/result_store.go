package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"moral-quiz-service/internal/domain"
)

// ResultStore is an in-memory implementation of app.ResultRepository.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]domain.Result
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]domain.Result)}
}

func (s *ResultStore) CreateResult(_ context.Context, result *domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.ID] = cloneResult(*result)
	return nil
}

func (s *ResultStore) GetResult(_ context.Context, id string) (domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[id]
	if !ok {
		return domain.Result{}, domain.ErrResultNotFound
	}
	return cloneResult(result), nil
}

func (s *ResultStore) ListResults(_ context.Context, filter domain.ResultFilter) ([]domain.Result, int, error) {
	filter = filter.Normalize()
	s.mu.RLock()
	matched := make([]domain.Result, 0, len(s.results))
	for _, result := range s.results {
		if filter.UserID != "" && result.UserID != filter.UserID {
			continue
		}
		if filter.Level != "" && result.Level != filter.Level {
			continue
		}
		if filter.Purchased != nil && result.IsPurchased != *filter.Purchased {
			continue
		}
		if filter.PurchaseStatus != "" && result.PurchaseStatus != filter.PurchaseStatus {
			continue
		}
		matched = append(matched, cloneResult(result))
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	start := filter.Offset()
	if start >= total {
		return []domain.Result{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *ResultStore) MarkPurchaseInitiated(_ context.Context, id, guestEmail string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[id]
	if !ok {
		return domain.ErrResultNotFound
	}
	if result.IsPurchased {
		return nil
	}
	result.PurchaseStatus = domain.PurchasePending
	result.PurchaseInitiatedAt = &at
	if guestEmail != "" && result.GuestEmail == "" {
		result.GuestEmail = guestEmail
	}
	result.UpdatedAt = at
	s.results[id] = result
	return nil
}

func (s *ResultStore) AttachSession(_ context.Context, id, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[id]
	if !ok {
		return domain.ErrResultNotFound
	}
	if result.StripeSessionID == "" {
		result.StripeSessionID = sessionID
		s.results[id] = result
	}
	return nil
}

func (s *ResultStore) MarkPurchased(_ context.Context, match domain.ResultMatch, update domain.PurchaseUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[match.ResultID]
	if !ok || !matches(result, match) {
		return false, nil
	}
	result.IsPurchased = true
	result.IsDetailed = true
	result.PurchaseStatus = domain.PurchaseCompleted
	result.AccessMethod = update.AccessMethod
	if update.SessionID != "" {
		result.StripeSessionID = update.SessionID
	}
	if result.PurchaseCompletedAt == nil {
		at := update.CompletedAt
		result.PurchaseCompletedAt = &at
		result.UpdatedAt = at
	}
	s.results[match.ResultID] = result
	return true, nil
}

func (s *ResultStore) SetPurchaseStatus(_ context.Context, id string, status domain.PurchaseStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[id]
	if !ok {
		return domain.ErrResultNotFound
	}
	if result.IsPurchased {
		return nil
	}
	result.PurchaseStatus = status
	s.results[id] = result
	return nil
}

func matches(result domain.Result, match domain.ResultMatch) bool {
	switch match.Strategy {
	case domain.MatchByUser:
		return match.UserID != "" && result.UserID == match.UserID
	case domain.MatchBySession:
		return match.SessionID != "" && result.StripeSessionID == match.SessionID
	case domain.MatchByGuestEmail:
		return match.GuestEmail != "" && result.UserID == "" && result.GuestEmail == match.GuestEmail
	case domain.MatchByID:
		return true
	}
	return false
}

func cloneResult(result domain.Result) domain.Result {
	if result.Answers != nil {
		answers := make(map[string]int, len(result.Answers))
		for k, v := range result.Answers {
			answers[k] = v
		}
		result.Answers = answers
	}
	return result
}
