package memory

import (
	"context"
	"sync"

	"moral-quiz-service/internal/domain"
)

// TokenStore is an in-memory implementation of app.TokenRepository.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]domain.AccessToken
}

func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]domain.AccessToken)}
}

func (s *TokenStore) CreateToken(_ context.Context, token domain.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.Token] = token
	return nil
}

func (s *TokenStore) GetToken(_ context.Context, token string) (domain.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found, ok := s.tokens[token]
	if !ok {
		return domain.AccessToken{}, domain.ErrTokenNotFound
	}
	return found, nil
}

// ProgressStore is an in-memory implementation of app.ProgressRepository.
type ProgressStore struct {
	mu       sync.RWMutex
	progress map[string]domain.Progress
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{progress: make(map[string]domain.Progress)}
}

func (s *ProgressStore) GetProgress(_ context.Context, userID string) (domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	progress, ok := s.progress[userID]
	if !ok {
		return domain.Progress{}, domain.ErrProgressNotFound
	}
	return copyProgress(progress), nil
}

func (s *ProgressStore) SaveProgress(_ context.Context, progress domain.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[progress.UserID] = copyProgress(progress)
	return nil
}

func (s *ProgressStore) DeleteProgress(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progress, userID)
	return nil
}

func copyProgress(progress domain.Progress) domain.Progress {
	answers := make(map[string]int, len(progress.Answers))
	for k, v := range progress.Answers {
		answers[k] = v
	}
	progress.Answers = answers
	return progress
}
