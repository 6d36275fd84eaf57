package postgres

import (
	"context"
	"fmt"

	"moral-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

// TokenRepository stores guest access tokens in temp_access_tokens.
type TokenRepository struct {
	db bun.IDB
}

func NewTokenRepository(db bun.IDB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) CreateToken(ctx context.Context, token domain.AccessToken) error {
	row := &tokenRow{
		Token:     token.Token,
		ResultID:  token.ResultID,
		Email:     token.Email,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: token.CreatedAt,
	}
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert access token: %w", err)
	}
	return nil
}

func (r *TokenRepository) GetToken(ctx context.Context, token string) (domain.AccessToken, error) {
	var row tokenRow
	if err := r.db.NewSelect().Model(&row).Where("token = ?", token).Scan(ctx); err != nil {
		return domain.AccessToken{}, notFound(err, domain.ErrTokenNotFound)
	}
	return domain.AccessToken{
		Token:     row.Token,
		ResultID:  row.ResultID,
		Email:     row.Email,
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
	}, nil
}

// ProgressRepository stores partially answered quizzes in quiz_progress.
type ProgressRepository struct {
	db bun.IDB
}

func NewProgressRepository(db bun.IDB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

func (r *ProgressRepository) GetProgress(ctx context.Context, userID string) (domain.Progress, error) {
	var row progressRow
	if err := r.db.NewSelect().Model(&row).Where("user_id = ?", userID).Scan(ctx); err != nil {
		return domain.Progress{}, notFound(err, domain.ErrProgressNotFound)
	}
	return domain.Progress{
		UserID:       row.UserID,
		CurrentIndex: row.CurrentIndex,
		Answers:      row.Answers,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

func (r *ProgressRepository) SaveProgress(ctx context.Context, progress domain.Progress) error {
	answers := progress.Answers
	if answers == nil {
		answers = map[string]int{}
	}
	row := &progressRow{
		UserID:       progress.UserID,
		CurrentIndex: progress.CurrentIndex,
		Answers:      answers,
		UpdatedAt:    progress.UpdatedAt,
	}
	_, err := r.db.NewInsert().Model(row).
		On("CONFLICT (user_id) DO UPDATE").
		Set("current_index = EXCLUDED.current_index").
		Set("answers = EXCLUDED.answers").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (r *ProgressRepository) DeleteProgress(ctx context.Context, userID string) error {
	if _, err := r.db.NewDelete().Model((*progressRow)(nil)).Where("user_id = ?", userID).Exec(ctx); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}
