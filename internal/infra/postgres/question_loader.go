package postgres

import (
	"context"
	"fmt"

	"moral-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader loads the question catalog from quiz_questions.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, position, text, category, subcategory, explanation
		FROM quiz_questions ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.Position, &q.Text, &q.Category, &q.Subcategory, &q.Explanation); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}

// SeedQuestions upserts questions in one transaction and returns how many were written.
func (l *QuestionLoader) SeedQuestions(ctx context.Context, questions []domain.Question) (int, error) {
	written := 0
	err := l.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, q := range questions {
			batch.Queue(`INSERT INTO quiz_questions (id, position, text, category, subcategory, explanation)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO UPDATE SET position = EXCLUDED.position, text = EXCLUDED.text,
					category = EXCLUDED.category, subcategory = EXCLUDED.subcategory,
					explanation = EXCLUDED.explanation`,
				q.ID, q.Position, q.Text, q.Category, q.Subcategory, q.Explanation)
		}
		results := tx.SendBatch(ctx, batch)
		for range questions {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("upsert question: %w", err)
			}
			written++
		}
		return results.Close()
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}
