package cli

import (
	"context"
	"fmt"
	"log"

	"moral-quiz-service/internal/config"
	"moral-quiz-service/internal/infra/postgres"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewSeedQuestionsCmd loads a YAML question file into Postgres.
func NewSeedQuestionsCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-questions",
		Short: "Upsert the question catalog from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeedQuestions(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "questions YAML (defaults to quiz.questions_file)")
	return cmd
}

func runSeedQuestions(ctx context.Context, configPath, file string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if file == "" {
		file = cfg.Quiz.QuestionsFile
	}
	questions, err := config.LoadQuestions(file)
	if err != nil {
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	n, err := postgres.NewQuestionLoader(pool).SeedQuestions(ctx, questions)
	if err != nil {
		return err
	}
	log.Printf("questions seeded file=%s count=%d", file, n)
	return nil
}
