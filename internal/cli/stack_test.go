package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"moral-quiz-service/internal/config"
	"moral-quiz-service/internal/domain"
)

func TestBuildStackFallsBackToMemory(t *testing.T) {
	dir := t.TempDir()
	questions := filepath.Join(dir, "questions.yaml")
	data := []byte("questions:\n  - id: q1\n    text: I keep promises.\n    category: integrity\n")
	if err := os.WriteFile(questions, data, 0o600); err != nil {
		t.Fatalf("write questions: %v", err)
	}

	var cfg config.Config
	cfg.Quiz.QuestionsFile = questions
	cfg.Products = config.DefaultProducts()

	s, err := buildStack(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build stack: %v", err)
	}
	defer s.Close()

	if s.webhooks != nil {
		t.Fatalf("webhooks must stay unset without a signing secret")
	}
	got, err := s.quiz.Questions(context.Background())
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(got) != 1 || got[0].ID != "q1" || got[0].Position != 1 {
		t.Fatalf("unexpected catalog %+v", got)
	}

	completed, err := s.quiz.CompleteQuiz(context.Background(), domain.Caller{UserID: "u1"}, map[string]int{"q1": 5}, "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Result.Level != "9" {
		t.Fatalf("expected level 9, got %s", completed.Result.Level)
	}
}

func TestBuildStackWiresWebhooksWhenSecretSet(t *testing.T) {
	var cfg config.Config
	cfg.Quiz.QuestionsFile = filepath.Join(t.TempDir(), "missing.yaml")
	cfg.Stripe.WebhookSecret = "whsec_test"

	s, err := buildStack(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build stack: %v", err)
	}
	defer s.Close()
	if s.webhooks == nil {
		t.Fatalf("expected webhook parser")
	}
	got, err := s.quiz.Questions(context.Background())
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("missing questions file should give an empty catalog, got %d", len(got))
	}
}

func TestMigrationsRequirePostgres(t *testing.T) {
	if err := runMigrationsWithConfig(context.Background(), config.Config{}); err == nil {
		t.Fatalf("expected error without a postgres url")
	}
}

func TestReconcileRequiresPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	err := runReconcile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), "")
	if err == nil || !strings.Contains(err.Error(), "postgres") {
		t.Fatalf("expected reconcile to refuse without postgres, got %v", err)
	}
}
