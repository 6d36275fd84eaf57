package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"moral-quiz-service/internal/app"
	"moral-quiz-service/internal/config"
	"moral-quiz-service/internal/domain"
	"moral-quiz-service/internal/infra/memory"
	"moral-quiz-service/internal/infra/payments"
	"moral-quiz-service/internal/infra/postgres"
	redisstore "moral-quiz-service/internal/infra/redis"
	transport "moral-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
)

// stack is every use case wired to its adapters.
type stack struct {
	cfg        config.Config
	quiz       *app.QuizService
	purchases  *app.PurchaseService
	coupons    *app.CouponService
	reconciler *app.Reconciler
	webhooks   transport.WebhookParser
	auth       *transport.Verifier
	closers    []func()
}

func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

type repositories struct {
	results    app.ResultRepository
	purchases  app.PurchaseRepository
	coupons    app.CouponRepository
	affiliates app.AffiliateRepository
	tokens     app.TokenRepository
	progress   app.ProgressRepository
}

// buildStack picks Postgres and Redis adapters when configured and falls back
// to in-memory stores otherwise.
func buildStack(ctx context.Context, cfg config.Config) (*stack, error) {
	s := &stack{cfg: cfg}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, func() { _ = redisClient.Close() })
	}

	var (
		db   *bun.DB
		pool *pgxpool.Pool
	)
	if cfg.Postgres.URL != "" {
		db = postgres.Open(cfg.Postgres.URL)
		s.closers = append(s.closers, func() { _ = db.Close() })
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
	}

	var loader memory.QuestionLoader
	if pool != nil {
		loader = postgres.NewQuestionLoader(pool)
	} else {
		loader = memory.NewStaticQuestionLoader(fileQuestions(cfg.Quiz.QuestionsFile))
	}
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var questions app.QuestionRepository
	if redisClient != nil {
		questions = redisstore.NewQuestionRepository(redisClient, loader, quizTTL)
	} else {
		questions = memory.NewQuestionRepository(loader, quizTTL)
	}

	repos := newRepositories(db, redisClient, config.TTLDuration(cfg.Quiz.ProgressTTL, 30*24*time.Hour))

	eventTTL := config.TTLDuration(cfg.Stripe.EventTTL, 72*time.Hour)
	var dedup app.EventDeduper
	if redisClient != nil {
		dedup = redisstore.NewEventDeduper(redisClient, eventTTL)
	} else {
		dedup = memory.NewEventDeduper(eventTTL)
	}

	if cfg.Stripe.SecretKey == "" {
		log.Printf("stripe secret key not set; purchases will fail until configured")
	}
	checkout := payments.NewStripeCheckout(cfg.Stripe.SecretKey, cfg.Stripe.Currency)
	verifier := payments.NewWebhookVerifier(cfg.Stripe.WebhookSecret, 0)
	if verifier.Configured() {
		s.webhooks = verifier
	} else {
		log.Printf("stripe webhook secret not set; webhook endpoint disabled")
	}

	tokens := app.NewAccessTokens(repos.tokens, config.TTLDuration(cfg.Purchase.TokenTTL, 30*24*time.Hour))
	s.coupons = app.NewCouponService(repos.coupons, repos.affiliates)
	s.reconciler = app.NewReconciler(
		repos.results, repos.purchases, s.coupons, tokens, checkout, dedup, app.NewStatusHub(),
		app.RetryPolicy{
			Attempts: cfg.Purchase.VerifyAttempts,
			Backoff:  config.TTLDuration(cfg.Purchase.VerifyBackoff, 2*time.Second),
		},
	).WithConcurrency(cfg.Reconcile.Concurrency)
	s.quiz = app.NewQuizService(questions, repos.progress, repos.results, tokens)
	s.purchases = app.NewPurchaseService(
		repos.results, repos.purchases, s.coupons, tokens, checkout, s.reconciler,
		cfg.Products, cfg.Server.FrontendURL,
	)
	if cfg.Auth.JWTSecret == "" {
		log.Printf("auth jwt secret not set; authenticated routes will reject every token")
	}
	s.auth = transport.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.AdminEmails)
	return s, nil
}

func newRepositories(db *bun.DB, redisClient *redis.Client, progressTTL time.Duration) repositories {
	if db != nil {
		coupons := postgres.NewCouponRepository(db)
		return repositories{
			results:    postgres.NewResultRepository(db),
			purchases:  postgres.NewPurchaseRepository(db),
			coupons:    coupons,
			affiliates: coupons,
			tokens:     postgres.NewTokenRepository(db),
			progress:   postgres.NewProgressRepository(db),
		}
	}
	log.Printf("postgres not configured; results and purchases are kept in memory")
	coupons := memory.NewCouponStore()
	repos := repositories{
		results:    memory.NewResultStore(),
		purchases:  memory.NewPurchaseStore(),
		coupons:    coupons,
		affiliates: coupons,
		tokens:     memory.NewTokenStore(),
		progress:   memory.NewProgressStore(),
	}
	if redisClient != nil {
		repos.progress = redisstore.NewProgressStore(redisClient, progressTTL)
	}
	return repos
}

func fileQuestions(path string) []domain.Question {
	questions, err := config.LoadQuestions(path)
	switch {
	case err == nil:
		log.Printf("loaded questions file=%s count=%d", path, len(questions))
		return questions
	case os.IsNotExist(err):
		log.Printf("questions file not found file=%s; catalog is empty", path)
	default:
		log.Printf("questions file unreadable file=%s err=%v", path, err)
	}
	return nil
}
