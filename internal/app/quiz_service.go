package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"moral-quiz-service/internal/domain"
	"github.com/google/uuid"
)

// QuizService contains the quiz-taking and result use cases.
type QuizService struct {
	questions QuestionRepository
	progress  ProgressRepository
	results   ResultRepository
	tokens    *AccessTokens
	now       func() time.Time
}

func NewQuizService(questions QuestionRepository, progress ProgressRepository, results ResultRepository, tokens *AccessTokens) *QuizService {
	return &QuizService{
		questions: questions,
		progress:  progress,
		results:   results,
		tokens:    tokens,
		now:       time.Now,
	}
}

// WithClock swaps the time source; used by tests.
func (s *QuizService) WithClock(now func() time.Time) *QuizService {
	s.now = now
	return s
}

// ProgressView is the runner state returned to clients.
type ProgressView struct {
	Current      *domain.Question `json:"current,omitempty"`
	CurrentIndex int              `json:"currentIndex"`
	Total        int              `json:"total"`
	Percent      float64          `json:"percent"`
	Done         bool             `json:"done"`
	Answers      map[string]int   `json:"answers"`
}

// CompletedQuiz is the outcome of submitting a finished quiz.
type CompletedQuiz struct {
	Result      domain.Result       `json:"result"`
	AccessToken *domain.AccessToken `json:"accessToken,omitempty"`
}

// Questions returns the ordered catalog.
func (s *QuizService) Questions(ctx context.Context) ([]domain.Question, error) {
	questions, err := s.questions.ListQuestions(ctx)
	if err != nil {
		return nil, err
	}
	return domain.SortQuestions(questions), nil
}

// Progress resumes the caller's saved quiz.
func (s *QuizService) Progress(ctx context.Context, caller domain.Caller) (ProgressView, error) {
	if !caller.Authenticated() {
		return ProgressView{}, domain.ErrUnauthenticated
	}
	runner, err := s.runnerFor(ctx, caller.UserID)
	if err != nil {
		return ProgressView{}, err
	}
	return viewOf(runner), nil
}

// SaveAnswer records one answer and persists the runner state.
func (s *QuizService) SaveAnswer(ctx context.Context, caller domain.Caller, questionID string, value int) (ProgressView, error) {
	if !caller.Authenticated() {
		return ProgressView{}, domain.ErrUnauthenticated
	}
	runner, err := s.runnerFor(ctx, caller.UserID)
	if err != nil {
		return ProgressView{}, err
	}
	if err := runner.AnswerQuestion(questionID, value); err != nil {
		return ProgressView{}, err
	}
	snapshot := runner.Snapshot(caller.UserID)
	snapshot.UpdatedAt = s.now()
	if err := s.progress.SaveProgress(ctx, snapshot); err != nil {
		return ProgressView{}, err
	}
	return viewOf(runner), nil
}

// ResetProgress discards the caller's saved quiz.
func (s *QuizService) ResetProgress(ctx context.Context, caller domain.Caller) error {
	if !caller.Authenticated() {
		return domain.ErrUnauthenticated
	}
	return s.progress.DeleteProgress(ctx, caller.UserID)
}

// CompleteQuiz scores a full answer set and stores the result. Guests get an
// access token in place of an owning account.
func (s *QuizService) CompleteQuiz(ctx context.Context, caller domain.Caller, answers map[string]int, guestEmail string) (CompletedQuiz, error) {
	questions, err := s.questions.ListQuestions(ctx)
	if err != nil {
		return CompletedQuiz{}, err
	}
	runner := domain.NewRunner(questions, nil)
	for questionID, value := range answers {
		if err := runner.AnswerQuestion(questionID, value); err != nil {
			return CompletedQuiz{}, err
		}
	}
	if !runner.Done() {
		return CompletedQuiz{}, domain.ErrIncompleteQuiz
	}
	level, err := domain.Level(runner.Ordered())
	if err != nil {
		return CompletedQuiz{}, err
	}

	now := s.now()
	result := domain.Result{
		ID:             uuid.NewString(),
		UserID:         caller.UserID,
		Answers:        runner.Answers(),
		Level:          level,
		PurchaseStatus: domain.PurchaseNone,
		AccessMethod:   domain.AccessFree,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	out := CompletedQuiz{}
	if !caller.Authenticated() {
		if guestEmail != "" {
			email, err := normalizeEmail(guestEmail)
			if err != nil {
				return CompletedQuiz{}, err
			}
			result.GuestEmail = email
		}
		token := s.tokens.Mint(result.ID, result.GuestEmail)
		result.GuestAccessToken = token.Token
		out.AccessToken = &token
	}

	// the token row references the result, so the result goes first
	if err := s.results.CreateResult(ctx, &result); err != nil {
		return CompletedQuiz{}, err
	}
	if out.AccessToken != nil {
		if err := s.tokens.Store(ctx, *out.AccessToken); err != nil {
			return CompletedQuiz{}, fmt.Errorf("store access token: %w", err)
		}
	}
	if caller.Authenticated() {
		if err := s.progress.DeleteProgress(ctx, caller.UserID); err != nil && !errors.Is(err, domain.ErrProgressNotFound) {
			log.Printf("clear progress failed user=%s err=%v", caller.UserID, err)
		}
	}
	out.Result = result
	return out, nil
}

// GetResult returns a result the caller may see: their own, any for admins,
// or a guest result unlocked by a valid access token.
func (s *QuizService) GetResult(ctx context.Context, caller domain.Caller, id, token string) (domain.Result, error) {
	if id == "" && token != "" {
		resolved, err := s.tokens.Resolve(ctx, token)
		if err != nil {
			return domain.Result{}, err
		}
		id = resolved
	}
	result, err := s.results.GetResult(ctx, id)
	if err != nil {
		return domain.Result{}, err
	}
	if err := s.authorize(ctx, caller, result, token); err != nil {
		return domain.Result{}, err
	}
	return result, nil
}

// Report builds the detailed per-category view of a purchased result.
func (s *QuizService) Report(ctx context.Context, caller domain.Caller, id, token string) (domain.Report, error) {
	result, err := s.GetResult(ctx, caller, id, token)
	if err != nil {
		return domain.Report{}, err
	}
	if !result.IsPurchased && !caller.Admin {
		return domain.Report{}, domain.ErrNotPurchased
	}
	questions, err := s.questions.ListQuestions(ctx)
	if err != nil {
		return domain.Report{}, err
	}

	values := make([]int, 0, len(result.Answers))
	for _, v := range result.Answers {
		values = append(values, v)
	}
	avg, err := domain.Average(values)
	if err != nil {
		return domain.Report{}, err
	}
	return domain.Report{
		ResultID:   result.ID,
		Level:      result.Level,
		Average:    avg,
		Categories: domain.Breakdown(questions, result.Answers),
	}, nil
}

// ListResults is the caller's dashboard.
func (s *QuizService) ListResults(ctx context.Context, caller domain.Caller, filter domain.ResultFilter) (domain.ResultPage, error) {
	if !caller.Authenticated() {
		return domain.ResultPage{}, domain.ErrUnauthenticated
	}
	filter.UserID = caller.UserID
	return s.list(ctx, filter)
}

// AdminListResults lists every result with optional filters.
func (s *QuizService) AdminListResults(ctx context.Context, caller domain.Caller, filter domain.ResultFilter) (domain.ResultPage, error) {
	if !caller.Admin {
		return domain.ResultPage{}, domain.ErrForbidden
	}
	return s.list(ctx, filter)
}

func (s *QuizService) list(ctx context.Context, filter domain.ResultFilter) (domain.ResultPage, error) {
	filter = filter.Normalize()
	results, total, err := s.results.ListResults(ctx, filter)
	if err != nil {
		return domain.ResultPage{}, err
	}
	if results == nil {
		results = []domain.Result{}
	}
	return domain.ResultPage{
		Results:  results,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

func (s *QuizService) authorize(ctx context.Context, caller domain.Caller, result domain.Result, token string) error {
	if caller.Admin {
		return nil
	}
	if !result.IsGuest() && caller.UserID == result.UserID {
		return nil
	}
	if token != "" {
		_, err := s.tokens.Validate(ctx, token, result.ID)
		return err
	}
	if !caller.Authenticated() && !result.IsGuest() {
		return domain.ErrUnauthenticated
	}
	return domain.ErrForbidden
}

func (s *QuizService) runnerFor(ctx context.Context, userID string) (*domain.Runner, error) {
	questions, err := s.questions.ListQuestions(ctx)
	if err != nil {
		return nil, err
	}
	progress, err := s.progress.GetProgress(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrProgressNotFound):
		return domain.NewRunner(questions, nil), nil
	case err != nil:
		return nil, err
	}
	return domain.NewRunner(questions, &progress), nil
}

func viewOf(r *domain.Runner) ProgressView {
	view := ProgressView{
		CurrentIndex: r.Index(),
		Total:        r.Total(),
		Percent:      r.Progress(),
		Done:         r.Done(),
		Answers:      r.Answers(),
	}
	if q, ok := r.Current(); ok {
		view.Current = &q
	}
	return view
}
