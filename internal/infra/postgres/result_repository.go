package postgres

import (
	"context"
	"fmt"
	"time"

	"moral-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

// ResultRepository stores quiz results in quiz_results.
type ResultRepository struct {
	db bun.IDB
}

func NewResultRepository(db bun.IDB) *ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) CreateResult(ctx context.Context, result *domain.Result) error {
	if _, err := r.db.NewInsert().Model(newResultRow(*result)).Exec(ctx); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (r *ResultRepository) GetResult(ctx context.Context, id string) (domain.Result, error) {
	var row resultRow
	err := r.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return domain.Result{}, notFound(err, domain.ErrResultNotFound)
	}
	return row.toDomain(), nil
}

func (r *ResultRepository) ListResults(ctx context.Context, filter domain.ResultFilter) ([]domain.Result, int, error) {
	filter = filter.Normalize()
	var rows []resultRow
	q := r.db.NewSelect().Model(&rows)
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Level != "" {
		q = q.Where("level = ?", filter.Level)
	}
	if filter.Purchased != nil {
		q = q.Where("is_purchased = ?", *filter.Purchased)
	}
	if filter.PurchaseStatus != "" {
		q = q.Where("purchase_status = ?", string(filter.PurchaseStatus))
	}
	total, err := q.Order("created_at DESC", "id ASC").
		Limit(filter.PageSize).
		Offset(filter.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	out := make([]domain.Result, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, total, nil
}

func (r *ResultRepository) MarkPurchaseInitiated(ctx context.Context, id, guestEmail string, at time.Time) error {
	res, err := r.db.NewUpdate().Model((*resultRow)(nil)).
		Set("purchase_status = ?", string(domain.PurchasePending)).
		Set("purchase_initiated_at = ?", at).
		Set("guest_email = COALESCE(guest_email, NULLIF(?, ''))", guestEmail).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("is_purchased = FALSE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark purchase initiated: %w", err)
	}
	if ok, err := affected(res); err != nil || ok {
		return err
	}
	// no row updated: either missing or already purchased
	_, err = r.GetResult(ctx, id)
	return err
}

func (r *ResultRepository) AttachSession(ctx context.Context, id, sessionID string) error {
	res, err := r.db.NewUpdate().Model((*resultRow)(nil)).
		Set("stripe_session_id = ?", sessionID).
		Where("id = ?", id).
		Where("stripe_session_id IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("attach session: %w", err)
	}
	if ok, err := affected(res); err != nil || ok {
		return err
	}
	_, err = r.GetResult(ctx, id)
	return err
}

func (r *ResultRepository) MarkPurchased(ctx context.Context, match domain.ResultMatch, update domain.PurchaseUpdate) (bool, error) {
	q := r.db.NewUpdate().Model((*resultRow)(nil)).
		Set("is_purchased = TRUE").
		Set("is_detailed = TRUE").
		Set("purchase_status = ?", string(domain.PurchaseCompleted)).
		Set("access_method = ?", string(update.AccessMethod)).
		Set("stripe_session_id = COALESCE(NULLIF(?, ''), stripe_session_id)", update.SessionID).
		Set("updated_at = CASE WHEN purchase_completed_at IS NULL THEN ? ELSE updated_at END", update.CompletedAt).
		Set("purchase_completed_at = COALESCE(purchase_completed_at, ?)", update.CompletedAt).
		Where("id = ?", match.ResultID)

	switch match.Strategy {
	case domain.MatchByUser:
		if match.UserID == "" {
			return false, nil
		}
		q = q.Where("user_id = ?", match.UserID)
	case domain.MatchBySession:
		if match.SessionID == "" {
			return false, nil
		}
		q = q.Where("stripe_session_id = ?", match.SessionID)
	case domain.MatchByGuestEmail:
		if match.GuestEmail == "" {
			return false, nil
		}
		q = q.Where("user_id IS NULL").Where("guest_email = ?", match.GuestEmail)
	case domain.MatchByID:
	default:
		return false, fmt.Errorf("unknown match strategy %q", match.Strategy)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("mark purchased by %s: %w", match.Strategy, err)
	}
	return affected(res)
}

func (r *ResultRepository) SetPurchaseStatus(ctx context.Context, id string, status domain.PurchaseStatus) error {
	_, err := r.db.NewUpdate().Model((*resultRow)(nil)).
		Set("purchase_status = ?", string(status)).
		Where("id = ?", id).
		Where("is_purchased = FALSE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set purchase status: %w", err)
	}
	return nil
}
