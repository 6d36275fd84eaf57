package postgres

import (
	"context"
	"fmt"
	"time"

	"moral-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

// PurchaseRepository stores purchase_tracking and guest_purchases rows.
type PurchaseRepository struct {
	db bun.IDB
}

func NewPurchaseRepository(db bun.IDB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) CreateTracking(ctx context.Context, tracking *domain.PurchaseTracking) error {
	if _, err := r.db.NewInsert().Model(newTrackingRow(*tracking)).Exec(ctx); err != nil {
		return fmt.Errorf("insert tracking: %w", err)
	}
	return nil
}

func (r *PurchaseRepository) GetTracking(ctx context.Context, id string) (domain.PurchaseTracking, error) {
	return r.get(ctx, "id = ?", id)
}

func (r *PurchaseRepository) GetTrackingBySession(ctx context.Context, sessionID string) (domain.PurchaseTracking, error) {
	return r.get(ctx, "stripe_session_id = ?", sessionID)
}

func (r *PurchaseRepository) AttachSession(ctx context.Context, id, sessionID string) error {
	res, err := r.db.NewUpdate().Model((*trackingRow)(nil)).
		Set("stripe_session_id = ?", sessionID).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("attach session: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrPurchaseNotFound
	}
	return nil
}

func (r *PurchaseRepository) CompleteTracking(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.NewUpdate().Model((*trackingRow)(nil)).
		Set("status = ?", string(domain.PurchaseCompleted)).
		Set("completed_at = ?", at).
		Set("verification_deferred = FALSE").
		Where("id = ?", id).
		Where("status <> ?", string(domain.PurchaseCompleted)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("complete tracking: %w", err)
	}
	ok, err := affected(res)
	if err != nil || ok {
		return ok, err
	}
	if _, err := r.GetTracking(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *PurchaseRepository) FailTracking(ctx context.Context, id string) error {
	return r.updateUnlessCompleted(ctx, id, "status = ?", string(domain.PurchaseFailed))
}

func (r *PurchaseRepository) DeferTracking(ctx context.Context, id string) error {
	return r.updateUnlessCompleted(ctx, id, "verification_deferred = ?", true)
}

func (r *PurchaseRepository) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.PurchaseTracking, error) {
	var rows []trackingRow
	err := r.db.NewSelect().Model(&rows).
		Where("status = ?", string(domain.PurchasePending)).
		Where("created_at < ?", createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	out := make([]domain.PurchaseTracking, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *PurchaseRepository) RecordGuestPurchase(ctx context.Context, purchase *domain.GuestPurchase) error {
	row := &guestPurchaseRow{
		ID:              purchase.ID,
		Email:           purchase.Email,
		ResultID:        purchase.ResultID,
		StripeSessionID: purchase.StripeSessionID,
		AccessToken:     purchase.AccessToken,
		CreatedAt:       purchase.CreatedAt,
	}
	if _, err := r.db.NewInsert().Model(row).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("insert guest purchase: %w", err)
	}
	return nil
}

func (r *PurchaseRepository) get(ctx context.Context, where string, arg interface{}) (domain.PurchaseTracking, error) {
	var row trackingRow
	if err := r.db.NewSelect().Model(&row).Where(where, arg).Scan(ctx); err != nil {
		return domain.PurchaseTracking{}, notFound(err, domain.ErrPurchaseNotFound)
	}
	return row.toDomain(), nil
}

func (r *PurchaseRepository) updateUnlessCompleted(ctx context.Context, id, set string, arg interface{}) error {
	res, err := r.db.NewUpdate().Model((*trackingRow)(nil)).
		Set(set, arg).
		Where("id = ?", id).
		Where("status <> ?", string(domain.PurchaseCompleted)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update tracking: %w", err)
	}
	if ok, err := affected(res); err != nil || ok {
		return err
	}
	_, err = r.GetTracking(ctx, id)
	return err
}
