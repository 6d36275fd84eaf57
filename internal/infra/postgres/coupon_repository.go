package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"moral-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

// CouponRepository stores coupons, coupon_usage and affiliates.
type CouponRepository struct {
	db *bun.DB
}

func NewCouponRepository(db *bun.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func (r *CouponRepository) GetCouponByCode(ctx context.Context, code string) (domain.Coupon, error) {
	return r.getCoupon(ctx, r.db, "code = ?", code)
}

func (r *CouponRepository) GetCoupon(ctx context.Context, id string) (domain.Coupon, error) {
	return r.getCoupon(ctx, r.db, "id = ?", id)
}

func (r *CouponRepository) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	var rows []couponRow
	if err := r.db.NewSelect().Model(&rows).Order("code ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	out := make([]domain.Coupon, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *CouponRepository) CreateCoupon(ctx context.Context, coupon *domain.Coupon) error {
	if _, err := r.db.NewInsert().Model(newCouponRow(*coupon)).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateCode
		}
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

// UpdateCoupon writes the editable columns; current_uses and created_at are
// read back from the row.
func (r *CouponRepository) UpdateCoupon(ctx context.Context, coupon *domain.Coupon) error {
	row := newCouponRow(*coupon)
	res, err := r.db.NewUpdate().Model(row).
		Column("code", "discount_type", "discount_amount", "max_uses", "expires_at", "active", "updated_at").
		WherePK().
		Returning("current_uses, created_at").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateCode
		}
		return fmt.Errorf("update coupon: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCouponNotFound
	}
	*coupon = row.toDomain()
	return nil
}

func (r *CouponRepository) DeleteCoupon(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().Model((*couponRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCouponNotFound
	}
	return nil
}

// RedeemCoupon increments current_uses only while under max_uses and inserts
// the usage row in the same transaction.
func (r *CouponRepository) RedeemCoupon(ctx context.Context, usage domain.CouponUsage, at time.Time) error {
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*couponRow)(nil)).
			Set("current_uses = current_uses + 1").
			Set("updated_at = ?", at).
			Where("id = ?", usage.CouponID).
			Where("(max_uses IS NULL OR current_uses < max_uses)").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("increment coupon usage: %w", err)
		}
		ok, err := affected(res)
		if err != nil {
			return err
		}
		if !ok {
			if _, err := r.getCoupon(ctx, tx, "id = ?", usage.CouponID); err != nil {
				return err
			}
			return domain.ErrCouponExhausted
		}

		row := &couponUsageRow{
			ID:         usage.ID,
			CouponID:   usage.CouponID,
			ResultID:   usage.ResultID,
			UserID:     usage.UserID,
			GuestEmail: usage.GuestEmail,
			UsedAt:     usage.UsedAt,
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("insert coupon usage: %w", err)
		}
		return nil
	})
}

func (r *CouponRepository) GetAffiliateByCode(ctx context.Context, code string) (domain.Affiliate, error) {
	var row affiliateRow
	if err := r.db.NewSelect().Model(&row).Where("code = ?", code).Scan(ctx); err != nil {
		return domain.Affiliate{}, notFound(err, domain.ErrAffiliateNotFound)
	}
	return row.toDomain(), nil
}

func (r *CouponRepository) ListAffiliates(ctx context.Context) ([]domain.Affiliate, error) {
	var rows []affiliateRow
	if err := r.db.NewSelect().Model(&rows).Order("code ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list affiliates: %w", err)
	}
	out := make([]domain.Affiliate, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *CouponRepository) CreateAffiliate(ctx context.Context, affiliate *domain.Affiliate) error {
	if _, err := r.db.NewInsert().Model(newAffiliateRow(*affiliate)).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateCode
		}
		return fmt.Errorf("insert affiliate: %w", err)
	}
	return nil
}

func (r *CouponRepository) UpdateAffiliate(ctx context.Context, affiliate *domain.Affiliate) error {
	row := newAffiliateRow(*affiliate)
	res, err := r.db.NewUpdate().Model(row).
		Column("code", "name", "email", "commission_percent", "active", "updated_at").
		WherePK().
		Returning("created_at").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateCode
		}
		return fmt.Errorf("update affiliate: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAffiliateNotFound
	}
	*affiliate = row.toDomain()
	return nil
}

func (r *CouponRepository) DeleteAffiliate(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().Model((*affiliateRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete affiliate: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAffiliateNotFound
	}
	return nil
}

func (r *CouponRepository) getCoupon(ctx context.Context, db bun.IDB, where string, arg interface{}) (domain.Coupon, error) {
	var row couponRow
	if err := db.NewSelect().Model(&row).Where(where, arg).Scan(ctx); err != nil {
		return domain.Coupon{}, notFound(err, domain.ErrCouponNotFound)
	}
	return row.toDomain(), nil
}
