package http

import (
	"net/http"
	"time"

	"moral-quiz-service/internal/app"
	"moral-quiz-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type adminHandler struct {
	quiz    *app.QuizService
	coupons *app.CouponService
	auth    *Verifier
}

type couponRequest struct {
	Code           string              `json:"code"`
	DiscountType   domain.DiscountType `json:"discount_type"`
	DiscountAmount int64               `json:"discount_amount"`
	MaxUses        *int                `json:"max_uses"`
	ExpiresAt      *time.Time          `json:"expires_at"`
	Active         *bool               `json:"active"`
}

func (r couponRequest) coupon() domain.Coupon {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return domain.Coupon{
		Code:           r.Code,
		DiscountType:   r.DiscountType,
		DiscountAmount: r.DiscountAmount,
		MaxUses:        r.MaxUses,
		ExpiresAt:      r.ExpiresAt,
		Active:         active,
	}
}

type affiliateRequest struct {
	Code              string `json:"code"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	CommissionPercent int64  `json:"commission_percent"`
	Active            *bool  `json:"active"`
}

func (r affiliateRequest) affiliate() domain.Affiliate {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return domain.Affiliate{
		Code:              r.Code,
		Name:              r.Name,
		Email:             r.Email,
		CommissionPercent: r.CommissionPercent,
		Active:            active,
	}
}

func (h *adminHandler) Results(c *gin.Context) {
	filter, ok := resultFilter(c)
	if !ok {
		return
	}
	page, err := h.quiz.AdminListResults(c.Request.Context(), callerFrom(c, h.auth), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *adminHandler) ListCoupons(c *gin.Context) {
	coupons, err := h.coupons.ListCoupons(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupons": coupons})
}

func (h *adminHandler) CreateCoupon(c *gin.Context) {
	var req couponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid coupon")
		return
	}
	coupon, err := h.coupons.CreateCoupon(c.Request.Context(), req.coupon())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, coupon)
}

func (h *adminHandler) UpdateCoupon(c *gin.Context) {
	var req couponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid coupon")
		return
	}
	coupon, err := h.coupons.UpdateCoupon(c.Request.Context(), c.Param("id"), req.coupon())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, coupon)
}

func (h *adminHandler) DeleteCoupon(c *gin.Context) {
	if err := h.coupons.DeleteCoupon(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *adminHandler) ListAffiliates(c *gin.Context) {
	affiliates, err := h.coupons.ListAffiliates(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"affiliates": affiliates})
}

func (h *adminHandler) CreateAffiliate(c *gin.Context) {
	var req affiliateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid affiliate")
		return
	}
	affiliate, err := h.coupons.CreateAffiliate(c.Request.Context(), req.affiliate())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, affiliate)
}

func (h *adminHandler) UpdateAffiliate(c *gin.Context) {
	var req affiliateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid affiliate")
		return
	}
	affiliate, err := h.coupons.UpdateAffiliate(c.Request.Context(), c.Param("id"), req.affiliate())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, affiliate)
}

func (h *adminHandler) DeleteAffiliate(c *gin.Context) {
	if err := h.coupons.DeleteAffiliate(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
