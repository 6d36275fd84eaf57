package http

import (
	"net/http"

	"moral-quiz-service/internal/app"
	"moral-quiz-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type purchaseHandler struct {
	purchases  *app.PurchaseService
	reconciler *app.Reconciler
	auth       *Verifier
}

type validateCouponRequest struct {
	Code    string         `json:"code"`
	Product domain.Product `json:"product"`
}

type verifyRequest struct {
	SessionID string `json:"session_id"`
}

func (h *purchaseHandler) ValidateCoupon(c *gin.Context) {
	var req validateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		respondBadRequest(c, "code is required")
		return
	}
	if req.Product == "" {
		req.Product = domain.ProductReport
	}
	quote, err := h.purchases.Quote(c.Request.Context(), req.Product, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "quote": quote})
}

func (h *purchaseHandler) Initiate(c *gin.Context) {
	var req domain.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid purchase request")
		return
	}
	if req.Product == "" {
		req.Product = domain.ProductReport
	}
	if req.AccessToken == "" {
		req.AccessToken = accessToken(c)
	}
	session, err := h.purchases.Initiate(c.Request.Context(), callerFrom(c, h.auth), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *purchaseHandler) Status(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		respondBadRequest(c, "session_id is required")
		return
	}
	view, err := h.reconciler.Status(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.reconciler.ForCaller(c.Request.Context(), callerFrom(c, h.auth), accessToken(c), view))
}

// Verify blocks while the server polls the provider, bounded by the retry
// policy and the request context.
func (h *purchaseHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		respondBadRequest(c, "session_id is required")
		return
	}
	view, err := h.reconciler.Verify(c.Request.Context(), req.SessionID)
	if err != nil {
		if c.Request.Context().Err() != nil {
			// client went away
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.reconciler.ForCaller(c.Request.Context(), callerFrom(c, h.auth), accessToken(c), view))
}
