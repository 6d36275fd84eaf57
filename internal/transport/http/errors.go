package http

import (
	"errors"
	"log"
	"net/http"

	"moral-quiz-service/internal/domain"
	"github.com/gin-gonic/gin"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrInvalidAnswer),
		errors.Is(err, domain.ErrNoAnswers),
		errors.Is(err, domain.ErrIncompleteQuiz),
		errors.Is(err, domain.ErrUnknownProduct),
		errors.Is(err, domain.ErrEmailRequired),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidCoupon),
		errors.Is(err, domain.ErrInvalidAffiliate):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotPurchased):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrResultNotFound),
		errors.Is(err, domain.ErrProgressNotFound),
		errors.Is(err, domain.ErrTokenNotFound),
		errors.Is(err, domain.ErrPurchaseNotFound),
		errors.Is(err, domain.ErrCouponNotFound),
		errors.Is(err, domain.ErrAffiliateNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyPurchased),
		errors.Is(err, domain.ErrDuplicateCode):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrCouponInactive),
		errors.Is(err, domain.ErrCouponExpired),
		errors.Is(err, domain.ErrCouponExhausted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCheckoutUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as JSON. Unknown errors are logged and hidden.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	switch status {
	case http.StatusInternalServerError:
		log.Printf("request failed method=%s path=%s err=%v", c.Request.Method, c.Request.URL.Path, err)
		message = "internal error"
	case http.StatusBadGateway:
		log.Printf("upstream failed method=%s path=%s err=%v", c.Request.Method, c.Request.URL.Path, err)
		message = domain.ErrCheckoutUnavailable.Error()
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func respondBadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}
