package http

import (
	"time"

	"moral-quiz-service/internal/app"
	"moral-quiz-service/internal/domain"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// WebhookParser verifies a provider webhook and decodes it.
type WebhookParser interface {
	Parse(payload []byte, signature string) (domain.CheckoutEvent, error)
}

// Deps are the use cases the HTTP layer serves.
type Deps struct {
	Quiz        *app.QuizService
	Purchases   *app.PurchaseService
	Coupons     *app.CouponService
	Reconciler  *app.Reconciler
	Webhooks    WebhookParser
	Auth        *Verifier
	CORSOrigins []string
}

// NewRouter builds the gin engine with every API route mounted.
func NewRouter(deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins(deps.CORSOrigins),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Access-Token"},
		AllowCredentials: !allowsAny(deps.CORSOrigins),
		MaxAge:           12 * time.Hour,
	}))

	quiz := &quizHandler{quiz: deps.Quiz, auth: deps.Auth}
	purchases := &purchaseHandler{purchases: deps.Purchases, reconciler: deps.Reconciler, auth: deps.Auth}
	admin := &adminHandler{quiz: deps.Quiz, coupons: deps.Coupons, auth: deps.Auth}
	webhooks := &webhookHandler{parser: deps.Webhooks, reconciler: deps.Reconciler}
	ws := NewWSHandler(deps.Reconciler, deps.Auth)

	router.GET("/healthz", func(c *gin.Context) {
		c.String(200, "ok")
	})
	router.POST("/api/stripe/webhook", webhooks.Handle)
	router.GET("/ws/purchases", OptionalAuth(deps.Auth), ws.ServeWS)

	api := router.Group("/api")
	api.Use(OptionalAuth(deps.Auth))
	api.GET("/questions", quiz.Questions)
	api.POST("/quiz/results", quiz.Complete)
	api.GET("/results/:id", quiz.Result)
	api.GET("/results/:id/report", quiz.Report)
	api.POST("/coupons/validate", purchases.ValidateCoupon)
	api.POST("/purchases", purchases.Initiate)
	api.GET("/purchases/status", purchases.Status)
	api.POST("/purchases/verify", purchases.Verify)

	protected := api.Group("")
	protected.Use(RequireAuth())
	protected.GET("/quiz/progress", quiz.Progress)
	protected.PUT("/quiz/progress", quiz.SaveAnswer)
	protected.DELETE("/quiz/progress", quiz.ResetProgress)
	protected.GET("/results", quiz.List)

	adminGroup := api.Group("/admin")
	adminGroup.Use(RequireAdmin(deps.Auth))
	adminGroup.GET("/results", admin.Results)
	adminGroup.GET("/coupons", admin.ListCoupons)
	adminGroup.POST("/coupons", admin.CreateCoupon)
	adminGroup.PUT("/coupons/:id", admin.UpdateCoupon)
	adminGroup.DELETE("/coupons/:id", admin.DeleteCoupon)
	adminGroup.GET("/affiliates", admin.ListAffiliates)
	adminGroup.POST("/affiliates", admin.CreateAffiliate)
	adminGroup.PUT("/affiliates/:id", admin.UpdateAffiliate)
	adminGroup.DELETE("/affiliates/:id", admin.DeleteAffiliate)

	return router
}

// callerFrom reads the verified caller; anonymous requests get the zero Caller.
func callerFrom(c *gin.Context, verifier *Verifier) domain.Caller {
	claims, ok := ClaimsFromContext(c.Request.Context())
	if !ok {
		return domain.Caller{}
	}
	return verifier.Caller(claims)
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func allowsAny(origins []string) bool {
	for _, o := range corsOrigins(origins) {
		if o == "*" {
			return true
		}
	}
	return false
}
