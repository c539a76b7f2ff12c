package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streetgottalent/vote-payments/internal/handlers"
	"github.com/streetgottalent/vote-payments/internal/interfaces"
	"github.com/streetgottalent/vote-payments/internal/telemetry"
)

func NewRouter(
	workflowHandler *handlers.WorkflowHandler,
	paymentHandler *handlers.PaymentHandler,
	catalogHandler *handlers.CatalogHandler,
	adminHandler *handlers.AdminHandler,
	adminCredentials interfaces.AdminCredentialVerifier,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "vote-payments"})
	})

	// Public catalogue
	r.GET("/contestants/current", catalogHandler.ListContestants)
	r.GET("/contestants/current/:id", catalogHandler.GetContestant)
	r.GET("/streetfoods", catalogHandler.ListStreetfoods)
	r.GET("/seasons/current", catalogHandler.GetCurrentSeason)
	r.GET("/performance-types", catalogHandler.ListPerformanceTypes)

	// Payment-gated workflows
	r.POST("/contestants/vote", workflowHandler.StartVotePurchase)
	r.POST("/contestants/register", workflowHandler.StartRegistration)
	r.POST("/donations", workflowHandler.StartDonation)

	// Admin token issuance stays public; everything behind the group below
	// requires the issued bearer token.
	r.POST("/admins/login", adminHandler.Login)

	// Payment plumbing
	r.POST("/payments/verify", paymentHandler.VerifyPayment)
	r.POST("/payments/callback", paymentHandler.ProviderCallback)
	r.GET("/payments/status/:reference", paymentHandler.GetPaymentState)
	r.GET("/payments/events/:reference", workflowHandler.StreamWorkflow)
	r.POST("/payments/cancel/:reference", workflowHandler.CancelWorkflow)

	// Admin dashboard
	admin := r.Group("/", handlers.AdminAuth(adminCredentials))
	admin.GET("/payments/history", paymentHandler.GetPaymentHistory)
	admin.POST("/streetfoods", adminHandler.CreateStreetfood)
	admin.PUT("/streetfoods/:id", adminHandler.UpdateStreetfood)
	admin.DELETE("/streetfoods/:id", adminHandler.DeleteStreetfood)
	admin.POST("/contestants/eliminate/:id", adminHandler.EliminateContestant)
	admin.POST("/seasons", adminHandler.StartSeason)
	admin.PATCH("/seasons/current/status", adminHandler.UpdateSeasonStatus)
	admin.PATCH("/seasons/current/registration-fee", adminHandler.UpdateRegistrationFee)
	admin.PATCH("/seasons/current/acceptance", adminHandler.UpdateAcceptance)

	return r
}
