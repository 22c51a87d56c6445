package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ebarrios/centavo/internal/transport/httpapi/handler"
	"github.com/ebarrios/centavo/internal/transport/httpapi/middleware"
	"github.com/ebarrios/centavo/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger             *logger.Logger
	AllowedOrigins     []string
	HealthHandler      *handler.HealthHandler
	TransactionHandler *handler.TransactionHandler
	PurchaseHandler    *handler.PurchaseHandler
	AutoDebitHandler   *handler.AutoDebitHandler
	RateHandler        *handler.RateHandler
	ReportHandler      *handler.ReportHandler
	JWTMiddleware      func(http.Handler) http.Handler
}

// NewRouter creates a new HTTP router
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.RateLimit()) // Rate limiting: 100 req/s with burst of 20

	// Health check endpoints (no authentication required)
	r.Get("/health", handler.GetHealth)
	r.Get("/health/live", handler.GetLiveness)
	if cfg.HealthHandler != nil {
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
		r.Get("/health/detailed", cfg.HealthHandler.GetHealthDetailed)
	}

	// API routes (all require JWT authentication)
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTMiddleware == nil {
			return
		}
		r.Group(func(r chi.Router) {
			r.Use(cfg.JWTMiddleware)

			// Transaction routes
			if cfg.TransactionHandler != nil {
				r.Post("/transactions", cfg.TransactionHandler.CreateTransaction)
				r.Put("/transactions/{id}", cfg.TransactionHandler.UpdateTransaction)
				r.Post("/transactions/{id}/confirm", cfg.TransactionHandler.ConfirmTransaction)
			}

			// Installment purchase routes
			if cfg.PurchaseHandler != nil {
				r.Route("/purchases", func(r chi.Router) {
					r.Post("/", cfg.PurchaseHandler.CreatePurchase)
					r.Get("/summary", cfg.PurchaseHandler.GetSummary)
					r.Post("/{id}/installments/{n}/pay", cfg.PurchaseHandler.PayInstallment)
					r.Post("/{id}/payoff", cfg.PurchaseHandler.PayEarly)
				})
			}

			// Auto-debit routes
			if cfg.AutoDebitHandler != nil {
				r.Route("/autodebits", func(r chi.Router) {
					r.Post("/", cfg.AutoDebitHandler.CreateAutoDebit)
					r.Get("/", cfg.AutoDebitHandler.ListAutoDebits)
					r.Get("/due", cfg.AutoDebitHandler.ListDue)
					r.Post("/run", cfg.AutoDebitHandler.RunDuePass)
					r.Post("/{id}/pause", cfg.AutoDebitHandler.PauseAutoDebit)
					r.Post("/{id}/resume", cfg.AutoDebitHandler.ResumeAutoDebit)
					r.Delete("/{id}", cfg.AutoDebitHandler.CancelAutoDebit)
				})
			}

			// Exchange rate routes
			if cfg.RateHandler != nil {
				r.Get("/rates", cfg.RateHandler.GetRate)
				r.Post("/rates/convert", cfg.RateHandler.Convert)
				r.Post("/rates/refresh", cfg.RateHandler.RefreshRates)
			}

			// Report routes
			if cfg.ReportHandler != nil {
				r.Get("/reports/balance", cfg.ReportHandler.GetTotalBalance)
				r.Get("/reports/projection", cfg.ReportHandler.GetProjection)
			}
		})
	})

	return r
}
