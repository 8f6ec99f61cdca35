package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/config"
	authsvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/auth"
	paymentsvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/payments"
	purchasesvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/purchases"
	settlementsvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/settlement"
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService       *authsvc.Service
	PurchaseService   *purchasesvc.Service
	PaymentService    *paymentsvc.Service
	SettlementService *settlementsvc.Service
	Logger            *zap.Logger
	Config            config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	purchaseHandler := handlers.NewPurchaseHandler(deps.PurchaseService, deps.SettlementService)
	paymentHandler := handlers.NewPaymentHandler(deps.PaymentService)
	webhookHandler := handlers.NewWebhookHandler(deps.PaymentService)

	r.Get("/healthz", healthHandler.Check)

	// The gateway posts status callbacks here; it cannot carry a bearer token.
	// Authenticity is the body signature, verified inside the service.
	r.Post("/gateway/webhook", webhookHandler.Gateway)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(deps.AuthService, deps.Logger))

		r.Post("/purchases", purchaseHandler.Create)
		r.Post("/purchases/{purchaseID}/redeem", purchaseHandler.Redeem)
		r.Post("/purchases/{purchaseID}/payments/cash", paymentHandler.Cash)
		r.Post("/purchases/{purchaseID}/payments", paymentHandler.Deferred)
		r.Get("/payments/{paymentID}/poll", paymentHandler.Poll)
	})
}
