package router

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/automart/settlement/internal/discount"
	"github.com/automart/settlement/internal/logger"
	"github.com/automart/settlement/internal/middleware"
	"github.com/automart/settlement/internal/order"
	"github.com/automart/settlement/internal/payment"
	"github.com/automart/settlement/internal/refund"
	"github.com/automart/settlement/internal/wallet"
)

func NewRouter(
	orderH *order.Handler,
	paymentH *payment.Handler,
	refundH *refund.Handler,
	walletH *wallet.Handler,
	discountH *discount.Handler,
	jwtSecret []byte,
	rdb *redis.Client,
	callbackLimit int,
	callbackWindow time.Duration,
) chi.Router {
	r := chi.NewRouter()

	r.Use(logger.WithLogging)
	r.Use(chiMiddleware.Recoverer)

	// Gateway callbacks arrive unauthenticated from the payment provider;
	// they are rate limited instead and verified against the gateway itself.
	r.Route("/api/gateway", func(r chi.Router) {
		r.Use(middleware.RateLimit(rdb, callbackLimit, callbackWindow))
		r.Mount("/", paymentH.CallbackRoutes())
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTMiddleware(jwtSecret))

		r.Mount("/api/orders", orderH.Routes())
		r.Mount("/api/payments", paymentH.Routes())
		r.Mount("/api/refunds", refundH.Routes())
		r.Mount("/api/wallets", walletH.Routes())
		r.Mount("/api/discounts", discountH.Routes())
	})

	return r
}
