// Package httpapi is the gin facade over the directory, payment ledger,
// and community services.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/AlumNetLabs/alumnet/internal/gateway"
	"github.com/AlumNetLabs/alumnet/internal/mailer"
	"github.com/AlumNetLabs/alumnet/internal/media"
	"github.com/AlumNetLabs/alumnet/internal/notify"
	"github.com/AlumNetLabs/alumnet/internal/store/gormstore"
	"github.com/AlumNetLabs/alumnet/pkg/directory"
	"github.com/AlumNetLabs/alumnet/pkg/payments"
)

// OrderCreator places orders with the payment gateway.
type OrderCreator interface {
	CreateOrder(ctx context.Context, amountPaise int64, currency string, receipt string) (gateway.Order, error)
}

// AssetLister fetches gallery assets from the media collaborator.
type AssetLister interface {
	ListAssets(ctx context.Context, folder string) ([]media.Asset, error)
}

// Dependencies carries the wired services the handlers dispatch to.
type Dependencies struct {
	Accounts  directory.AccountStore
	Resolver  *directory.Resolver
	Profiles  *directory.Profiles
	Ledger    *payments.Service
	Verifier  *payments.Verifier
	Orders    OrderCreator
	Community *gormstore.Store
	Hub       *notify.Hub
	Mailer    mailer.Sender
	Media     AssetLister
}

func (deps Dependencies) validate() error {
	if deps.Accounts == nil || deps.Resolver == nil || deps.Profiles == nil {
		return errors.New("directory dependencies are required")
	}
	if deps.Ledger == nil || deps.Verifier == nil || deps.Orders == nil {
		return errors.New("payment dependencies are required")
	}
	if deps.Community == nil || deps.Hub == nil || deps.Mailer == nil || deps.Media == nil {
		return errors.New("collaborator dependencies are required")
	}
	return nil
}

// Run boots the HTTP server and blocks until the context ends.
func Run(ctx context.Context, cfg Config, logger *zap.Logger, deps Dependencies) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	handler, err := newHandler(cfg, logger, deps)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: setupRouter(cfg, handler),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("httpapi listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type httpHandler struct {
	logger *zap.Logger
	cfg    Config
	deps   Dependencies
	nowFn  func() time.Time
}

func newHandler(cfg Config, logger *zap.Logger, deps Dependencies) (*httpHandler, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &httpHandler{
		logger: logger,
		cfg:    cfg,
		deps:   deps,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func setupRouter(cfg Config, handler *httpHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws/:accountID", handler.handleWebsocket)

	api := router.Group("/api")
	api.POST("/auth/otp", handler.handleRequestOTP)
	api.POST("/auth/verify", handler.handleVerifyOTP)

	api.GET("/profile/:id", handler.handleGetPublicProfile)
	api.GET("/gallery/:folder", handler.handleGallery)
	api.GET("/visits", handler.handleVisits)
	api.GET("/events", handler.handleListEvents)
	api.GET("/jobs", handler.handleListJobs)

	// Donations accept anonymous traffic; a bearer token, when present,
	// binds the entry to the caller's account.
	api.POST("/donations/order", handler.optionalAuth(), handler.handleDonationOrder)
	api.POST("/donations/verify", handler.handleDonationVerify)
	api.POST("/donations/direct", handler.optionalAuth(), handler.handleDonationDirect)

	authed := api.Group("")
	authed.Use(handler.requireAuth())
	authed.GET("/profile", handler.handleGetOwnProfile)
	authed.PATCH("/profile", handler.handlePatchProfile)
	authed.GET("/donations/total", handler.handleDonationTotal)
	authed.POST("/events", handler.handleCreateEvent)
	authed.POST("/events/:id/register", handler.handleRegisterForEvent)
	authed.POST("/jobs", handler.handleCreateJob)
	authed.DELETE("/jobs/:id", handler.handleDeleteJob)

	return router
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// respondDomainError maps service sentinels onto the HTTP surface: 4xx for
// identity and input problems, 502 when a collaborator misbehaves.
func (handler *httpHandler) respondDomainError(ctx *gin.Context, err error) {
	var validationErr *directory.ValidationError
	switch {
	case errors.As(err, &validationErr):
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "invalid_profile",
				"message": validationErr.Error(),
				"fields":  validationErr.Fields,
			},
		})
	case errors.Is(err, directory.ErrAccountNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("account_not_found", "no such account"))
	case errors.Is(err, directory.ErrDuplicateEmail):
		ctx.JSON(http.StatusConflict, errorResponse("duplicate_email", "email already registered"))
	case errors.Is(err, directory.ErrAmbiguousVariant):
		ctx.JSON(http.StatusBadRequest, errorResponse("ambiguous_profile", "member and staff fields in one patch"))
	case errors.Is(err, payments.ErrOrderNotFound), errors.Is(err, payments.ErrPaymentNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("entry_not_found", "no such payment entry"))
	case errors.Is(err, payments.ErrDuplicateOrder), errors.Is(err, payments.ErrDuplicatePayment):
		ctx.JSON(http.StatusConflict, errorResponse("duplicate_entry", "reference already recorded"))
	case errors.Is(err, gormstore.ErrEventNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("event_not_found", "no such event"))
	case errors.Is(err, gormstore.ErrJobNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("job_not_found", "no such job posting"))
	case errors.Is(err, gormstore.ErrDuplicateRegistration):
		ctx.JSON(http.StatusConflict, errorResponse("already_registered", "account already registered for event"))
	case errors.Is(err, payments.ErrGatewayUnavailable):
		ctx.JSON(http.StatusBadGateway, errorResponse("gateway_error", "payment gateway unavailable"))
	case errors.Is(err, media.ErrUnavailable):
		ctx.JSON(http.StatusBadGateway, errorResponse("media_error", "media service unavailable"))
	case isPaymentInputError(err):
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payment_input", err.Error()))
	default:
		handler.logger.Error("unhandled domain error", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "internal error"))
	}
}

func isPaymentInputError(err error) bool {
	return errors.Is(err, payments.ErrInvalidOrderRef) ||
		errors.Is(err, payments.ErrInvalidPaymentRef) ||
		errors.Is(err, payments.ErrInvalidAmountPaise) ||
		errors.Is(err, payments.ErrInvalidCurrency) ||
		errors.Is(err, payments.ErrInvalidAccountRef) ||
		errors.Is(err, payments.ErrInvalidEntryStatus)
}
