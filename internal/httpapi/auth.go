package httpapi

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/AlumNetLabs/alumnet/pkg/directory"
)

const (
	contextKeyAccountID = "auth_account_id"
	contextKeyVariant   = "auth_variant"
	bearerPrefix        = "Bearer "
)

type sessionClaims struct {
	Variant string `json:"variant"`
	jwt.RegisteredClaims
}

type otpRequest struct {
	Email string `json:"email"`
}

type otpVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// handleRequestOTP issues a one-time sign-in code. Unknown emails get an
// unverified member account so first sign-in doubles as registration.
func (handler *httpHandler) handleRequestOTP(ctx *gin.Context) {
	var request otpRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body with email"))
		return
	}
	email := directory.NormalizeEmail(request.Email)
	if email == "" || !strings.Contains(email, "@") {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_email", "a valid email is required"))
		return
	}

	descriptor, err := handler.deps.Resolver.ResolveEmail(ctx.Request.Context(), email)
	if errors.Is(err, directory.ErrAccountNotFound) {
		created, createErr := handler.deps.Accounts.CreateMember(ctx.Request.Context(), directory.Account{Email: email})
		if createErr != nil {
			handler.respondDomainError(ctx, createErr)
			return
		}
		descriptor = directory.Descriptor{Variant: directory.VariantMember, Account: created}
	} else if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}

	code, err := generateOTP()
	if err != nil {
		handler.logger.Error("otp generation failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "could not issue code"))
		return
	}
	expiresAt := handler.nowFn().Add(handler.cfg.OTPTTL)

	account := descriptor.Account
	account.OTPCode = code
	account.OTPExpiresUnixUTC = expiresAt.Unix()
	if err := handler.saveAccount(ctx, descriptor.Variant, account); err != nil {
		handler.respondDomainError(ctx, err)
		return
	}

	if err := handler.deps.Mailer.SendOTP(ctx.Request.Context(), email, code, expiresAt); err != nil {
		// The stored code stays valid; the caller may retry delivery.
		handler.logger.Error("otp delivery failed", zap.String("email", email), zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("mail_error", "could not deliver code"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// handleVerifyOTP exchanges a valid code for a signed session token.
func (handler *httpHandler) handleVerifyOTP(ctx *gin.Context) {
	var request otpVerifyRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body with email and code"))
		return
	}
	email := directory.NormalizeEmail(request.Email)

	descriptor, err := handler.deps.Resolver.ResolveEmail(ctx.Request.Context(), email)
	if errors.Is(err, directory.ErrAccountNotFound) {
		ctx.JSON(http.StatusUnauthorized, errorResponse("invalid_code", "code rejected"))
		return
	}
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}

	account := descriptor.Account
	now := handler.nowFn()
	if account.OTPCode == "" || request.Code == "" || account.OTPCode != request.Code {
		ctx.JSON(http.StatusUnauthorized, errorResponse("invalid_code", "code rejected"))
		return
	}
	if now.Unix() >= account.OTPExpiresUnixUTC {
		ctx.JSON(http.StatusUnauthorized, errorResponse("expired_code", "code expired"))
		return
	}

	account.Verified = true
	account.OTPCode = ""
	account.OTPExpiresUnixUTC = 0
	if err := handler.saveAccount(ctx, descriptor.Variant, account); err != nil {
		handler.respondDomainError(ctx, err)
		return
	}

	token, err := handler.issueToken(account.AccountID, descriptor.Variant, now)
	if err != nil {
		handler.logger.Error("token signing failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "could not issue token"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"token":      token,
		"account_id": account.AccountID,
		"variant":    string(descriptor.Variant),
	})
}

func (handler *httpHandler) saveAccount(ctx *gin.Context, variant directory.Variant, account directory.Account) error {
	if variant == directory.VariantStaff {
		return handler.deps.Accounts.SaveStaff(ctx.Request.Context(), account)
	}
	return handler.deps.Accounts.SaveMember(ctx.Request.Context(), account)
}

func (handler *httpHandler) issueToken(accountID string, variant directory.Variant, now time.Time) (string, error) {
	claims := sessionClaims{
		Variant: string(variant),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    handler.cfg.TokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(handler.cfg.TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(handler.cfg.TokenSigningKey))
}

func (handler *httpHandler) parseToken(raw string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return []byte(handler.cfg.TokenSigningKey), nil
	}, jwt.WithIssuer(handler.cfg.TokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// requireAuth rejects requests without a valid bearer token.
func (handler *httpHandler) requireAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, ok := handler.bearerClaims(ctx)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing or invalid token"))
			return
		}
		ctx.Set(contextKeyAccountID, claims.Subject)
		ctx.Set(contextKeyVariant, claims.Variant)
		ctx.Next()
	}
}

// optionalAuth attaches claims when a valid token is present and lets
// anonymous traffic through. Client-supplied account ids are ignored
// whenever a token identifies the caller.
func (handler *httpHandler) optionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if claims, ok := handler.bearerClaims(ctx); ok {
			ctx.Set(contextKeyAccountID, claims.Subject)
			ctx.Set(contextKeyVariant, claims.Variant)
		}
		ctx.Next()
	}
}

func (handler *httpHandler) bearerClaims(ctx *gin.Context) (*sessionClaims, bool) {
	header := ctx.GetHeader("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, false
	}
	claims, err := handler.parseToken(strings.TrimPrefix(header, bearerPrefix))
	if err != nil {
		return nil, false
	}
	return claims, true
}

func authedAccountID(ctx *gin.Context) string {
	return ctx.GetString(contextKeyAccountID)
}

func authedVariant(ctx *gin.Context) directory.Variant {
	return directory.Variant(ctx.GetString(contextKeyVariant))
}

func generateOTP() (string, error) {
	limit := big.NewInt(1)
	for index := 0; index < otpLength; index++ {
		limit.Mul(limit, big.NewInt(10))
	}
	value, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpLength, value), nil
}
