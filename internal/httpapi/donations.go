package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AlumNetLabs/alumnet/internal/notify"
	"github.com/AlumNetLabs/alumnet/internal/store/gormstore"
	"github.com/AlumNetLabs/alumnet/pkg/payments"
)

const donationChannelKind = "donation"

type payerPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (payload payerPayload) snapshot() payments.PayerSnapshot {
	return payments.PayerSnapshot{
		Name:    payload.Name,
		Email:   payload.Email,
		Phone:   payload.Phone,
		Message: payload.Message,
	}
}

type donationOrderRequest struct {
	AmountRupees int64        `json:"amount"`
	Currency     string       `json:"currency"`
	Payer        payerPayload `json:"payer"`
}

type donationVerifyRequest struct {
	OrderRef   string `json:"order_ref"`
	PaymentRef string `json:"payment_ref"`
	Signature  string `json:"signature"`
}

type donationDirectRequest struct {
	PaymentRef   string       `json:"payment_ref"`
	AmountRupees int64        `json:"amount"`
	Payer        payerPayload `json:"payer"`
}

type donationNotice struct {
	Kind        string `json:"kind"`
	AccountID   string `json:"account_id,omitempty"`
	PayerName   string `json:"payer_name,omitempty"`
	AmountPaise int64  `json:"amount_paise"`
	OrderRef    string `json:"order_ref,omitempty"`
	PaymentRef  string `json:"payment_ref,omitempty"`
}

// handleDonationOrder opens an order at the gateway and records the pending
// ledger entry under the gateway's order reference. Rupee amounts convert to
// paise here and nowhere else.
func (handler *httpHandler) handleDonationOrder(ctx *gin.Context) {
	var request donationOrderRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if request.AmountRupees <= 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_amount", "amount must be a positive rupee value"))
		return
	}
	amountPaise := request.AmountRupees * paisePerRupee
	currency := defaultIfEmpty(request.Currency, defaultCurrency)

	order, err := handler.deps.Orders.CreateOrder(ctx.Request.Context(), amountPaise, currency, "donation_"+uuid.NewString())
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}

	entry, err := handler.recordPending(ctx, order.OrderRef, amountPaise, currency, request.Payer, authedAccountID(ctx))
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"order": gin.H{
			"order_ref":    order.OrderRef,
			"amount_paise": entry.AmountPaise.Int64(),
			"currency":     entry.Currency,
		},
	})
}

// handleDonationVerify settles a gateway callback. A valid signature lands
// success, an invalid one failed; a gateway outage leaves the entry pending
// and surfaces 502.
func (handler *httpHandler) handleDonationVerify(ctx *gin.Context) {
	var request donationVerifyRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	orderRef, err := payments.NewOrderRef(request.OrderRef)
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	paymentRef, err := payments.NewPaymentRef(request.PaymentRef)
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}

	entry, err := handler.deps.Verifier.Verify(ctx.Request.Context(), orderRef, paymentRef, request.Signature)
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}

	if entry.Status == payments.EntryStatusSuccess {
		handler.completeRegistration(ctx, entry.OrderRef)
		handler.publishDonation(entry)
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status":      entry.Status.String(),
		"order_ref":   entry.OrderRef,
		"payment_ref": entry.PaymentRef,
	})
}

// handleDonationDirect records an already-captured payment, anonymous
// donors included. Replays of the same payment reference return the
// original entry.
func (handler *httpHandler) handleDonationDirect(ctx *gin.Context) {
	var request donationDirectRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if request.AmountRupees <= 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_amount", "amount must be a positive rupee value"))
		return
	}
	paymentRef, err := payments.NewPaymentRef(request.PaymentRef)
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	amount, err := payments.NewAmountPaise(request.AmountRupees * paisePerRupee)
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}

	accountRef, err := optionalAccountRef(authedAccountID(ctx))
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	entry, err := handler.deps.Ledger.RecordDirect(ctx.Request.Context(), paymentRef, amount, request.Payer.snapshot(), accountRef)
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	handler.publishDonation(entry)
	ctx.JSON(http.StatusOK, gin.H{
		"entry": gin.H{
			"payment_ref":  entry.PaymentRef,
			"amount_paise": entry.AmountPaise.Int64(),
			"status":       entry.Status.String(),
		},
	})
}

func (handler *httpHandler) handleDonationTotal(ctx *gin.Context) {
	accountRef, err := payments.NewAccountRef(authedAccountID(ctx))
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	totalPaise, err := handler.deps.Ledger.TotalForAccount(ctx.Request.Context(), accountRef)
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"total_paise":  totalPaise,
		"total_rupees": totalPaise / paisePerRupee,
	})
}

func (handler *httpHandler) recordPending(ctx *gin.Context, rawOrderRef string, amountPaise int64, currency string, payer payerPayload, accountID string) (payments.Entry, error) {
	orderRef, err := payments.NewOrderRef(rawOrderRef)
	if err != nil {
		return payments.Entry{}, err
	}
	amount, err := payments.NewAmountPaise(amountPaise)
	if err != nil {
		return payments.Entry{}, err
	}
	currencyCode, err := payments.NewCurrencyCode(currency)
	if err != nil {
		return payments.Entry{}, err
	}
	accountRef, err := optionalAccountRef(accountID)
	if err != nil {
		return payments.Entry{}, err
	}
	return handler.deps.Ledger.CreatePending(ctx.Request.Context(), orderRef, amount, currencyCode, payer.snapshot(), accountRef)
}

// completeRegistration confirms the event registration hanging on a settled
// order, if one exists.
func (handler *httpHandler) completeRegistration(ctx *gin.Context, orderRef string) {
	_, err := handler.deps.Community.ConfirmRegistrationByOrderRef(ctx.Request.Context(), orderRef)
	if err != nil && !errors.Is(err, gormstore.ErrRegistrationNotFound) {
		handler.logger.Error("registration confirmation failed",
			zap.String("order_ref", orderRef),
			zap.Error(err))
	}
}

// publishDonation is best effort; the donation is already durable.
func (handler *httpHandler) publishDonation(entry payments.Entry) {
	notice := donationNotice{
		Kind:        donationChannelKind,
		AccountID:   entry.AccountID,
		PayerName:   entry.Payer.Name,
		AmountPaise: entry.AmountPaise.Int64(),
		OrderRef:    entry.OrderRef,
		PaymentRef:  entry.PaymentRef,
	}
	if entry.AccountID != "" {
		handler.deps.Hub.Publish(notify.ChannelKey(donationChannelKind, entry.AccountID), notice)
		return
	}
	handler.deps.Hub.Publish(notify.WildcardChannel, notice)
}

func optionalAccountRef(accountID string) (*payments.AccountRef, error) {
	if accountID == "" {
		return nil, nil
	}
	ref, err := payments.NewAccountRef(accountID)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
