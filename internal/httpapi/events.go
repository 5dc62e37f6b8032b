package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AlumNetLabs/alumnet/internal/store/gormstore"
	"github.com/AlumNetLabs/alumnet/pkg/directory"
)

type createEventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Venue       string `json:"venue"`
	StartsAt    int64  `json:"starts_at_unix"`
	FeeRupees   int64  `json:"fee"`
}

type eventPayload struct {
	EventID     string `json:"event_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Venue       string `json:"venue"`
	StartsAt    int64  `json:"starts_at_unix"`
	FeePaise    int64  `json:"fee_paise"`
}

func renderEvent(event gormstore.Event) eventPayload {
	return eventPayload{
		EventID:     event.EventID,
		Title:       event.Title,
		Description: event.Description,
		Venue:       event.Venue,
		StartsAt:    event.StartsAt.Unix(),
		FeePaise:    event.FeePaise,
	}
}

func (handler *httpHandler) handleListEvents(ctx *gin.Context) {
	events, err := handler.deps.Community.ListEvents(ctx.Request.Context())
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	payloads := make([]eventPayload, 0, len(events))
	for _, event := range events {
		payloads = append(payloads, renderEvent(event))
	}
	ctx.JSON(http.StatusOK, gin.H{"events": payloads})
}

// handleCreateEvent is staff only.
func (handler *httpHandler) handleCreateEvent(ctx *gin.Context) {
	if authedVariant(ctx) != directory.VariantStaff {
		ctx.JSON(http.StatusForbidden, errorResponse("forbidden", "only staff can create events"))
		return
	}
	var request createEventRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if request.Title == "" || request.StartsAt <= 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_event", "title and start time are required"))
		return
	}
	if request.FeeRupees < 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_fee", "fee must not be negative"))
		return
	}

	event, err := handler.deps.Community.CreateEvent(ctx.Request.Context(), gormstore.Event{
		Title:       request.Title,
		Description: request.Description,
		Venue:       request.Venue,
		StartsAt:    time.Unix(request.StartsAt, 0).UTC(),
		FeePaise:    request.FeeRupees * paisePerRupee,
		CreatedBy:   authedAccountID(ctx),
	})
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"event": renderEvent(event)})
}

// handleRegisterForEvent opens a pending payment order for the event fee
// and records a pending registration against it. Free events confirm
// immediately without touching the gateway.
func (handler *httpHandler) handleRegisterForEvent(ctx *gin.Context) {
	accountID := authedAccountID(ctx)
	event, err := handler.deps.Community.GetEvent(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}

	if event.FeePaise == 0 {
		registration, err := handler.deps.Community.CreateRegistration(ctx.Request.Context(), gormstore.EventRegistration{
			EventID:   event.EventID,
			AccountID: accountID,
			OrderRef:  "free_" + event.EventID + "_" + accountID,
			Status:    gormstore.RegistrationStatusConfirmed,
		})
		if err != nil {
			handler.respondDomainError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"registration": gin.H{
			"registration_id": registration.RegistrationID,
			"status":          registration.Status,
		}})
		return
	}

	order, err := handler.deps.Orders.CreateOrder(ctx.Request.Context(), event.FeePaise, defaultCurrency, "event_"+event.EventID+"_"+accountID)
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	entry, err := handler.recordPending(ctx, order.OrderRef, event.FeePaise, defaultCurrency, payerPayload{}, accountID)
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	registration, err := handler.deps.Community.CreateRegistration(ctx.Request.Context(), gormstore.EventRegistration{
		EventID:   event.EventID,
		AccountID: accountID,
		OrderRef:  entry.OrderRef,
	})
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"registration": gin.H{
			"registration_id": registration.RegistrationID,
			"status":          registration.Status,
		},
		"order": gin.H{
			"order_ref":    entry.OrderRef,
			"amount_paise": entry.AmountPaise.Int64(),
			"currency":     entry.Currency,
		},
	})
}
