package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AlumNetLabs/alumnet/internal/notify"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		// Browser clients carry no credentials on this endpoint; the
		// account id in the path only selects a notification channel.
		return true
	},
}

func (handler *httpHandler) handleGallery(ctx *gin.Context) {
	assets, err := handler.deps.Media.ListAssets(ctx.Request.Context(), ctx.Param("folder"))
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"assets": assets})
}

func (handler *httpHandler) handleVisits(ctx *gin.Context) {
	count, err := handler.deps.Community.IncrementVisits(ctx.Request.Context(), defaultSiteCounter)
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"visits": count})
}

// handleWebsocket subscribes the connection to one account's donation
// channel; the literal "*" path segment selects the site-wide feed.
func (handler *httpHandler) handleWebsocket(ctx *gin.Context) {
	accountID := ctx.Param("accountID")
	channelKey := notify.WildcardChannel
	if accountID != notify.WildcardChannel {
		channelKey = notify.ChannelKey(donationChannelKind, accountID)
	}

	conn, err := wsUpgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		handler.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	subscription := handler.deps.Hub.Subscribe(channelKey)
	go notify.Relay(handler.deps.Hub, subscription, conn, handler.logger)
}
