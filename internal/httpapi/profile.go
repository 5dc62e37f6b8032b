package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AlumNetLabs/alumnet/pkg/directory"
)

type profilePayload struct {
	AccountID    string            `json:"account_id"`
	Variant      string            `json:"variant"`
	Email        string            `json:"email"`
	Verified     bool              `json:"verified"`
	DisplayName  string            `json:"display_name"`
	Phone        string            `json:"phone"`
	Achievements string            `json:"achievements"`
	MediaURLs    []string          `json:"media_urls"`
	Links        map[string]string `json:"links"`
	ClassYear    int               `json:"class_year,omitempty"`
	Degree       string            `json:"degree,omitempty"`
	Department   string            `json:"department,omitempty"`
	Designation  string            `json:"designation,omitempty"`
}

func renderProfile(descriptor directory.Descriptor) profilePayload {
	account := descriptor.Account
	return profilePayload{
		AccountID:    account.AccountID,
		Variant:      string(descriptor.Variant),
		Email:        account.Email,
		Verified:     account.Verified,
		DisplayName:  account.DisplayName,
		Phone:        account.Phone,
		Achievements: account.Achievements,
		MediaURLs:    account.MediaURLs,
		Links:        account.Links,
		ClassYear:    account.ClassYear,
		Degree:       account.Degree,
		Department:   account.Department,
		Designation:  account.Designation,
	}
}

func (handler *httpHandler) handleGetOwnProfile(ctx *gin.Context) {
	descriptor, err := handler.deps.Profiles.GetOwn(ctx.Request.Context(), authedAccountID(ctx))
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"profile": renderProfile(descriptor)})
}

func (handler *httpHandler) handleGetPublicProfile(ctx *gin.Context) {
	descriptor, err := handler.deps.Profiles.GetPublic(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"profile": renderProfile(descriptor)})
}

func (handler *httpHandler) handlePatchProfile(ctx *gin.Context) {
	var patch directory.ProfilePatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON patch body"))
		return
	}
	descriptor, err := handler.deps.Profiles.UpdateOwn(ctx.Request.Context(), authedAccountID(ctx), patch)
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"profile": renderProfile(descriptor)})
}
