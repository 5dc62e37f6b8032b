package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AlumNetLabs/alumnet/internal/store/gormstore"
)

type createJobRequest struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	ApplyURL    string `json:"apply_url"`
}

type jobPayload struct {
	JobID       string `json:"job_id"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	ApplyURL    string `json:"apply_url"`
	PostedBy    string `json:"posted_by"`
	CreatedAt   int64  `json:"created_at_unix"`
}

func renderJob(job gormstore.JobPosting) jobPayload {
	return jobPayload{
		JobID:       job.JobID,
		Title:       job.Title,
		Company:     job.Company,
		Location:    job.Location,
		Description: job.Description,
		ApplyURL:    job.ApplyURL,
		PostedBy:    job.PostedBy,
		CreatedAt:   job.CreatedAt.Unix(),
	}
}

func (handler *httpHandler) handleListJobs(ctx *gin.Context) {
	jobs, err := handler.deps.Community.ListJobs(ctx.Request.Context())
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	payloads := make([]jobPayload, 0, len(jobs))
	for _, job := range jobs {
		payloads = append(payloads, renderJob(job))
	}
	ctx.JSON(http.StatusOK, gin.H{"jobs": payloads})
}

func (handler *httpHandler) handleCreateJob(ctx *gin.Context) {
	var request createJobRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if request.Title == "" || request.Company == "" {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_job", "title and company are required"))
		return
	}
	job, err := handler.deps.Community.CreateJob(ctx.Request.Context(), gormstore.JobPosting{
		Title:       request.Title,
		Company:     request.Company,
		Location:    request.Location,
		Description: request.Description,
		ApplyURL:    request.ApplyURL,
		PostedBy:    authedAccountID(ctx),
	})
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"job": renderJob(job)})
}

// handleDeleteJob removes a posting; only its author may do so.
func (handler *httpHandler) handleDeleteJob(ctx *gin.Context) {
	job, err := handler.deps.Community.GetJob(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	if job.PostedBy != authedAccountID(ctx) {
		ctx.JSON(http.StatusForbidden, errorResponse("forbidden", "only the author can delete a posting"))
		return
	}
	if err := handler.deps.Community.DeleteJob(ctx.Request.Context(), job.JobID); err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
