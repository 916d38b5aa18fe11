package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rentals/backend/internal/infrastructure/scheduler"
	"github.com/rentals/backend/internal/interfaces/http/dto"
	"github.com/rentals/backend/internal/interfaces/http/middleware"
)

// JobRunner triggers and lists background sweeps
type JobRunner interface {
	Trigger(ctx context.Context, name string) (*scheduler.RunResult, error)
	Jobs() []scheduler.JobState
}

// JobHandler lets operators run the ledger sweeps on demand
type JobHandler struct {
	BaseHandler
	jobs JobRunner
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(jobs JobRunner) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// List godoc
// @ID           listJobs
// @Summary      List background jobs
// @Description  Returns every registered job and its last run
// @Tags         jobs
// @Produce      json
// @Success      200 {object} APIResponse[[]scheduler.JobState]
// @Failure      500 {object} ErrorResponse
// @Router       /jobs [get]
func (h *JobHandler) List(c *gin.Context) {
	h.Success(c, h.jobs.Jobs())
}

// Run godoc
// @ID           runJob
// @Summary      Run a background job
// @Description  Triggers the job named in the path and waits for it
// @Tags         jobs
// @Produce      json
// @Param        name path string true "Job name" Enums(late-fees, auto-refunds, overdue)
// @Success      200 {object} APIResponse[dto.JobRunResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /jobs/{name}/run [post]
func (h *JobHandler) Run(c *gin.Context) {
	name := c.Param("name")
	result, err := h.jobs.Trigger(c.Request.Context(), name)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		h.Error(c, http.StatusNotFound, dto.ErrCodeJobNotFound, "Unknown job: "+name)
		return
	case errors.Is(err, scheduler.ErrJobAlreadyRunning):
		h.Error(c, http.StatusConflict, dto.ErrCodeJobAlreadyRunning, "Job "+name+" is already running")
		return
	case err != nil && result == nil:
		h.HandleError(c, err)
		return
	}

	resp := dto.JobRunResponse{
		Job:        result.Job,
		Processed:  result.Processed,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Duration:   result.Duration.String(),
		Error:      result.Error,
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.Response{
			Success: false,
			Data:    resp,
			Error: &dto.ErrorInfo{
				Code:      dto.ErrCodeJobFailed,
				Message:   result.Error,
				RequestID: middleware.GetRequestID(c),
			},
		})
		return
	}
	h.Success(c, resp)
}
