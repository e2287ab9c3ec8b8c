package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"
	"github.com/tarwick/vget/internal/app"
	"github.com/tarwick/vget/internal/domain"
)

type JobsController struct {
	App *app.Context
}

// HandleCreate enqueues a new download job.
func (ctrl *JobsController) HandleCreate(c *echo.Context) error {
	var req CreateJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if req.URL == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "url is required"})
	}

	job, err := ctrl.App.Queue.Add(req.URL, req.Name, req.Sequential)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusCreated, jobResponse(job))
}

// HandleList returns the live queue plus stored history.
func (ctrl *JobsController) HandleList(c *echo.Context) error {
	seen := make(map[string]bool)
	resp := make([]JobResponse, 0)

	for _, job := range ctrl.App.Queue.GetAllItems() {
		resp = append(resp, jobResponse(job))
		seen[job.ID] = true
	}

	stored, err := ctrl.App.Store.GetJobs()
	if err != nil {
		ctrl.App.Logger.Error("failed to list stored jobs: %v", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list jobs"})
	}
	for _, job := range stored {
		if !seen[job.ID] {
			resp = append(resp, jobResponse(job))
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// HandleGet returns a single job by ID.
func (ctrl *JobsController) HandleGet(c *echo.Context) error {
	id := c.Param("id")

	job, ok := ctrl.App.Queue.GetItem(id)
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "job not found"})
	}

	return c.JSON(http.StatusOK, jobResponse(job))
}

// HandleCancel stops a pending or running job.
func (ctrl *JobsController) HandleCancel(c *echo.Context) error {
	id := c.Param("id")

	if !ctrl.App.Queue.Cancel(id) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "no cancellable job with that id"})
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleSize probes the content size without downloading anything.
func (ctrl *JobsController) HandleSize(c *echo.Context) error {
	rawurl := c.QueryParam("url")
	if rawurl == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "url query parameter is required"})
	}
	sequential, _ := strconv.ParseBool(c.QueryParam("sequential"))

	var (
		size int64
		err  error
	)
	if sequential {
		size, err = ctrl.App.Client.SeqFilesize(c.Request().Context(), rawurl)
	} else {
		size, err = ctrl.App.Client.Filesize(c.Request().Context(), rawurl)
	}
	if err != nil {
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, SizeResponse{URL: rawurl, Sequential: sequential, Size: size})
}

func jobResponse(job *domain.FetchJob) JobResponse {
	return JobResponse{
		ID:           job.ID,
		Name:         job.Name,
		URL:          job.URL,
		Status:       string(job.Status),
		Sequential:   job.Sequential,
		TotalBytes:   job.TotalBytes,
		BytesWritten: job.BytesWritten.Load(),
		StartedAt:    job.StartedAt,
		Error:        job.Error,
	}
}
