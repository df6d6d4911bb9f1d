package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tripmart/marketplace-backend/internal/middleware"
	"github.com/tripmart/marketplace-backend/internal/services"
)

// JobRunner exposes the scheduled maintenance jobs
type JobRunner interface {
	GetJobStatus() map[string]interface{}
	RunNow(name string) (services.JobRun, error)
}

// AdminHandler handles admin-only maintenance endpoints
type AdminHandler struct {
	jobs JobRunner
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(jobs JobRunner) *AdminHandler {
	return &AdminHandler{jobs: jobs}
}

// GetCronStatus handles GET /api/v1/admin/cron/status
func (h *AdminHandler) GetCronStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobs.GetJobStatus())
}

// RunCronJob handles POST /api/v1/admin/cron/:job/run
func (h *AdminHandler) RunCronJob(c *gin.Context) {
	name := c.Param("job")

	run, err := h.jobs.RunNow(name)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown_job", Message: err.Error()})
		return
	}

	logrus.WithFields(logrus.Fields{
		"job":      name,
		"admin_id": middleware.MustGetUserContext(c).UserID.String(),
		"affected": run.Affected,
	}).Info("Cron job triggered manually")

	status := http.StatusOK
	if run.Error != "" {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"job": name, "run": run})
}
