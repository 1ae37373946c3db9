package handlers

import (
	"net/http"
	"time"

	"vidgrab/services"
	"vidgrab/types"

	"github.com/gin-gonic/gin"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store       services.JobStore
	downloadDir string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store services.JobStore, downloadDir string) *HealthHandler {
	return &HealthHandler{store: store, downloadDir: downloadDir}
}

// HealthCheck returns the health status of the service
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "vidgrab",
		"version":   Version,
		"timestamp": time.Now().Unix(),
	})
}

// APIStatus summarises tracked jobs by status
func (h *HealthHandler) APIStatus(c *gin.Context) {
	counts := map[types.JobStatus]int{
		types.JobStatusPending:    0,
		types.JobStatusInProgress: 0,
		types.JobStatusCompleted:  0,
		types.JobStatusFailed:     0,
	}
	jobs := h.store.List()
	for _, job := range jobs {
		counts[job.Status]++
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "vidgrab API is running",
		"download_dir": h.downloadDir,
		"jobs":         counts,
		"total":        len(jobs),
	})
}
