package handlers

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidgrab/services"
	"vidgrab/types"
	"vidgrab/websocket"

	"github.com/gin-gonic/gin"
)

// JobSubmitter starts background downloads
type JobSubmitter interface {
	Submit(sourceURL string) types.Job
}

// CleanupArmer schedules deletion of a fetched artifact
type CleanupArmer interface {
	Schedule(jobID, path string) bool
}

// VideoHandler handles the video download endpoints
type VideoHandler struct {
	store       services.JobStore
	submitter   JobSubmitter
	cleanup     CleanupArmer
	hub         websocket.Hub
	downloadDir string
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(store services.JobStore, submitter JobSubmitter, cleanup CleanupArmer, hub websocket.Hub, downloadDir string) *VideoHandler {
	return &VideoHandler{
		store:       store,
		submitter:   submitter,
		cleanup:     cleanup,
		hub:         hub,
		downloadDir: downloadDir,
	}
}

// RequestDownload accepts a URL and starts downloading it in the background
func (h *VideoHandler) RequestDownload(c *gin.Context) {
	var req types.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return
	}

	url := strings.TrimSpace(req.URL)
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "url is required",
		})
		return
	}

	job := h.submitter.Submit(url)
	c.JSON(http.StatusAccepted, types.DownloadResponse{
		VideoID: job.ID,
		Status:  job.Status,
		Message: fmt.Sprintf("Download started. Poll /video/%s for status.", job.ID),
	})
}

// GetStatus reports the state of a job
func (h *VideoHandler) GetStatus(c *gin.Context) {
	id := c.Param("id")
	job, exists := h.store.Get(id)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "video not found",
		})
		return
	}

	resp := types.StatusResponse{Status: job.Status}
	switch job.Status {
	case types.JobStatusCompleted:
		resp.VideoID = job.ID
		resp.Title = job.Title
	case types.JobStatusFailed:
		resp.Error = job.Error
	}

	c.JSON(http.StatusOK, resp)
}

// DownloadFile streams a finished artifact and arms its cleanup
func (h *VideoHandler) DownloadFile(c *gin.Context) {
	id := c.Param("id")
	job, exists := h.store.Get(id)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "video not found",
		})
		return
	}

	if job.Status != types.JobStatusCompleted || job.ArtifactPath == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "video is not ready for download",
			"status": job.Status,
		})
		return
	}

	if err := services.ValidateArtifactPath(h.downloadDir, job.ArtifactPath); err != nil {
		log.Printf("Refusing to serve artifact for job %s: %v", id, err)
		c.JSON(http.StatusForbidden, gin.H{
			"error": "path security violation",
		})
		return
	}

	info, err := os.Stat(job.ArtifactPath)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "video file not found",
		})
		return
	}

	c.Header("Content-Type", services.GetContentType(job.ArtifactPath))
	c.FileAttachment(job.ArtifactPath, filepath.Base(job.ArtifactPath))

	// Only a served artifact (200 or 206) starts the deletion countdown
	if status := c.Writer.Status(); status == http.StatusOK || status == http.StatusPartialContent {
		h.cleanup.Schedule(job.ID, job.ArtifactPath)
	}
}

// HandleWebSocketConnection streams progress for one job
func (h *VideoHandler) HandleWebSocketConnection(c *gin.Context) {
	id := c.Param("id")
	job, exists := h.store.Get(id)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}

	client := h.serveWebSocket(c, id)
	if client == nil {
		return
	}

	// Snapshot so late subscribers learn the current state
	h.hub.SendTo(client, types.ProgressMessage{
		JobID:     id,
		Type:      "status",
		Progress:  snapshotProgress(job),
		Status:    string(job.Status),
		Message:   job.Error,
		Timestamp: time.Now(),
	})
}

// HandleWebSocketAllConnection streams progress for every job
func (h *VideoHandler) HandleWebSocketAllConnection(c *gin.Context) {
	h.serveWebSocket(c, websocket.AllJobs)
}

func (h *VideoHandler) serveWebSocket(c *gin.Context, key string) *websocket.Client {
	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return nil
	}

	client := websocket.NewClient(h.hub, conn, key)
	h.hub.RegisterClient(client)
	client.StartPumps()
	return client
}

func snapshotProgress(job types.Job) float64 {
	if job.Status == types.JobStatusCompleted {
		return 100
	}
	return 0
}
