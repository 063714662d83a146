package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"mp3fetch/internal/acquire"
	"mp3fetch/internal/task"
)

// maxInfoEntries bounds the member list returned by the info endpoint.
const maxInfoEntries = 50

type urlRequest struct {
	URL string `json:"url" binding:"required"`
}

type infoResponse struct {
	Title        string          `json:"title"`
	Uploader     string          `json:"uploader,omitempty"`
	Duration     int             `json:"duration,omitempty"`
	IsCollection bool            `json:"is_collection"`
	EntriesTotal int             `json:"entries_total,omitempty"`
	Entries      []acquire.Entry `json:"entries,omitempty"`
}

type API struct {
	taskManager  *task.Manager
	pollInterval time.Duration
	upgrader     websocket.Upgrader
}

func NewAPI(taskManager *task.Manager, pollInterval time.Duration) *API {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &API{
		taskManager:  taskManager,
		pollInterval: pollInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// RegisterRoutes registers API routes on the provided gin engine
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", a.Health)
	api := router.Group("/api/v1")
	{
		api.POST("/info", a.Info)
		api.POST("/tasks", a.CreateTask)
		api.GET("/tasks/:id", a.GetTask)
		api.GET("/tasks/:id/file", a.DownloadFile)
		api.GET("/tasks/:id/ws", a.StreamTask)
	}
}

func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"busy":      a.taskManager.IsBusy(),
	})
}

// Info probes a source reference without creating a task
func (a *API) Info(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	md, err := a.taskManager.Probe(c.Request.Context(), req.URL)
	if err != nil {
		log.Warn().Str("url", req.URL).Err(err).Msg("probe failed")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	resp := infoResponse{
		Title:        md.Title,
		Uploader:     md.Uploader,
		Duration:     md.Duration,
		IsCollection: md.IsCollection,
		Entries:      md.Entries,
	}
	if md.IsCollection {
		resp.EntriesTotal = len(md.Entries)
		if len(resp.Entries) > maxInfoEntries {
			resp.Entries = resp.Entries[:maxInfoEntries]
		}
	}
	c.JSON(http.StatusOK, resp)
}

// CreateTask classifies the url and starts a download task
func (a *API) CreateTask(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("invalid create task request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	sub, err := a.taskManager.Submit(c.Request.Context(), req.URL)
	if err != nil {
		log.Warn().Str("url", req.URL).Err(err).Msg("task rejected")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, sub)
}

// GetTask returns the task record
func (a *API) GetTask(c *gin.Context) {
	id := c.Param("id")
	rec, err := a.taskManager.GetTask(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// DownloadFile serves the artifact of a completed task
func (a *API) DownloadFile(c *gin.Context) {
	id := c.Param("id")
	rec, err := a.taskManager.ArtifactPath(c.Request.Context(), id)
	if err != nil {
		log.Warn().Str("task_id", id).Str("status", string(rec.Status)).Err(err).Msg("artifact not available")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	contentType := "application/octet-stream"
	if mtype, err := mimetype.DetectFile(rec.ResultArtifact); err == nil {
		contentType = mtype.String()
	}
	log.Info().Str("task_id", id).Str("path", rec.ResultArtifact).Str("content_type", contentType).Msg("serving artifact")
	c.Header("Content-Type", contentType)
	c.FileAttachment(rec.ResultArtifact, rec.ArtifactName)
}

// StreamTask pushes the task record over a websocket until it is terminal
func (a *API) StreamTask(c *gin.Context) {
	id := c.Param("id")
	if _, err := a.taskManager.GetTask(c.Request.Context(), id); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Str("task_id", id).Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for {
		rec, err := a.taskManager.GetTask(c.Request.Context(), id)
		if err != nil {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()))
			return
		}
		if err := conn.WriteJSON(rec); err != nil {
			return
		}
		if rec.Status.IsTerminal() {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(rec.Status)))
			return
		}
		select {
		case <-ticker.C:
		case <-closed:
			return
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, task.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, task.ErrNotReady):
		return http.StatusConflict
	}
	switch task.KindOf(err) {
	case task.ErrClassification, task.ErrProbe:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
