package server

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"momentum-scanner/internal/service"
)

const helpText = "<h1>Momentum Scanner API</h1><p>Use /scan (POST), /status (GET), and /download (GET)</p>"

type handlers struct {
	scanner Scanner
	logger  zerolog.Logger
}

func registerRoutes(router *gin.Engine, h *handlers) {
	router.GET("/", h.index)
	router.GET("/healthz", h.health)
	router.POST("/scan", h.startScan)
	router.GET("/status", h.status)
	router.GET("/download", h.download)
	router.GET("/download/chart", h.downloadChart)
}

func (h *handlers) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(helpText))
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) startScan(c *gin.Context) {
	err := h.scanner.StartScan(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"message": "Scan started"})
	case errors.Is(err, service.ErrScanInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "Scan already in progress"})
	default:
		h.logger.Error().Err(err).Msg("could not start scan")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scan could not be scheduled"})
	}
}

func (h *handlers) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.scanner.Status())
}

func (h *handlers) download(c *gin.Context) {
	path, err := h.scanner.Artifact()
	h.serveFile(c, path, err)
}

func (h *handlers) downloadChart(c *gin.Context) {
	path, err := h.scanner.Chart()
	h.serveFile(c, path, err)
}

func (h *handlers) serveFile(c *gin.Context, path string, err error) {
	var missing *service.MissingReportError
	switch {
	case err == nil:
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			abs = path
		}
		c.FileAttachment(abs, filepath.Base(abs))
	case errors.Is(err, service.ErrNoReport):
		c.JSON(http.StatusNotFound, gin.H{"error": "No report generated yet."})
	case errors.As(err, &missing):
		abs, absErr := filepath.Abs(missing.Path)
		if absErr != nil {
			abs = missing.Path
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "File missing on server", "path": abs})
	default:
		h.logger.Error().Err(err).Msg("artifact lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
