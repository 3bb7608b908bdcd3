// Package handlers is the HTTP surface: /preview, /generate, /batch,
// /batch/:id/status, /batch/:id/cancel.
package handlers

import (
	"image"
	"image/png"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/c0lormem/apltestgen/internal/batch"
	"github.com/c0lormem/apltestgen/internal/logging"
	"github.com/c0lormem/apltestgen/internal/middleware"
	"github.com/c0lormem/apltestgen/internal/models"
	"github.com/c0lormem/apltestgen/internal/videoenc"
	"github.com/c0lormem/apltestgen/pkg/export"
	"github.com/c0lormem/apltestgen/pkg/pattern"
)

func writePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// RegisterRoutes wires up the generate/preview/batch API onto router. The
// caller owns registry's lifetime; it is injected rather than held as a
// package-level singleton.
func RegisterRoutes(router *gin.Engine, registry *batch.Registry) {
	v1 := router.Group("/api/v1")
	v1.Use(middleware.CORSMiddleware())
	{
		v1.OPTIONS("/*path", func(c *gin.Context) {})

		v1.POST("/preview", handlePreview)
		v1.POST("/generate", handleGenerate)
		v1.POST("/batch", handleCreateBatch(registry))
		v1.GET("/batch/:id/status", handleBatchStatus(registry))
		v1.POST("/batch/:id/cancel", handleBatchCancel(registry))
	}
}

// handlePreview serves a quick, capped-dimension PNG preview. No color
// management is applied; this is for eyeballing the pattern shape only.
func handlePreview(c *gin.Context) {
	var req models.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if req.Shape == "" {
		req.Shape = pattern.Rectangle
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	img, err := pattern.Rasterize(req.Width, req.Height, req.APLPercent, req.Shape)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "image/png")
	if err := writePNG(c.Writer, img.ToRGB()); err != nil {
		logging.L().Errorw("preview encode failed", "error", err)
		c.Status(http.StatusInternalServerError)
	}
}

func handleGenerate(c *gin.Context) {
	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.ExportFormat == export.FormatH264 || req.ExportFormat == export.FormatH265 {
		handleGenerateVideo(c, req)
		return
	}

	resp, err := export.Export(req.ToExportRequest())
	if err != nil {
		logging.L().Errorw("generate failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.GenerateResponse{OutputPath: resp.OutputPath, FileSize: resp.FileSize})
}

// handleGenerateVideo routes h264/h265 exports through the ffmpeg wrapper
// instead of the still-image container builders.
func handleGenerateVideo(c *gin.Context, req models.GenerateRequest) {
	img, err := pattern.Rasterize(req.Width, req.Height, req.APLPercent, req.Shape)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	path, err := videoenc.Export(c.Request.Context(), req, img.ToRGB(), req.HdrPeakNits)
	if err != nil {
		logging.L().Errorw("video export failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.GenerateResponse{OutputPath: path, FileSize: info.Size()})
}

func handleCreateBatch(registry *batch.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		req = req.WithDefaults()
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp := registry.Create(req)
		c.JSON(http.StatusAccepted, resp)
	}
}

func handleBatchStatus(registry *batch.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, ok := registry.Status(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown batch id"})
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func handleBatchCancel(registry *batch.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !registry.Cancel(c.Param("id")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown or already-finished batch id"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
