// Package handler exposes the orchestrator over HTTP: bind the request,
// enforce a deadline, log without the sensitive payload, translate the
// result or structured error into a JSON response.
//
// AnalyzeImage binds a multipart image upload plus optional form
// options and calls orchestrator.Analyze. There is no separate
// fallback/circuit-breaker diagnostic endpoint: the module set is fixed
// and in-process, so there is no model fallback chain to expose (see
// DESIGN.md).
package handler

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"imageguard/internal/core"
	"imageguard/internal/metrics"
	"imageguard/internal/orchestrator"
)

// DetectionHandler handles HTTP requests for image prompt-injection
// analysis.
type DetectionHandler struct {
	analyzer *orchestrator.Analyzer
	metrics  *metrics.Collector
	logger   *logrus.Logger
	timeout  time.Duration
}

// NewDetectionHandler builds a handler around a constructed Analyzer.
func NewDetectionHandler(analyzer *orchestrator.Analyzer, collector *metrics.Collector, logger *logrus.Logger, timeout time.Duration) *DetectionHandler {
	return &DetectionHandler{analyzer: analyzer, metrics: collector, logger: logger, timeout: timeout}
}

// AnalyzeImage handles POST /v1/analyze: a multipart upload under field
// "image" plus optional form fields mirroring Options.
func (h *DetectionHandler) AnalyzeImage(c *gin.Context) {
	start := time.Now()

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing \"image\" form file", "details": err.Error()})
		return
	}
	defer file.Close()

	tmpPath, err := stageUpload(file, header.Filename)
	if err != nil {
		h.logger.WithError(err).Error("failed to stage uploaded image")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stage upload", "details": err.Error()})
		return
	}
	defer os.Remove(tmpPath)

	opts := orchestrator.Options{
		ReturnMarked:  c.PostForm("return_marked") == "true",
		MaxTextLength: parseIntOrDefault(c.PostForm("max_text_length"), 0),
	}
	if v := c.PostForm("include_text"); v != "" {
		include := v == "true"
		opts.IncludeText = &include
	}
	if modules := c.PostForm("modules"); modules != "" {
		opts.Modules = strings.Split(modules, ",")
	}

	ctx := c.Request.Context()
	cancel := func() {}
	if h.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
	}
	defer cancel()

	h.logger.WithFields(logrus.Fields{
		"filename":  header.Filename,
		"size":      header.Size,
		"client_ip": c.ClientIP(),
	}).Info("processing image analysis request")

	result, err := h.analyzer.Analyze(ctx, tmpPath, opts)
	if err != nil {
		h.metrics.RecordFailure(time.Since(start))
		status, body := errorResponse(err)
		h.logger.WithError(err).Warn("image analysis failed")
		c.JSON(status, body)
		return
	}

	for id, mr := range result.ModuleResults {
		h.metrics.RecordModule(id, mr.Status, mr.LatencyMS)
	}
	h.metrics.RecordSuccess(time.Since(start), result)

	h.logger.WithFields(logrus.Fields{
		"classification":      result.Classification,
		"risk_score":          result.RiskScore,
		"confidence":          result.Confidence,
		"processing_time_ms":  result.ProcessingTimeMS,
	}).Info("analysis completed")

	c.JSON(http.StatusOK, toEnvelope(result))
}

// HealthCheck handles GET /health.
func (h *DetectionHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// GetMetrics handles GET /v1/metrics, reporting aggregate request
// counts and average latency for analyze requests.
func (h *DetectionHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"requests_total":     h.metrics.GetRequestsTotal(),
		"average_latency_ms": h.metrics.GetAverageLatency().Milliseconds(),
	})
}

func parseIntOrDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// stageUpload copies a multipart upload to a temp file so the
// orchestrator, whose contract takes a path, can preprocess
// it like any other on-disk image.
func stageUpload(src io.Reader, originalName string) (string, error) {
	f, err := os.CreateTemp("", "imageguard-upload-*"+filepath.Ext(originalName))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, src); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// errorResponse maps the structured core.AnalysisError kinds
// to HTTP status codes; any other error is an internal failure.
func errorResponse(err error) (int, gin.H) {
	if aerr, ok := err.(*core.AnalysisError); ok {
		switch aerr.Kind {
		case core.ErrKindNotFound:
			return http.StatusNotFound, gin.H{"error": aerr.Message}
		case core.ErrKindInvalidImage:
			body := gin.H{"error": aerr.Message}
			if aerr.Expected != "" {
				body["expected_format"] = aerr.Expected
				body["detected_format"] = aerr.Detected
			}
			return http.StatusUnprocessableEntity, body
		case core.ErrKindConfigError:
			return http.StatusBadRequest, gin.H{"error": aerr.Message}
		}
	}
	return http.StatusInternalServerError, gin.H{"error": "analysis failed", "details": err.Error()}
}

// toEnvelope renders the stable wire-envelope field names over the
// internal core.AggregateResult.
func toEnvelope(r *core.AggregateResult) gin.H {
	moduleScores := make(gin.H, len(r.ModuleResults))
	for id, mr := range r.ModuleResults {
		moduleScores[id] = gin.H{
			"score":      mr.Score,
			"status":     mr.Status,
			"latency_ms": mr.LatencyMS,
			"details":    mr.Details,
		}
	}

	return gin.H{
		"request_id":          r.RequestID,
		"timestamp":           r.TimestampUTC,
		"processing_time_ms":  r.ProcessingTimeMS,
		"image_info": gin.H{
			"filename": r.ImageInfo.Filename,
			"format":   r.ImageInfo.Format,
			"dimensions": gin.H{
				"width":  r.ImageInfo.Width,
				"height": r.ImageInfo.Height,
			},
			"size_bytes": r.ImageInfo.SizeBytes,
			"normalized_dimensions": gin.H{
				"width":  r.ImageInfo.NormalizedWidth,
				"height": r.ImageInfo.NormalizedHeight,
			},
		},
		"result": gin.H{
			"classification":    r.Classification,
			"risk_score":        r.RiskScore,
			"confidence":        r.Confidence,
			"confidence_raw":    r.ConfidenceRaw,
			"confidence_method": r.ConfidenceMethod,
			"threshold_used":    r.ThresholdsUsed.Dangerous,
			"thresholds":        r.ThresholdsUsed,
		},
		"module_scores":     moduleScores,
		"marked_image_path": r.MarkedImagePath,
	}
}
