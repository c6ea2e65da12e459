package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lawgic-ai/docqa/internal/domain"
	"github.com/lawgic-ai/docqa/internal/service"
)

// Error kinds carried in structured error payloads so clients can tell
// rejection classes apart without parsing messages.
const (
	errKindValidation  = "validation"
	errKindQuota       = "quota_exceeded"
	errKindRateLimited = "rate_limited"
	errKindNotReady    = "not_ready"
	errKindUpstream    = "upstream_failure"
)

// Handler handles document upload, progress polling, question answering and
// the administrative surfaces.
type Handler struct {
	ingestService *service.IngestService
	queryService  *service.QueryService
	tracker       *service.ProgressTracker
	ledger        *service.UsageLedger
	gate          *service.RateGate
	cache         *service.ResponseCache
	limits        Limits
}

// Limits is the configured ceiling set echoed in usage and health responses.
type Limits struct {
	MaxDailyTokens       int
	MaxRequestsPerMinute int
}

// NewHandler creates a new API handler.
func NewHandler(
	ingestService *service.IngestService,
	queryService *service.QueryService,
	tracker *service.ProgressTracker,
	ledger *service.UsageLedger,
	gate *service.RateGate,
	cache *service.ResponseCache,
	limits Limits,
) *Handler {
	return &Handler{
		ingestService: ingestService,
		queryService:  queryService,
		tracker:       tracker,
		ledger:        ledger,
		gate:          gate,
		cache:         cache,
		limits:        limits,
	}
}

// RegisterRoutes registers the public API routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/upload", h.UploadPDF)
	r.GET("/progress/:task_id", h.GetProgress)
	r.POST("/ask", h.AskQuestion)
	r.GET("/usage", h.GetUsageStats)
}

// RegisterAdminRoutes registers operator-only routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/cache/clear", h.ClearCache)
}

// UploadPDF accepts a PDF upload and starts background ingestion. Ingestion
// spends embedding calls, so the quota and window checks run here too —
// before any file handling.
func (h *Handler) UploadPDF(c *gin.Context) {
	if h.ledger.OverDailyQuota() {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": domain.ErrQuotaExceeded.Error(),
			"kind":  errKindQuota,
		})
		return
	}
	if !h.gate.Admit() {
		retry := retrySeconds(h.gate.TimeUntilReset())
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       (&domain.RateLimitError{RetryAfter: retry}).Error(),
			"kind":        errKindRateLimited,
			"retry_after": retry,
		})
		return
	}

	file, err := c.FormFile("pdf")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pdf file is required", "kind": errKindValidation})
		return
	}

	taskID, err := h.ingestService.UploadDocument(file)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidFileType) || errors.Is(err, domain.ErrFileTooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": errKindValidation})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "kind": errKindUpstream})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id": taskID,
		"status":  "PDF uploaded, processing started",
		"pdf_url": "/uploads/" + taskID + ".pdf",
		"metadata": gin.H{
			"filename":  file.Filename,
			"file_size": file.Size,
		},
		"rate_limit_info": gin.H{
			"daily_usage": h.ledger.Stats(),
		},
	})
}

// GetProgress reports the status record for one ingestion task plus a usage
// snapshot. Unknown task IDs are a caller mistake, not a failure, and get a
// distinct "unknown" status.
func (h *Handler) GetProgress(c *gin.Context) {
	taskID := c.Param("task_id")

	task, ok := h.tracker.Get(taskID)
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"status":      domain.TaskStatusUnknown,
			"progress":    0,
			"message":     "Task not found",
			"usage_stats": h.ledger.Stats(),
		})
		return
	}

	resp := gin.H{
		"task_id":     task.ID,
		"status":      task.Status,
		"progress":    task.Progress,
		"message":     task.Message,
		"usage_stats": h.ledger.Stats(),
	}
	if task.Metadata != nil {
		resp["metadata"] = task.Metadata
	}
	c.JSON(http.StatusOK, resp)
}

// AskQuestion answers a question against the current document.
func (h *Handler) AskQuestion(c *gin.Context) {
	var req domain.QuestionRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": errKindValidation})
		return
	}

	answer, err := h.queryService.Ask(c.Request.Context(), req.Question)
	if err != nil {
		h.writeQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, answer)
}

func (h *Handler) writeQueryError(c *gin.Context, err error) {
	var rateErr *domain.RateLimitError
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": errKindValidation})
	case errors.Is(err, domain.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":      err.Error(),
			"kind":       errKindQuota,
			"retry_hint": "tomorrow",
		})
	case errors.As(err, &rateErr):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       err.Error(),
			"kind":        errKindRateLimited,
			"retry_after": rateErr.RetryAfter,
		})
	case errors.Is(err, domain.ErrIndexNotReady):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "kind": errKindNotReady})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "kind": errKindUpstream})
	}
}

// GetUsageStats returns the usage snapshot plus the configured limits.
func (h *Handler) GetUsageStats(c *gin.Context) {
	stats := h.ledger.Stats()
	c.JSON(http.StatusOK, gin.H{
		"daily_tokens":              stats.DailyTokens,
		"monthly_tokens":            stats.MonthlyTokens,
		"total_tokens":              stats.TotalTokens,
		"last_update":               stats.LastUpdate,
		"daily_limit":               h.limits.MaxDailyTokens,
		"requests_per_minute_limit": h.limits.MaxRequestsPerMinute,
		"rate_limit_reset":          retrySeconds(h.gate.TimeUntilReset()),
	})
}

// ClearCache empties the response cache. Idempotent; always succeeds.
func (h *Handler) ClearCache(c *gin.Context) {
	h.cache.Clear()
	c.JSON(http.StatusOK, gin.H{"message": "Cache cleared successfully"})
}

// Health reports service liveness and current budget headroom.
func (h *Handler) Health(c *gin.Context) {
	stats := h.ledger.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":                   "healthy",
		"timestamp":                time.Now().Format(time.RFC3339),
		"daily_tokens_used":        stats.DailyTokens,
		"daily_limit":              h.limits.MaxDailyTokens,
		"rate_limit_reset_seconds": retrySeconds(h.gate.TimeUntilReset()),
	})
}

func retrySeconds(d time.Duration) int {
	secs := int(d.Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}
