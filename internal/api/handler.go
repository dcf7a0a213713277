package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/telecheck/zonewatch/internal/models"
	"github.com/telecheck/zonewatch/internal/repository"
	"github.com/telecheck/zonewatch/internal/validator"
	"github.com/telecheck/zonewatch/internal/verify"
)

type Handler struct {
	verifier  *verify.Service
	validator *validator.Validator
	runs      repository.ValidationRunRepository
	alerts    repository.AlertRepository
	decls     repository.DeclarationRepository
}

func NewHandler(
	verifier *verify.Service,
	v *validator.Validator,
	runs repository.ValidationRunRepository,
	alerts repository.AlertRepository,
	decls repository.DeclarationRepository,
) *Handler {
	return &Handler{
		verifier:  verifier,
		validator: v,
		runs:      runs,
		alerts:    alerts,
		decls:     decls,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/verify", h.getVerify)
	r.POST("/verify", h.postVerifyBatch)
	r.POST("/validate", h.postValidate)
	r.GET("/validation-status", h.getValidationStatus)
	r.GET("/health", h.health)
}

func (h *Handler) getVerify(c *gin.Context) {
	result, err := h.verifier.Verify(c.Request.Context(), c.Query("postcode"))
	if err != nil {
		if errors.Is(err, verify.ErrInvalidPostcode) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

type batchVerifyRequest struct {
	Postcodes []string `json:"postcodes" binding:"required,min=1,max=100"`
}

func (h *Handler) postVerifyBatch(c *gin.Context) {
	var req batchVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "postcodes must be a non-empty array of at most 100 entries"})
		return
	}

	results, err := h.verifier.VerifyBatch(c.Request.Context(), req.Postcodes)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch verification failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) postValidate(c *gin.Context) {
	run, err := h.validator.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation run failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"validation_id":   run.ID,
		"primary_count":   run.PrimaryCount,
		"secondary_count": run.SecondaryCount,
		"match":           run.IsValid,
		"confidence":      run.Confidence,
	})
}

func (h *Handler) getValidationStatus(c *gin.Context) {
	ctx := c.Request.Context()

	latest, err := h.runs.LatestCompleted(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read validation runs"})
		return
	}

	recent, err := h.runs.RecentRuns(ctx, 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read validation runs"})
		return
	}

	alerts, err := h.alerts.UnacknowledgedAlerts(ctx, 5)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read alerts"})
		return
	}

	breakdown, err := h.stateBreakdown(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read declarations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"latest":          runPayload(latest),
		"history":         runHistory(recent),
		"open_alerts":     alertPayload(alerts),
		"state_breakdown": breakdown,
	})
}

// stateBreakdown reports active counts per state from each pipeline's
// partition side by side, so disagreement is visible at a glance.
func (h *Handler) stateBreakdown(c *gin.Context) (map[string]gin.H, error) {
	ctx := c.Request.Context()

	primary, err := h.decls.ActiveStateBreakdown(ctx, models.PipelinePrimary)
	if err != nil {
		return nil, err
	}
	secondary, err := h.decls.ActiveStateBreakdown(ctx, models.PipelineSecondary)
	if err != nil {
		return nil, err
	}

	breakdown := make(map[string]gin.H)
	for state, count := range primary {
		breakdown[state] = gin.H{"primary": count, "secondary": secondary[state]}
	}
	for state, count := range secondary {
		if _, ok := breakdown[state]; !ok {
			breakdown[state] = gin.H{"primary": 0, "secondary": count}
		}
	}
	return breakdown, nil
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func runPayload(run *models.ValidationRun) gin.H {
	if run == nil {
		return nil
	}
	return gin.H{
		"run_id":          run.ID,
		"started_at":      run.StartedAt,
		"completed_at":    run.CompletedAt,
		"is_valid":        run.IsValid,
		"confidence":      run.Confidence,
		"primary_count":   run.PrimaryCount,
		"secondary_count": run.SecondaryCount,
		"mismatches":      run.Mismatches,
		"errors":          run.Errors,
	}
}

func runHistory(runs []models.ValidationRun) []gin.H {
	history := make([]gin.H, 0, len(runs))
	for i := range runs {
		history = append(history, runPayload(&runs[i]))
	}
	return history
}

func alertPayload(alerts []models.CriticalAlert) []gin.H {
	payload := make([]gin.H, 0, len(alerts))
	for _, a := range alerts {
		payload = append(payload, gin.H{
			"id":         a.ID,
			"type":       a.Type,
			"severity":   a.Severity,
			"message":    a.Message,
			"details":    a.Details,
			"created_at": a.CreatedAt,
		})
	}
	return payload
}
