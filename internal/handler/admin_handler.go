package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stcoins/internal/domain"
	"stcoins/internal/middleware"
	"stcoins/internal/models"
	"stcoins/internal/repository"
	"stcoins/internal/service"

	"github.com/gin-gonic/gin"
)

// Settings an admin may change, all integer point values.
var editableSettings = map[string]bool{
	domain.SettingReferralBonus:        true,
	domain.SettingReferredWelcomeBonus: true,
}

type AdminHandler struct {
	adminRepo   *repository.AdminRepository
	auditRepo   *repository.AuditLogRepository
	userRepo    *repository.UserRepository
	settingRepo *repository.SettingRepository
	tasks       *service.TaskService
	redemptions *service.RedemptionService
	catalog     *service.CatalogService
	ledger      *service.LedgerService
	notifier    *service.NotificationService
	services    *repository.ConnectedServiceRepository
}

func NewAdminHandler(
	adminRepo *repository.AdminRepository,
	auditRepo *repository.AuditLogRepository,
	userRepo *repository.UserRepository,
	settingRepo *repository.SettingRepository,
	tasks *service.TaskService,
	redemptions *service.RedemptionService,
	catalog *service.CatalogService,
	ledger *service.LedgerService,
	notifier *service.NotificationService,
	services *repository.ConnectedServiceRepository,
) *AdminHandler {
	return &AdminHandler{
		adminRepo:   adminRepo,
		auditRepo:   auditRepo,
		userRepo:    userRepo,
		settingRepo: settingRepo,
		tasks:       tasks,
		redemptions: redemptions,
		catalog:     catalog,
		ledger:      ledger,
		notifier:    notifier,
		services:    services,
	}
}

// audit records an admin action. Failures are logged and never fail the request.
func (h *AdminHandler) audit(c *gin.Context, action, resource string, resourceID uint, meta map[string]interface{}) {
	if h.auditRepo == nil {
		return
	}
	adminID := middleware.GetUserID(c)
	entry := &models.AuditLog{
		UserID:     &adminID,
		Action:     action,
		Resource:   resource,
		ResourceID: strconv.FormatUint(uint64(resourceID), 10),
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}
	if meta != nil {
		b, _ := json.Marshal(meta)
		entry.Metadata = string(b)
	}
	if err := h.auditRepo.Create(c.Request.Context(), entry); err != nil {
		log.Printf("[http] audit %s %s/%d: %v", action, resource, resourceID, err)
	}
}

// GetStats handles GET /admin/stats.
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.adminRepo.GetDashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	series, err := h.adminRepo.LedgerSeries(c.Request.Context(), days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "ledger_series": series})
}

// ListLedger handles GET /admin/ledger?type=&user_id=.
func (h *AdminHandler) ListLedger(c *gin.Context) {
	limit, offset := parsePagination(c)
	var userID uint
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			badRequest(c, "invalid user_id")
			return
		}
		userID = uint(id)
	}
	entries, total, err := h.adminRepo.ListLedger(c.Request.Context(), c.Query("type"), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries, "total": total})
}

// ListAuditLogs handles GET /admin/audit-logs?action=.
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	limit, offset := parsePagination(c)
	list, err := h.auditRepo.List(c.Request.Context(), c.Query("action"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

// ListUsers handles GET /admin/users?search=.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, offset := parsePagination(c)
	users, total, err := h.userRepo.List(c.Request.Context(), c.Query("search"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users, "total": total})
}

// ListSpotifyUsers handles GET /admin/spotify/users.
func (h *AdminHandler) ListSpotifyUsers(c *gin.Context) {
	limit, offset := parsePagination(c)
	list, total, err := h.services.ListByService(c.Request.Context(), domain.ServiceSpotify, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total})
}

// AdjustPoints handles POST /admin/users/:id/points. The Idempotency-Key header is
// required so a retried request cannot apply twice.
func (h *AdminHandler) AdjustPoints(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if key == "" {
		badRequest(c, "Idempotency-Key header required")
		return
	}
	var req struct {
		Delta int64 `json:"delta" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "non-zero delta required")
		return
	}
	res, err := h.ledger.ApplyMutation(c.Request.Context(), userID, req.Delta, "admin:"+key)
	if errors.Is(err, domain.ErrDuplicateMutation) {
		c.JSON(http.StatusOK, gin.H{"balance": res.Balance, "entry": res.Entry, "replayed": true})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, "points.adjust", "user", userID, map[string]interface{}{"delta": req.Delta, "key": key})
	if h.notifier != nil {
		_ = h.notifier.NotifyPointsAdjusted(c.Request.Context(), res.Entry)
	}
	c.JSON(http.StatusOK, gin.H{"balance": res.Balance, "entry": res.Entry, "replayed": false})
}

// ListSubmissions handles GET /admin/submissions (unreviewed, oldest first).
func (h *AdminHandler) ListSubmissions(c *gin.Context) {
	limit, offset := parsePagination(c)
	list, err := h.tasks.ListPendingSubmissions(c.Request.Context(), actorFrom(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

// ReviewSubmission handles POST /admin/submissions/:id/review.
func (h *AdminHandler) ReviewSubmission(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Decision string `json:"decision" binding:"required"`
		Notes    string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ut, err := h.tasks.ReviewSubmission(c.Request.Context(), actorFrom(c), id, req.Decision, req.Notes)
	if ut != nil {
		// The review committed even when the credit that follows it failed.
		meta := map[string]interface{}{"decision": req.Decision}
		if err != nil {
			meta["credit_error"] = err.Error()
		}
		h.audit(c, "submission.review", "submission", id, meta)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignment": ut})
}

// RetryCredit handles POST /admin/assignments/:id/credit.
func (h *AdminHandler) RetryCredit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ut, err := h.tasks.RetryCredit(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, "assignment.credit", "assignment", id, nil)
	c.JSON(http.StatusOK, gin.H{"assignment": ut})
}

// ListRedemptions handles GET /admin/redemptions?status=.
func (h *AdminHandler) ListRedemptions(c *gin.Context) {
	limit, offset := parsePagination(c)
	list, err := h.redemptions.ListRedemptions(c.Request.Context(), actorFrom(c), c.Query("status"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

// CancelRedemption handles POST /admin/redemptions/:id/cancel.
func (h *AdminHandler) CancelRedemption(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	ur, err := h.redemptions.CancelRedemption(c.Request.Context(), actorFrom(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, "redemption.cancel", "redemption", id, map[string]interface{}{"reason": req.Reason})
	c.JSON(http.StatusOK, gin.H{"redemption": ur})
}

// FulfillRedemption handles POST /admin/redemptions/:id/fulfill.
func (h *AdminHandler) FulfillRedemption(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ur, err := h.redemptions.FulfillRedemption(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, "redemption.fulfill", "redemption", id, nil)
	c.JSON(http.StatusOK, gin.H{"redemption": ur})
}

type createTaskRequest struct {
	CategoryID           *uint     `json:"category_id"`
	Title                string    `json:"title" binding:"required"`
	Description          string    `json:"description"`
	Instructions         string    `json:"instructions"`
	Difficulty           string    `json:"difficulty"`
	RedirectURL          string    `json:"redirect_url"`
	Points               int64     `json:"points" binding:"required"`
	ExpiresAt            time.Time `json:"expires_at" binding:"required"`
	VerificationType     string    `json:"verification_type"`
	VerificationProvider string    `json:"verification_provider"`
	VerificationTarget   string    `json:"verification_target"`
	AllowResubmission    bool      `json:"allow_resubmission"`
	Active               *bool     `json:"active"`
}

// activeOrDefault treats an omitted flag as active.
func activeOrDefault(v *bool) bool { return v == nil || *v }

// CreateTask handles POST /admin/tasks.
func (h *AdminHandler) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	t := &models.Task{
		CategoryID:           req.CategoryID,
		Title:                req.Title,
		Description:          req.Description,
		Instructions:         req.Instructions,
		Difficulty:           req.Difficulty,
		RedirectURL:          req.RedirectURL,
		Points:               req.Points,
		ExpiresAt:            req.ExpiresAt,
		VerificationType:     req.VerificationType,
		VerificationProvider: req.VerificationProvider,
		VerificationTarget:   req.VerificationTarget,
		AllowResubmission:    req.AllowResubmission,
		Active:               activeOrDefault(req.Active),
	}
	if t.Difficulty == "" {
		t.Difficulty = "easy"
	}
	if err := h.catalog.CreateTask(c.Request.Context(), actorFrom(c), t); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": t})
}

// CreateCategory handles POST /admin/categories.
func (h *AdminHandler) CreateCategory(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	cat := &models.TaskCategory{Name: req.Name, Description: req.Description}
	if err := h.catalog.CreateCategory(c.Request.Context(), actorFrom(c), cat); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": cat})
}

// CreateReward handles POST /admin/rewards.
func (h *AdminHandler) CreateReward(c *gin.Context) {
	var req struct {
		Name        string     `json:"name" binding:"required"`
		Description string     `json:"description"`
		ImageURL    string     `json:"image_url"`
		PointsCost  int64      `json:"points_cost" binding:"required"`
		Quantity    *int64     `json:"quantity"`
		ExpiresAt   *time.Time `json:"expires_at"`
		Active      *bool      `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	r := &models.Reward{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		PointsCost:  req.PointsCost,
		Quantity:    req.Quantity,
		ExpiresAt:   req.ExpiresAt,
		Active:      activeOrDefault(req.Active),
	}
	if err := h.catalog.CreateReward(c.Request.Context(), actorFrom(c), r); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reward": r})
}

// GetSettings handles GET /admin/settings.
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingRepo.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settings})
}

// UpdateSettings handles PUT /admin/settings.
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var req struct {
		Settings map[string]string `json:"settings" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	for k, v := range req.Settings {
		if !editableSettings[k] {
			badRequest(c, "unknown setting: "+k)
			return
		}
		if n, err := strconv.ParseInt(v, 10, 64); err != nil || n < 0 {
			badRequest(c, "setting must be a non-negative integer: "+k)
			return
		}
	}
	for k, v := range req.Settings {
		if err := h.settingRepo.Set(c.Request.Context(), k, v); err != nil {
			respondError(c, err)
			return
		}
	}
	meta := make(map[string]interface{}, len(req.Settings))
	for k, v := range req.Settings {
		meta[k] = v
	}
	h.audit(c, "settings.update", "settings", 0, meta)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
