package handler

import (
	"net/http"

	"stcoins/internal/middleware"
	"stcoins/internal/repository"
	"stcoins/internal/service"

	"github.com/gin-gonic/gin"
)

type MeHandler struct {
	userRepo *repository.UserRepository
	ledger   *service.LedgerService
	session  *service.SessionService
}

func NewMeHandler(userRepo *repository.UserRepository, ledger *service.LedgerService, session *service.SessionService) *MeHandler {
	return &MeHandler{userRepo: userRepo, ledger: ledger, session: session}
}

// GetProfile returns the current user. The points field is as of this read only.
func (h *MeHandler) GetProfile(c *gin.Context) {
	u, err := h.userRepo.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// RegisterFCMToken saves the FCM token for push notifications.
func (h *MeHandler) RegisterFCMToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "token required")
		return
	}
	if err := h.userRepo.SetFCMToken(c.Request.Context(), middleware.GetUserID(c), req.Token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetBalance reads the balance of record. Clients must treat it as stale after as_of.
func (h *MeHandler) GetBalance(c *gin.Context) {
	balance, asOf, err := h.ledger.Balance(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance, "as_of": asOf})
}

func (h *MeHandler) GetLedger(c *gin.Context) {
	limit, offset := parsePagination(c)
	entries, total, err := h.ledger.History(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": total})
}

// SyncSession re-runs the post-sign-in workflow (pending referral, profile refresh).
func (h *MeHandler) SyncSession(c *gin.Context) {
	state, err := h.session.AfterSignIn(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
