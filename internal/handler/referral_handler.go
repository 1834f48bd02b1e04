package handler

import (
	"net/http"

	"stcoins/internal/middleware"
	"stcoins/internal/service"

	"github.com/gin-gonic/gin"
)

type ReferralHandler struct {
	svc *service.ReferralService
}

func NewReferralHandler(svc *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{svc: svc}
}

// GetMyReferralCode returns the authenticated user's referral code, creating one if it doesn't exist yet.
// GET /me/referral-code
func (h *ReferralHandler) GetMyReferralCode(c *gin.Context) {
	ref, err := h.svc.MyCode(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": ref.ReferralCode, "created_at": ref.CreatedAt})
}

// GetMyReferrals GET /me/referrals
func (h *ReferralHandler) GetMyReferrals(c *gin.Context) {
	limit, offset := parsePagination(c)
	links, err := h.svc.MyReferrals(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]gin.H, 0, len(links))
	for _, l := range links {
		username := ""
		if l.ReferredUser != nil {
			username = l.ReferredUser.Username
		}
		out = append(out, gin.H{
			"referred_user":  gin.H{"id": l.ReferredUserID, "username": username},
			"points_awarded": l.PointsAwarded,
			"created_at":     l.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"referrals": out, "total": len(out)})
}

// ApplyCode POST /me/referral/apply
func (h *ReferralHandler) ApplyCode(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "code required")
		return
	}
	link, err := h.svc.ApplyReferralCode(c.Request.Context(), middleware.GetUserID(c), req.Code)
	if err != nil {
		if link != nil {
			// Linked, but the credit did not go through; it is retried later.
			c.JSON(http.StatusAccepted, gin.H{"referral": link, "credit_pending": true})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"referral": link})
}
