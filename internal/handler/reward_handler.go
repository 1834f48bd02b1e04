package handler

import (
	"net/http"

	"stcoins/internal/middleware"
	"stcoins/internal/service"

	"github.com/gin-gonic/gin"
)

type RewardHandler struct {
	svc *service.RedemptionService
}

func NewRewardHandler(svc *service.RedemptionService) *RewardHandler {
	return &RewardHandler{svc: svc}
}

// ListRewards GET /rewards
func (h *RewardHandler) ListRewards(c *gin.Context) {
	list, err := h.svc.ListRewards(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rewards": list})
}

// Redeem POST /me/rewards/:id/redeem
func (h *RewardHandler) Redeem(c *gin.Context) {
	rewardID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ur, err := h.svc.Redeem(c.Request.Context(), middleware.GetUserID(c), rewardID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"redemption": ur})
}

// MyRedemptions GET /me/redemptions?status=
func (h *RewardHandler) MyRedemptions(c *gin.Context) {
	limit, offset := parsePagination(c)
	list, err := h.svc.MyRedemptions(c.Request.Context(), middleware.GetUserID(c), c.Query("status"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"redemptions": list})
}
