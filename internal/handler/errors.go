package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"stcoins/internal/auth"
	"stcoins/internal/domain"
	"stcoins/internal/middleware"
	"stcoins/internal/service"
	"stcoins/pkg/verify"

	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// Order matters: wrapped errors match the first sentinel they contain.
var errorMappings = []errorMapping{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{domain.ErrInvalidDecision, http.StatusBadRequest, "invalid_decision"},
	{domain.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{domain.ErrExpired, http.StatusGone, "expired"},
	{domain.ErrEvidenceRequired, http.StatusUnprocessableEntity, "evidence_required"},
	{domain.ErrInvalidCode, http.StatusNotFound, "invalid_code"},
	{domain.ErrSelfReferral, http.StatusUnprocessableEntity, "self_referral"},
	{domain.ErrAlreadyLinked, http.StatusConflict, "already_linked"},
	{domain.ErrNotActive, http.StatusGone, "not_active"},
	{domain.ErrOutOfStock, http.StatusConflict, "out_of_stock"},
	{domain.ErrInsufficientBalance, http.StatusPaymentRequired, "insufficient_balance"},
	{domain.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},
	{domain.ErrRewardChanged, http.StatusConflict, "reward_changed"},
	{domain.ErrIdempotencyConflict, http.StatusConflict, "idempotency_conflict"},
	{domain.ErrVerificationUnavailable, http.StatusServiceUnavailable, "verification_unavailable"},
	{verify.ErrNotConnected, http.StatusPreconditionFailed, "not_connected"},
	{service.ErrEmailExists, http.StatusConflict, "email_exists"},
	{service.ErrUsernameExists, http.StatusConflict, "username_exists"},
	{service.ErrInvalidCreds, http.StatusUnauthorized, "invalid_credentials"},
	{service.ErrInvalidCatalogItem, http.StatusBadRequest, "invalid_catalog_item"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
}

// respondError writes {"error": message, "code": code}. Unknown errors are logged
// and reported without internals.
func respondError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"error": m.err.Error(), "code": m.code})
			return
		}
	}
	log.Printf("[http] %s %s: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "bad_request"})
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func parsePagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{UserID: middleware.GetUserID(c), Role: middleware.GetRole(c)}
}
