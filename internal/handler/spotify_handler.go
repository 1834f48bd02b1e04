package handler

import (
	"net/http"
	"time"

	"stcoins/config"
	"stcoins/internal/auth"
	"stcoins/internal/middleware"
	"stcoins/internal/service"

	"github.com/gin-gonic/gin"
)

type SpotifyHandler struct {
	svc    *service.SpotifyService
	jwtCfg *config.JWTConfig
}

func NewSpotifyHandler(svc *service.SpotifyService, jwtCfg *config.JWTConfig) *SpotifyHandler {
	return &SpotifyHandler{svc: svc, jwtCfg: jwtCfg}
}

// Connect GET /me/spotify/connect returns the consent URL.
func (h *SpotifyHandler) Connect(c *gin.Context) {
	state, err := auth.GenerateStateToken(h.jwtCfg, middleware.GetUserID(c), 10*time.Minute)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": h.svc.ConnectURL(state)})
}

// Callback GET /spotify/callback?code=&state=
func (h *SpotifyHandler) Callback(c *gin.Context) {
	if e := c.Query("error"); e != "" {
		badRequest(c, "spotify authorization failed: "+e)
		return
	}
	userID, err := auth.ParseStateToken(h.jwtCfg, c.Query("state"))
	if err != nil {
		respondError(c, err)
		return
	}
	code := c.Query("code")
	if code == "" {
		badRequest(c, "code required")
		return
	}
	cs, err := h.svc.Connect(c.Request.Context(), userID, code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connection": cs})
}

// Status GET /me/spotify
func (h *SpotifyHandler) Status(c *gin.Context) {
	cs, err := h.svc.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connection": cs})
}

// Refresh POST /me/spotify/refresh re-reads the linked profile.
func (h *SpotifyHandler) Refresh(c *gin.Context) {
	cs, err := h.svc.Refresh(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connection": cs})
}
