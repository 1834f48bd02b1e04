package handler

import (
	"net/http"
	"strconv"
	"strings"

	"stcoins/internal/middleware"
	"stcoins/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxEvidenceBytes = 10 << 20

type UploadHandler struct {
	cloud  cloudinary.Client
	folder string
}

func NewUploadHandler(cloud cloudinary.Client, folder string) *UploadHandler {
	return &UploadHandler{cloud: cloud, folder: folder}
}

// UploadEvidence stores a task screenshot and returns its URL for the submit call.
// POST /me/evidence (multipart, field "file")
func (h *UploadHandler) UploadEvidence(c *gin.Context) {
	if h.cloud == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads are not configured", "code": "uploads_disabled"})
		return
	}
	userID := middleware.GetUserID(c)
	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file required")
		return
	}
	if file.Size > maxEvidenceBytes {
		badRequest(c, "file too large")
		return
	}
	if ct := file.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		badRequest(c, "evidence must be an image")
		return
	}
	folder := h.folder + "/" + strconv.FormatUint(uint64(userID), 10)
	publicID := "ev_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]

	f, err := file.Open()
	if err != nil {
		badRequest(c, "could not read file")
		return
	}
	defer f.Close()

	url, thumb, err := h.cloud.UploadImage(c.Request.Context(), f, folder, publicID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed", "code": "upload_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "thumbnail_url": thumb})
}
