package handler

import (
	"net/http"
	"strconv"

	"stcoins/internal/service"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	svc *service.TaskService
}

func NewTaskHandler(svc *service.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// ListTasks GET /tasks?category_id=
func (h *TaskHandler) ListTasks(c *gin.Context) {
	var categoryID *uint
	if v := c.Query("category_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			badRequest(c, "invalid category_id")
			return
		}
		cid := uint(id)
		categoryID = &cid
	}
	tasks, err := h.svc.ListTasks(c.Request.Context(), categoryID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *TaskHandler) ListCategories(c *gin.Context) {
	list, err := h.svc.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": list})
}

// StartTask POST /me/tasks/:id/start
func (h *TaskHandler) StartTask(c *gin.Context) {
	taskID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ut, err := h.svc.StartTask(c.Request.Context(), actorFrom(c), taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"assignment": ut})
}

// SubmitTask POST /me/assignments/:id/submit
func (h *TaskHandler) SubmitTask(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		ScreenshotURL string `json:"screenshot_url"`
		Notes         string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		badRequest(c, err.Error())
		return
	}
	res, err := h.svc.SubmitTask(c.Request.Context(), actorFrom(c), id, service.Evidence{
		ScreenshotURL: req.ScreenshotURL,
		Notes:         req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ReopenTask POST /me/assignments/:id/reopen
func (h *TaskHandler) ReopenTask(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ut, err := h.svc.ReopenTask(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignment": ut})
}

// ListAssignments GET /me/assignments?status=
func (h *TaskHandler) ListAssignments(c *gin.Context) {
	list, err := h.svc.ListMyAssignments(c.Request.Context(), actorFrom(c), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": list})
}
