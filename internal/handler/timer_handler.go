package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "multitimer/internal/errors"
	"multitimer/internal/middleware"
	"multitimer/internal/service"
)

type TimerHandler struct {
	timerService   *service.TimerService
	originPatterns []string
}

type createTimerRequest struct {
	Name string `json:"name"`
}

type updateTimerRequest struct {
	Name             *string `json:"name"`
	NotificationType *string `json:"notificationType"`
}

type deleteTimersRequest struct {
	Names []string `json:"names"`
}

type presetRequest struct {
	PresetName             string `json:"presetName"`
	PresetTimeMillis       int64  `json:"presetTimeMillis"`
	NotificationTimeMillis int64  `json:"notificationTimeMillis"`
}

type deletePresetsRequest struct {
	Orders []int `json:"orders"`
}

type movePresetRequest struct {
	From *int `json:"from"`
	To   *int `json:"to"`
}

func NewTimerHandler(timerService *service.TimerService, corsOrigins []string) *TimerHandler {
	return &TimerHandler{
		timerService:   timerService,
		originPatterns: originPatterns(corsOrigins),
	}
}

func (h *TimerHandler) List(c *gin.Context) {
	timers, apiErr := h.timerService.List(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timers": timers})
}

func (h *TimerHandler) Create(c *gin.Context) {
	var req createTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	timer, apiErr := h.timerService.Create(c.Request.Context(), middleware.UserID(c), req.Name)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"timer": timer})
}

func (h *TimerHandler) Get(c *gin.Context) {
	timer, apiErr := h.timerService.Get(c.Request.Context(), middleware.UserID(c), c.Param("name"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timer": timer})
}

func (h *TimerHandler) Update(c *gin.Context) {
	var req updateTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	if req.Name == nil && req.NotificationType == nil {
		writeError(c, apperrors.BadRequest("empty_update", "name or notificationType is required"))
		return
	}

	timer, apiErr := h.timerService.Update(c.Request.Context(), middleware.UserID(c), c.Param("name"), service.UpdateTimerInput{
		Name:             req.Name,
		NotificationType: req.NotificationType,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timer": timer})
}

func (h *TimerHandler) Delete(c *gin.Context) {
	if apiErr := h.timerService.Delete(c.Request.Context(), middleware.UserID(c), c.Param("name")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TimerHandler) DeleteMany(c *gin.Context) {
	var req deleteTimersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	deleted, apiErr := h.timerService.DeleteMany(c.Request.Context(), middleware.UserID(c), req.Names)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *TimerHandler) AddPreset(c *gin.Context) {
	var req presetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	timer, apiErr := h.timerService.AddPreset(c.Request.Context(), middleware.UserID(c), c.Param("name"), req.input())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"timer": timer})
}

func (h *TimerHandler) UpdatePreset(c *gin.Context) {
	order, ok := orderParam(c)
	if !ok {
		return
	}
	var req presetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	timer, apiErr := h.timerService.UpdatePreset(c.Request.Context(), middleware.UserID(c), c.Param("name"), order, req.input())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timer": timer})
}

func (h *TimerHandler) DeletePreset(c *gin.Context) {
	order, ok := orderParam(c)
	if !ok {
		return
	}

	timer, apiErr := h.timerService.DeletePreset(c.Request.Context(), middleware.UserID(c), c.Param("name"), order)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timer": timer})
}

func (h *TimerHandler) DeletePresets(c *gin.Context) {
	var req deletePresetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	timer, apiErr := h.timerService.DeletePresets(c.Request.Context(), middleware.UserID(c), c.Param("name"), req.Orders)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timer": timer})
}

func (h *TimerHandler) MovePreset(c *gin.Context) {
	var req movePresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	if req.From == nil || req.To == nil {
		writeError(c, apperrors.BadRequest("invalid_order", "from and to are required"))
		return
	}

	timer, apiErr := h.timerService.MovePreset(c.Request.Context(), middleware.UserID(c), c.Param("name"), *req.From, *req.To)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timer": timer})
}

// Watch streams a snapshot of the user's timers and presets on connect and
// after every change.
func (h *TimerHandler) Watch(c *gin.Context) {
	// Only the latest snapshot matters, so a stale one is replaced.
	frames := make(chan interface{}, 1)
	send := func(snapshot service.TimerFeed) {
		for {
			select {
			case frames <- snapshot:
				return
			default:
			}
			select {
			case <-frames:
			default:
			}
		}
	}

	unsubscribe, apiErr := h.timerService.Watch(c.Request.Context(), middleware.UserID(c), send)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	defer unsubscribe()

	stream(c, h.originPatterns, frames, nil)
}

func (r presetRequest) input() service.PresetInput {
	return service.PresetInput{
		PresetName:             r.PresetName,
		PresetTimeMillis:       r.PresetTimeMillis,
		NotificationTimeMillis: r.NotificationTimeMillis,
	}
}

func orderParam(c *gin.Context) (int, bool) {
	order, err := strconv.Atoi(c.Param("order"))
	if err != nil || order < 1 {
		writeError(c, apperrors.BadRequest("invalid_order", "order must be a positive integer"))
		return 0, false
	}
	return order, true
}
