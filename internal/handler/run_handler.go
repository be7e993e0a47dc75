package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"multitimer/internal/countdown"
	"multitimer/internal/middleware"
	"multitimer/internal/service"
)

type RunHandler struct {
	runService     *service.RunService
	originPatterns []string
}

type startRunRequest struct {
	TimerName string `json:"timerName"`
}

// eventFrame is the wire form of a countdown event.
type eventFrame struct {
	Type                   countdown.EventType `json:"type"`
	TimerName              string              `json:"timerName"`
	PresetName             string              `json:"presetName"`
	TimerOrder             int                 `json:"timerOrder"`
	SegmentRemainingMillis int64               `json:"segmentRemainingMillis"`
	TotalRemainingMillis   int64               `json:"totalRemainingMillis"`
	At                     time.Time           `json:"at"`
}

func NewRunHandler(runService *service.RunService, corsOrigins []string) *RunHandler {
	return &RunHandler{
		runService:     runService,
		originPatterns: originPatterns(corsOrigins),
	}
}

func (h *RunHandler) Start(c *gin.Context) {
	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	run, apiErr := h.runService.Start(c.Request.Context(), middleware.UserID(c), req.TimerName)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"run": run})
}

func (h *RunHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": h.runService.List(middleware.UserID(c))})
}

func (h *RunHandler) Get(c *gin.Context) {
	run, apiErr := h.runService.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (h *RunHandler) Pause(c *gin.Context) {
	run, apiErr := h.runService.Pause(middleware.UserID(c), c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (h *RunHandler) Resume(c *gin.Context) {
	run, apiErr := h.runService.Resume(middleware.UserID(c), c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (h *RunHandler) Cancel(c *gin.Context) {
	run, apiErr := h.runService.Cancel(middleware.UserID(c), c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (h *RunHandler) TakeAlerts(c *gin.Context) {
	alerts, apiErr := h.runService.TakeAlerts(middleware.UserID(c), c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// Events streams the run's countdown events until it ends. Ticks are dropped
// for a slow client; a milestone makes room by evicting the oldest frame.
func (h *RunHandler) Events(c *gin.Context) {
	frames := make(chan interface{}, streamBuffer)
	send := func(event countdown.Event) {
		frame := eventFrame{
			Type:                   event.Type,
			TimerName:              event.TimerName,
			PresetName:             event.PresetName,
			TimerOrder:             event.TimerOrder,
			SegmentRemainingMillis: event.SegmentRemaining.Milliseconds(),
			TotalRemainingMillis:   event.TotalRemaining.Milliseconds(),
			At:                     event.At,
		}
		for {
			select {
			case frames <- frame:
				return
			default:
			}
			if !event.Milestone() {
				return
			}
			select {
			case <-frames:
			default:
			}
		}
	}

	unsubscribe, done, apiErr := h.runService.Subscribe(middleware.UserID(c), c.Param("id"), send)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	defer unsubscribe()

	stream(c, h.originPatterns, frames, done)
}

func (h *RunHandler) History(c *gin.Context) {
	limit := 50
	rawLimit := c.Query("limit")
	if rawLimit != "" {
		if parsed, err := strconv.Atoi(rawLimit); err == nil {
			limit = parsed
		}
	}

	runs, apiErr := h.runService.History(c.Request.Context(), middleware.UserID(c), limit)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
