package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/incidentnow/incident-service/internal/errs"
	"github.com/incidentnow/incident-service/internal/service"
)

type StatisticsHandler struct {
	svc *service.StatisticsService
}

func NewStatisticsHandler(svc *service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{svc: svc}
}

func (h *StatisticsHandler) Summary(c *gin.Context) {
	summary, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *StatisticsHandler) ByStatus(c *gin.Context) {
	counts, err := h.svc.ByStatus(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *StatisticsHandler) ByPriority(c *gin.Context) {
	counts, err := h.svc.ByPriority(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *StatisticsHandler) ByCategory(c *gin.Context) {
	counts, err := h.svc.ByCategory(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *StatisticsHandler) TopOwners(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 10)
	if !ok {
		return
	}
	counts, err := h.svc.TopOwners(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *StatisticsHandler) ResolutionTime(c *gin.Context) {
	stats, err := h.svc.ResolutionTime(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *StatisticsHandler) Trends(c *gin.Context) {
	var from, to time.Time
	if t, ok := timeQuery(c, "from"); !ok {
		return
	} else if t != nil {
		from = *t
	}
	if t, ok := timeQuery(c, "to"); !ok {
		return
	} else if t != nil {
		to = *t
		// Дата без времени трактуется как конец дня.
		if !strings.Contains(c.Query("to"), "T") {
			to = to.Add(24*time.Hour - time.Second)
		}
	}
	groupBy := c.Query("groupBy")
	switch groupBy {
	case "", "day", "week", "month":
	default:
		respondError(c, errs.BadRequest("Invalid value '%s' for parameter 'groupBy'", groupBy))
		return
	}
	trends, err := h.svc.Trends(c.Request.Context(), from, to, groupBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trends)
}
