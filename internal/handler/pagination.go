package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/incidentnow/incident-service/internal/errs"
	"github.com/incidentnow/incident-service/internal/service"
)

// Pagination — метаданные страничной выдачи.
type Pagination struct {
	Page            int   `json:"page"`
	PageSize        int   `json:"pageSize"`
	TotalItems      int64 `json:"totalItems"`
	TotalPages      int   `json:"totalPages"`
	HasNextPage     bool  `json:"hasNextPage"`
	HasPreviousPage bool  `json:"hasPreviousPage"`
}

type pagedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

func newPagination(page service.PageRequest, totalItems int64) Pagination {
	totalPages := int((totalItems + int64(page.PageSize) - 1) / int64(page.PageSize))
	return Pagination{
		Page:            page.Page,
		PageSize:        page.PageSize,
		TotalItems:      totalItems,
		TotalPages:      totalPages,
		HasNextPage:     page.Page < totalPages,
		HasPreviousPage: page.Page > 1,
	}
}

func paged(data interface{}, page service.PageRequest, totalItems int64) pagedResponse {
	return pagedResponse{Data: data, Pagination: newPagination(page, totalItems)}
}

// pageRequest читает page/pageSize/sortBy/sortOrder из query-строки.
func pageRequest(c *gin.Context) (service.PageRequest, bool) {
	page, ok := intQuery(c, "page", 1)
	if !ok {
		return service.PageRequest{}, false
	}
	pageSize, ok := intQuery(c, "pageSize", 20)
	if !ok {
		return service.PageRequest{}, false
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	req := service.PageRequest{
		Page:      page,
		PageSize:  pageSize,
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	return req, true
}

func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, errs.BadRequest("Invalid value '%s' for parameter '%s'", raw, name))
		return 0, false
	}
	return v, true
}

func boolQuery(c *gin.Context, name string) (*bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		respondError(c, errs.BadRequest("Invalid value '%s' for parameter '%s'", raw, name))
		return nil, false
	}
	return &v, true
}
