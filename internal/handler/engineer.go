package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/incidentnow/incident-service/internal/errs"
	"github.com/incidentnow/incident-service/internal/model"
	"github.com/incidentnow/incident-service/internal/service"
)

type EngineerHandler struct {
	svc      *service.EngineerService
	incident *service.IncidentService
}

func NewEngineerHandler(svc *service.EngineerService, incident *service.IncidentService) *EngineerHandler {
	return &EngineerHandler{svc: svc, incident: incident}
}

type createEngineerRequest struct {
	Name              string   `json:"name" binding:"required,max=255"`
	Email             string   `json:"email" binding:"required,email"`
	Phone             *string  `json:"phone"`
	AvatarURL         *string  `json:"avatarUrl"`
	Timezone          *string  `json:"timezone"`
	SlackHandle       *string  `json:"slackHandle"`
	GithubUsername    *string  `json:"githubUsername"`
	OnCall            bool     `json:"onCall"`
	WorkingHoursStart *string  `json:"workingHoursStart"`
	WorkingHoursEnd   *string  `json:"workingHoursEnd"`
	Categories        []string `json:"categories"`
}

func (h *EngineerHandler) Create(c *gin.Context) {
	var req createEngineerRequest
	if !bindJSON(c, &req) {
		return
	}
	categories, ok := parseCategories(c, req.Categories)
	if !ok {
		return
	}
	engineer, err := h.svc.Create(c.Request.Context(), service.CreateEngineerInput{
		Name:              req.Name,
		Email:             req.Email,
		Phone:             req.Phone,
		AvatarURL:         req.AvatarURL,
		Timezone:          req.Timezone,
		SlackHandle:       req.SlackHandle,
		GithubUsername:    req.GithubUsername,
		OnCall:            req.OnCall,
		WorkingHoursStart: req.WorkingHoursStart,
		WorkingHoursEnd:   req.WorkingHoursEnd,
		Categories:        categories,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, engineer)
}

func (h *EngineerHandler) List(c *gin.Context) {
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	var f service.EngineerFilter
	if f.Active, ok = boolQuery(c, "active"); !ok {
		return
	}
	if f.OnCall, ok = boolQuery(c, "onCall"); !ok {
		return
	}
	f.Search = c.Query("search")

	engineers, total, err := h.svc.List(c.Request.Context(), f, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paged(engineers, page, total))
}

func (h *EngineerHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	engineer, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, engineer)
}

func (h *EngineerHandler) ByCategory(c *gin.Context) {
	raw := c.Param("category")
	category, err := model.ParseIncidentCategory(raw)
	if err != nil {
		respondError(c, errs.BadRequest("Invalid value '%s' for parameter 'category'", raw))
		return
	}
	engineers, err := h.svc.ByCategory(c.Request.Context(), category)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, engineers)
}

type updateEngineerRequest struct {
	Name              string   `json:"name" binding:"required,max=255"`
	Email             string   `json:"email" binding:"required,email"`
	Phone             *string  `json:"phone"`
	AvatarURL         *string  `json:"avatarUrl"`
	Timezone          *string  `json:"timezone"`
	SlackHandle       *string  `json:"slackHandle"`
	GithubUsername    *string  `json:"githubUsername"`
	OnCall            bool     `json:"onCall"`
	WorkingHoursStart *string  `json:"workingHoursStart"`
	WorkingHoursEnd   *string  `json:"workingHoursEnd"`
	Categories        []string `json:"categories"`
	Active            *bool    `json:"active"`
}

func (h *EngineerHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req updateEngineerRequest
	if !bindJSON(c, &req) {
		return
	}
	categories, ok := parseCategories(c, req.Categories)
	if !ok {
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	engineer, err := h.svc.Update(c.Request.Context(), id, service.UpdateEngineerInput{
		Name:              req.Name,
		Email:             req.Email,
		Phone:             req.Phone,
		AvatarURL:         req.AvatarURL,
		Timezone:          req.Timezone,
		SlackHandle:       req.SlackHandle,
		GithubUsername:    req.GithubUsername,
		OnCall:            req.OnCall,
		WorkingHoursStart: req.WorkingHoursStart,
		WorkingHoursEnd:   req.WorkingHoursEnd,
		Categories:        categories,
		Active:            active,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, engineer)
}

type patchEngineerRequest struct {
	Name              *string  `json:"name"`
	Email             *string  `json:"email" binding:"omitempty,email"`
	Phone             *string  `json:"phone"`
	AvatarURL         *string  `json:"avatarUrl"`
	Timezone          *string  `json:"timezone"`
	SlackHandle       *string  `json:"slackHandle"`
	GithubUsername    *string  `json:"githubUsername"`
	OnCall            *bool    `json:"onCall"`
	WorkingHoursStart *string  `json:"workingHoursStart"`
	WorkingHoursEnd   *string  `json:"workingHoursEnd"`
	Categories        []string `json:"categories"`
	Active            *bool    `json:"active"`
}

func (h *EngineerHandler) Patch(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req patchEngineerRequest
	if !bindJSON(c, &req) {
		return
	}
	in := service.PatchEngineerInput{
		Name:              req.Name,
		Email:             req.Email,
		Phone:             req.Phone,
		AvatarURL:         req.AvatarURL,
		Timezone:          req.Timezone,
		SlackHandle:       req.SlackHandle,
		GithubUsername:    req.GithubUsername,
		OnCall:            req.OnCall,
		WorkingHoursStart: req.WorkingHoursStart,
		WorkingHoursEnd:   req.WorkingHoursEnd,
		Active:            req.Active,
	}
	if req.Categories != nil {
		categories, ok := parseCategories(c, req.Categories)
		if !ok {
			return
		}
		in.Categories = categories
	}
	engineer, err := h.svc.Patch(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, engineer)
}

func (h *EngineerHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AssignedIncidents отдаёт инциденты, назначенные инженеру.
func (h *EngineerHandler) AssignedIncidents(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	var status model.IncidentStatus
	if raw := c.Query("status"); raw != "" {
		v, err := model.ParseIncidentStatus(raw)
		if err != nil {
			respondError(c, errs.BadRequest("Invalid value '%s' for parameter 'status'", raw))
			return
		}
		status = v
	}
	items, total, err := h.incident.ByAssignee(c.Request.Context(), id, status, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paged(toIncidentResponses(items), page, total))
}

func parseCategories(c *gin.Context, raw []string) ([]model.IncidentCategory, bool) {
	categories := make([]model.IncidentCategory, 0, len(raw))
	for _, r := range raw {
		v, err := model.ParseIncidentCategory(r)
		if err != nil {
			respondError(c, errs.Validation(err.Error(),
				errs.FieldError{Field: "categories", Message: "unknown value '" + r + "'"}))
			return nil, false
		}
		categories = append(categories, v)
	}
	return categories, true
}
