package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/incidentnow/incident-service/internal/errs"
	"github.com/incidentnow/incident-service/internal/model"
	"github.com/incidentnow/incident-service/internal/service"
)

type OwnerHandler struct {
	svc      *service.OwnerService
	incident *service.IncidentService
}

func NewOwnerHandler(svc *service.OwnerService, incident *service.IncidentService) *OwnerHandler {
	return &OwnerHandler{svc: svc, incident: incident}
}

type createOwnerRequest struct {
	Name           string  `json:"name" binding:"required,max=255"`
	Email          string  `json:"email" binding:"required,email"`
	Password       string  `json:"password" binding:"required,min=8"`
	Phone          *string `json:"phone"`
	AvatarURL      *string `json:"avatarUrl"`
	Team           string  `json:"team" binding:"required"`
	Role           string  `json:"role" binding:"required"`
	Department     *string `json:"department"`
	Timezone       *string `json:"timezone"`
	SlackHandle    *string `json:"slackHandle"`
	GithubUsername *string `json:"githubUsername"`
}

func (h *OwnerHandler) Create(c *gin.Context) {
	var req createOwnerRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := model.ParseOwnerRole(req.Role)
	if err != nil {
		respondError(c, errs.Validation(err.Error(), errs.FieldError{Field: "role", Message: "unknown value"}))
		return
	}
	owner, err := h.svc.Create(c.Request.Context(), service.CreateOwnerInput{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		Phone:          req.Phone,
		AvatarURL:      req.AvatarURL,
		Team:           req.Team,
		Role:           role,
		Department:     req.Department,
		Timezone:       req.Timezone,
		SlackHandle:    req.SlackHandle,
		GithubUsername: req.GithubUsername,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, owner)
}

func (h *OwnerHandler) List(c *gin.Context) {
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	var f service.OwnerFilter
	if f.Active, ok = boolQuery(c, "active"); !ok {
		return
	}
	f.Team = c.Query("team")
	if raw := c.Query("role"); raw != "" {
		role, err := model.ParseOwnerRole(raw)
		if err != nil {
			respondError(c, errs.BadRequest("Invalid value '%s' for parameter 'role'", raw))
			return
		}
		f.Role = role
	}
	f.Search = c.Query("search")

	owners, total, err := h.svc.List(c.Request.Context(), f, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paged(owners, page, total))
}

func (h *OwnerHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	owner, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, owner)
}

type updateOwnerRequest struct {
	Name           string  `json:"name" binding:"required,max=255"`
	Email          string  `json:"email" binding:"required,email"`
	Password       *string `json:"password"`
	Phone          *string `json:"phone"`
	AvatarURL      *string `json:"avatarUrl"`
	Team           string  `json:"team" binding:"required"`
	Role           string  `json:"role" binding:"required"`
	Department     *string `json:"department"`
	Timezone       *string `json:"timezone"`
	SlackHandle    *string `json:"slackHandle"`
	GithubUsername *string `json:"githubUsername"`
	Active         *bool   `json:"active"`
}

func (h *OwnerHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req updateOwnerRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := model.ParseOwnerRole(req.Role)
	if err != nil {
		respondError(c, errs.Validation(err.Error(), errs.FieldError{Field: "role", Message: "unknown value"}))
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	owner, err := h.svc.Update(c.Request.Context(), id, service.UpdateOwnerInput{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		Phone:          req.Phone,
		AvatarURL:      req.AvatarURL,
		Team:           req.Team,
		Role:           role,
		Department:     req.Department,
		Timezone:       req.Timezone,
		SlackHandle:    req.SlackHandle,
		GithubUsername: req.GithubUsername,
		Active:         active,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, owner)
}

type patchOwnerRequest struct {
	Name           *string `json:"name"`
	Email          *string `json:"email" binding:"omitempty,email"`
	Password       *string `json:"password"`
	Phone          *string `json:"phone"`
	AvatarURL      *string `json:"avatarUrl"`
	Team           *string `json:"team"`
	Role           *string `json:"role"`
	Department     *string `json:"department"`
	Timezone       *string `json:"timezone"`
	SlackHandle    *string `json:"slackHandle"`
	GithubUsername *string `json:"githubUsername"`
	Active         *bool   `json:"active"`
}

func (h *OwnerHandler) Patch(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req patchOwnerRequest
	if !bindJSON(c, &req) {
		return
	}
	in := service.PatchOwnerInput{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		Phone:          req.Phone,
		AvatarURL:      req.AvatarURL,
		Team:           req.Team,
		Department:     req.Department,
		Timezone:       req.Timezone,
		SlackHandle:    req.SlackHandle,
		GithubUsername: req.GithubUsername,
		Active:         req.Active,
	}
	if req.Role != nil {
		role, err := model.ParseOwnerRole(*req.Role)
		if err != nil {
			respondError(c, errs.Validation(err.Error(), errs.FieldError{Field: "role", Message: "unknown value"}))
			return
		}
		in.Role = &role
	}
	owner, err := h.svc.Patch(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, owner)
}

func (h *OwnerHandler) Delete(c *gin.Context) {
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

// Incidents отдаёт инциденты, где owner — ответственный.
func (h *OwnerHandler) Incidents(c *gin.Context) {
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
	items, total, err := h.incident.ByOwner(c.Request.Context(), id, status, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paged(toIncidentResponses(items), page, total))
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *OwnerHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	owner, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Invalid email or password",
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, owner)
}
