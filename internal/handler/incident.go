package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/incidentnow/incident-service/internal/errs"
	"github.com/incidentnow/incident-service/internal/model"
	"github.com/incidentnow/incident-service/internal/service"
)

type IncidentHandler struct {
	svc *service.IncidentService
}

func NewIncidentHandler(svc *service.IncidentService) *IncidentHandler {
	return &IncidentHandler{svc: svc}
}

type githubRepoRequest struct {
	RepoOwner         *string `json:"repoOwner"`
	RepoName          *string `json:"repoName"`
	Branch            *string `json:"branch"`
	IssueNumber       *int    `json:"issueNumber"`
	PullRequestNumber *int    `json:"pullRequestNumber"`
	CommitSHA         *string `json:"commitSha"`
}

func (r *githubRepoRequest) toModel() *model.GitHubRepo {
	if r == nil {
		return nil
	}
	return &model.GitHubRepo{
		RepoOwner:         r.RepoOwner,
		RepoName:          r.RepoName,
		Branch:            r.Branch,
		IssueNumber:       r.IssueNumber,
		PullRequestNumber: r.PullRequestNumber,
		CommitSHA:         r.CommitSHA,
	}
}

type createIncidentRequest struct {
	Title           string             `json:"title" binding:"required,max=255"`
	Description     string             `json:"description"`
	Priority        string             `json:"priority" binding:"required"`
	Severity        string             `json:"severity" binding:"required"`
	Category        string             `json:"category" binding:"required"`
	Tags            []string           `json:"tags"`
	AffectedSystems []string           `json:"affectedSystems"`
	AffectedUsers   *int               `json:"affectedUsers"`
	OwnerID         string             `json:"ownerId" binding:"required,uuid"`
	AssigneeIDs     []string           `json:"assigneeIds"`
	Workaround      *string            `json:"workaround"`
	GitHubRepo      *githubRepoRequest `json:"githubRepo"`
	DueDate         *time.Time         `json:"dueDate"`
}

func (h *IncidentHandler) Create(c *gin.Context) {
	var req createIncidentRequest
	if !bindJSON(c, &req) {
		return
	}
	priority, err := model.ParsePriority(req.Priority)
	if err != nil {
		respondError(c, errs.Validation(err.Error(), errs.FieldError{Field: "priority", Message: "unknown value"}))
		return
	}
	severity, err := model.ParseSeverity(req.Severity)
	if err != nil {
		respondError(c, errs.Validation(err.Error(), errs.FieldError{Field: "severity", Message: "unknown value"}))
		return
	}
	category, err := model.ParseIncidentCategory(req.Category)
	if err != nil {
		respondError(c, errs.Validation(err.Error(), errs.FieldError{Field: "category", Message: "unknown value"}))
		return
	}
	ownerID, _ := uuid.Parse(req.OwnerID)
	assigneeIDs, ok := parseUUIDs(c, req.AssigneeIDs, "assigneeIds")
	if !ok {
		return
	}

	incident, err := h.svc.Create(c.Request.Context(), service.CreateIncidentInput{
		Title:           req.Title,
		Description:     req.Description,
		Priority:        priority,
		Severity:        severity,
		Category:        category,
		Tags:            req.Tags,
		AffectedSystems: req.AffectedSystems,
		AffectedUsers:   req.AffectedUsers,
		OwnerID:         ownerID,
		AssigneeIDs:     assigneeIDs,
		Workaround:      req.Workaround,
		GitHubRepo:      req.GitHubRepo.toModel(),
		DueDate:         req.DueDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toIncidentResponse(incident))
}

func (h *IncidentHandler) List(c *gin.Context) {
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	filter, ok := incidentFilter(c)
	if !ok {
		return
	}
	items, total, err := h.svc.List(c.Request.Context(), filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paged(toIncidentResponses(items), page, total))
}

func (h *IncidentHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	incident, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIncidentResponse(incident))
}

type updateIncidentRequest struct {
	Title           string             `json:"title" binding:"required,max=255"`
	Description     string             `json:"description"`
	Status          *string            `json:"status"`
	Priority        string             `json:"priority" binding:"required"`
	Severity        string             `json:"severity" binding:"required"`
	Category        string             `json:"category" binding:"required"`
	Tags            []string           `json:"tags"`
	AffectedSystems []string           `json:"affectedSystems"`
	AffectedUsers   *int               `json:"affectedUsers"`
	OwnerID         string             `json:"ownerId" binding:"required,uuid"`
	AssigneeIDs     []string           `json:"assigneeIds"`
	RootCause       *string            `json:"rootCause"`
	Resolution      *string            `json:"resolution"`
	Workaround      *string            `json:"workaround"`
	GitHubRepo      *githubRepoRequest `json:"githubRepo"`
	DueDate         *time.Time         `json:"dueDate"`
}

func (h *IncidentHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req updateIncidentRequest
	if !bindJSON(c, &req) {
		return
	}
	priority, err := model.ParsePriority(req.Priority)
	if err != nil {
		respondError(c, errs.Validation(err.Error(), errs.FieldError{Field: "priority", Message: "unknown value"}))
		return
	}
	severity, err := model.ParseSeverity(req.Severity)
	if err != nil {
		respondError(c, errs.Validation(err.Error(), errs.FieldError{Field: "severity", Message: "unknown value"}))
		return
	}
	category, err := model.ParseIncidentCategory(req.Category)
	if err != nil {
		respondError(c, errs.Validation(err.Error(), errs.FieldError{Field: "category", Message: "unknown value"}))
		return
	}
	var status *model.IncidentStatus
	if req.Status != nil {
		s, err := model.ParseIncidentStatus(*req.Status)
		if err != nil {
			respondError(c, errs.Validation(err.Error(), errs.FieldError{Field: "status", Message: "unknown value"}))
			return
		}
		status = &s
	}
	ownerID, _ := uuid.Parse(req.OwnerID)
	assigneeIDs, ok := parseUUIDs(c, req.AssigneeIDs, "assigneeIds")
	if !ok {
		return
	}

	incident, err := h.svc.Update(c.Request.Context(), id, service.UpdateIncidentInput{
		Title:           req.Title,
		Description:     req.Description,
		Status:          status,
		Priority:        priority,
		Severity:        severity,
		Category:        category,
		Tags:            req.Tags,
		AffectedSystems: req.AffectedSystems,
		AffectedUsers:   req.AffectedUsers,
		OwnerID:         ownerID,
		AssigneeIDs:     assigneeIDs,
		RootCause:       req.RootCause,
		Resolution:      req.Resolution,
		Workaround:      req.Workaround,
		GitHubRepo:      req.GitHubRepo.toModel(),
		DueDate:         req.DueDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIncidentResponse(incident))
}

type patchIncidentRequest struct {
	Title           *string            `json:"title"`
	Description     *string            `json:"description"`
	Status          *string            `json:"status"`
	Priority        *string            `json:"priority"`
	Severity        *string            `json:"severity"`
	Category        *string            `json:"category"`
	Tags            []string           `json:"tags"`
	AffectedSystems []string           `json:"affectedSystems"`
	AffectedUsers   *int               `json:"affectedUsers"`
	OwnerID         *string            `json:"ownerId"`
	AssigneeIDs     []string           `json:"assigneeIds"`
	RootCause       *string            `json:"rootCause"`
	Resolution      *string            `json:"resolution"`
	Workaround      *string            `json:"workaround"`
	GitHubRepo      *githubRepoRequest `json:"githubRepo"`
	DueDate         *time.Time         `json:"dueDate"`
}

func (h *IncidentHandler) Patch(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req patchIncidentRequest
	if !bindJSON(c, &req) {
		return
	}
	in := service.PatchIncidentInput{
		Title:           req.Title,
		Description:     req.Description,
		Tags:            req.Tags,
		AffectedSystems: req.AffectedSystems,
		AffectedUsers:   req.AffectedUsers,
		RootCause:       req.RootCause,
		Resolution:      req.Resolution,
		Workaround:      req.Workaround,
		GitHubRepo:      req.GitHubRepo.toModel(),
		DueDate:         req.DueDate,
	}
	if req.Status != nil {
		s, err := model.ParseIncidentStatus(*req.Status)
		if err != nil {
			respondError(c, errs.Validation(err.Error(), errs.FieldError{Field: "status", Message: "unknown value"}))
			return
		}
		in.Status = &s
	}
	if req.Priority != nil {
		p, err := model.ParsePriority(*req.Priority)
		if err != nil {
			respondError(c, errs.Validation(err.Error(), errs.FieldError{Field: "priority", Message: "unknown value"}))
			return
		}
		in.Priority = &p
	}
	if req.Severity != nil {
		s, err := model.ParseSeverity(*req.Severity)
		if err != nil {
			respondError(c, errs.Validation(err.Error(), errs.FieldError{Field: "severity", Message: "unknown value"}))
			return
		}
		in.Severity = &s
	}
	if req.Category != nil {
		cat, err := model.ParseIncidentCategory(*req.Category)
		if err != nil {
			respondError(c, errs.Validation(err.Error(), errs.FieldError{Field: "category", Message: "unknown value"}))
			return
		}
		in.Category = &cat
	}
	if req.OwnerID != nil {
		ownerID, err := uuid.Parse(*req.OwnerID)
		if err != nil {
			respondError(c, errs.Validation("Invalid owner ID", errs.FieldError{Field: "ownerId", Message: "must be a UUID"}))
			return
		}
		in.OwnerID = &ownerID
	}
	if req.AssigneeIDs != nil {
		ids, ok := parseUUIDs(c, req.AssigneeIDs, "assigneeIds")
		if !ok {
			return
		}
		in.AssigneeIDs = ids
	}

	incident, err := h.svc.Patch(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIncidentResponse(incident))
}

func (h *IncidentHandler) Delete(c *gin.Context) {
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

type resolveIncidentRequest struct {
	RootCause  string `json:"rootCause" binding:"required"`
	Resolution string `json:"resolution" binding:"required"`
}

func (h *IncidentHandler) Resolve(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req resolveIncidentRequest
	if !bindJSON(c, &req) {
		return
	}
	incident, err := h.svc.Resolve(c.Request.Context(), id, req.RootCause, req.Resolution)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIncidentResponse(incident))
}

type closeIncidentRequest struct {
	ClosingNotes string `json:"closingNotes"`
}

func (h *IncidentHandler) Close(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	// Тело опционально: закрыть можно и без заметок.
	var req closeIncidentRequest
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &req) {
			return
		}
	}
	incident, err := h.svc.Close(c.Request.Context(), id, req.ClosingNotes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIncidentResponse(incident))
}

type reopenIncidentRequest struct {
	Reason string `json:"reason"`
}

func (h *IncidentHandler) Reopen(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req reopenIncidentRequest
	if !bindJSON(c, &req) {
		return
	}
	incident, err := h.svc.Reopen(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIncidentResponse(incident))
}

type assignIncidentRequest struct {
	AssigneeIDs []string `json:"assigneeIds" binding:"required"`
}

func (h *IncidentHandler) Assign(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req assignIncidentRequest
	if !bindJSON(c, &req) {
		return
	}
	ids, ok := parseUUIDs(c, req.AssigneeIDs, "assigneeIds")
	if !ok {
		return
	}
	incident, err := h.svc.Assign(c.Request.Context(), id, ids)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIncidentResponse(incident))
}

func (h *IncidentHandler) ListComments(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	comments, total, err := h.svc.ListComments(c.Request.Context(), id, page)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]CommentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, toCommentResponse(&comments[i]))
	}
	c.JSON(http.StatusOK, paged(out, page, total))
}

type addCommentRequest struct {
	Content    string `json:"content" binding:"required"`
	IsInternal bool   `json:"isInternal"`
}

func (h *IncidentHandler) AddComment(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req addCommentRequest
	if !bindJSON(c, &req) {
		return
	}
	comment, err := h.svc.AddComment(c.Request.Context(), id, req.Content, req.IsInternal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCommentResponse(comment))
}

func (h *IncidentHandler) Timeline(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	timeline, err := h.svc.Timeline(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]TimelineEventResponse, 0, len(timeline))
	for i := range timeline {
		out = append(out, toTimelineResponse(&timeline[i]))
	}
	c.JSON(http.StatusOK, out)
}

// incidentFilter собирает фильтры списка из query-строки.
func incidentFilter(c *gin.Context) (service.IncidentFilter, bool) {
	var f service.IncidentFilter
	if raw := c.Query("status"); raw != "" {
		v, err := model.ParseIncidentStatus(raw)
		if err != nil {
			respondError(c, errs.BadRequest("Invalid value '%s' for parameter 'status'", raw))
			return f, false
		}
		f.Status = v
	}
	if raw := c.Query("priority"); raw != "" {
		v, err := model.ParsePriority(raw)
		if err != nil {
			respondError(c, errs.BadRequest("Invalid value '%s' for parameter 'priority'", raw))
			return f, false
		}
		f.Priority = v
	}
	if raw := c.Query("severity"); raw != "" {
		v, err := model.ParseSeverity(raw)
		if err != nil {
			respondError(c, errs.BadRequest("Invalid value '%s' for parameter 'severity'", raw))
			return f, false
		}
		f.Severity = v
	}
	if raw := c.Query("category"); raw != "" {
		v, err := model.ParseIncidentCategory(raw)
		if err != nil {
			respondError(c, errs.BadRequest("Invalid value '%s' for parameter 'category'", raw))
			return f, false
		}
		f.Category = v
	}
	if raw := c.Query("ownerId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, errs.BadRequest("Invalid value '%s' for parameter 'ownerId'", raw))
			return f, false
		}
		f.OwnerID = id
	}
	var ok bool
	if f.CreatedAfter, ok = timeQuery(c, "createdAfter"); !ok {
		return f, false
	}
	if f.CreatedBefore, ok = timeQuery(c, "createdBefore"); !ok {
		return f, false
	}
	if f.ResolvedAfter, ok = timeQuery(c, "resolvedAfter"); !ok {
		return f, false
	}
	if f.ResolvedBefore, ok = timeQuery(c, "resolvedBefore"); !ok {
		return f, false
	}
	if f.HasGithubRepo, ok = boolQuery(c, "hasGithubRepo"); !ok {
		return f, false
	}
	f.Search = c.Query("search")
	return f, true
}

func parseUUIDs(c *gin.Context, raw []string, field string) ([]uuid.UUID, bool) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			respondError(c, errs.Validation("Invalid ID in "+field,
				errs.FieldError{Field: field, Message: "'" + r + "' is not a UUID"}))
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// timeQuery принимает дату или метку времени: 2006-01-02, RFC3339
// или 2006-01-02T15:04:05.
func timeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	respondError(c, errs.BadRequest("Invalid value '%s' for parameter '%s'", raw, name))
	return nil, false
}
