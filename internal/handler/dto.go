package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/incidentnow/incident-service/internal/model"
)

type OwnerSummary struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	AvatarURL *string         `json:"avatarUrl,omitempty"`
	Team      string          `json:"team"`
	Role      model.OwnerRole `json:"role"`
}

type EngineerSummary struct {
	ID         uuid.UUID                `json:"id"`
	Name       string                   `json:"name"`
	Email      string                   `json:"email"`
	AvatarURL  *string                  `json:"avatarUrl,omitempty"`
	OnCall     bool                     `json:"onCall"`
	Categories []model.IncidentCategory `json:"categories"`
}

type githubRepoResponse struct {
	RepoOwner         *string `json:"repoOwner,omitempty"`
	RepoName          *string `json:"repoName,omitempty"`
	Branch            *string `json:"branch,omitempty"`
	IssueNumber       *int    `json:"issueNumber,omitempty"`
	PullRequestNumber *int    `json:"pullRequestNumber,omitempty"`
	CommitSHA         *string `json:"commitSha,omitempty"`
	RepoURL           *string `json:"repoUrl,omitempty"`
	IssueURL          *string `json:"issueUrl,omitempty"`
	PullRequestURL    *string `json:"pullRequestUrl,omitempty"`
}

// IncidentResponse — представление инцидента наружу: владелец и исполнители
// сведены к кратким карточкам.
type IncidentResponse struct {
	ID                uuid.UUID              `json:"id"`
	IncidentNumber    string                 `json:"incidentNumber"`
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	Status            model.IncidentStatus   `json:"status"`
	Priority          model.Priority         `json:"priority"`
	Severity          model.Severity         `json:"severity"`
	Category          model.IncidentCategory `json:"category"`
	Tags              []string               `json:"tags"`
	AffectedSystems   []string               `json:"affectedSystems"`
	AffectedUsers     *int                   `json:"affectedUsers,omitempty"`
	Owner             OwnerSummary           `json:"owner"`
	Assignees         []EngineerSummary      `json:"assignees"`
	RootCause         *string                `json:"rootCause,omitempty"`
	Resolution        *string                `json:"resolution,omitempty"`
	Workaround        *string                `json:"workaround,omitempty"`
	GitHubRepo        *githubRepoResponse    `json:"githubRepo,omitempty"`
	DueDate           *time.Time             `json:"dueDate,omitempty"`
	AcknowledgedAt    *time.Time             `json:"acknowledgedAt,omitempty"`
	ResolvedAt        *time.Time             `json:"resolvedAt,omitempty"`
	ClosedAt          *time.Time             `json:"closedAt,omitempty"`
	SLABreached       bool                   `json:"slaBreached"`
	TimeToAcknowledge *int                   `json:"timeToAcknowledgeMinutes,omitempty"`
	TimeToResolve     *int                   `json:"timeToResolveMinutes,omitempty"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
}

type CommentResponse struct {
	ID         uuid.UUID    `json:"id"`
	IncidentID uuid.UUID    `json:"incidentId"`
	Author     OwnerSummary `json:"author"`
	Content    string       `json:"content"`
	IsInternal bool         `json:"isInternal"`
	CreatedAt  time.Time    `json:"createdAt"`
}

type TimelineEventResponse struct {
	ID            uuid.UUID               `json:"id"`
	IncidentID    uuid.UUID               `json:"incidentId"`
	EventType     model.TimelineEventType `json:"eventType"`
	Description   string                  `json:"description"`
	PreviousValue *string                 `json:"previousValue,omitempty"`
	NewValue      *string                 `json:"newValue,omitempty"`
	Actor         *OwnerSummary           `json:"actor,omitempty"`
	Timestamp     time.Time               `json:"timestamp"`
}

func toOwnerSummary(o model.Owner) OwnerSummary {
	return OwnerSummary{
		ID:        o.ID,
		Name:      o.Name,
		Email:     o.Email,
		AvatarURL: o.AvatarURL,
		Team:      o.Team,
		Role:      o.Role,
	}
}

func toEngineerSummary(e model.SupportEngineer) EngineerSummary {
	return EngineerSummary{
		ID:         e.ID,
		Name:       e.Name,
		Email:      e.Email,
		AvatarURL:  e.AvatarURL,
		OnCall:     e.OnCall,
		Categories: e.Categories,
	}
}

func toGithubRepoResponse(r model.GitHubRepo) *githubRepoResponse {
	if r.IsEmpty() {
		return nil
	}
	return &githubRepoResponse{
		RepoOwner:         r.RepoOwner,
		RepoName:          r.RepoName,
		Branch:            r.Branch,
		IssueNumber:       r.IssueNumber,
		PullRequestNumber: r.PullRequestNumber,
		CommitSHA:         r.CommitSHA,
		RepoURL:           r.RepoURL(),
		IssueURL:          r.IssueURL(),
		PullRequestURL:    r.PullRequestURL(),
	}
}

func toIncidentResponse(inc *model.Incident) IncidentResponse {
	assignees := make([]EngineerSummary, 0, len(inc.Assignees))
	for _, a := range inc.Assignees {
		assignees = append(assignees, toEngineerSummary(a))
	}
	tags := inc.Tags
	if tags == nil {
		tags = []string{}
	}
	systems := inc.AffectedSystems
	if systems == nil {
		systems = []string{}
	}
	return IncidentResponse{
		ID:                inc.ID,
		IncidentNumber:    inc.IncidentNumber,
		Title:             inc.Title,
		Description:       inc.Description,
		Status:            inc.Status,
		Priority:          inc.Priority,
		Severity:          inc.Severity,
		Category:          inc.Category,
		Tags:              tags,
		AffectedSystems:   systems,
		AffectedUsers:     inc.AffectedUsers,
		Owner:             toOwnerSummary(inc.Owner),
		Assignees:         assignees,
		RootCause:         inc.RootCause,
		Resolution:        inc.Resolution,
		Workaround:        inc.Workaround,
		GitHubRepo:        toGithubRepoResponse(inc.GitHubRepo),
		DueDate:           inc.DueDate,
		AcknowledgedAt:    inc.AcknowledgedAt,
		ResolvedAt:        inc.ResolvedAt,
		ClosedAt:          inc.ClosedAt,
		SLABreached:       inc.SLABreached,
		TimeToAcknowledge: inc.TimeToAcknowledge,
		TimeToResolve:     inc.TimeToResolve,
		CreatedAt:         inc.CreatedAt,
		UpdatedAt:         inc.UpdatedAt,
	}
}

func toIncidentResponses(items []model.Incident) []IncidentResponse {
	out := make([]IncidentResponse, 0, len(items))
	for i := range items {
		out = append(out, toIncidentResponse(&items[i]))
	}
	return out
}

func toCommentResponse(c *model.Comment) CommentResponse {
	return CommentResponse{
		ID:         c.ID,
		IncidentID: c.IncidentID,
		Author:     toOwnerSummary(c.Author),
		Content:    c.Content,
		IsInternal: c.Internal,
		CreatedAt:  c.CreatedAt,
	}
}

func toTimelineResponse(ev *model.TimelineEvent) TimelineEventResponse {
	resp := TimelineEventResponse{
		ID:            ev.ID,
		IncidentID:    ev.IncidentID,
		EventType:     ev.EventType,
		Description:   ev.Description,
		PreviousValue: ev.PreviousValue,
		NewValue:      ev.NewValue,
		Timestamp:     ev.Timestamp,
	}
	if ev.Actor != nil {
		actor := toOwnerSummary(*ev.Actor)
		resp.Actor = &actor
	}
	return resp
}
