package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GitHubRepo — ссылка инцидента на source control, хранится в колонках с префиксом github_.
type GitHubRepo struct {
	RepoOwner         *string `gorm:"column:github_repo_owner" json:"repoOwner,omitempty"`
	RepoName          *string `gorm:"column:github_repo_name" json:"repoName,omitempty"`
	Branch            *string `gorm:"column:github_branch" json:"branch,omitempty"`
	IssueNumber       *int    `gorm:"column:github_issue_number" json:"issueNumber,omitempty"`
	PullRequestNumber *int    `gorm:"column:github_pr_number" json:"pullRequestNumber,omitempty"`
	CommitSHA         *string `gorm:"column:github_commit_sha" json:"commitSha,omitempty"`
}

func (g GitHubRepo) IsEmpty() bool {
	return g.RepoOwner == nil && g.RepoName == nil && g.Branch == nil &&
		g.IssueNumber == nil && g.PullRequestNumber == nil && g.CommitSHA == nil
}

func (g GitHubRepo) RepoURL() *string {
	if g.RepoOwner == nil || g.RepoName == nil {
		return nil
	}
	u := "https://github.com/" + *g.RepoOwner + "/" + *g.RepoName
	return &u
}

func (g GitHubRepo) IssueURL() *string {
	if g.IssueNumber == nil {
		return nil
	}
	base := g.RepoURL()
	if base == nil {
		return nil
	}
	u := *base + "/issues/" + strconv.Itoa(*g.IssueNumber)
	return &u
}

func (g GitHubRepo) PullRequestURL() *string {
	if g.PullRequestNumber == nil {
		return nil
	}
	base := g.RepoURL()
	if base == nil {
		return nil
	}
	u := *base + "/pull/" + strconv.Itoa(*g.PullRequestNumber)
	return &u
}

type Incident struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	IncidentNumber  string           `gorm:"type:varchar(32);uniqueIndex;not null" json:"incidentNumber"`
	Title           string           `gorm:"type:varchar(255);not null" json:"title"`
	Description     string           `gorm:"type:text" json:"description"`
	Status          IncidentStatus   `gorm:"type:varchar(32);index;not null" json:"status"`
	Priority        Priority         `gorm:"type:varchar(32);index;not null" json:"priority"`
	Severity        Severity         `gorm:"type:varchar(32);index;not null" json:"severity"`
	Category        IncidentCategory `gorm:"type:varchar(64);index;not null" json:"category"`
	Tags            []string         `gorm:"serializer:json" json:"tags"`
	AffectedSystems []string         `gorm:"serializer:json" json:"affectedSystems"`
	AffectedUsers   *int             `json:"affectedUsers,omitempty"`

	OwnerID   uuid.UUID         `gorm:"type:uuid;index;not null" json:"ownerId"`
	Owner     Owner             `gorm:"foreignKey:OwnerID" json:"-"`
	Assignees []SupportEngineer `gorm:"many2many:incident_assignees" json:"-"`

	RootCause  *string `gorm:"type:text" json:"rootCause,omitempty"`
	Resolution *string `gorm:"type:text" json:"resolution,omitempty"`
	Workaround *string `gorm:"type:text" json:"workaround,omitempty"`

	GitHubRepo GitHubRepo `gorm:"embedded" json:"-"`

	DueDate        *time.Time `json:"dueDate,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
	ClosedAt       *time.Time `json:"closedAt,omitempty"`

	SLABreached       bool `gorm:"column:sla_breached;not null;default:false" json:"slaBreached"`
	TimeToAcknowledge *int `json:"timeToAcknowledge,omitempty"`
	TimeToResolve     *int `json:"timeToResolve,omitempty"`
}

func (i *Incident) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

type Owner struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`
	Email          string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash   string    `gorm:"type:varchar(255);not null" json:"-"`
	Phone          *string   `gorm:"type:varchar(64)" json:"phone,omitempty"`
	AvatarURL      *string   `gorm:"type:varchar(512)" json:"avatarUrl,omitempty"`
	Team           string    `gorm:"type:varchar(255);not null" json:"team"`
	Role           OwnerRole `gorm:"type:varchar(32);not null" json:"role"`
	Department     *string   `gorm:"type:varchar(255)" json:"department,omitempty"`
	Timezone       *string   `gorm:"type:varchar(64)" json:"timezone,omitempty"`
	SlackHandle    *string   `gorm:"type:varchar(255)" json:"slackHandle,omitempty"`
	GithubUsername *string   `gorm:"type:varchar(255)" json:"githubUsername,omitempty"`
	Active         bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (o *Owner) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type SupportEngineer struct {
	ID                uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	Name              string             `gorm:"type:varchar(255);not null" json:"name"`
	Email             string             `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone             *string            `gorm:"type:varchar(64)" json:"phone,omitempty"`
	AvatarURL         *string            `gorm:"type:varchar(512)" json:"avatarUrl,omitempty"`
	Timezone          *string            `gorm:"type:varchar(64)" json:"timezone,omitempty"`
	SlackHandle       *string            `gorm:"type:varchar(255)" json:"slackHandle,omitempty"`
	GithubUsername    *string            `gorm:"type:varchar(255)" json:"githubUsername,omitempty"`
	Active            bool               `gorm:"not null;default:true" json:"active"`
	OnCall            bool               `gorm:"not null;default:false" json:"onCall"`
	WorkingHoursStart *string            `gorm:"type:varchar(5)" json:"workingHoursStart,omitempty"`
	WorkingHoursEnd   *string            `gorm:"type:varchar(5)" json:"workingHoursEnd,omitempty"`
	Categories        []IncidentCategory `gorm:"serializer:json" json:"categories"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

func (s *SupportEngineer) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type Comment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	IncidentID uuid.UUID `gorm:"type:uuid;index;not null" json:"incidentId"`
	AuthorID   uuid.UUID `gorm:"type:uuid;not null" json:"authorId"`
	Author     Owner     `gorm:"foreignKey:AuthorID" json:"-"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Internal   bool      `gorm:"column:is_internal;not null;default:false" json:"isInternal"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// TimelineEvent пишется один раз и никогда не изменяется — append-only журнал инцидента.
type TimelineEvent struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	IncidentID    uuid.UUID         `gorm:"type:uuid;index:idx_timeline_incident_ts;not null" json:"incidentId"`
	EventType     TimelineEventType `gorm:"type:varchar(32);not null" json:"eventType"`
	Description   string            `gorm:"type:varchar(512);not null" json:"description"`
	PreviousValue *string           `gorm:"type:varchar(255)" json:"previousValue,omitempty"`
	NewValue      *string           `gorm:"type:varchar(255)" json:"newValue,omitempty"`
	ActorID       *uuid.UUID        `gorm:"type:uuid" json:"actorId,omitempty"`
	Actor         *Owner            `gorm:"foreignKey:ActorID" json:"-"`
	Timestamp     time.Time         `gorm:"index:idx_timeline_incident_ts;not null" json:"timestamp"`
}

func (e *TimelineEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return nil
}
