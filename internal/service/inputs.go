package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/incidentnow/incident-service/internal/model"
)

type CreateIncidentInput struct {
	Title           string
	Description     string
	Priority        model.Priority
	Severity        model.Severity
	Category        model.IncidentCategory
	Tags            []string
	AffectedSystems []string
	AffectedUsers   *int
	OwnerID         uuid.UUID
	AssigneeIDs     []uuid.UUID
	Workaround      *string
	GitHubRepo      *model.GitHubRepo
	DueDate         *time.Time
}

type UpdateIncidentInput struct {
	Title           string
	Description     string
	Status          *model.IncidentStatus
	Priority        model.Priority
	Severity        model.Severity
	Category        model.IncidentCategory
	Tags            []string
	AffectedSystems []string
	AffectedUsers   *int
	OwnerID         uuid.UUID
	AssigneeIDs     []uuid.UUID
	RootCause       *string
	Resolution      *string
	Workaround      *string
	GitHubRepo      *model.GitHubRepo
	DueDate         *time.Time
}

// PatchIncidentInput: nil полей означает «не трогать», включая срезы.
type PatchIncidentInput struct {
	Title           *string
	Description     *string
	Status          *model.IncidentStatus
	Priority        *model.Priority
	Severity        *model.Severity
	Category        *model.IncidentCategory
	Tags            []string
	AffectedSystems []string
	AffectedUsers   *int
	OwnerID         *uuid.UUID
	AssigneeIDs     []uuid.UUID
	RootCause       *string
	Resolution      *string
	Workaround      *string
	GitHubRepo      *model.GitHubRepo
	DueDate         *time.Time
}

type IncidentFilter struct {
	Status         model.IncidentStatus
	Priority       model.Priority
	Severity       model.Severity
	Category       model.IncidentCategory
	OwnerID        uuid.UUID
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
	ResolvedAfter  *time.Time
	ResolvedBefore *time.Time
	HasGithubRepo  *bool
	Search         string
}

type PageRequest struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

func (p PageRequest) normalized() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	return p
}

func (p PageRequest) offset() int {
	return (p.Page - 1) * p.PageSize
}
