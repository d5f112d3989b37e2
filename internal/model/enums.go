package model

import (
	"fmt"
	"strings"
)

type IncidentStatus string

const (
	IncidentStatusOpen       IncidentStatus = "open"
	IncidentStatusInProgress IncidentStatus = "in_progress"
	IncidentStatusOnHold     IncidentStatus = "on_hold"
	IncidentStatusResolved   IncidentStatus = "resolved"
	IncidentStatusClosed     IncidentStatus = "closed"
)

var incidentStatuses = []IncidentStatus{
	IncidentStatusOpen,
	IncidentStatusInProgress,
	IncidentStatusOnHold,
	IncidentStatusResolved,
	IncidentStatusClosed,
}

func ParseIncidentStatus(v string) (IncidentStatus, error) {
	for _, s := range incidentStatuses {
		if strings.EqualFold(v, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown incident status: %q", v)
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

func ParsePriority(v string) (Priority, error) {
	for _, p := range priorities {
		if strings.EqualFold(v, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown priority: %q", v)
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

func ParseSeverity(v string) (Severity, error) {
	for _, s := range severities {
		if strings.EqualFold(v, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown severity: %q", v)
}

type IncidentCategory string

const (
	CategoryNetwork             IncidentCategory = "network"
	CategoryHardware            IncidentCategory = "hardware"
	CategorySoftware            IncidentCategory = "software"
	CategorySecurity            IncidentCategory = "security"
	CategoryDatabase            IncidentCategory = "database"
	CategoryCloudInfrastructure IncidentCategory = "cloud_infrastructure"
	CategoryApplication         IncidentCategory = "application"
	CategoryPerformance         IncidentCategory = "performance"
	CategoryAccessPermissions   IncidentCategory = "access_permissions"
	CategoryOther               IncidentCategory = "other"
)

var incidentCategories = []IncidentCategory{
	CategoryNetwork,
	CategoryHardware,
	CategorySoftware,
	CategorySecurity,
	CategoryDatabase,
	CategoryCloudInfrastructure,
	CategoryApplication,
	CategoryPerformance,
	CategoryAccessPermissions,
	CategoryOther,
}

func ParseIncidentCategory(v string) (IncidentCategory, error) {
	for _, c := range incidentCategories {
		if strings.EqualFold(v, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown incident category: %q", v)
}

type OwnerRole string

const (
	RoleEngineer       OwnerRole = "engineer"
	RoleSeniorEngineer OwnerRole = "senior_engineer"
	RoleTeamLead       OwnerRole = "team_lead"
	RoleManager        OwnerRole = "manager"
	RoleAdmin          OwnerRole = "admin"
)

var ownerRoles = []OwnerRole{RoleEngineer, RoleSeniorEngineer, RoleTeamLead, RoleManager, RoleAdmin}

func ParseOwnerRole(v string) (OwnerRole, error) {
	for _, r := range ownerRoles {
		if strings.EqualFold(v, string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown owner role: %q", v)
}

type TimelineEventType string

const (
	EventCreated         TimelineEventType = "created"
	EventStatusChanged   TimelineEventType = "status_changed"
	EventPriorityChanged TimelineEventType = "priority_changed"
	EventSeverityChanged TimelineEventType = "severity_changed"
	EventAssigned        TimelineEventType = "assigned"
	EventUnassigned      TimelineEventType = "unassigned"
	EventOwnerChanged    TimelineEventType = "owner_changed"
	EventCommentAdded    TimelineEventType = "comment_added"
	EventResolved        TimelineEventType = "resolved"
	EventClosed          TimelineEventType = "closed"
	EventReopened        TimelineEventType = "reopened"
	EventGithubLinked    TimelineEventType = "github_linked"
	EventGithubUpdated   TimelineEventType = "github_updated"
	EventSLABreached     TimelineEventType = "sla_breached"
)
