package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/incidentnow/incident-service/internal/errs"
	"github.com/incidentnow/incident-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIncident(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")

	inc, err := svc.Create(context.Background(), CreateIncidentInput{
		Title:    "API latency spike",
		Priority: model.PriorityCritical,
		Severity: model.SeverityHigh,
		Category: model.CategoryPerformance,
		Tags:     []string{"api", "latency"},
		OwnerID:  owner.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, model.IncidentStatusOpen, inc.Status)
	assert.Equal(t, fmt.Sprintf("INC-%d-0001", time.Now().Year()), inc.IncidentNumber)
	assert.Equal(t, owner.ID, inc.Owner.ID)

	timeline, err := svc.Timeline(context.Background(), inc.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	assert.Equal(t, model.EventCreated, timeline[0].EventType)
	assert.Contains(t, timeline[0].Description, inc.IncidentNumber)
}

func TestCreateIncidentNumbersAreSequential(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")

	first := seedIncident(t, svc, owner, "first")
	second := seedIncident(t, svc, owner, "second")

	year := time.Now().Year()
	assert.Equal(t, fmt.Sprintf("INC-%d-0001", year), first.IncidentNumber)
	assert.Equal(t, fmt.Sprintf("INC-%d-0002", year), second.IncidentNumber)
}

func TestInitSequenceResumesFromStoredMax(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	seedIncident(t, svc, owner, "first")
	seedIncident(t, svc, owner, "second")

	restarted := newIncidentService(db)
	require.NoError(t, restarted.InitSequence(context.Background()))
	inc := seedIncident(t, restarted, owner, "after restart")
	assert.Equal(t, fmt.Sprintf("INC-%d-0003", time.Now().Year()), inc.IncidentNumber)
}

func TestCreateIncidentUnknownOwner(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)

	_, err := svc.Create(context.Background(), CreateIncidentInput{
		Title:    "orphan",
		Priority: model.PriorityLow,
		Severity: model.SeverityLow,
		Category: model.CategoryOther,
		OwnerID:  uuid.New(),
	})
	require.Error(t, err)
	assert.Equal(t, errs.CodeNotFound, errs.CodeOf(err))
}

func TestAssignMovesOpenIncidentToInProgress(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	eng := seedEngineer(t, db, "Bob", "bob@example.com", model.CategorySoftware)
	inc := seedIncident(t, svc, owner, "broken build")

	updated, err := svc.Assign(context.Background(), inc.ID, []uuid.UUID{eng.ID})
	require.NoError(t, err)

	assert.Equal(t, model.IncidentStatusInProgress, updated.Status)
	require.NotNil(t, updated.AcknowledgedAt)
	require.NotNil(t, updated.TimeToAcknowledge)
	assert.Equal(t, 0, *updated.TimeToAcknowledge)
	require.Len(t, updated.Assignees, 1)
	assert.Equal(t, eng.ID, updated.Assignees[0].ID)

	timeline, err := svc.Timeline(context.Background(), inc.ID)
	require.NoError(t, err)
	last := timeline[len(timeline)-1]
	assert.Equal(t, model.EventAssigned, last.EventType)
	assert.Equal(t, "Assigned to: Bob", last.Description)
}

func TestAssignReplacesAssigneeSet(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	first := seedEngineer(t, db, "Bob", "bob@example.com")
	second := seedEngineer(t, db, "Carol", "carol@example.com")
	inc := seedIncident(t, svc, owner, "flaky queue")

	_, err := svc.Assign(context.Background(), inc.ID, []uuid.UUID{first.ID})
	require.NoError(t, err)
	updated, err := svc.Assign(context.Background(), inc.ID, []uuid.UUID{second.ID})
	require.NoError(t, err)

	require.Len(t, updated.Assignees, 1)
	assert.Equal(t, second.ID, updated.Assignees[0].ID)
	// Статус уже in_progress, повторное назначение его не меняет.
	assert.Equal(t, model.IncidentStatusInProgress, updated.Status)
}

func TestAssignRequiresAssignees(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	inc := seedIncident(t, svc, owner, "no assignees")

	_, err := svc.Assign(context.Background(), inc.ID, nil)
	require.Error(t, err)
	assert.Equal(t, errs.CodeBadRequest, errs.CodeOf(err))
}

func TestResolveIncident(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	inc := seedIncident(t, svc, owner, "db down")

	resolved, err := svc.Resolve(context.Background(), inc.ID, "disk full", "expanded volume")
	require.NoError(t, err)

	assert.Equal(t, model.IncidentStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	require.NotNil(t, resolved.TimeToResolve)
	require.NotNil(t, resolved.RootCause)
	assert.Equal(t, "disk full", *resolved.RootCause)

	timeline, err := svc.Timeline(context.Background(), inc.ID)
	require.NoError(t, err)
	last := timeline[len(timeline)-1]
	assert.Equal(t, model.EventResolved, last.EventType)
	require.NotNil(t, last.PreviousValue)
	assert.Equal(t, "open", *last.PreviousValue)
	require.NotNil(t, last.NewValue)
	assert.Equal(t, "resolved", *last.NewValue)
}

func TestResolveAlreadyResolvedConflicts(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	inc := seedIncident(t, svc, owner, "db down")
	mustResolve(t, svc, inc.ID)

	_, err := svc.Resolve(context.Background(), inc.ID, "again", "again")
	require.Error(t, err)
	assert.Equal(t, errs.CodeConflict, errs.CodeOf(err))
}

func TestCloseRequiresResolved(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	inc := seedIncident(t, svc, owner, "still open")

	_, err := svc.Close(context.Background(), inc.ID, "")
	require.Error(t, err)
	assert.Equal(t, errs.CodeConflict, errs.CodeOf(err))
}

func TestCloseResolvedIncident(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	inc := seedIncident(t, svc, owner, "db down")
	mustResolve(t, svc, inc.ID)

	closed, err := svc.Close(context.Background(), inc.ID, "verified in prod")
	require.NoError(t, err)
	assert.Equal(t, model.IncidentStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	timeline, err := svc.Timeline(context.Background(), inc.ID)
	require.NoError(t, err)
	last := timeline[len(timeline)-1]
	assert.Equal(t, model.EventClosed, last.EventType)
	assert.Equal(t, "Incident closed: verified in prod", last.Description)
}

func TestReopenClearsResolutionTimestamps(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	inc := seedIncident(t, svc, owner, "db down")
	mustResolve(t, svc, inc.ID)
	_, err := svc.Close(context.Background(), inc.ID, "")
	require.NoError(t, err)

	reopened, err := svc.Reopen(context.Background(), inc.ID, "issue came back")
	require.NoError(t, err)

	assert.Equal(t, model.IncidentStatusOpen, reopened.Status)
	assert.Nil(t, reopened.ResolvedAt)
	assert.Nil(t, reopened.ClosedAt)
	assert.Nil(t, reopened.TimeToResolve)

	timeline, err := svc.Timeline(context.Background(), inc.ID)
	require.NoError(t, err)
	last := timeline[len(timeline)-1]
	assert.Equal(t, model.EventReopened, last.EventType)
	assert.Equal(t, "Incident reopened: issue came back", last.Description)
	require.NotNil(t, last.PreviousValue)
	assert.Equal(t, "closed", *last.PreviousValue)
}

func TestReopenRequiresReason(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	inc := seedIncident(t, svc, owner, "db down")
	mustResolve(t, svc, inc.ID)

	_, err := svc.Reopen(context.Background(), inc.ID, "   ")
	require.Error(t, err)
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))
}

func TestReopenOpenIncidentConflicts(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	inc := seedIncident(t, svc, owner, "db down")

	_, err := svc.Reopen(context.Background(), inc.ID, "not yet resolved")
	require.Error(t, err)
	assert.Equal(t, errs.CodeConflict, errs.CodeOf(err))
}

func TestPatchRecordsEventPerChangedField(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	inc := seedIncident(t, svc, owner, "slow dashboard")

	status := model.IncidentStatusOnHold
	priority := model.PriorityLow
	severity := model.SeverityHigh
	_, err := svc.Patch(context.Background(), inc.ID, PatchIncidentInput{
		Status:   &status,
		Priority: &priority,
		Severity: &severity,
	})
	require.NoError(t, err)

	timeline, err := svc.Timeline(context.Background(), inc.ID)
	require.NoError(t, err)
	types := make([]model.TimelineEventType, 0, len(timeline))
	for _, ev := range timeline {
		types = append(types, ev.EventType)
	}
	assert.Contains(t, types, model.EventStatusChanged)
	assert.Contains(t, types, model.EventPriorityChanged)
	assert.Contains(t, types, model.EventSeverityChanged)
	// created + три изменения
	assert.Len(t, timeline, 4)
}

func TestPatchSameValueRecordsNoEvent(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	inc := seedIncident(t, svc, owner, "noop patch")

	priority := inc.Priority
	_, err := svc.Patch(context.Background(), inc.ID, PatchIncidentInput{Priority: &priority})
	require.NoError(t, err)

	timeline, err := svc.Timeline(context.Background(), inc.ID)
	require.NoError(t, err)
	assert.Len(t, timeline, 1)
}

func TestPatchOwnerChangeRecordsNames(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	alice := seedOwner(t, db, "Alice", "alice@example.com")
	dave := seedOwner(t, db, "Dave", "dave@example.com")
	inc := seedIncident(t, svc, alice, "handover")

	updated, err := svc.Patch(context.Background(), inc.ID, PatchIncidentInput{OwnerID: &dave.ID})
	require.NoError(t, err)
	assert.Equal(t, dave.ID, updated.OwnerID)

	timeline, err := svc.Timeline(context.Background(), inc.ID)
	require.NoError(t, err)
	last := timeline[len(timeline)-1]
	assert.Equal(t, model.EventOwnerChanged, last.EventType)
	require.NotNil(t, last.PreviousValue)
	assert.Equal(t, "Alice", *last.PreviousValue)
	require.NotNil(t, last.NewValue)
	assert.Equal(t, "Dave", *last.NewValue)
}

func TestPatchLinksGithubRepo(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	inc := seedIncident(t, svc, owner, "bug with upstream issue")

	repoOwner, repoName := "incidentnow", "backend"
	issue := 42
	updated, err := svc.Patch(context.Background(), inc.ID, PatchIncidentInput{
		GitHubRepo: &model.GitHubRepo{RepoOwner: &repoOwner, RepoName: &repoName, IssueNumber: &issue},
	})
	require.NoError(t, err)
	require.NotNil(t, updated.GitHubRepo.RepoURL())
	assert.Equal(t, "https://github.com/incidentnow/backend", *updated.GitHubRepo.RepoURL())
	require.NotNil(t, updated.GitHubRepo.IssueURL())
	assert.Equal(t, "https://github.com/incidentnow/backend/issues/42", *updated.GitHubRepo.IssueURL())

	timeline, err := svc.Timeline(context.Background(), inc.ID)
	require.NoError(t, err)
	last := timeline[len(timeline)-1]
	assert.Equal(t, model.EventGithubLinked, last.EventType)
}

func TestUpdateRecordsEventsOnlyOnActualChange(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	inc := seedIncident(t, svc, owner, "full rewrite")

	updated, err := svc.Update(context.Background(), inc.ID, UpdateIncidentInput{
		Title:    "full rewrite v2",
		Priority: model.PriorityLow, // was high
		Severity: inc.Severity,
		Category: inc.Category,
		OwnerID:  owner.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "full rewrite v2", updated.Title)
	assert.Equal(t, model.PriorityLow, updated.Priority)

	timeline, err := svc.Timeline(context.Background(), inc.ID)
	require.NoError(t, err)
	// created + priority change, смена заголовка событий не пишет
	require.Len(t, timeline, 2)
	assert.Equal(t, model.EventPriorityChanged, timeline[1].EventType)
}

func TestDeleteIncidentCascades(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	eng := seedEngineer(t, db, "Bob", "bob@example.com")
	inc := seedIncident(t, svc, owner, "short lived")

	_, err := svc.Assign(context.Background(), inc.ID, []uuid.UUID{eng.ID})
	require.NoError(t, err)
	_, err = svc.AddComment(context.Background(), inc.ID, "looking into it", false)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), inc.ID))

	_, err = svc.GetByID(context.Background(), inc.ID)
	assert.Equal(t, errs.CodeNotFound, errs.CodeOf(err))

	var comments, events, links int64
	require.NoError(t, db.Model(&model.Comment{}).Where("incident_id = ?", inc.ID).Count(&comments).Error)
	require.NoError(t, db.Model(&model.TimelineEvent{}).Where("incident_id = ?", inc.ID).Count(&events).Error)
	require.NoError(t, db.Table("incident_assignees").Where("incident_id = ?", inc.ID).Count(&links).Error)
	assert.Zero(t, comments)
	assert.Zero(t, events)
	assert.Zero(t, links)
}

func TestAddCommentDefaultsAuthorToOwner(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	inc := seedIncident(t, svc, owner, "commented")

	comment, err := svc.AddComment(context.Background(), inc.ID, "root cause identified", true)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, comment.AuthorID)
	assert.True(t, comment.Internal)

	timeline, err := svc.Timeline(context.Background(), inc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventCommentAdded, timeline[len(timeline)-1].EventType)
}

func TestListIncidentsFiltersAndPaginates(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	for i := 0; i < 5; i++ {
		seedIncident(t, svc, owner, fmt.Sprintf("incident %d", i))
	}
	resolvedInc := seedIncident(t, svc, owner, "resolved one")
	mustResolve(t, svc, resolvedInc.ID)

	open, total, err := svc.List(context.Background(), IncidentFilter{Status: model.IncidentStatusOpen}, PageRequest{Page: 1, PageSize: 3})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, open, 3)

	found, total, err := svc.List(context.Background(), IncidentFilter{Search: "RESOLVED"}, PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, found, 1)
	assert.Equal(t, resolvedInc.ID, found[0].ID)
}

func TestByAssignee(t *testing.T) {
	db := openTestDB(t)
	svc := newIncidentService(db)
	owner := seedOwner(t, db, "Alice", "alice@example.com")
	eng := seedEngineer(t, db, "Bob", "bob@example.com")
	mine := seedIncident(t, svc, owner, "assigned to bob")
	seedIncident(t, svc, owner, "unassigned")

	_, err := svc.Assign(context.Background(), mine.ID, []uuid.UUID{eng.ID})
	require.NoError(t, err)

	items, total, err := svc.ByAssignee(context.Background(), eng.ID, "", PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, mine.ID, items[0].ID)
}
