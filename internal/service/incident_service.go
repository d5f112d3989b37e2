package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/incidentnow/incident-service/internal/errs"
	"github.com/incidentnow/incident-service/internal/events"
	"github.com/incidentnow/incident-service/internal/model"
	"github.com/incidentnow/incident-service/internal/notify"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sortColumns — разрешённые поля сортировки списка инцидентов.
var sortColumns = map[string]string{
	"createdAt":      "created_at",
	"updatedAt":      "updated_at",
	"dueDate":        "due_date",
	"resolvedAt":     "resolved_at",
	"status":         "status",
	"priority":       "priority",
	"severity":       "severity",
	"title":          "title",
	"incidentNumber": "incident_number",
}

type IncidentService struct {
	db       *gorm.DB
	producer events.IncidentEventProducer
	notifier *notify.Client
	seq      atomic.Int64
}

func NewIncidentService(db *gorm.DB, producer events.IncidentEventProducer, notifier *notify.Client) *IncidentService {
	return &IncidentService{db: db, producer: producer, notifier: notifier}
}

// InitSequence восстанавливает счётчик номеров из максимального сохранённого номера.
// Вызывать один раз на старте, до первого Create.
func (s *IncidentService) InitSequence(ctx context.Context) error {
	var maxNumber sql.NullString
	row := s.db.WithContext(ctx).Model(&model.Incident{}).Select("MAX(incident_number)").Row()
	if err := row.Scan(&maxNumber); err != nil {
		return fmt.Errorf("load max incident number: %w", err)
	}
	if !maxNumber.Valid || maxNumber.String == "" {
		return nil
	}
	parts := strings.Split(maxNumber.String, "-")
	seq, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		log.Printf("incident: could not parse max incident number %q", maxNumber.String)
		return nil
	}
	s.seq.Store(seq)
	return nil
}

// Sequence is global across years: uniqueness comes from the sequence part,
// the year в номере — только маркер даты создания.
func (s *IncidentService) nextIncidentNumber() string {
	return fmt.Sprintf("INC-%d-%04d", time.Now().Year(), s.seq.Add(1))
}

func (s *IncidentService) emit(ctx context.Context, event string, inc *model.Incident) {
	payload := map[string]interface{}{
		"incident_id":     inc.ID.String(),
		"incident_number": inc.IncidentNumber,
		"title":           inc.Title,
		"status":          string(inc.Status),
		"priority":        string(inc.Priority),
		"severity":        string(inc.Severity),
	}
	if s.producer != nil {
		s.producer.ProduceIncidentEvent(ctx, event, payload)
	}
	if s.notifier != nil {
		s.notifier.NotifyAsync(event, payload)
	}
}

func appendEvent(tx *gorm.DB, incidentID uuid.UUID, eventType model.TimelineEventType,
	description string, prev, next *string, actorID *uuid.UUID) error {
	ev := &model.TimelineEvent{
		IncidentID:    incidentID,
		EventType:     eventType,
		Description:   description,
		PreviousValue: prev,
		NewValue:      next,
		ActorID:       actorID,
		Timestamp:     time.Now(),
	}
	return tx.Create(ev).Error
}

func minutesBetween(from, to time.Time) int {
	return int(to.Sub(from).Minutes())
}

func (s *IncidentService) List(ctx context.Context, f IncidentFilter, page PageRequest) ([]model.Incident, int64, error) {
	page = page.normalized()
	tx := s.db.WithContext(ctx).Model(&model.Incident{})
	if f.Status != "" {
		tx = tx.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		tx = tx.Where("priority = ?", f.Priority)
	}
	if f.Severity != "" {
		tx = tx.Where("severity = ?", f.Severity)
	}
	if f.Category != "" {
		tx = tx.Where("category = ?", f.Category)
	}
	if f.OwnerID != uuid.Nil {
		tx = tx.Where("owner_id = ?", f.OwnerID)
	}
	if f.CreatedAfter != nil {
		tx = tx.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		tx = tx.Where("created_at <= ?", *f.CreatedBefore)
	}
	if f.ResolvedAfter != nil {
		tx = tx.Where("resolved_at >= ?", *f.ResolvedAfter)
	}
	if f.ResolvedBefore != nil {
		tx = tx.Where("resolved_at <= ?", *f.ResolvedBefore)
	}
	if f.HasGithubRepo != nil {
		if *f.HasGithubRepo {
			tx = tx.Where("github_repo_owner IS NOT NULL")
		} else {
			tx = tx.Where("github_repo_owner IS NULL")
		}
	}
	if f.Search != "" {
		q := "%" + strings.ToLower(f.Search) + "%"
		tx = tx.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", q, q)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[page.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(page.SortOrder, "asc") {
		direction = "ASC"
	}

	var items []model.Incident
	err := tx.Order(column + " " + direction).
		Offset(page.offset()).Limit(page.PageSize).
		Preload("Owner").Preload("Assignees").
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *IncidentService) GetByID(ctx context.Context, id uuid.UUID) (*model.Incident, error) {
	return incidentByID(s.db.WithContext(ctx), id)
}

func (s *IncidentService) Create(ctx context.Context, in CreateIncidentInput) (*model.Incident, error) {
	var incident *model.Incident
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, err := ownerByID(tx, in.OwnerID)
		if err != nil {
			return err
		}
		assignees, err := engineersByIDs(tx, in.AssigneeIDs)
		if err != nil {
			return err
		}

		inc := &model.Incident{
			IncidentNumber:  s.nextIncidentNumber(),
			Title:           in.Title,
			Description:     in.Description,
			Status:          model.IncidentStatusOpen,
			Priority:        in.Priority,
			Severity:        in.Severity,
			Category:        in.Category,
			Tags:            in.Tags,
			AffectedSystems: in.AffectedSystems,
			AffectedUsers:   in.AffectedUsers,
			OwnerID:         owner.ID,
			Workaround:      in.Workaround,
			DueDate:         in.DueDate,
		}
		if in.GitHubRepo != nil {
			inc.GitHubRepo = *in.GitHubRepo
		}
		if err := tx.Omit(clause.Associations).Create(inc).Error; err != nil {
			return err
		}
		if len(assignees) > 0 {
			if err := tx.Model(inc).Omit("Assignees.*").Association("Assignees").Replace(&assignees); err != nil {
				return err
			}
		}
		if err := appendEvent(tx, inc.ID, model.EventCreated,
			"Incident created: "+inc.IncidentNumber, nil, nil, &owner.ID); err != nil {
			return err
		}

		inc.Owner = *owner
		inc.Assignees = assignees
		incident = inc
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("incident: created %s (%s)", incident.ID, incident.IncidentNumber)
	s.emit(ctx, "incident.created", incident)
	return incident, nil
}

func (s *IncidentService) Update(ctx context.Context, id uuid.UUID, in UpdateIncidentInput) (*model.Incident, error) {
	var incident *model.Incident
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inc, err := incidentByID(tx, id)
		if err != nil {
			return err
		}
		owner, err := ownerByID(tx, in.OwnerID)
		if err != nil {
			return err
		}
		assignees, err := engineersByIDs(tx, in.AssigneeIDs)
		if err != nil {
			return err
		}

		// События только на фактическое изменение значения.
		if in.Status != nil && *in.Status != inc.Status {
			if err := appendEvent(tx, inc.ID, model.EventStatusChanged, "Status changed",
				strPtr(string(inc.Status)), strPtr(string(*in.Status)), &owner.ID); err != nil {
				return err
			}
		}
		if in.Priority != inc.Priority {
			if err := appendEvent(tx, inc.ID, model.EventPriorityChanged, "Priority changed",
				strPtr(string(inc.Priority)), strPtr(string(in.Priority)), &owner.ID); err != nil {
				return err
			}
		}

		inc.Title = in.Title
		inc.Description = in.Description
		if in.Status != nil {
			inc.Status = *in.Status
		}
		inc.Priority = in.Priority
		inc.Severity = in.Severity
		inc.Category = in.Category
		inc.Tags = in.Tags
		inc.AffectedSystems = in.AffectedSystems
		inc.AffectedUsers = in.AffectedUsers
		inc.OwnerID = owner.ID
		inc.RootCause = in.RootCause
		inc.Resolution = in.Resolution
		inc.Workaround = in.Workaround
		inc.GitHubRepo = model.GitHubRepo{}
		if in.GitHubRepo != nil {
			inc.GitHubRepo = *in.GitHubRepo
		}
		inc.DueDate = in.DueDate

		if err := tx.Omit(clause.Associations).Save(inc).Error; err != nil {
			return err
		}
		if err := tx.Model(inc).Omit("Assignees.*").Association("Assignees").Replace(&assignees); err != nil {
			return err
		}

		inc.Owner = *owner
		inc.Assignees = assignees
		incident = inc
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("incident: updated %s", id)
	s.emit(ctx, "incident.updated", incident)
	return incident, nil
}

func (s *IncidentService) Patch(ctx context.Context, id uuid.UUID, in PatchIncidentInput) (*model.Incident, error) {
	var incident *model.Incident
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inc, err := incidentByID(tx, id)
		if err != nil {
			return err
		}
		// Актор событий — владелец инцидента на момент запроса.
		actorID := inc.OwnerID

		if in.Title != nil {
			inc.Title = *in.Title
		}
		if in.Description != nil {
			inc.Description = *in.Description
		}
		if in.Status != nil && *in.Status != inc.Status {
			if err := appendEvent(tx, inc.ID, model.EventStatusChanged, "Status changed",
				strPtr(string(inc.Status)), strPtr(string(*in.Status)), &actorID); err != nil {
				return err
			}
			inc.Status = *in.Status
		}
		if in.Priority != nil && *in.Priority != inc.Priority {
			if err := appendEvent(tx, inc.ID, model.EventPriorityChanged, "Priority changed",
				strPtr(string(inc.Priority)), strPtr(string(*in.Priority)), &actorID); err != nil {
				return err
			}
			inc.Priority = *in.Priority
		}
		if in.Severity != nil && *in.Severity != inc.Severity {
			if err := appendEvent(tx, inc.ID, model.EventSeverityChanged, "Severity changed",
				strPtr(string(inc.Severity)), strPtr(string(*in.Severity)), &actorID); err != nil {
				return err
			}
			inc.Severity = *in.Severity
		}
		if in.Category != nil {
			inc.Category = *in.Category
		}
		if in.Tags != nil {
			inc.Tags = in.Tags
		}
		if in.AffectedSystems != nil {
			inc.AffectedSystems = in.AffectedSystems
		}
		if in.AffectedUsers != nil {
			inc.AffectedUsers = in.AffectedUsers
		}
		if in.OwnerID != nil {
			newOwner, err := ownerByID(tx, *in.OwnerID)
			if err != nil {
				return err
			}
			if newOwner.ID != inc.OwnerID {
				if err := appendEvent(tx, inc.ID, model.EventOwnerChanged, "Owner changed",
					strPtr(inc.Owner.Name), strPtr(newOwner.Name), &actorID); err != nil {
					return err
				}
				inc.OwnerID = newOwner.ID
				inc.Owner = *newOwner
			}
		}
		var newAssignees []model.SupportEngineer
		replaceAssignees := false
		if in.AssigneeIDs != nil {
			newAssignees, err = engineersByIDs(tx, in.AssigneeIDs)
			if err != nil {
				return err
			}
			replaceAssignees = true
		}
		if in.RootCause != nil {
			inc.RootCause = in.RootCause
		}
		if in.Resolution != nil {
			inc.Resolution = in.Resolution
		}
		if in.Workaround != nil {
			inc.Workaround = in.Workaround
		}
		if in.GitHubRepo != nil {
			eventType := model.EventGithubUpdated
			description := "GitHub repository information updated"
			if inc.GitHubRepo.IsEmpty() {
				eventType = model.EventGithubLinked
				description = "GitHub repository linked"
			}
			inc.GitHubRepo = *in.GitHubRepo
			if err := appendEvent(tx, inc.ID, eventType, description, nil, nil, &actorID); err != nil {
				return err
			}
		}
		if in.DueDate != nil {
			inc.DueDate = in.DueDate
		}

		if err := tx.Omit(clause.Associations).Save(inc).Error; err != nil {
			return err
		}
		if replaceAssignees {
			if err := tx.Model(inc).Omit("Assignees.*").Association("Assignees").Replace(&newAssignees); err != nil {
				return err
			}
			inc.Assignees = newAssignees
		}
		incident = inc
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("incident: patched %s", id)
	s.emit(ctx, "incident.updated", incident)
	return incident, nil
}

func (s *IncidentService) Delete(ctx context.Context, id uuid.UUID) error {
	var number string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inc, err := incidentByID(tx, id)
		if err != nil {
			return err
		}
		number = inc.IncidentNumber
		if err := tx.Where("incident_id = ?", id).Delete(&model.TimelineEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("incident_id = ?", id).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM incident_assignees WHERE incident_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Incident{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}
	log.Printf("incident: deleted %s (%s)", id, number)
	return nil
}

// Resolve переводит инцидент в resolved из любого не-терминального статуса.
func (s *IncidentService) Resolve(ctx context.Context, id uuid.UUID, rootCause, resolution string) (*model.Incident, error) {
	var incident *model.Incident
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inc, err := incidentByID(tx, id)
		if err != nil {
			return err
		}
		if inc.Status == model.IncidentStatusResolved || inc.Status == model.IncidentStatusClosed {
			return errs.Conflict("Incident is already %s", inc.Status)
		}

		previous := string(inc.Status)
		now := time.Now()
		inc.Status = model.IncidentStatusResolved
		inc.RootCause = &rootCause
		inc.Resolution = &resolution
		inc.ResolvedAt = &now
		minutes := minutesBetween(inc.CreatedAt, now)
		inc.TimeToResolve = &minutes

		if err := appendEvent(tx, inc.ID, model.EventResolved, "Incident resolved",
			&previous, strPtr(string(model.IncidentStatusResolved)), &inc.OwnerID); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(inc).Error; err != nil {
			return err
		}
		incident = inc
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("incident: resolved %s", id)
	s.emit(ctx, "incident.resolved", incident)
	return incident, nil
}

// Close закрывает инцидент; допустим только из resolved.
func (s *IncidentService) Close(ctx context.Context, id uuid.UUID, closingNotes string) (*model.Incident, error) {
	var incident *model.Incident
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inc, err := incidentByID(tx, id)
		if err != nil {
			return err
		}
		if inc.Status != model.IncidentStatusResolved {
			return errs.Conflict("Incident must be resolved before closing. Current status: %s", inc.Status)
		}

		previous := string(inc.Status)
		now := time.Now()
		inc.Status = model.IncidentStatusClosed
		inc.ClosedAt = &now

		description := "Incident closed"
		if closingNotes != "" {
			description = "Incident closed: " + closingNotes
		}
		if err := appendEvent(tx, inc.ID, model.EventClosed, description,
			&previous, strPtr(string(model.IncidentStatusClosed)), &inc.OwnerID); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(inc).Error; err != nil {
			return err
		}
		incident = inc
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("incident: closed %s", id)
	s.emit(ctx, "incident.closed", incident)
	return incident, nil
}

// Reopen возвращает resolved/closed инцидент в open и сбрасывает resolvedAt,
// closedAt и timeToResolve.
func (s *IncidentService) Reopen(ctx context.Context, id uuid.UUID, reason string) (*model.Incident, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errs.Validation("Reason is required to reopen an incident",
			errs.FieldError{Field: "reason", Message: "must not be blank"})
	}
	var incident *model.Incident
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inc, err := incidentByID(tx, id)
		if err != nil {
			return err
		}
		if inc.Status != model.IncidentStatusResolved && inc.Status != model.IncidentStatusClosed {
			return errs.Conflict("Incident can only be reopened from resolved or closed status. Current status: %s", inc.Status)
		}

		previous := string(inc.Status)
		inc.Status = model.IncidentStatusOpen
		inc.ResolvedAt = nil
		inc.ClosedAt = nil
		inc.TimeToResolve = nil

		if err := appendEvent(tx, inc.ID, model.EventReopened, "Incident reopened: "+reason,
			&previous, strPtr(string(model.IncidentStatusOpen)), &inc.OwnerID); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(inc).Error; err != nil {
			return err
		}
		incident = inc
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("incident: reopened %s", id)
	s.emit(ctx, "incident.reopened", incident)
	return incident, nil
}

// Assign заменяет набор назначенных инженеров. Первое назначение open-инцидента
// переводит его в in_progress и фиксирует время реакции.
func (s *IncidentService) Assign(ctx context.Context, id uuid.UUID, assigneeIDs []uuid.UUID) (*model.Incident, error) {
	if len(assigneeIDs) == 0 {
		return nil, errs.BadRequest("At least one assignee ID is required")
	}
	var incident *model.Incident
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inc, err := incidentByID(tx, id)
		if err != nil {
			return err
		}
		assignees, err := engineersByIDs(tx, assigneeIDs)
		if err != nil {
			return err
		}

		if inc.Status == model.IncidentStatusOpen {
			now := time.Now()
			inc.Status = model.IncidentStatusInProgress
			inc.AcknowledgedAt = &now
			minutes := minutesBetween(inc.CreatedAt, now)
			inc.TimeToAcknowledge = &minutes
		}

		names := make([]string, len(assignees))
		for i, a := range assignees {
			names[i] = a.Name
		}
		assigneeNames := strings.Join(names, ", ")
		if err := appendEvent(tx, inc.ID, model.EventAssigned, "Assigned to: "+assigneeNames,
			nil, &assigneeNames, &inc.OwnerID); err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Save(inc).Error; err != nil {
			return err
		}
		if err := tx.Model(inc).Omit("Assignees.*").Association("Assignees").Replace(&assignees); err != nil {
			return err
		}
		inc.Assignees = assignees
		incident = inc
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("incident: assigned %s to %d engineers", id, len(assigneeIDs))
	s.emit(ctx, "incident.assigned", incident)
	return incident, nil
}

func (s *IncidentService) ListComments(ctx context.Context, incidentID uuid.UUID, page PageRequest) ([]model.Comment, int64, error) {
	page = page.normalized()
	if _, err := incidentByID(s.db.WithContext(ctx), incidentID); err != nil {
		return nil, 0, err
	}
	tx := s.db.WithContext(ctx).Model(&model.Comment{}).Where("incident_id = ?", incidentID)
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var comments []model.Comment
	err := tx.Order("created_at DESC").
		Offset(page.offset()).Limit(page.PageSize).
		Preload("Author").
		Find(&comments).Error
	if err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

func (s *IncidentService) AddComment(ctx context.Context, incidentID uuid.UUID, content string, internal bool) (*model.Comment, error) {
	var comment *model.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inc, err := incidentByID(tx, incidentID)
		if err != nil {
			return err
		}
		// Автор по умолчанию — владелец инцидента.
		c := &model.Comment{
			IncidentID: inc.ID,
			AuthorID:   inc.OwnerID,
			Content:    content,
			Internal:   internal,
		}
		if err := tx.Omit(clause.Associations).Create(c).Error; err != nil {
			return err
		}
		if err := appendEvent(tx, inc.ID, model.EventCommentAdded, "Comment added", nil, nil, &inc.OwnerID); err != nil {
			return err
		}
		c.Author = inc.Owner
		comment = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("incident: comment added to %s", incidentID)
	return comment, nil
}

// Timeline возвращает журнал инцидента в порядке возрастания времени.
func (s *IncidentService) Timeline(ctx context.Context, incidentID uuid.UUID) ([]model.TimelineEvent, error) {
	if _, err := incidentByID(s.db.WithContext(ctx), incidentID); err != nil {
		return nil, err
	}
	var timeline []model.TimelineEvent
	err := s.db.WithContext(ctx).
		Where("incident_id = ?", incidentID).
		Order("timestamp ASC").
		Preload("Actor").
		Find(&timeline).Error
	if err != nil {
		return nil, err
	}
	return timeline, nil
}

func (s *IncidentService) ByOwner(ctx context.Context, ownerID uuid.UUID, status model.IncidentStatus, page PageRequest) ([]model.Incident, int64, error) {
	page = page.normalized()
	if _, err := ownerByID(s.db.WithContext(ctx), ownerID); err != nil {
		return nil, 0, err
	}
	tx := s.db.WithContext(ctx).Model(&model.Incident{}).Where("owner_id = ?", ownerID)
	if status != "" {
		tx = tx.Where("status = ?", status)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []model.Incident
	err := tx.Order("created_at DESC").
		Offset(page.offset()).Limit(page.PageSize).
		Preload("Owner").Preload("Assignees").
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *IncidentService) ByAssignee(ctx context.Context, engineerID uuid.UUID, status model.IncidentStatus, page PageRequest) ([]model.Incident, int64, error) {
	page = page.normalized()
	if _, err := engineerByID(s.db.WithContext(ctx), engineerID); err != nil {
		return nil, 0, err
	}
	tx := s.db.WithContext(ctx).Model(&model.Incident{}).
		Joins("JOIN incident_assignees ia ON ia.incident_id = incidents.id").
		Where("ia.support_engineer_id = ?", engineerID)
	if status != "" {
		tx = tx.Where("incidents.status = ?", status)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []model.Incident
	err := tx.Order("incidents.created_at DESC").
		Offset(page.offset()).Limit(page.PageSize).
		Preload("Owner").Preload("Assignees").
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
