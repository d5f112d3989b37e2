package service

import (
	"context"
	"log"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/incidentnow/incident-service/internal/errs"
	"github.com/incidentnow/incident-service/internal/model"
	"gorm.io/gorm"
)

type EngineerFilter struct {
	Active *bool
	OnCall *bool
	Search string
}

type CreateEngineerInput struct {
	Name              string
	Email             string
	Phone             *string
	AvatarURL         *string
	Timezone          *string
	SlackHandle       *string
	GithubUsername    *string
	OnCall            bool
	WorkingHoursStart *string
	WorkingHoursEnd   *string
	Categories        []model.IncidentCategory
}

type UpdateEngineerInput struct {
	Name              string
	Email             string
	Phone             *string
	AvatarURL         *string
	Timezone          *string
	SlackHandle       *string
	GithubUsername    *string
	OnCall            bool
	WorkingHoursStart *string
	WorkingHoursEnd   *string
	Categories        []model.IncidentCategory
	Active            bool
}

type PatchEngineerInput struct {
	Name              *string
	Email             *string
	Phone             *string
	AvatarURL         *string
	Timezone          *string
	SlackHandle       *string
	GithubUsername    *string
	OnCall            *bool
	WorkingHoursStart *string
	WorkingHoursEnd   *string
	Categories        []model.IncidentCategory
	Active            *bool
}

type EngineerService struct {
	db *gorm.DB
}

func NewEngineerService(db *gorm.DB) *EngineerService {
	return &EngineerService{db: db}
}

func (s *EngineerService) List(ctx context.Context, f EngineerFilter, page PageRequest) ([]model.SupportEngineer, int64, error) {
	page = page.normalized()
	tx := s.db.WithContext(ctx).Model(&model.SupportEngineer{})
	if f.Active != nil {
		tx = tx.Where("active = ?", *f.Active)
	}
	if f.OnCall != nil {
		tx = tx.Where("on_call = ?", *f.OnCall)
	}
	if f.Search != "" {
		q := "%" + strings.ToLower(f.Search) + "%"
		tx = tx.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", q, q)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var engineers []model.SupportEngineer
	err := tx.Order("name ASC").
		Offset(page.offset()).Limit(page.PageSize).
		Find(&engineers).Error
	if err != nil {
		return nil, 0, err
	}
	return engineers, total, nil
}

func (s *EngineerService) GetByID(ctx context.Context, id uuid.UUID) (*model.SupportEngineer, error) {
	return engineerByID(s.db.WithContext(ctx), id)
}

// ByCategory возвращает активных инженеров, обслуживающих категорию.
// Категории хранятся JSON-массивом, фильтрация в памяти.
func (s *EngineerService) ByCategory(ctx context.Context, category model.IncidentCategory) ([]model.SupportEngineer, error) {
	var engineers []model.SupportEngineer
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&engineers).Error
	if err != nil {
		return nil, err
	}
	matched := make([]model.SupportEngineer, 0, len(engineers))
	for _, e := range engineers {
		if slices.Contains(e.Categories, category) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

func (s *EngineerService) Create(ctx context.Context, in CreateEngineerInput) (*model.SupportEngineer, error) {
	var engineer *model.SupportEngineer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := engineerEmailTaken(tx, in.Email, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return errs.Duplicate("Support engineer with email %s already exists", in.Email)
		}
		e := &model.SupportEngineer{
			Name:              in.Name,
			Email:             in.Email,
			Phone:             in.Phone,
			AvatarURL:         in.AvatarURL,
			Timezone:          in.Timezone,
			SlackHandle:       in.SlackHandle,
			GithubUsername:    in.GithubUsername,
			OnCall:            in.OnCall,
			WorkingHoursStart: in.WorkingHoursStart,
			WorkingHoursEnd:   in.WorkingHoursEnd,
			Categories:        in.Categories,
			Active:            true,
		}
		if err := tx.Create(e).Error; err != nil {
			return err
		}
		engineer = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("engineer: created %s (%s)", engineer.ID, engineer.Email)
	return engineer, nil
}

// Update — полная замена профиля инженера.
func (s *EngineerService) Update(ctx context.Context, id uuid.UUID, in UpdateEngineerInput) (*model.SupportEngineer, error) {
	var engineer *model.SupportEngineer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := engineerByID(tx, id)
		if err != nil {
			return err
		}
		if in.Email != e.Email {
			taken, err := engineerEmailTaken(tx, in.Email, e.ID)
			if err != nil {
				return err
			}
			if taken {
				return errs.Duplicate("Support engineer with email %s already exists", in.Email)
			}
		}
		e.Name = in.Name
		e.Email = in.Email
		e.Phone = in.Phone
		e.AvatarURL = in.AvatarURL
		e.Timezone = in.Timezone
		e.SlackHandle = in.SlackHandle
		e.GithubUsername = in.GithubUsername
		e.OnCall = in.OnCall
		e.WorkingHoursStart = in.WorkingHoursStart
		e.WorkingHoursEnd = in.WorkingHoursEnd
		e.Categories = in.Categories
		e.Active = in.Active
		if err := tx.Save(e).Error; err != nil {
			return err
		}
		engineer = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("engineer: replaced %s", id)
	return engineer, nil
}

func (s *EngineerService) Patch(ctx context.Context, id uuid.UUID, in PatchEngineerInput) (*model.SupportEngineer, error) {
	var engineer *model.SupportEngineer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := engineerByID(tx, id)
		if err != nil {
			return err
		}
		if in.Email != nil && *in.Email != e.Email {
			taken, err := engineerEmailTaken(tx, *in.Email, e.ID)
			if err != nil {
				return err
			}
			if taken {
				return errs.Duplicate("Support engineer with email %s already exists", *in.Email)
			}
			e.Email = *in.Email
		}
		if in.Name != nil {
			e.Name = *in.Name
		}
		if in.Phone != nil {
			e.Phone = in.Phone
		}
		if in.AvatarURL != nil {
			e.AvatarURL = in.AvatarURL
		}
		if in.Timezone != nil {
			e.Timezone = in.Timezone
		}
		if in.SlackHandle != nil {
			e.SlackHandle = in.SlackHandle
		}
		if in.GithubUsername != nil {
			e.GithubUsername = in.GithubUsername
		}
		if in.OnCall != nil {
			e.OnCall = *in.OnCall
		}
		if in.WorkingHoursStart != nil {
			e.WorkingHoursStart = in.WorkingHoursStart
		}
		if in.WorkingHoursEnd != nil {
			e.WorkingHoursEnd = in.WorkingHoursEnd
		}
		if in.Categories != nil {
			e.Categories = in.Categories
		}
		if in.Active != nil {
			e.Active = *in.Active
		}
		if err := tx.Save(e).Error; err != nil {
			return err
		}
		engineer = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("engineer: updated %s", id)
	return engineer, nil
}

// Delete деактивирует инженера, не трогая историю назначений.
func (s *EngineerService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := engineerByID(tx, id)
		if err != nil {
			return err
		}
		e.Active = false
		return tx.Save(e).Error
	})
	if err != nil {
		return err
	}
	log.Printf("engineer: deactivated %s", id)
	return nil
}

func engineerEmailTaken(tx *gorm.DB, email string, excludeID uuid.UUID) (bool, error) {
	q := tx.Model(&model.SupportEngineer{}).Where("email = ?", email)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
