package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/incidentnow/incident-service/internal/errs"
	"github.com/incidentnow/incident-service/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrInvalidCredentials — неверная пара email/пароль либо деактивированный владелец.
var ErrInvalidCredentials = errors.New("invalid credentials")

type OwnerFilter struct {
	Active *bool
	Team   string
	Role   model.OwnerRole
	Search string
}

type CreateOwnerInput struct {
	Name           string
	Email          string
	Password       string
	Phone          *string
	AvatarURL      *string
	Team           string
	Role           model.OwnerRole
	Department     *string
	Timezone       *string
	SlackHandle    *string
	GithubUsername *string
}

type UpdateOwnerInput struct {
	Name           string
	Email          string
	Password       *string
	Phone          *string
	AvatarURL      *string
	Team           string
	Role           model.OwnerRole
	Department     *string
	Timezone       *string
	SlackHandle    *string
	GithubUsername *string
	Active         bool
}

type PatchOwnerInput struct {
	Name           *string
	Email          *string
	Password       *string
	Phone          *string
	AvatarURL      *string
	Team           *string
	Role           *model.OwnerRole
	Department     *string
	Timezone       *string
	SlackHandle    *string
	GithubUsername *string
	Active         *bool
}

type OwnerService struct {
	db *gorm.DB
}

func NewOwnerService(db *gorm.DB) *OwnerService {
	return &OwnerService{db: db}
}

func (s *OwnerService) List(ctx context.Context, f OwnerFilter, page PageRequest) ([]model.Owner, int64, error) {
	page = page.normalized()
	tx := s.db.WithContext(ctx).Model(&model.Owner{})
	if f.Active != nil {
		tx = tx.Where("active = ?", *f.Active)
	}
	if f.Team != "" {
		tx = tx.Where("team = ?", f.Team)
	}
	if f.Role != "" {
		tx = tx.Where("role = ?", f.Role)
	}
	if f.Search != "" {
		q := "%" + strings.ToLower(f.Search) + "%"
		tx = tx.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", q, q)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var owners []model.Owner
	err := tx.Order("name ASC").
		Offset(page.offset()).Limit(page.PageSize).
		Find(&owners).Error
	if err != nil {
		return nil, 0, err
	}
	return owners, total, nil
}

func (s *OwnerService) GetByID(ctx context.Context, id uuid.UUID) (*model.Owner, error) {
	return ownerByID(s.db.WithContext(ctx), id)
}

func (s *OwnerService) Create(ctx context.Context, in CreateOwnerInput) (*model.Owner, error) {
	var owner *model.Owner
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := emailTaken(tx, in.Email, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return errs.Duplicate("Owner with email %s already exists", in.Email)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		o := &model.Owner{
			Name:           in.Name,
			Email:          in.Email,
			PasswordHash:   string(hash),
			Phone:          in.Phone,
			AvatarURL:      in.AvatarURL,
			Team:           in.Team,
			Role:           in.Role,
			Department:     in.Department,
			Timezone:       in.Timezone,
			SlackHandle:    in.SlackHandle,
			GithubUsername: in.GithubUsername,
			Active:         true,
		}
		if err := tx.Create(o).Error; err != nil {
			return err
		}
		owner = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("owner: created %s (%s)", owner.ID, owner.Email)
	return owner, nil
}

// Update — полная замена профиля. Пароль меняется только если передан непустым.
func (s *OwnerService) Update(ctx context.Context, id uuid.UUID, in UpdateOwnerInput) (*model.Owner, error) {
	var owner *model.Owner
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := ownerByID(tx, id)
		if err != nil {
			return err
		}
		if in.Email != o.Email {
			taken, err := emailTaken(tx, in.Email, o.ID)
			if err != nil {
				return err
			}
			if taken {
				return errs.Duplicate("Owner with email %s already exists", in.Email)
			}
		}
		if in.Password != nil && strings.TrimSpace(*in.Password) != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			o.PasswordHash = string(hash)
		}
		o.Name = in.Name
		o.Email = in.Email
		o.Phone = in.Phone
		o.AvatarURL = in.AvatarURL
		o.Team = in.Team
		o.Role = in.Role
		o.Department = in.Department
		o.Timezone = in.Timezone
		o.SlackHandle = in.SlackHandle
		o.GithubUsername = in.GithubUsername
		o.Active = in.Active
		if err := tx.Save(o).Error; err != nil {
			return err
		}
		owner = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("owner: replaced %s", id)
	return owner, nil
}

func (s *OwnerService) Patch(ctx context.Context, id uuid.UUID, in PatchOwnerInput) (*model.Owner, error) {
	var owner *model.Owner
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := ownerByID(tx, id)
		if err != nil {
			return err
		}
		if in.Email != nil && *in.Email != o.Email {
			taken, err := emailTaken(tx, *in.Email, o.ID)
			if err != nil {
				return err
			}
			if taken {
				return errs.Duplicate("Owner with email %s already exists", *in.Email)
			}
			o.Email = *in.Email
		}
		if in.Name != nil {
			o.Name = *in.Name
		}
		if in.Password != nil && strings.TrimSpace(*in.Password) != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			o.PasswordHash = string(hash)
		}
		if in.AvatarURL != nil {
			o.AvatarURL = in.AvatarURL
		}
		if in.Team != nil {
			o.Team = *in.Team
		}
		if in.Role != nil {
			o.Role = *in.Role
		}
		if in.Phone != nil {
			o.Phone = in.Phone
		}
		if in.Department != nil {
			o.Department = in.Department
		}
		if in.Timezone != nil {
			o.Timezone = in.Timezone
		}
		if in.SlackHandle != nil {
			o.SlackHandle = in.SlackHandle
		}
		if in.GithubUsername != nil {
			o.GithubUsername = in.GithubUsername
		}
		if in.Active != nil {
			o.Active = *in.Active
		}
		if err := tx.Save(o).Error; err != nil {
			return err
		}
		owner = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("owner: updated %s", id)
	return owner, nil
}

// Delete деактивирует владельца. Удаление запрещено, пока у него есть
// незакрытые инциденты.
func (s *OwnerService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := ownerByID(tx, id)
		if err != nil {
			return err
		}
		var active int64
		err = tx.Model(&model.Incident{}).
			Where("owner_id = ? AND status <> ?", id, model.IncidentStatusClosed).
			Count(&active).Error
		if err != nil {
			return err
		}
		if active > 0 {
			return errs.Conflict("Cannot delete owner with %d active incidents", active)
		}
		o.Active = false
		return tx.Save(o).Error
	})
	if err != nil {
		return err
	}
	log.Printf("owner: deactivated %s", id)
	return nil
}

func (s *OwnerService) Login(ctx context.Context, email, password string) (*model.Owner, error) {
	var owner model.Owner
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&owner).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !owner.Active {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(owner.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &owner, nil
}

func emailTaken(tx *gorm.DB, email string, excludeID uuid.UUID) (bool, error) {
	q := tx.Model(&model.Owner{}).Where("email = ?", email)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
