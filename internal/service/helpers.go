package service

import (
	"errors"

	"github.com/google/uuid"
	"github.com/incidentnow/incident-service/internal/errs"
	"github.com/incidentnow/incident-service/internal/model"
	"gorm.io/gorm"
)

func ownerByID(tx *gorm.DB, id uuid.UUID) (*model.Owner, error) {
	var owner model.Owner
	if err := tx.First(&owner, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("Owner", id)
		}
		return nil, err
	}
	return &owner, nil
}

func engineerByID(tx *gorm.DB, id uuid.UUID) (*model.SupportEngineer, error) {
	var se model.SupportEngineer
	if err := tx.First(&se, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("SupportEngineer", id)
		}
		return nil, err
	}
	return &se, nil
}

// engineersByIDs загружает всех назначенных инженеров; отсутствие любого id — NotFound.
func engineersByIDs(tx *gorm.DB, ids []uuid.UUID) ([]model.SupportEngineer, error) {
	engineers := make([]model.SupportEngineer, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		se, err := engineerByID(tx, id)
		if err != nil {
			return nil, err
		}
		engineers = append(engineers, *se)
	}
	return engineers, nil
}

func incidentByID(tx *gorm.DB, id uuid.UUID) (*model.Incident, error) {
	var incident model.Incident
	err := tx.Preload("Owner").Preload("Assignees").First(&incident, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("Incident", id)
		}
		return nil, err
	}
	return &incident, nil
}

func strPtr(s string) *string { return &s }
