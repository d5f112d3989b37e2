package service

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/incidentnow/incident-service/internal/model"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Owner{},
		&model.SupportEngineer{},
		&model.Incident{},
		&model.Comment{},
		&model.TimelineEvent{},
	))
	return db
}

func seedOwner(t *testing.T, db *gorm.DB, name, email string) *model.Owner {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	o := &model.Owner{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Team:         "platform",
		Role:         model.RoleEngineer,
		Active:       true,
	}
	require.NoError(t, db.Create(o).Error)
	return o
}

func seedEngineer(t *testing.T, db *gorm.DB, name, email string, categories ...model.IncidentCategory) *model.SupportEngineer {
	t.Helper()
	e := &model.SupportEngineer{
		Name:       name,
		Email:      email,
		Categories: categories,
		Active:     true,
	}
	require.NoError(t, db.Create(e).Error)
	return e
}

func newIncidentService(db *gorm.DB) *IncidentService {
	return NewIncidentService(db, nil, nil)
}

func seedIncident(t *testing.T, svc *IncidentService, owner *model.Owner, title string) *model.Incident {
	t.Helper()
	inc, err := svc.Create(context.Background(), CreateIncidentInput{
		Title:    title,
		Priority: model.PriorityHigh,
		Severity: model.SeverityMedium,
		Category: model.CategorySoftware,
		OwnerID:  owner.ID,
	})
	require.NoError(t, err)
	return inc
}

func mustResolve(t *testing.T, svc *IncidentService, id uuid.UUID) *model.Incident {
	t.Helper()
	inc, err := svc.Resolve(context.Background(), id, "bad deploy", "rolled back")
	require.NoError(t, err)
	return inc
}
