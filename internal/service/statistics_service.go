package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/incidentnow/incident-service/internal/model"
	"gorm.io/gorm"
)

// IncidentSummary — сводные показатели по всем инцидентам.
type IncidentSummary struct {
	TotalIncidents                  int64    `json:"totalIncidents"`
	OpenIncidents                   int64    `json:"openIncidents"`
	InProgressIncidents             int64    `json:"inProgressIncidents"`
	OnHoldIncidents                 int64    `json:"onHoldIncidents"`
	ResolvedIncidents               int64    `json:"resolvedIncidents"`
	ClosedIncidents                 int64    `json:"closedIncidents"`
	CriticalIncidents               int64    `json:"criticalIncidents"`
	AverageResolutionTimeMinutes    *float64 `json:"averageResolutionTimeMinutes"`
	AverageTimeToAcknowledgeMinutes *float64 `json:"averageTimeToAcknowledgeMinutes"`
	SLABreachCount                  int64    `json:"slaBreachCount"`
	SLACompliancePercentage         float64  `json:"slaCompliancePercentage"`
}

type StatusCount struct {
	Status model.IncidentStatus `json:"status"`
	Count  int64                `json:"count"`
}

type PriorityCount struct {
	Priority model.Priority `json:"priority"`
	Count    int64          `json:"count"`
}

type CategoryCount struct {
	Category model.IncidentCategory `json:"category"`
	Count    int64                  `json:"count"`
}

type OwnerIncidentCount struct {
	Owner    model.Owner `json:"owner"`
	Total    int64       `json:"total"`
	Open     int64       `json:"open"`
	Resolved int64       `json:"resolved"`
}

// ResolutionTimeStats — распределение времени решения в минутах.
// Для пустой выборки все поля нулевые.
type ResolutionTimeStats struct {
	Count               int64   `json:"count"`
	AverageMinutes      float64 `json:"averageMinutes"`
	MedianMinutes       float64 `json:"medianMinutes"`
	MinMinutes          float64 `json:"minMinutes"`
	MaxMinutes          float64 `json:"maxMinutes"`
	Percentile90Minutes float64 `json:"percentile90Minutes"`
}

type TrendPoint struct {
	Period   string `json:"period"`
	Created  int64  `json:"created"`
	Resolved int64  `json:"resolved"`
	Closed   int64  `json:"closed"`
}

type StatisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) *StatisticsService {
	return &StatisticsService{db: db}
}

func (s *StatisticsService) Summary(ctx context.Context) (*IncidentSummary, error) {
	q := func() *gorm.DB { return s.db.WithContext(ctx).Model(&model.Incident{}) }
	summary := &IncidentSummary{}

	if err := q().Count(&summary.TotalIncidents).Error; err != nil {
		return nil, err
	}
	byStatus := map[model.IncidentStatus]*int64{
		model.IncidentStatusOpen:       &summary.OpenIncidents,
		model.IncidentStatusInProgress: &summary.InProgressIncidents,
		model.IncidentStatusOnHold:     &summary.OnHoldIncidents,
		model.IncidentStatusResolved:   &summary.ResolvedIncidents,
		model.IncidentStatusClosed:     &summary.ClosedIncidents,
	}
	var counts []StatusCount
	err := q().
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		if dst, ok := byStatus[c.Status]; ok {
			*dst = c.Count
		}
	}
	err = q().
		Where("priority = ?", model.PriorityCritical).
		Count(&summary.CriticalIncidents).Error
	if err != nil {
		return nil, err
	}

	summary.AverageResolutionTimeMinutes, err = s.average(ctx, "time_to_resolve")
	if err != nil {
		return nil, err
	}
	summary.AverageTimeToAcknowledgeMinutes, err = s.average(ctx, "time_to_acknowledge")
	if err != nil {
		return nil, err
	}

	err = q().
		Where("sla_breached = ?", true).
		Count(&summary.SLABreachCount).Error
	if err != nil {
		return nil, err
	}
	summary.SLACompliancePercentage = slaCompliance(summary.TotalIncidents, summary.SLABreachCount)
	return summary, nil
}

func (s *StatisticsService) average(ctx context.Context, column string) (*float64, error) {
	var avg sql.NullFloat64
	err := s.db.WithContext(ctx).Model(&model.Incident{}).
		Select("AVG(" + column + ")").
		Where(column + " IS NOT NULL").
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

// slaCompliance: доля инцидентов без нарушения SLA. Пустая база — 100%.
func slaCompliance(total, breaches int64) float64 {
	if total == 0 {
		return 100.0
	}
	return 100.0 * float64(total-breaches) / float64(total)
}

func (s *StatisticsService) ByStatus(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := s.db.WithContext(ctx).Model(&model.Incident{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("count DESC").
		Scan(&counts).Error
	return counts, err
}

func (s *StatisticsService) ByPriority(ctx context.Context) ([]PriorityCount, error) {
	var counts []PriorityCount
	err := s.db.WithContext(ctx).Model(&model.Incident{}).
		Select("priority, COUNT(*) AS count").
		Group("priority").
		Order("count DESC").
		Scan(&counts).Error
	return counts, err
}

func (s *StatisticsService) ByCategory(ctx context.Context) ([]CategoryCount, error) {
	var counts []CategoryCount
	err := s.db.WithContext(ctx).Model(&model.Incident{}).
		Select("category, COUNT(*) AS count").
		Group("category").
		Order("count DESC").
		Scan(&counts).Error
	return counts, err
}

// TopOwners возвращает владельцев по убыванию числа инцидентов.
func (s *StatisticsService) TopOwners(ctx context.Context, limit int) ([]OwnerIncidentCount, error) {
	if limit < 1 {
		limit = 10
	}
	type ownerRow struct {
		OwnerID  string
		Total    int64
		Open     int64
		Resolved int64
	}
	var rows []ownerRow
	err := s.db.WithContext(ctx).Model(&model.Incident{}).
		Select("owner_id, COUNT(*) AS total, "+
			"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS open, "+
			"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS resolved",
			model.IncidentStatusOpen, model.IncidentStatusResolved).
		Group("owner_id").
		Order("total DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []OwnerIncidentCount{}, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.OwnerID
	}
	var owners []model.Owner
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&owners).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]model.Owner, len(owners))
	for _, o := range owners {
		byID[o.ID.String()] = o
	}

	result := make([]OwnerIncidentCount, 0, len(rows))
	for _, r := range rows {
		owner, ok := byID[r.OwnerID]
		if !ok {
			continue
		}
		result = append(result, OwnerIncidentCount{
			Owner:    owner,
			Total:    r.Total,
			Open:     r.Open,
			Resolved: r.Resolved,
		})
	}
	return result, nil
}

// ResolutionTime считает распределение time_to_resolve по решённым инцидентам.
func (s *StatisticsService) ResolutionTime(ctx context.Context) (*ResolutionTimeStats, error) {
	var values []float64
	err := s.db.WithContext(ctx).Model(&model.Incident{}).
		Where("time_to_resolve IS NOT NULL").
		Order("time_to_resolve ASC").
		Pluck("time_to_resolve", &values).Error
	if err != nil {
		return nil, err
	}
	return resolutionStats(values), nil
}

func resolutionStats(sorted []float64) *ResolutionTimeStats {
	stats := &ResolutionTimeStats{Count: int64(len(sorted))}
	if len(sorted) == 0 {
		return stats
	}
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	stats.AverageMinutes = sum / float64(len(sorted))
	stats.MedianMinutes = median(sorted)
	stats.MinMinutes = sorted[0]
	stats.MaxMinutes = sorted[len(sorted)-1]
	stats.Percentile90Minutes = percentile(sorted, 0.9)
	return stats
}

// median: для чётной выборки — среднее двух центральных значений.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentile по методу ближайшего ранга: элемент с индексом ceil(n*p)-1.
func percentile(sorted []float64, p float64) float64 {
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Trends строит динамику created/resolved/closed по периодам.
// Когорта — инциденты, созданные в диапазоне [from, to]; их resolved_at и
// closed_at попадают в свои периоды, даже если лежат за пределами диапазона.
// groupBy: day, week или month; период без событий в выдачу не попадает.
func (s *StatisticsService) Trends(ctx context.Context, from, to time.Time, groupBy string) ([]TrendPoint, error) {
	now := time.Now()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		f := now.AddDate(0, -3, 0)
		from = time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, f.Location())
	}
	if groupBy == "" {
		groupBy = "week"
	}

	type incidentTimes struct {
		CreatedAt  time.Time
		ResolvedAt *time.Time
		ClosedAt   *time.Time
	}
	var rows []incidentTimes
	err := s.db.WithContext(ctx).Model(&model.Incident{}).
		Select("created_at, resolved_at, closed_at").
		Where("created_at >= ? AND created_at <= ?", from, to).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	points := map[string]*TrendPoint{}
	bump := func(t time.Time, field func(*TrendPoint)) {
		key := periodKey(t, groupBy)
		p, ok := points[key]
		if !ok {
			p = &TrendPoint{Period: key}
			points[key] = p
		}
		field(p)
	}
	for _, r := range rows {
		bump(r.CreatedAt, func(p *TrendPoint) { p.Created++ })
		if r.ResolvedAt != nil {
			bump(*r.ResolvedAt, func(p *TrendPoint) { p.Resolved++ })
		}
		if r.ClosedAt != nil {
			bump(*r.ClosedAt, func(p *TrendPoint) { p.Closed++ })
		}
	}

	result := make([]TrendPoint, 0, len(points))
	for _, p := range points {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Period < result[j].Period })
	return result, nil
}

func periodKey(t time.Time, groupBy string) string {
	switch groupBy {
	case "day":
		return t.Format("2006-01-02")
	case "month":
		return t.Format("2006-01")
	default:
		// Недели выровнены по началу года, не ISO-номера.
		week := (t.YearDay()-1)/7 + 1
		return fmt.Sprintf("%d-W%02d", t.Year(), week)
	}
}
