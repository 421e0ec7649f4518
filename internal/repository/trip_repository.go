package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shuttlehq/service-reservation/internal/domain"
	"github.com/shuttlehq/service-reservation/internal/domain/trip"
)

// LocationModel is the GORM model for the locations table.
type LocationModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null;size:200"`
	Latitude  float64   `gorm:"not null"`
	Longitude float64   `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (LocationModel) TableName() string {
	return "locations"
}

// TemplateModel is the GORM model for the trip_templates table.
type TemplateModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null;size:200"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (TemplateModel) TableName() string {
	return "trip_templates"
}

// SegmentModel is the GORM model for the segments table.
type SegmentModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	TemplateID      uuid.UUID `gorm:"type:uuid;index;not null;uniqueIndex:idx_segments_template_order,priority:1"`
	StartLocationID uuid.UUID `gorm:"type:uuid;not null"`
	EndLocationID   uuid.UUID `gorm:"type:uuid;not null"`
	OrderIndex      int       `gorm:"not null;uniqueIndex:idx_segments_template_order,priority:2"`
	ChargeCents     int64     `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (SegmentModel) TableName() string {
	return "segments"
}

// OccurrenceModel is the GORM model for the trip_occurrences table.
type OccurrenceModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	TemplateID      uuid.UUID `gorm:"type:uuid;index;not null"`
	DepartsAt       time.Time `gorm:"not null;index"`
	VehicleCapacity int       `gorm:"not null"`
	Status          string    `gorm:"not null;size:30;index"`
	CancelNote      string    `gorm:"size:500"`
	Version         int64     `gorm:"not null;default:1"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (OccurrenceModel) TableName() string {
	return "trip_occurrences"
}

// segmentRow is the join projection of a segment with its stop names.
type segmentRow struct {
	ID              uuid.UUID
	StartLocationID uuid.UUID
	EndLocationID   uuid.UUID
	StartName       string
	EndName         string
	OrderIndex      int
	ChargeCents     int64
}

// loadSegments fetches the ordered segment chain of a template with stop
// names denormalized from the locations table.
func loadSegments(tx *gorm.DB, templateID uuid.UUID) ([]trip.Segment, error) {
	var rows []segmentRow
	err := tx.Table("segments").
		Select("segments.id, segments.start_location_id, segments.end_location_id, "+
			"sl.name AS start_name, el.name AS end_name, segments.order_index, segments.charge_cents").
		Joins("JOIN locations sl ON sl.id = segments.start_location_id").
		Joins("JOIN locations el ON el.id = segments.end_location_id").
		Where("segments.template_id = ?", templateID).
		Order("segments.order_index").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load segments: %w", err)
	}

	segments := make([]trip.Segment, len(rows))
	for i, r := range rows {
		segments[i] = trip.Segment{
			ID:              r.ID,
			StartLocationID: r.StartLocationID,
			EndLocationID:   r.EndLocationID,
			StartName:       r.StartName,
			EndName:         r.EndName,
			OrderIndex:      r.OrderIndex,
			ChargeCents:     r.ChargeCents,
		}
	}
	return segments, nil
}

// GormLocationRepository is the GORM-based implementation of trip.LocationRepository.
type GormLocationRepository struct {
	db *gorm.DB
}

// NewGormLocationRepository creates a new GormLocationRepository.
func NewGormLocationRepository(db *gorm.DB) *GormLocationRepository {
	return &GormLocationRepository{db: db}
}

// Save persists a new location.
func (r *GormLocationRepository) Save(ctx context.Context, loc trip.Location) error {
	model := LocationModel{
		ID:        loc.ID,
		Name:      loc.Name,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError(fmt.Sprintf("location %q already exists", loc.Name))
		}
		return fmt.Errorf("failed to save location: %w", err)
	}
	return nil
}

// FindByID retrieves a location by its identifier.
func (r *GormLocationRepository) FindByID(ctx context.Context, id uuid.UUID) (trip.Location, error) {
	var model LocationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return trip.Location{}, domain.NewNotFoundError("Location", id.String())
		}
		return trip.Location{}, fmt.Errorf("failed to find location: %w", err)
	}
	return trip.Location{
		ID:        model.ID,
		Name:      model.Name,
		Latitude:  model.Latitude,
		Longitude: model.Longitude,
	}, nil
}

// List retrieves all locations ordered by name.
func (r *GormLocationRepository) List(ctx context.Context) ([]trip.Location, error) {
	var models []LocationModel
	if err := r.db.WithContext(ctx).Order("name").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	locations := make([]trip.Location, len(models))
	for i, m := range models {
		locations[i] = trip.Location{
			ID:        m.ID,
			Name:      m.Name,
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
		}
	}
	return locations, nil
}

// GormTemplateRepository is the GORM-based implementation of trip.TemplateRepository.
type GormTemplateRepository struct {
	db *gorm.DB
}

// NewGormTemplateRepository creates a new GormTemplateRepository.
func NewGormTemplateRepository(db *gorm.DB) *GormTemplateRepository {
	return &GormTemplateRepository{db: db}
}

// Save persists a new template together with its segment chain.
func (r *GormTemplateRepository) Save(ctx context.Context, template *trip.Template) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := TemplateModel{
			ID:        template.ID(),
			Name:      template.Name(),
			CreatedAt: template.CreatedAt(),
		}
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("failed to save template: %w", err)
		}

		segments := template.Topology().Segments()
		segModels := make([]SegmentModel, len(segments))
		for i, seg := range segments {
			segModels[i] = SegmentModel{
				ID:              seg.ID,
				TemplateID:      template.ID(),
				StartLocationID: seg.StartLocationID,
				EndLocationID:   seg.EndLocationID,
				OrderIndex:      seg.OrderIndex,
				ChargeCents:     seg.ChargeCents,
			}
		}
		if err := tx.Create(&segModels).Error; err != nil {
			return fmt.Errorf("failed to save segments: %w", err)
		}
		return nil
	})
}

// FindByID retrieves a template with its segments.
func (r *GormTemplateRepository) FindByID(ctx context.Context, id uuid.UUID) (*trip.Template, error) {
	var model TemplateModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("TripTemplate", id.String())
		}
		return nil, fmt.Errorf("failed to find template: %w", err)
	}

	segments, err := loadSegments(r.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}

	return trip.ReconstructTemplate(model.ID, model.Name, segments, model.CreatedAt)
}

// List retrieves templates with pagination.
func (r *GormTemplateRepository) List(ctx context.Context, page, limit int) ([]*trip.Template, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&TemplateModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count templates: %w", err)
	}

	var models []TemplateModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list templates: %w", err)
	}

	templates := make([]*trip.Template, len(models))
	for i, m := range models {
		segments, err := loadSegments(r.db.WithContext(ctx), m.ID)
		if err != nil {
			return nil, 0, err
		}
		t, err := trip.ReconstructTemplate(m.ID, m.Name, segments, m.CreatedAt)
		if err != nil {
			return nil, 0, err
		}
		templates[i] = t
	}

	return templates, total, nil
}

// GormOccurrenceRepository is the GORM-based implementation of trip.OccurrenceRepository.
type GormOccurrenceRepository struct {
	db *gorm.DB
}

// NewGormOccurrenceRepository creates a new GormOccurrenceRepository.
func NewGormOccurrenceRepository(db *gorm.DB) *GormOccurrenceRepository {
	return &GormOccurrenceRepository{db: db}
}

// Save persists a new occurrence and its materialized segment instances as a
// single unit.
func (r *GormOccurrenceRepository) Save(ctx context.Context, occurrence *trip.Occurrence, instances []trip.SegmentInstance) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := toOccurrenceModel(occurrence)
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to save occurrence: %w", err)
		}

		instModels := make([]SegmentInstanceModel, len(instances))
		for i, inst := range instances {
			instModels[i] = toInstanceModel(inst)
		}
		if err := tx.Create(&instModels).Error; err != nil {
			return fmt.Errorf("failed to save segment instances: %w", err)
		}
		return nil
	})
}

// FindByID retrieves an occurrence by its identifier.
func (r *GormOccurrenceRepository) FindByID(ctx context.Context, id uuid.UUID) (*trip.Occurrence, error) {
	var model OccurrenceModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("TripOccurrence", id.String())
		}
		return nil, fmt.Errorf("failed to find occurrence: %w", err)
	}
	return toDomainOccurrence(&model)
}

// Update persists changes to an occurrence with optimistic locking.
func (r *GormOccurrenceRepository) Update(ctx context.Context, occurrence *trip.Occurrence) error {
	model := toOccurrenceModel(occurrence)

	// Only update if the version matches (current version - 1 since
	// IncrementVersion was called)
	expectedVersion := occurrence.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&OccurrenceModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":      model.Status,
			"cancel_note": model.CancelNote,
			"version":     model.Version,
			"updated_at":  model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update occurrence: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("trip occurrence was modified by another transaction")
	}
	return nil
}

// ListByTemplate retrieves occurrences of a template with pagination.
func (r *GormOccurrenceRepository) ListByTemplate(ctx context.Context, templateID uuid.UUID, page, limit int) ([]*trip.Occurrence, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&OccurrenceModel{}).Where("template_id = ?", templateID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count occurrences: %w", err)
	}

	var models []OccurrenceModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Order("departs_at").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list occurrences: %w", err)
	}

	occurrences := make([]*trip.Occurrence, len(models))
	for i, m := range models {
		o, err := toDomainOccurrence(&m)
		if err != nil {
			return nil, 0, err
		}
		occurrences[i] = o
	}

	return occurrences, total, nil
}

// --- Conversion Helpers ---

func toOccurrenceModel(o *trip.Occurrence) *OccurrenceModel {
	return &OccurrenceModel{
		ID:              o.ID(),
		TemplateID:      o.TemplateID(),
		DepartsAt:       o.DepartsAt(),
		VehicleCapacity: o.VehicleCapacity(),
		Status:          string(o.Status()),
		CancelNote:      o.CancelNote(),
		Version:         o.Version(),
		CreatedAt:       o.CreatedAt(),
		UpdatedAt:       o.UpdatedAt(),
	}
}

func toDomainOccurrence(m *OccurrenceModel) (*trip.Occurrence, error) {
	status, err := trip.ParseOccurrenceStatus(m.Status)
	if err != nil {
		return nil, err
	}
	return trip.ReconstructOccurrence(
		m.ID,
		m.TemplateID,
		m.DepartsAt,
		m.VehicleCapacity,
		status,
		m.CancelNote,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
