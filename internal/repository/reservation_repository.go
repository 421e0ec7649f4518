package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shuttlehq/service-reservation/internal/database"
	"github.com/shuttlehq/service-reservation/internal/domain"
	"github.com/shuttlehq/service-reservation/internal/domain/reservation"
)

// ReservationModel is the GORM model for the reservations table.
type ReservationModel struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ReservationNumber string     `gorm:"uniqueIndex;not null;size:20"`
	TripOccurrenceID  uuid.UUID  `gorm:"type:uuid;index;not null"`
	GuestID           uuid.UUID  `gorm:"type:uuid;index;not null"`
	SeatCount         int        `gorm:"not null"`
	FromIndex         int        `gorm:"not null"`
	ToIndex           int        `gorm:"not null"`
	FromLocationID    uuid.UUID  `gorm:"type:uuid;not null"`
	ToLocationID      uuid.UUID  `gorm:"type:uuid;not null"`
	State             string     `gorm:"not null;size:20;index"`
	FareCents         int64      `gorm:"not null"`
	Currency          string     `gorm:"not null;size:3"`
	ConfirmedAt       *time.Time `gorm:""`
	ReleasedAt        *time.Time `gorm:""`
	ReleaseNote       string     `gorm:"size:500"`
	Version           int64      `gorm:"not null;default:1"`
	CreatedAt         time.Time  `gorm:"not null"`
	UpdatedAt         time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (ReservationModel) TableName() string {
	return "reservations"
}

// GormReservationRepository is the GORM-based implementation of reservation.Repository.
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository.
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// FindByID retrieves a reservation by its unique identifier.
func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*reservation.Reservation, error) {
	var model ReservationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Reservation", id.String())
		}
		return nil, fmt.Errorf("failed to find reservation by ID: %w", err)
	}
	return toDomainReservation(&model)
}

// FindByNumber retrieves a reservation by its human-readable number.
func (r *GormReservationRepository) FindByNumber(ctx context.Context, number string) (*reservation.Reservation, error) {
	var model ReservationModel
	if err := r.db.WithContext(ctx).Where("reservation_number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Reservation", number)
		}
		return nil, fmt.Errorf("failed to find reservation by number: %w", err)
	}
	return toDomainReservation(&model)
}

// FindByGuestID retrieves reservations for a guest with pagination.
func (r *GormReservationRepository) FindByGuestID(ctx context.Context, guestID uuid.UUID, page, limit int) ([]*reservation.Reservation, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&ReservationModel{}).Where("guest_id = ?", guestID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count guest reservations: %w", err)
	}

	var models []ReservationModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("guest_id = ?", guestID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find guest reservations: %w", err)
	}

	return toDomainReservations(models, total)
}

// FindActiveByOccurrence retrieves all held or occupied reservations on a trip occurrence.
func (r *GormReservationRepository) FindActiveByOccurrence(ctx context.Context, occurrenceID uuid.UUID) ([]*reservation.Reservation, error) {
	var models []ReservationModel
	if err := r.db.WithContext(ctx).
		Where("trip_occurrence_id = ? AND state IN ?", occurrenceID,
			[]string{string(reservation.StateHeld), string(reservation.StateOccupied)}).
		Order("created_at").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find active reservations: %w", err)
	}

	reservations := make([]*reservation.Reservation, len(models))
	for i, m := range models {
		res, err := toDomainReservation(&m)
		if err != nil {
			return nil, err
		}
		reservations[i] = res
	}
	return reservations, nil
}

// ListAll retrieves all reservations with pagination (admin).
func (r *GormReservationRepository) ListAll(ctx context.Context, page, limit int) ([]*reservation.Reservation, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&ReservationModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count reservations: %w", err)
	}

	var models []ReservationModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list reservations: %w", err)
	}

	return toDomainReservations(models, total)
}

// CountByState returns reservation counts grouped by state (admin).
func (r *GormReservationRepository) CountByState(ctx context.Context) (map[string]int64, error) {
	type stateCount struct {
		State string
		Count int64
	}
	var results []stateCount
	if err := r.db.WithContext(ctx).Model(&ReservationModel{}).
		Select("state, count(*) as count").
		Group("state").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by state: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.State] = sc.Count
	}
	return counts, nil
}

// Save persists a new reservation.
func (r *GormReservationRepository) Save(ctx context.Context, res *reservation.Reservation) error {
	model := toReservationModel(res)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save reservation: %w", err)
	}
	return nil
}

// Update persists changes to an existing reservation with optimistic locking.
// It joins a transaction carried by the context, so lifecycle transitions can
// commit together with their ledger counter moves.
func (r *GormReservationRepository) Update(ctx context.Context, res *reservation.Reservation) error {
	model := toReservationModel(res)

	// Only update if the version matches (current version - 1 since
	// IncrementVersion was called)
	expectedVersion := res.Version() - 1
	result := database.FromContext(ctx, r.db).WithContext(ctx).
		Model(&ReservationModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"state":        model.State,
			"confirmed_at": model.ConfirmedAt,
			"released_at":  model.ReleasedAt,
			"release_note": model.ReleaseNote,
			"version":      model.Version,
			"updated_at":   model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update reservation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("reservation was modified by another transaction")
	}
	return nil
}

// --- Conversion Helpers ---

func toReservationModel(res *reservation.Reservation) *ReservationModel {
	return &ReservationModel{
		ID:                res.ID(),
		ReservationNumber: res.ReservationNumber(),
		TripOccurrenceID:  res.TripOccurrenceID(),
		GuestID:           res.GuestID(),
		SeatCount:         res.SeatCount(),
		FromIndex:         res.FromIndex(),
		ToIndex:           res.ToIndex(),
		FromLocationID:    res.FromLocationID(),
		ToLocationID:      res.ToLocationID(),
		State:             string(res.State()),
		FareCents:         res.FareCents(),
		Currency:          res.Currency(),
		ConfirmedAt:       res.ConfirmedAt(),
		ReleasedAt:        res.ReleasedAt(),
		ReleaseNote:       res.ReleaseNote(),
		Version:           res.Version(),
		CreatedAt:         res.CreatedAt(),
		UpdatedAt:         res.UpdatedAt(),
	}
}

func toDomainReservation(m *ReservationModel) (*reservation.Reservation, error) {
	state, err := reservation.ParseState(m.State)
	if err != nil {
		return nil, err
	}
	return reservation.ReconstructReservation(
		m.ID,
		m.ReservationNumber,
		m.TripOccurrenceID,
		m.GuestID,
		m.SeatCount,
		m.FromIndex,
		m.ToIndex,
		m.FromLocationID,
		m.ToLocationID,
		state,
		m.FareCents,
		m.Currency,
		m.ConfirmedAt,
		m.ReleasedAt,
		m.ReleaseNote,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toDomainReservations(models []ReservationModel, total int64) ([]*reservation.Reservation, int64, error) {
	reservations := make([]*reservation.Reservation, len(models))
	for i, m := range models {
		res, err := toDomainReservation(&m)
		if err != nil {
			return nil, 0, err
		}
		reservations[i] = res
	}
	return reservations, total, nil
}
