package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shuttlehq/service-reservation/internal/database"
	"github.com/shuttlehq/service-reservation/internal/domain"
	"github.com/shuttlehq/service-reservation/internal/domain/trip"
	"github.com/shuttlehq/service-reservation/internal/metrics"
)

// SegmentInstanceModel is the GORM model for the segment_instances table.
type SegmentInstanceModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TripOccurrenceID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_instances_occurrence_order,priority:1"`
	OrderIndex       int        `gorm:"not null;uniqueIndex:idx_instances_occurrence_order,priority:2"`
	SeatsHeld        int        `gorm:"not null;default:0"`
	SeatsOccupied    int        `gorm:"not null;default:0"`
	Completed        bool       `gorm:"not null;default:false"`
	ETA              *time.Time `gorm:""`
}

// TableName returns the table name for the GORM model.
func (SegmentInstanceModel) TableName() string {
	return "segment_instances"
}

const ledgerTxAttempts = 3

// GormLedger is the GORM-based implementation of trip.Ledger. Every range
// operation runs in one transaction that locks the occurrence's instance rows
// in index order, so concurrent writes on overlapping ranges serialize and
// the per-segment capacity invariant holds after every commit. Serialization
// failures and deadlocks are retried here, invisible to callers.
type GormLedger struct {
	db        *gorm.DB
	collector *metrics.Collector
}

// NewGormLedger creates a new GormLedger. The collector may be nil.
func NewGormLedger(db *gorm.DB, collector *metrics.Collector) *GormLedger {
	return &GormLedger{db: db, collector: collector}
}

// Snapshot returns the ordered segment instances of an occurrence with live counters.
func (l *GormLedger) Snapshot(ctx context.Context, occurrenceID uuid.UUID) ([]trip.SegmentInstance, error) {
	var models []SegmentInstanceModel
	if err := l.db.WithContext(ctx).
		Where("trip_occurrence_id = ?", occurrenceID).
		Order("order_index").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to snapshot ledger: %w", err)
	}
	if len(models) == 0 {
		return nil, domain.NewNotFoundError("TripOccurrence", occurrenceID.String())
	}

	instances := make([]trip.SegmentInstance, len(models))
	for i, m := range models {
		instances[i] = toDomainInstance(m)
	}
	return instances, nil
}

// Reserve validates availability and increments seatsHeld by seatCount on
// every instance in [from, to]. The capacity check and the counter write
// happen under the same row locks, so two overlapping creates can never both
// pass validation against stale counters.
func (l *GormLedger) Reserve(ctx context.Context, occurrenceID uuid.UUID, from, to, seatCount int) error {
	return l.inTx(ctx, func(tx *gorm.DB) error {
		occ, instances, err := lockOccurrence(tx, occurrenceID)
		if err != nil {
			return err
		}

		segments, err := loadSegments(tx, occ.TemplateID)
		if err != nil {
			return err
		}

		if err := trip.CheckAvailability(occ.VehicleCapacity, instances, segments, from, to, seatCount); err != nil {
			return err
		}

		return l.applyDelta(tx, occurrenceID, from, to, seatCount, 0)
	})
}

// ConfirmHold moves seatCount seats from held to occupied on every instance
// in [from, to]. The apply callback joins the transaction through the
// context, so the caller's state write and the counter move commit or roll
// back as one.
func (l *GormLedger) ConfirmHold(ctx context.Context, occurrenceID uuid.UUID, from, to, seatCount int, apply func(ctx context.Context) error) error {
	return l.inTx(ctx, func(tx *gorm.DB) error {
		_, instances, err := lockOccurrence(tx, occurrenceID)
		if err != nil {
			return err
		}
		if err := checkRange(instances, from, to); err != nil {
			return err
		}
		for i := from; i <= to; i++ {
			if instances[i].SeatsHeld < seatCount {
				return domain.NewConflictError(
					fmt.Sprintf("segment %d holds %d seats, cannot confirm %d", i, instances[i].SeatsHeld, seatCount))
			}
		}
		if err := l.applyDelta(tx, occurrenceID, from, to, -seatCount, seatCount); err != nil {
			return err
		}
		if apply != nil {
			return apply(database.WithTx(ctx, tx))
		}
		return nil
	})
}

// Release decrements seatCount seats from the held or the occupied counter on
// every instance in [from, to]. As with ConfirmHold, the apply callback
// commits in the same transaction as the counter move.
func (l *GormLedger) Release(ctx context.Context, occurrenceID uuid.UUID, from, to, seatCount int, fromHeld bool, apply func(ctx context.Context) error) error {
	return l.inTx(ctx, func(tx *gorm.DB) error {
		_, instances, err := lockOccurrence(tx, occurrenceID)
		if err != nil {
			return err
		}
		if err := checkRange(instances, from, to); err != nil {
			return err
		}
		for i := from; i <= to; i++ {
			current := instances[i].SeatsOccupied
			if fromHeld {
				current = instances[i].SeatsHeld
			}
			if current < seatCount {
				return domain.NewConflictError(
					fmt.Sprintf("segment %d has only %d seats in the counter being released", i, current))
			}
		}
		heldDelta, occupiedDelta := 0, -seatCount
		if fromHeld {
			heldDelta, occupiedDelta = -seatCount, 0
		}
		if err := l.applyDelta(tx, occurrenceID, from, to, heldDelta, occupiedDelta); err != nil {
			return err
		}
		if apply != nil {
			return apply(database.WithTx(ctx, tx))
		}
		return nil
	})
}

// MarkCompleted sets the completed flag on one segment instance.
func (l *GormLedger) MarkCompleted(ctx context.Context, occurrenceID uuid.UUID, orderIndex int) error {
	result := l.db.WithContext(ctx).
		Model(&SegmentInstanceModel{}).
		Where("trip_occurrence_id = ? AND order_index = ?", occurrenceID, orderIndex).
		UpdateColumn("completed", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark segment complete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("SegmentInstance",
			fmt.Sprintf("%s[%d]", occurrenceID, orderIndex))
	}
	return nil
}

// SetETA records a predicted arrival time on an incomplete segment instance.
func (l *GormLedger) SetETA(ctx context.Context, occurrenceID uuid.UUID, orderIndex int, eta time.Time) error {
	result := l.db.WithContext(ctx).
		Model(&SegmentInstanceModel{}).
		Where("trip_occurrence_id = ? AND order_index = ? AND completed = false", occurrenceID, orderIndex).
		UpdateColumn("eta", eta.UTC())
	if result.Error != nil {
		return fmt.Errorf("failed to record ETA: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var model SegmentInstanceModel
		err := l.db.WithContext(ctx).
			Where("trip_occurrence_id = ? AND order_index = ?", occurrenceID, orderIndex).
			First(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NewNotFoundError("SegmentInstance",
				fmt.Sprintf("%s[%d]", occurrenceID, orderIndex))
		}
		if err != nil {
			return fmt.Errorf("failed to record ETA: %w", err)
		}
		return domain.NewConflictError("cannot record ETA on a completed segment")
	}
	return nil
}

// inTx runs fn in a transaction, retrying on serialization failures and
// deadlocks, and observes the transaction duration.
func (l *GormLedger) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	start := time.Now()
	defer func() {
		if l.collector != nil {
			l.collector.LedgerTxDuration.Observe(time.Since(start).Seconds())
		}
	}()

	var err error
	for attempt := 1; attempt <= ledgerTxAttempts; attempt++ {
		err = l.db.WithContext(ctx).Transaction(fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		if l.collector != nil {
			l.collector.LedgerTxRetries.Inc()
		}
	}
	return fmt.Errorf("ledger transaction failed after %d attempts: %w", ledgerTxAttempts, err)
}

// applyDelta applies held/occupied counter deltas across [from, to] in one statement.
func (l *GormLedger) applyDelta(tx *gorm.DB, occurrenceID uuid.UUID, from, to, heldDelta, occupiedDelta int) error {
	updates := map[string]interface{}{}
	if heldDelta != 0 {
		updates["seats_held"] = gorm.Expr("seats_held + ?", heldDelta)
	}
	if occupiedDelta != 0 {
		updates["seats_occupied"] = gorm.Expr("seats_occupied + ?", occupiedDelta)
	}

	result := tx.Model(&SegmentInstanceModel{}).
		Where("trip_occurrence_id = ? AND order_index BETWEEN ? AND ?", occurrenceID, from, to).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to apply ledger delta: %w", result.Error)
	}
	if got, want := result.RowsAffected, int64(to-from+1); got != want {
		return fmt.Errorf("ledger delta touched %d rows, expected %d", got, want)
	}
	return nil
}

// lockOccurrence loads the occurrence row and locks all of its instance rows
// FOR UPDATE in index order. Locking the full chain rather than just the
// requested range keeps lock acquisition order identical for overlapping
// ranges; segment counts are bounded by stop count, so the cost is small.
func lockOccurrence(tx *gorm.DB, occurrenceID uuid.UUID) (*OccurrenceModel, []trip.SegmentInstance, error) {
	var occ OccurrenceModel
	if err := tx.Where("id = ?", occurrenceID).First(&occ).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.NewNotFoundError("TripOccurrence", occurrenceID.String())
		}
		return nil, nil, fmt.Errorf("failed to load occurrence: %w", err)
	}

	var models []SegmentInstanceModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("trip_occurrence_id = ?", occurrenceID).
		Order("order_index").
		Find(&models).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to lock segment instances: %w", err)
	}
	if len(models) == 0 {
		return nil, nil, domain.NewNotFoundError("SegmentInstance", occurrenceID.String())
	}

	instances := make([]trip.SegmentInstance, len(models))
	for i, m := range models {
		instances[i] = toDomainInstance(m)
	}
	return &occ, instances, nil
}

func checkRange(instances []trip.SegmentInstance, from, to int) error {
	if from < 0 || to >= len(instances) || from > to {
		return domain.NewValidationError(
			fmt.Sprintf("segment range [%d, %d] is out of bounds for %d segments", from, to, len(instances)))
	}
	return nil
}

func toDomainInstance(m SegmentInstanceModel) trip.SegmentInstance {
	return trip.SegmentInstance{
		ID:               m.ID,
		TripOccurrenceID: m.TripOccurrenceID,
		OrderIndex:       m.OrderIndex,
		SeatsHeld:        m.SeatsHeld,
		SeatsOccupied:    m.SeatsOccupied,
		Completed:        m.Completed,
		ETA:              m.ETA,
	}
}

func toInstanceModel(inst trip.SegmentInstance) SegmentInstanceModel {
	return SegmentInstanceModel{
		ID:               inst.ID,
		TripOccurrenceID: inst.TripOccurrenceID,
		OrderIndex:       inst.OrderIndex,
		SeatsHeld:        inst.SeatsHeld,
		SeatsOccupied:    inst.SeatsOccupied,
		Completed:        inst.Completed,
		ETA:              inst.ETA,
	}
}

// isRetryable reports whether err is a Postgres serialization failure (40001)
// or deadlock (40P01).
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
