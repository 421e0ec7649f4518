package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shuttlehq/service-reservation/internal/domain/trip"
)

// RecordETARequest carries a predicted arrival time for one segment.
type RecordETARequest struct {
	ETA time.Time `json:"eta" binding:"required"`
}

// TripProgressDTO summarizes how far along a trip occurrence is.
type TripProgressDTO struct {
	TripOccurrenceID  uuid.UUID  `json:"trip_occurrence_id"`
	TotalSegments     int        `json:"total_segments"`
	CompletedSegments int        `json:"completed_segments"`
	NextSegmentIndex  *int       `json:"next_segment_index,omitempty"`
	NextSegmentETA    *time.Time `json:"next_segment_eta,omitempty"`
}

// ProgressService records driver-reported progress against the segment
// instances of a running trip. Completion is permissive: segments may be
// marked out of order, since GPS gaps and manual catch-up reports arrive
// late in the field.
type ProgressService struct {
	occurrences trip.OccurrenceRepository
	ledger      trip.Ledger
	logger      *zap.Logger
}

// NewProgressService creates a new ProgressService.
func NewProgressService(occurrences trip.OccurrenceRepository, ledger trip.Ledger, logger *zap.Logger) *ProgressService {
	return &ProgressService{
		occurrences: occurrences,
		ledger:      ledger,
		logger:      logger,
	}
}

// MarkSegmentComplete records that the vehicle has finished travelling one
// segment. Marking an already-completed segment is a no-op.
func (s *ProgressService) MarkSegmentComplete(ctx context.Context, occurrenceID uuid.UUID, orderIndex int) error {
	if err := s.ledger.MarkCompleted(ctx, occurrenceID, orderIndex); err != nil {
		return err
	}
	s.logger.Info("segment completed",
		zap.String("trip_occurrence_id", occurrenceID.String()),
		zap.Int("order_index", orderIndex),
	)
	return nil
}

// RecordETA stores a predicted arrival time for an incomplete segment.
func (s *ProgressService) RecordETA(ctx context.Context, occurrenceID uuid.UUID, orderIndex int, eta time.Time) error {
	return s.ledger.SetETA(ctx, occurrenceID, orderIndex, eta)
}

// GetProgress returns the progress summary of a trip occurrence. The next
// segment is the lowest-indexed incomplete one.
func (s *ProgressService) GetProgress(ctx context.Context, occurrenceID uuid.UUID) (*TripProgressDTO, error) {
	instances, err := s.ledger.Snapshot(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}

	result := &TripProgressDTO{
		TripOccurrenceID: occurrenceID,
		TotalSegments:    len(instances),
	}
	for _, inst := range instances {
		if inst.Completed {
			result.CompletedSegments++
			continue
		}
		if result.NextSegmentIndex == nil {
			idx := inst.OrderIndex
			result.NextSegmentIndex = &idx
			result.NextSegmentETA = inst.ETA
		}
	}
	return result, nil
}
