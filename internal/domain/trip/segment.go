package trip

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/shuttlehq/service-reservation/internal/domain"
)

// Segment is one directed leg of a trip template between two consecutive stops.
// StartName and EndName are denormalized location names carried for diagnostics.
type Segment struct {
	ID              uuid.UUID `json:"id"`
	StartLocationID uuid.UUID `json:"start_location_id"`
	EndLocationID   uuid.UUID `json:"end_location_id"`
	StartName       string    `json:"start_name"`
	EndName         string    `json:"end_name"`
	OrderIndex      int       `json:"order_index"`
	ChargeCents     int64     `json:"charge_cents"`
}

// Topology is the validated, ordered segment chain of a trip template.
type Topology struct {
	segments []Segment
}

// NewTopology sorts the segments by order index and validates them as a single
// linear path. It fails if indices are not contiguous from 0, if the chain is
// broken, or if any location repeats as a segment start or end (a loop route
// would make range resolution ambiguous, so it is rejected outright).
func NewTopology(segments []Segment) (Topology, error) {
	if len(segments) == 0 {
		return Topology{}, domain.NewInvalidRouteError("route must have at least one segment")
	}

	ordered := make([]Segment, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].OrderIndex < ordered[j].OrderIndex })

	seenStarts := make(map[uuid.UUID]bool, len(ordered))
	seenEnds := make(map[uuid.UUID]bool, len(ordered))
	for i, seg := range ordered {
		if seg.OrderIndex != i {
			return Topology{}, domain.NewInvalidRouteError(
				fmt.Sprintf("segment order indices must be contiguous from 0, got %d at position %d", seg.OrderIndex, i))
		}
		if seg.StartLocationID == uuid.Nil || seg.EndLocationID == uuid.Nil {
			return Topology{}, domain.NewInvalidRouteError(
				fmt.Sprintf("segment %d is missing a start or end location", i))
		}
		if seg.StartLocationID == seg.EndLocationID {
			return Topology{}, domain.NewInvalidRouteError(
				fmt.Sprintf("segment %d starts and ends at the same location", i))
		}
		if seg.ChargeCents < 0 {
			return Topology{}, domain.NewValidationError(
				fmt.Sprintf("segment %d charge cannot be negative", i))
		}
		if i > 0 && ordered[i-1].EndLocationID != seg.StartLocationID {
			return Topology{}, domain.NewInvalidRouteError(
				fmt.Sprintf("segment %d does not start where segment %d ends", i, i-1))
		}
		if seenStarts[seg.StartLocationID] {
			return Topology{}, domain.NewInvalidRouteError(
				fmt.Sprintf("location %s appears more than once as a segment start", seg.StartName))
		}
		if seenEnds[seg.EndLocationID] {
			return Topology{}, domain.NewInvalidRouteError(
				fmt.Sprintf("location %s appears more than once as a segment end", seg.EndName))
		}
		seenStarts[seg.StartLocationID] = true
		seenEnds[seg.EndLocationID] = true
	}

	return Topology{segments: ordered}, nil
}

// Segments returns the ordered segment chain.
func (t Topology) Segments() []Segment {
	return t.segments
}

// Len returns the number of segments.
func (t Topology) Len() int {
	return len(t.segments)
}

// ResolveRange maps a boarding and alighting location to the inclusive segment
// index range [from, to] a traveller between them occupies. The boarding
// location must be a segment start and the alighting location a segment end,
// in forward travel order.
func (t Topology) ResolveRange(fromLocationID, toLocationID uuid.UUID) (int, int, error) {
	if fromLocationID == toLocationID {
		return 0, 0, domain.NewInvalidRouteError("boarding and alighting locations must differ")
	}

	from, to := -1, -1
	for _, seg := range t.segments {
		if seg.StartLocationID == fromLocationID {
			from = seg.OrderIndex
		}
		if seg.EndLocationID == toLocationID {
			to = seg.OrderIndex
		}
	}

	if from < 0 {
		return 0, 0, domain.NewInvalidRouteError(
			fmt.Sprintf("location %s is not a boarding point on this route", fromLocationID))
	}
	if to < 0 {
		return 0, 0, domain.NewInvalidRouteError(
			fmt.Sprintf("location %s is not an alighting point on this route", toLocationID))
	}
	if from > to {
		return 0, 0, domain.NewInvalidRouteError("route is travelled in the opposite direction")
	}

	return from, to, nil
}

// FareCents sums the segment charges over [from, to] for seatCount seats.
func (t Topology) FareCents(from, to, seatCount int) int64 {
	var total int64
	for i := from; i <= to && i < len(t.segments); i++ {
		total += t.segments[i].ChargeCents
	}
	return total * int64(seatCount)
}
