package trip

import (
	"fmt"

	"github.com/shuttlehq/service-reservation/internal/domain"
)

// CheckAvailability verifies that seatCount seats fit on every segment
// instance in the inclusive range [from, to]. Segment counts per trip are
// bounded by the stop count, so a straight scan is the range-minimum query.
// The instances slice must be ordered by index with instances[i].OrderIndex == i;
// segments provide the stop names for the failure diagnostic. On the first
// violating segment a CapacityExceeded error is returned carrying its index,
// stop names, and remaining seats.
func CheckAvailability(capacity int, instances []SegmentInstance, segments []Segment, from, to, seatCount int) error {
	if seatCount <= 0 {
		return domain.NewValidationError("seat count must be positive")
	}
	if from < 0 || to >= len(instances) || from > to {
		return domain.NewValidationError(
			fmt.Sprintf("segment range [%d, %d] is out of bounds for %d segments", from, to, len(instances)))
	}

	for i := from; i <= to; i++ {
		if instances[i].OrderIndex != i {
			return fmt.Errorf("segment instances out of order: expected index %d, got %d", i, instances[i].OrderIndex)
		}
		available := instances[i].Available(capacity)
		if available < seatCount {
			startName, endName := segmentNames(segments, i)
			return domain.NewCapacityExceededError(i, startName, endName, seatCount, available)
		}
	}
	return nil
}

func segmentNames(segments []Segment, index int) (string, string) {
	for _, seg := range segments {
		if seg.OrderIndex == index {
			return seg.StartName, seg.EndName
		}
	}
	return "", ""
}
