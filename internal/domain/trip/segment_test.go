package trip

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuttlehq/service-reservation/internal/domain"
)

// lineRoute builds a linear chain through the given stops with 1000 cents per
// leg, and returns the stop IDs alongside the segments.
func lineRoute(t *testing.T, stopNames ...string) ([]uuid.UUID, []Segment) {
	t.Helper()
	require.GreaterOrEqual(t, len(stopNames), 2)

	stops := make([]uuid.UUID, len(stopNames))
	for i := range stops {
		stops[i] = uuid.New()
	}

	segments := make([]Segment, len(stopNames)-1)
	for i := range segments {
		segments[i] = Segment{
			ID:              uuid.New(),
			StartLocationID: stops[i],
			EndLocationID:   stops[i+1],
			StartName:       stopNames[i],
			EndName:         stopNames[i+1],
			OrderIndex:      i,
			ChargeCents:     1000,
		}
	}
	return stops, segments
}

func TestNewTopology(t *testing.T) {
	t.Run("valid chain", func(t *testing.T) {
		_, segments := lineRoute(t, "Sentral", "Mid Valley", "Sunway", "Klang")

		topo, err := NewTopology(segments)
		require.NoError(t, err)
		assert.Equal(t, 3, topo.Len())
	})

	t.Run("sorts by order index", func(t *testing.T) {
		_, segments := lineRoute(t, "A", "B", "C")
		reversed := []Segment{segments[1], segments[0]}

		topo, err := NewTopology(reversed)
		require.NoError(t, err)
		assert.Equal(t, 0, topo.Segments()[0].OrderIndex)
		assert.Equal(t, 1, topo.Segments()[1].OrderIndex)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := NewTopology(nil)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidRoute))
	})

	t.Run("non-contiguous indices", func(t *testing.T) {
		_, segments := lineRoute(t, "A", "B", "C")
		segments[1].OrderIndex = 5

		_, err := NewTopology(segments)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidRoute))
	})

	t.Run("broken chain", func(t *testing.T) {
		_, segments := lineRoute(t, "A", "B", "C")
		segments[1].StartLocationID = uuid.New()

		_, err := NewTopology(segments)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidRoute))
	})

	t.Run("self loop segment", func(t *testing.T) {
		_, segments := lineRoute(t, "A", "B")
		segments[0].EndLocationID = segments[0].StartLocationID

		_, err := NewTopology(segments)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidRoute))
	})

	t.Run("loop route rejected", func(t *testing.T) {
		// A -> B -> C -> A revisits A, which makes boarding at A ambiguous.
		stops, segments := lineRoute(t, "A", "B", "C")
		segments = append(segments, Segment{
			ID:              uuid.New(),
			StartLocationID: stops[2],
			EndLocationID:   stops[0],
			StartName:       "C",
			EndName:         "A",
			OrderIndex:      2,
			ChargeCents:     1000,
		})

		_, err := NewTopology(segments)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidRoute))
	})

	t.Run("negative charge", func(t *testing.T) {
		_, segments := lineRoute(t, "A", "B")
		segments[0].ChargeCents = -1

		_, err := NewTopology(segments)
		assert.True(t, domain.IsCode(err, domain.CodeValidation))
	})
}

func TestTopology_ResolveRange(t *testing.T) {
	stops, segments := lineRoute(t, "Sentral", "Mid Valley", "Sunway", "Klang")
	topo, err := NewTopology(segments)
	require.NoError(t, err)

	t.Run("full route", func(t *testing.T) {
		from, to, err := topo.ResolveRange(stops[0], stops[3])
		require.NoError(t, err)
		assert.Equal(t, 0, from)
		assert.Equal(t, 2, to)
	})

	t.Run("middle leg", func(t *testing.T) {
		from, to, err := topo.ResolveRange(stops[1], stops[2])
		require.NoError(t, err)
		assert.Equal(t, 1, from)
		assert.Equal(t, 1, to)
	})

	t.Run("reverse direction rejected", func(t *testing.T) {
		_, _, err := topo.ResolveRange(stops[2], stops[0])
		require.Error(t, err)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidRoute))
		assert.Contains(t, err.Error(), "opposite direction")
	})

	t.Run("same stop twice", func(t *testing.T) {
		_, _, err := topo.ResolveRange(stops[1], stops[1])
		assert.True(t, domain.IsCode(err, domain.CodeInvalidRoute))
	})

	t.Run("unknown boarding point", func(t *testing.T) {
		_, _, err := topo.ResolveRange(uuid.New(), stops[3])
		assert.True(t, domain.IsCode(err, domain.CodeInvalidRoute))
	})

	t.Run("terminus is not a boarding point", func(t *testing.T) {
		_, _, err := topo.ResolveRange(stops[3], stops[1])
		assert.True(t, domain.IsCode(err, domain.CodeInvalidRoute))
	})
}

func TestTopology_FareCents(t *testing.T) {
	_, segments := lineRoute(t, "A", "B", "C", "D")
	segments[0].ChargeCents = 500
	segments[1].ChargeCents = 700
	segments[2].ChargeCents = 900
	topo, err := NewTopology(segments)
	require.NoError(t, err)

	assert.Equal(t, int64(2100), topo.FareCents(0, 2, 1))
	assert.Equal(t, int64(1200), topo.FareCents(0, 1, 1))
	assert.Equal(t, int64(3200), topo.FareCents(1, 2, 2))
}
