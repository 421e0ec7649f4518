package reservation

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuttlehq/service-reservation/internal/domain"
)

func newTestReservation(t *testing.T) *Reservation {
	t.Helper()
	res, err := NewReservation(
		uuid.New(), uuid.New(), 2,
		0, 2,
		uuid.New(), uuid.New(),
		3000, domain.CurrencyMYR,
	)
	require.NoError(t, err)
	return res
}

func TestNewReservation(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		res := newTestReservation(t)
		assert.Equal(t, StateHeld, res.State())
		assert.Equal(t, 2, res.SeatCount())
		assert.Equal(t, int64(1), res.Version())
		assert.Nil(t, res.ConfirmedAt())
		assert.Nil(t, res.ReleasedAt())
		assert.Regexp(t, regexp.MustCompile(`^RS-[A-HJ-NP-Z2-9]{6}$`), res.ReservationNumber())
	})

	t.Run("missing occurrence", func(t *testing.T) {
		_, err := NewReservation(uuid.Nil, uuid.New(), 1, 0, 0, uuid.New(), uuid.New(), 0, domain.CurrencyMYR)
		assert.True(t, domain.IsCode(err, domain.CodeValidation))
	})

	t.Run("zero seats", func(t *testing.T) {
		_, err := NewReservation(uuid.New(), uuid.New(), 0, 0, 0, uuid.New(), uuid.New(), 0, domain.CurrencyMYR)
		assert.True(t, domain.IsCode(err, domain.CodeValidation))
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := NewReservation(uuid.New(), uuid.New(), 1, 2, 1, uuid.New(), uuid.New(), 0, domain.CurrencyMYR)
		assert.True(t, domain.IsCode(err, domain.CodeValidation))
	})
}

func TestReservation_Confirm(t *testing.T) {
	t.Run("held to occupied", func(t *testing.T) {
		res := newTestReservation(t)
		require.NoError(t, res.Confirm())
		assert.Equal(t, StateOccupied, res.State())
		assert.NotNil(t, res.ConfirmedAt())
	})

	t.Run("double confirm rejected", func(t *testing.T) {
		res := newTestReservation(t)
		require.NoError(t, res.Confirm())
		err := res.Confirm()
		assert.True(t, domain.IsCode(err, domain.CodeInvalidTransition))
	})

	t.Run("cannot confirm a released reservation", func(t *testing.T) {
		res := newTestReservation(t)
		require.NoError(t, res.Release("guest cancelled"))
		err := res.Confirm()
		assert.True(t, domain.IsCode(err, domain.CodeInvalidTransition))
	})
}

func TestReservation_Release(t *testing.T) {
	t.Run("from held", func(t *testing.T) {
		res := newTestReservation(t)
		require.NoError(t, res.Release("guest cancelled"))
		assert.Equal(t, StateReleased, res.State())
		assert.NotNil(t, res.ReleasedAt())
		assert.Equal(t, "guest cancelled", res.ReleaseNote())
	})

	t.Run("from occupied", func(t *testing.T) {
		res := newTestReservation(t)
		require.NoError(t, res.Confirm())
		require.NoError(t, res.Release("no show"))
		assert.Equal(t, StateReleased, res.State())
	})

	t.Run("second release hits the idempotency guard", func(t *testing.T) {
		res := newTestReservation(t)
		require.NoError(t, res.Release("first"))
		err := res.Release("second")
		assert.True(t, domain.IsCode(err, domain.CodeAlreadyReleased))
		assert.Equal(t, "first", res.ReleaseNote())
	})
}

func TestState(t *testing.T) {
	assert.True(t, StateHeld.CanTransitionTo(StateOccupied))
	assert.True(t, StateHeld.CanTransitionTo(StateReleased))
	assert.True(t, StateOccupied.CanTransitionTo(StateReleased))
	assert.False(t, StateOccupied.CanTransitionTo(StateHeld))
	assert.False(t, StateReleased.CanTransitionTo(StateHeld))
	assert.False(t, StateReleased.CanTransitionTo(StateOccupied))

	assert.True(t, StateReleased.IsTerminal())
	assert.False(t, StateHeld.IsTerminal())

	parsed, err := ParseState("held")
	require.NoError(t, err)
	assert.Equal(t, StateHeld, parsed)

	_, err = ParseState("pending")
	assert.Error(t, err)
}
