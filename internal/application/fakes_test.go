package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shuttlehq/service-reservation/internal/domain"
	resDomain "github.com/shuttlehq/service-reservation/internal/domain/reservation"
	"github.com/shuttlehq/service-reservation/internal/domain/trip"
	"github.com/shuttlehq/service-reservation/internal/events"
)

type fakeLocationRepo struct {
	mu        sync.Mutex
	locations map[uuid.UUID]trip.Location
}

func newFakeLocationRepo() *fakeLocationRepo {
	return &fakeLocationRepo{locations: make(map[uuid.UUID]trip.Location)}
}

func (r *fakeLocationRepo) Save(_ context.Context, loc trip.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.locations {
		if existing.Name == loc.Name {
			return domain.NewConflictError("location name already exists")
		}
	}
	r.locations[loc.ID] = loc
	return nil
}

func (r *fakeLocationRepo) FindByID(_ context.Context, id uuid.UUID) (trip.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locations[id]
	if !ok {
		return trip.Location{}, domain.NewNotFoundError("Location", id.String())
	}
	return loc, nil
}

func (r *fakeLocationRepo) List(_ context.Context) ([]trip.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]trip.Location, 0, len(r.locations))
	for _, loc := range r.locations {
		out = append(out, loc)
	}
	return out, nil
}

type fakeTemplateRepo struct {
	mu        sync.Mutex
	templates map[uuid.UUID]*trip.Template
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{templates: make(map[uuid.UUID]*trip.Template)}
}

func (r *fakeTemplateRepo) Save(_ context.Context, template *trip.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[template.ID()] = template
	return nil
}

func (r *fakeTemplateRepo) FindByID(_ context.Context, id uuid.UUID) (*trip.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	template, ok := r.templates[id]
	if !ok {
		return nil, domain.NewNotFoundError("TripTemplate", id.String())
	}
	return template, nil
}

func (r *fakeTemplateRepo) List(_ context.Context, _, _ int) ([]*trip.Template, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*trip.Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	return out, int64(len(out)), nil
}

type fakeOccurrenceRepo struct {
	mu          sync.Mutex
	occurrences map[uuid.UUID]*trip.Occurrence
	ledger      *fakeLedger
}

func newFakeOccurrenceRepo(ledger *fakeLedger) *fakeOccurrenceRepo {
	return &fakeOccurrenceRepo{
		occurrences: make(map[uuid.UUID]*trip.Occurrence),
		ledger:      ledger,
	}
}

func (r *fakeOccurrenceRepo) Save(_ context.Context, occ *trip.Occurrence, instances []trip.SegmentInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.occurrences[occ.ID()] = occ
	if r.ledger != nil {
		r.ledger.seed(occ.ID(), occ.VehicleCapacity(), instances)
	}
	return nil
}

func (r *fakeOccurrenceRepo) FindByID(_ context.Context, id uuid.UUID) (*trip.Occurrence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	occ, ok := r.occurrences[id]
	if !ok {
		return nil, domain.NewNotFoundError("TripOccurrence", id.String())
	}
	return occ, nil
}

func (r *fakeOccurrenceRepo) Update(_ context.Context, occ *trip.Occurrence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.occurrences[occ.ID()]; !ok {
		return domain.NewNotFoundError("TripOccurrence", occ.ID().String())
	}
	r.occurrences[occ.ID()] = occ
	return nil
}

func (r *fakeOccurrenceRepo) ListByTemplate(_ context.Context, templateID uuid.UUID, _, _ int) ([]*trip.Occurrence, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*trip.Occurrence
	for _, occ := range r.occurrences {
		if occ.TemplateID() == templateID {
			out = append(out, occ)
		}
	}
	return out, int64(len(out)), nil
}

type fakeReservationRepo struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]*resDomain.Reservation
	failSave     bool
	updateErr    error
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{reservations: make(map[uuid.UUID]*resDomain.Reservation)}
}

// cloneReservation copies a stored reservation so callers mutate their own
// instance, the way a row scan produces a fresh aggregate.
func cloneReservation(res *resDomain.Reservation) *resDomain.Reservation {
	cp := *res
	return &cp
}

func (r *fakeReservationRepo) Save(_ context.Context, res *resDomain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave {
		return domain.NewConflictError("simulated save failure")
	}
	r.reservations[res.ID()] = cloneReservation(res)
	return nil
}

// Update enforces the same optimistic version check as the database
// repository: the stored version must be one behind the incoming one.
func (r *fakeReservationRepo) Update(_ context.Context, res *resDomain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.reservations[res.ID()]
	if !ok {
		return domain.NewNotFoundError("Reservation", res.ID().String())
	}
	if stored.Version() != res.Version()-1 {
		return domain.NewConflictError("reservation was modified by another transaction")
	}
	r.reservations[res.ID()] = cloneReservation(res)
	return nil
}

func (r *fakeReservationRepo) FindByID(_ context.Context, id uuid.UUID) (*resDomain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok {
		return nil, domain.NewNotFoundError("Reservation", id.String())
	}
	return cloneReservation(res), nil
}

func (r *fakeReservationRepo) FindByNumber(_ context.Context, number string) (*resDomain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.reservations {
		if res.ReservationNumber() == number {
			return cloneReservation(res), nil
		}
	}
	return nil, domain.NewNotFoundError("Reservation", number)
}

func (r *fakeReservationRepo) FindByGuestID(_ context.Context, guestID uuid.UUID, _, _ int) ([]*resDomain.Reservation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*resDomain.Reservation
	for _, res := range r.reservations {
		if res.GuestID() == guestID {
			out = append(out, cloneReservation(res))
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeReservationRepo) FindActiveByOccurrence(_ context.Context, occurrenceID uuid.UUID) ([]*resDomain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*resDomain.Reservation
	for _, res := range r.reservations {
		if res.TripOccurrenceID() == occurrenceID && !res.State().IsTerminal() {
			out = append(out, cloneReservation(res))
		}
	}
	return out, nil
}

func (r *fakeReservationRepo) ListAll(_ context.Context, _, _ int) ([]*resDomain.Reservation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*resDomain.Reservation, 0, len(r.reservations))
	for _, res := range r.reservations {
		out = append(out, cloneReservation(res))
	}
	return out, int64(len(out)), nil
}

func (r *fakeReservationRepo) CountByState(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, res := range r.reservations {
		counts[string(res.State())]++
	}
	return counts, nil
}

// fakeLedger mirrors the transactional ledger: each range operation validates
// and applies under one lock, so concurrent callers see all-or-nothing
// counter changes exactly like rows locked FOR UPDATE. The apply callback of
// ConfirmHold and Release succeeds or fails together with the counter change,
// matching the real transaction boundary.
type fakeLedger struct {
	mu         sync.Mutex
	capacities map[uuid.UUID]int
	instances  map[uuid.UUID][]trip.SegmentInstance
	segments   map[uuid.UUID][]trip.Segment
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		capacities: make(map[uuid.UUID]int),
		instances:  make(map[uuid.UUID][]trip.SegmentInstance),
		segments:   make(map[uuid.UUID][]trip.Segment),
	}
}

func (l *fakeLedger) seed(occurrenceID uuid.UUID, capacity int, instances []trip.SegmentInstance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.capacities[occurrenceID] = capacity
	copied := make([]trip.SegmentInstance, len(instances))
	copy(copied, instances)
	l.instances[occurrenceID] = copied
}

func (l *fakeLedger) seedSegments(occurrenceID uuid.UUID, segments []trip.Segment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.segments[occurrenceID] = segments
}

func (l *fakeLedger) Snapshot(_ context.Context, occurrenceID uuid.UUID) ([]trip.SegmentInstance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	instances, ok := l.instances[occurrenceID]
	if !ok {
		return nil, domain.NewNotFoundError("TripOccurrence", occurrenceID.String())
	}
	out := make([]trip.SegmentInstance, len(instances))
	copy(out, instances)
	return out, nil
}

func (l *fakeLedger) Reserve(_ context.Context, occurrenceID uuid.UUID, from, to, seatCount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	instances, ok := l.instances[occurrenceID]
	if !ok {
		return domain.NewNotFoundError("TripOccurrence", occurrenceID.String())
	}
	if err := trip.CheckAvailability(l.capacities[occurrenceID], instances, l.segments[occurrenceID], from, to, seatCount); err != nil {
		return err
	}
	for i := from; i <= to; i++ {
		instances[i].SeatsHeld += seatCount
	}
	return nil
}

func (l *fakeLedger) ConfirmHold(ctx context.Context, occurrenceID uuid.UUID, from, to, seatCount int, apply func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	instances, ok := l.instances[occurrenceID]
	if !ok {
		return domain.NewNotFoundError("TripOccurrence", occurrenceID.String())
	}
	for i := from; i <= to; i++ {
		if instances[i].SeatsHeld < seatCount {
			return domain.NewConflictError("held counter underflow")
		}
	}
	if apply != nil {
		if err := apply(ctx); err != nil {
			return err
		}
	}
	for i := from; i <= to; i++ {
		instances[i].SeatsHeld -= seatCount
		instances[i].SeatsOccupied += seatCount
	}
	return nil
}

func (l *fakeLedger) Release(ctx context.Context, occurrenceID uuid.UUID, from, to, seatCount int, fromHeld bool, apply func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	instances, ok := l.instances[occurrenceID]
	if !ok {
		return domain.NewNotFoundError("TripOccurrence", occurrenceID.String())
	}
	for i := from; i <= to; i++ {
		if fromHeld && instances[i].SeatsHeld < seatCount {
			return domain.NewConflictError("held counter underflow")
		}
		if !fromHeld && instances[i].SeatsOccupied < seatCount {
			return domain.NewConflictError("occupied counter underflow")
		}
	}
	if apply != nil {
		if err := apply(ctx); err != nil {
			return err
		}
	}
	for i := from; i <= to; i++ {
		if fromHeld {
			instances[i].SeatsHeld -= seatCount
		} else {
			instances[i].SeatsOccupied -= seatCount
		}
	}
	return nil
}

func (l *fakeLedger) MarkCompleted(_ context.Context, occurrenceID uuid.UUID, orderIndex int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	instances, ok := l.instances[occurrenceID]
	if !ok || orderIndex < 0 || orderIndex >= len(instances) {
		return domain.NewNotFoundError("SegmentInstance", occurrenceID.String())
	}
	instances[orderIndex].Completed = true
	return nil
}

func (l *fakeLedger) SetETA(_ context.Context, occurrenceID uuid.UUID, orderIndex int, eta time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	instances, ok := l.instances[occurrenceID]
	if !ok || orderIndex < 0 || orderIndex >= len(instances) {
		return domain.NewNotFoundError("SegmentInstance", occurrenceID.String())
	}
	if instances[orderIndex].Completed {
		return domain.NewConflictError("cannot record ETA on a completed segment")
	}
	instances[orderIndex].ETA = &eta
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []events.CloudEvent
}

func (p *fakePublisher) PublishEvent(_ context.Context, _ string, event events.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, event)
	return nil
}

func (p *fakePublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.published))
	for i, evt := range p.published {
		types[i] = evt.Type
	}
	return types
}
