package trip

import (
	"time"

	"github.com/google/uuid"

	"github.com/shuttlehq/service-reservation/internal/domain"
)

// Template is the aggregate root for a trip template: a named, validated
// route topology. Templates are immutable once occurrences exist.
type Template struct {
	id        uuid.UUID
	name      string
	topology  Topology
	createdAt time.Time
}

// NewTemplate creates a Template from a segment chain, validating the topology.
func NewTemplate(name string, segments []Segment) (*Template, error) {
	if name == "" {
		return nil, domain.NewValidationError("template name is required")
	}

	topology, err := NewTopology(segments)
	if err != nil {
		return nil, err
	}

	return &Template{
		id:        uuid.New(),
		name:      name,
		topology:  topology,
		createdAt: time.Now().UTC(),
	}, nil
}

// ReconstructTemplate rebuilds a Template from persistence data. The stored
// topology is still validated: a broken chain in the database is a data bug
// worth failing loudly on.
func ReconstructTemplate(id uuid.UUID, name string, segments []Segment, createdAt time.Time) (*Template, error) {
	topology, err := NewTopology(segments)
	if err != nil {
		return nil, err
	}
	return &Template{
		id:        id,
		name:      name,
		topology:  topology,
		createdAt: createdAt,
	}, nil
}

// ID returns the template's unique identifier.
func (t *Template) ID() uuid.UUID { return t.id }

// Name returns the template's display name.
func (t *Template) Name() string { return t.name }

// Topology returns the validated segment chain.
func (t *Template) Topology() Topology { return t.topology }

// CreatedAt returns the creation timestamp.
func (t *Template) CreatedAt() time.Time { return t.createdAt }
