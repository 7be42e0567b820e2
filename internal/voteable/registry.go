package voteable

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/shunguan/voteable/internal/domain"
)

// ForeignKeyFunc resolves a votee's parent identity for one relation.
type ForeignKeyFunc func(v *domain.Votee) (uuid.UUID, bool)

// ForeignKey reads the parent identity from the votee's Refs field.
func ForeignKey(field string) ForeignKeyFunc {
	return func(v *domain.Votee) (uuid.UUID, bool) {
		return v.Ref(field)
	}
}

// DefaultForeignKeyField is the Refs field used when a relation declares none.
func DefaultForeignKeyField(relatedType string) string {
	return relatedType + "_id"
}

// Relation is one propagation edge from a votee type to a parent type.
type Relation struct {
	VoteeType      string
	RelatedType    string
	Weights        domain.Weights
	UpdateCounters bool
	ForeignKey     ForeignKeyFunc
}

// Voteable is the resolved configuration for one votee type.
type Voteable struct {
	Type    string
	Weights domain.Weights
	Parents []Relation
}

type key struct {
	votee   string
	related string
}

type Option func(*Relation)

// WithoutCounters limits propagation to point; parent counters stay untouched.
func WithoutCounters() Option {
	return func(r *Relation) { r.UpdateCounters = false }
}

// WithForeignKey names the Refs field holding the parent's identity.
func WithForeignKey(field string) Option {
	return func(r *Relation) { r.ForeignKey = ForeignKey(field) }
}

func WithForeignKeyFunc(fn ForeignKeyFunc) Option {
	return func(r *Relation) { r.ForeignKey = fn }
}

// Builder accumulates registrations. It is not safe for concurrent use; build the
// registry once during startup.
type Builder struct {
	entries map[key]Relation
	order   map[string][]string
}

func NewBuilder() *Builder {
	return &Builder{
		entries: make(map[key]Relation),
		order:   make(map[string][]string),
	}
}

// Register adds the (voteeType, relatedType) entry unless one already exists.
func (b *Builder) Register(voteeType, relatedType string, up, down int64, opts ...Option) *Builder {
	k := key{votee: voteeType, related: relatedType}
	if _, exists := b.entries[k]; exists {
		slog.Debug("Ignoring duplicate voteable registration", "votee_type", voteeType, "related_type", relatedType)
		return b
	}

	rel := Relation{
		VoteeType:      voteeType,
		RelatedType:    relatedType,
		Weights:        domain.Weights{Up: up, Down: down},
		UpdateCounters: true,
	}
	if relatedType != voteeType {
		rel.ForeignKey = ForeignKey(DefaultForeignKeyField(relatedType))
	}
	for _, opt := range opts {
		opt(&rel)
	}

	b.entries[k] = rel
	b.order[voteeType] = append(b.order[voteeType], relatedType)
	return b
}

// Build freezes the registrations. The builder may keep being used; later
// registrations do not affect registries already built.
func (b *Builder) Build() *Registry {
	r := &Registry{
		voteables: make(map[string]Voteable),
		known:     make(map[string]struct{}),
	}

	for voteeType, related := range b.order {
		r.known[voteeType] = struct{}{}

		self, ok := b.entries[key{votee: voteeType, related: voteeType}]
		if !ok {
			slog.Warn("Votee type has relations but no own weights, votes will be rejected", "votee_type", voteeType)
		}

		v := Voteable{Type: voteeType, Weights: self.Weights}
		for _, relatedType := range related {
			r.known[relatedType] = struct{}{}
			if relatedType == voteeType {
				continue
			}
			v.Parents = append(v.Parents, b.entries[key{votee: voteeType, related: relatedType}])
		}

		if ok {
			r.voteables[voteeType] = v
		}
	}

	return r
}

// Registry is the immutable relation table. Safe for concurrent reads.
type Registry struct {
	voteables map[string]Voteable
	known     map[string]struct{}
}

// Lookup returns the configuration for a votee type. A type without its own
// weights is not voteable.
func (r *Registry) Lookup(voteeType string) (Voteable, bool) {
	v, ok := r.voteables[voteeType]
	v.Parents = slices.Clone(v.Parents)
	return v, ok
}

// Known reports whether the type takes part in any relation, as votee or parent.
func (r *Registry) Known(entityType string) bool {
	_, ok := r.known[entityType]
	return ok
}

// Types returns the voteable types, sorted.
func (r *Registry) Types() []string {
	return slices.Sorted(maps.Keys(r.voteables))
}
