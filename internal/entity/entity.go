package entity

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"
)

// ErrNotFound is returned by stores when no entity matches a lookup.
// Callers should treat it as an expected miss, not a failure.
var ErrNotFound = errors.New("entity not found")

// ExportIDKey is the reserved key under which an exported entity carries
// its durable identifier, distinguishing it from domain fields.
const ExportIDKey = "_id"

// excerptLen bounds exported description fields so that snapshots of
// entities with long free-text descriptions stay compact.
const excerptLen = 1000

// Entity is a generic persisted record: a typed object with a durable
// identifier and a flat string metadata bag. It is the unit the Store
// boundary persists; domain aggregates encode themselves into it.
type Entity struct {
	GUID        string    `json:"guid"`
	Type        string    `json:"type"`
	Subtype     string    `json:"subtype,omitempty"`
	OwnerGUID   string    `json:"owner_guid,omitempty"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	TimeCreated time.Time `json:"time_created"`

	// Metadata holds the entity's key-value attributes. Values are
	// strings; structured values are JSON-encoded by their owners.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Meta returns the metadata value for name, or "" when unset.
func (e *Entity) Meta(name string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[name]
}

// SetMeta sets a metadata value, allocating the bag on first use.
func (e *Entity) SetMeta(name, value string) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[name] = value
}

// Export flattens the entity into a transportable map. The durable
// identifier is carried under ExportIDKey and the description is
// truncated to an excerpt.
func (e *Entity) Export() map[string]any {
	export := map[string]any{
		ExportIDKey:    e.GUID,
		"type":         e.Type,
		"subtype":      e.Subtype,
		"owner_guid":   e.OwnerGUID,
		"name":         e.Name,
		"description":  Excerpt(e.Description, excerptLen),
		"time_created": e.TimeCreated.Unix(),
	}
	for k, v := range e.Metadata {
		if _, reserved := export[k]; !reserved {
			export[k] = v
		}
	}
	return export
}

// Excerpt truncates s to at most n runes, appending an ellipsis when
// content was cut.
func Excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}

// Store is the persistence engine boundary. Implementations persist
// generic entities and their metadata; they do not interpret domain
// semantics. Save assigns a GUID when the entity has none. Save and
// relationship recording are not atomic with each other.
type Store interface {
	// Load fetches an entity by durable identifier. Returns ErrNotFound
	// when no such entity exists.
	Load(ctx context.Context, guid string) (*Entity, error)

	// Save creates or updates an entity, assigning GUID and TimeCreated
	// on first save.
	Save(ctx context.Context, e *Entity) error

	// QueryByMetadata returns up to limit entities whose metadata field
	// name equals value, oldest-created first when oldestFirst is set.
	QueryByMetadata(ctx context.Context, name, value string, limit int, oldestFirst bool) ([]*Entity, error)
}

// Relationships is the relationship store boundary: a directed index of
// named links between entity identifiers.
type Relationships interface {
	// Add records a directed relationship fromGUID -[role]-> toGUID.
	Add(ctx context.Context, fromGUID, role, toGUID string) error

	// Inbound returns up to limit entities that have a relationship of
	// the given role pointing at toGUID. A miss yields an empty slice,
	// not an error.
	Inbound(ctx context.Context, role, toGUID string, limit int) ([]*Entity, error)
}
