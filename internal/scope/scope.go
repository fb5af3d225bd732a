// Package scope resolves the index collection and storage namespace that an
// ingestion run or query targets. Ingestion and search must resolve names
// through the same rule to stay consistent.
package scope

import (
	"fmt"
	"regexp"
	"strings"
)

// Visibility controls who can retrieve a document's chunks.
type Visibility string

const (
	// VisibilityPrivate scopes chunks to a single owner.
	VisibilityPrivate Visibility = "private"
	// VisibilityShared scopes chunks to a shared tenant-wide collection.
	VisibilityShared Visibility = "shared"
)

// prefix per visibility. Private collections are keyed by owner;
// shared collections by tenant.
const (
	privatePrefix = "user"
	sharedPrefix  = "tenant"
)

// unsafeChars matches characters not allowed in collection names.
var unsafeChars = regexp.MustCompile(`[^a-z0-9_]+`)

// Identifier names the tenant/owner/collection context of a run or query.
// The zero value is not valid; use New.
type Identifier struct {
	// OwnerID identifies the owning user (private) or tenant (shared).
	OwnerID string

	// Visibility selects the collection namespace.
	Visibility Visibility

	// ExplicitCollection, when set, bypasses the default naming rule.
	ExplicitCollection string
}

// New creates a scope identifier for the given owner and visibility.
func New(ownerID string, visibility Visibility) Identifier {
	return Identifier{OwnerID: ownerID, Visibility: visibility}
}

// WithCollection returns a copy of the identifier targeting an explicit
// collection instead of the default-named one.
func (id Identifier) WithCollection(name string) Identifier {
	id.ExplicitCollection = name
	return id
}

// Validate checks that the identifier is usable.
func (id Identifier) Validate() error {
	if id.OwnerID == "" {
		return fmt.Errorf("scope owner id is required")
	}
	switch id.Visibility {
	case VisibilityPrivate, VisibilityShared:
		return nil
	default:
		return fmt.Errorf("unknown scope visibility %q", id.Visibility)
	}
}

// Collection resolves the target collection name. When no explicit collection
// is set, the deterministic default is "<scope-prefix>_<owner-id>_chunks".
func (id Identifier) Collection() string {
	if id.ExplicitCollection != "" {
		return sanitize(id.ExplicitCollection)
	}
	prefix := privatePrefix
	if id.Visibility == VisibilityShared {
		prefix = sharedPrefix
	}
	return fmt.Sprintf("%s_%s_chunks", prefix, sanitize(id.OwnerID))
}

// StoragePrefix resolves the object-storage namespace for a document.
// All objects written for one ingestion run live under this prefix, which is
// what rollback deletes.
func (id Identifier) StoragePrefix(documentID string) string {
	return fmt.Sprintf("%s/documents/%s", id.Collection(), documentID)
}

// sanitize lowercases and replaces unsafe characters so names are valid for
// every backing index.
func sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = unsafeChars.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
