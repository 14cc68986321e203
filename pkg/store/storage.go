package store

import (
	"context"
	"time"

	"github.com/OFFIS-RIT/graphloom/backend/pkg/common"
)

// GraphStorage defines the interface for persisting and reading the
// extracted graph. Node creation is idempotent on the canonical name;
// relationships reference existing nodes only.
//
// Implementations never retry internally. Every failure is returned as an
// *Error that matches ErrStoreUnavailable.
type GraphStorage interface {
	// UpsertNode creates the node if name is unseen and returns its id.
	// An existing node is returned untouched; typ is only written on creation.
	UpsertNode(ctx context.Context, name string, typ string) (string, error)

	// ResolveIDs looks up node ids by canonical name. Unknown names are
	// omitted from the result.
	ResolveIDs(ctx context.Context, names []string) (map[string]string, error)

	// InsertRelationship stores an edge between two existing nodes. created
	// is false when duplicate edges are disallowed and the same
	// (source, target, label) triple already exists; id is then the id of
	// the existing edge.
	InsertRelationship(ctx context.Context, sourceID, targetID, label string) (id string, created bool, err error)

	ListNodes(ctx context.Context) ([]common.Node, error)
	ListRelationships(ctx context.Context) ([]common.Edge, error)

	Close() error
}

// Options are shared by all storage backends.
type Options struct {
	// AllowDuplicateEdges keeps every inserted relationship, even when an
	// identical (source, target, label) triple exists.
	AllowDuplicateEdges bool
	// Timeout bounds every single store call. Zero disables the bound.
	Timeout time.Duration
}

// DefaultOptions returns the options used when a backend is created
// without explicit configuration.
func DefaultOptions() Options {
	return Options{
		AllowDuplicateEdges: true,
		Timeout:             10 * time.Second,
	}
}

// WithTimeout derives a context bounded by the configured store timeout.
func (o Options) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.Timeout)
}

// DedupKey returns the uniqueness key stored with a relationship, or the
// empty string when duplicates are allowed and no key must be enforced.
func (o Options) DedupKey(sourceID, targetID, label string) string {
	if o.AllowDuplicateEdges {
		return ""
	}
	return sourceID + "\x1f" + targetID + "\x1f" + label
}
