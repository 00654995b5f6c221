// Package kv is the key-value side of the dataset: named namespaces of
// entries, each carrying a small JSON metadata blob written alongside an
// optional value body, enumerated with an opaque cursor.
package kv

import (
	"context"
	"encoding/json"
)

// Namespaces used by the dataset.
const (
	Coverage  = "coverage"
	Repeaters = "repeaters"
	Samples   = "samples"
	Archive   = "archive"
)

// DefaultPageSize is the number of keys a List call aims to return.
const DefaultPageSize = 1000

// Key is one listed entry: its name and the metadata attached at write time.
type Key struct {
	Name     string
	Metadata json.RawMessage
}

// Page is one List result. Cursor is empty once enumeration is complete.
type Page struct {
	Keys   []Key
	Cursor string
}

// Complete reports whether no further pages remain.
func (p Page) Complete() bool {
	return p.Cursor == ""
}

// Namespace is a single collection of entries. Each call is independently
// atomic; there are no transactions across calls.
// Implementations must be safe for concurrent use.
type Namespace interface {
	List(ctx context.Context, cursor string) (Page, error)
	Get(ctx context.Context, name string) ([]byte, bool, error)
	Put(ctx context.Context, name string, value []byte, metadata any) error
	Delete(ctx context.Context, name string) error
}

// ListAll pages through ns from the beginning, calling fn once per page.
// Pages are visited sequentially; fn may fan out work within its page.
func ListAll(ctx context.Context, ns Namespace, fn func(Page) error) error {
	cursor := ""
	for {
		page, err := ns.List(ctx, cursor)
		if err != nil {
			return err
		}
		if err := fn(page); err != nil {
			return err
		}
		if page.Complete() {
			return nil
		}
		cursor = page.Cursor
	}
}
