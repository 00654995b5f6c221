// Package mock provides an in-memory kv.Namespace for tests.
package mock

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/kiranshivaraju/meshcover/internal/kv"
)

type entry struct {
	meta  json.RawMessage
	value []byte
}

// Namespace is an in-memory kv.Namespace. Keys are listed in name order and
// the cursor is the last name returned, so deleting while paging is safe.
type Namespace struct {
	PageSize int

	// ListErr, GetErr and DeleteErr, when set, are returned by the matching
	// call. DeleteErrFor fails only deletes of the named keys.
	ListErr      error
	GetErr       error
	DeleteErr    error
	DeleteErrFor map[string]error

	mu        sync.Mutex
	entries   map[string]entry
	deleted   []string
	listCalls int
}

// NewNamespace returns an empty namespace using kv.DefaultPageSize.
func NewNamespace() *Namespace {
	return &Namespace{PageSize: kv.DefaultPageSize, entries: make(map[string]entry)}
}

func (n *Namespace) List(_ context.Context, cursor string) (kv.Page, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listCalls++
	if n.ListErr != nil {
		return kv.Page{}, n.ListErr
	}

	names := n.sortedNames()
	start := sort.SearchStrings(names, cursor)
	if cursor != "" && start < len(names) && names[start] == cursor {
		start++
	}

	size := n.PageSize
	if size <= 0 {
		size = kv.DefaultPageSize
	}
	end := start + size
	if end > len(names) {
		end = len(names)
	}

	page := kv.Page{Keys: make([]kv.Key, 0, end-start)}
	for _, name := range names[start:end] {
		page.Keys = append(page.Keys, kv.Key{Name: name, Metadata: n.entries[name].meta})
	}
	if end < len(names) {
		page.Cursor = names[end-1]
	}
	return page, nil
}

func (n *Namespace) Get(_ context.Context, name string) ([]byte, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.GetErr != nil {
		return nil, false, n.GetErr
	}
	e, ok := n.entries[name]
	if !ok {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (n *Namespace) Put(_ context.Context, name string, value []byte, metadata any) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries[name] = entry{meta: meta, value: value}
	return nil
}

func (n *Namespace) Delete(_ context.Context, name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.DeleteErr != nil {
		return n.DeleteErr
	}
	if err := n.DeleteErrFor[name]; err != nil {
		return err
	}
	delete(n.entries, name)
	n.deleted = append(n.deleted, name)
	return nil
}

// Seed stores an entry with raw JSON metadata, bypassing error hooks.
func (n *Namespace) Seed(name string, metadata string, value []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries[name] = entry{meta: json.RawMessage(metadata), value: value}
}

// Has reports whether name is currently stored.
func (n *Namespace) Has(name string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.entries[name]
	return ok
}

// Len returns the number of stored entries.
func (n *Namespace) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.entries)
}

// Deleted returns successfully deleted names in call order.
func (n *Namespace) Deleted() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.deleted...)
}

// ListCalls returns how many times List was called.
func (n *Namespace) ListCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.listCalls
}

func (n *Namespace) sortedNames() []string {
	names := make([]string, 0, len(n.entries))
	for name := range n.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ kv.Namespace = (*Namespace)(nil)
