package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wondertwin-ai/demo-management/internal/demo"
)

// State is the JSON-serializable content of a backend, used by the admin
// state endpoints and seed files.
type State struct {
	Demos   map[string]demo.Demo `json:"demos"`
	Members []demo.Member        `json:"members"`
}

// Memory keeps all demos and memberships in memory.
type Memory struct {
	Demos   *Store[demo.Demo]
	Members *Store[demo.Member]
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		Demos:   New[demo.Demo](),
		Members: New[demo.Member](),
	}
}

func memberKey(demoID, userID string) string {
	return demoID + "/" + userID
}

func (m *Memory) CreateDemo(_ context.Context, d demo.Demo) error {
	if !m.Demos.Insert(d.DemoID, d) {
		return fmt.Errorf("demo %s already exists", d.DemoID)
	}
	return nil
}

func (m *Memory) GetDemo(_ context.Context, id string) (demo.Demo, error) {
	d, ok := m.Demos.Get(id)
	if !ok {
		return demo.Demo{}, fmt.Errorf("demo %s: %w", id, demo.ErrNotFound)
	}
	return d, nil
}

func (m *Memory) UpdateDemo(_ context.Context, d demo.Demo) error {
	if !m.Demos.Replace(d.DemoID, d) {
		return fmt.Errorf("demo %s: %w", d.DemoID, demo.ErrNotFound)
	}
	return nil
}

func (m *Memory) ListDemos(_ context.Context, q demo.ListQuery) (demo.Page, error) {
	items := m.Demos.Filter(func(_ string, d demo.Demo) bool {
		if d.Deleted() || !demo.MatchSearch(d, q.Search) {
			return false
		}
		for _, f := range q.Filters {
			if !f.Match(d) {
				return false
			}
		}
		return true
	})
	demo.SortDemos(items, q.OrderBy)

	start, end := demo.Window(len(items), q.Offset, q.Limit)
	return demo.Page{Items: items[start:end], Total: len(items)}, nil
}

func (m *Memory) AddMember(_ context.Context, mem demo.Member) error {
	if !m.Members.Insert(memberKey(mem.DemoID, mem.UserID), mem) {
		return fmt.Errorf("user %s in demo %s: %w", mem.UserID, mem.DemoID, demo.ErrMemberExists)
	}
	return nil
}

func (m *Memory) ListMembers(_ context.Context, demoID string, q demo.MemberQuery) (demo.MemberPage, error) {
	items := m.Members.Filter(func(_ string, mem demo.Member) bool {
		return mem.DemoID == demoID
	})
	demo.SortMembers(items, q.OrderBy)

	start, end := demo.Window(len(items), q.Offset, q.Limit)
	return demo.MemberPage{Items: items[start:end], Total: len(items)}, nil
}

// Snapshot returns the full state as a JSON-serializable value.
func (m *Memory) Snapshot(_ context.Context) (any, error) {
	return State{
		Demos:   m.Demos.Snapshot(),
		Members: m.Members.List(),
	}, nil
}

// LoadState replaces the full state from a JSON body.
func (m *Memory) LoadState(_ context.Context, data []byte) error {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decoding state: %w", err)
	}
	members := make(map[string]demo.Member, len(st.Members))
	for _, mem := range st.Members {
		members[memberKey(mem.DemoID, mem.UserID)] = mem
	}
	if st.Demos == nil {
		st.Demos = map[string]demo.Demo{}
	}
	m.Demos.LoadSnapshot(st.Demos)
	m.Members.LoadSnapshot(members)
	return nil
}

// Reset clears all state.
func (m *Memory) Reset(_ context.Context) error {
	m.Demos.Reset()
	m.Members.Reset()
	return nil
}

// Close is a no-op for the in-memory backend.
func (m *Memory) Close() error { return nil }
