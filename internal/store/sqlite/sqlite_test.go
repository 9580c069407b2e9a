package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/wondertwin-ai/demo-management/internal/demo"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if _, err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return s
}

func newDemo(id, name string, offset time.Duration) demo.Demo {
	return demo.Demo{
		DemoID:    id,
		Name:      name,
		Status:    demo.StatusCreated,
		IsActive:  true,
		CreatedAt: t0.Add(offset),
		UpdatedAt: t0.Add(offset),
		CreatedBy: "owner",
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "m.db"), nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	before, err := s.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(before) < 2 {
		t.Fatalf("expected at least 2 migrations, got %d", len(before))
	}
	for _, m := range before {
		if m.Applied {
			t.Errorf("migration %d unexpectedly applied", m.Version)
		}
	}

	applied, err := s.Migrate(ctx)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(applied) != len(before) {
		t.Errorf("expected %d applied, got %d", len(before), len(applied))
	}

	again, err := s.Migrate(ctx)
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("expected no migrations on second run, got %d", len(again))
	}

	after, err := s.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, m := range after {
		if !m.Applied || m.AppliedAt.IsZero() {
			t.Errorf("migration %d not recorded as applied: %+v", m.Version, m)
		}
	}
}

func TestCreateAndGetDemo(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	logo := "https://example.com/logo.png"
	d := newDemo("d1", "Sales Demo", 0)
	d.Logo = &logo
	if err := s.CreateDemo(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetDemo(ctx, "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Sales Demo" || got.Logo == nil || *got.Logo != logo {
		t.Errorf("unexpected demo: %+v", got)
	}
	if !got.CreatedAt.Equal(t0) || !got.IsActive || got.DeletedAt != nil {
		t.Errorf("unexpected fields: %+v", got)
	}

	if _, err := s.GetDemo(ctx, "missing"); !errors.Is(err, demo.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateDemo(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.CreateDemo(ctx, newDemo("d1", "Before", 0)); err != nil {
		t.Fatalf("create: %v", err)
	}

	d, _ := s.GetDemo(ctx, "d1")
	by := "editor"
	now := t0.Add(time.Hour)
	d.Name = "After"
	d.Status = demo.StatusDeleted
	d.IsActive = false
	d.UpdatedBy = &by
	d.DeletedBy = &by
	d.DeletedAt = &now
	d.UpdatedAt = now
	if err := s.UpdateDemo(ctx, d); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := s.GetDemo(ctx, "d1")
	if got.Name != "After" || got.Status != demo.StatusDeleted || got.IsActive {
		t.Errorf("update not persisted: %+v", got)
	}
	if got.DeletedAt == nil || !got.DeletedAt.Equal(now) {
		t.Errorf("expected deleted_at %v, got %v", now, got.DeletedAt)
	}

	if err := s.UpdateDemo(ctx, newDemo("nope", "x", 0)); !errors.Is(err, demo.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListDemosPagingAndOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	for i, name := range []string{"alpha", "beta", "gamma", "delta"} {
		if err := s.CreateDemo(ctx, newDemo(name, name, time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	deleted := newDemo("gone", "gone", time.Hour)
	deleted.Status = demo.StatusDeleted
	if err := s.CreateDemo(ctx, deleted); err != nil {
		t.Fatalf("create: %v", err)
	}

	page, err := s.ListDemos(ctx, demo.ListQuery{Limit: 2, OrderBy: "-created_at"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 4 {
		t.Errorf("expected total 4, got %d", page.Total)
	}
	if len(page.Items) != 2 || page.Items[0].Name != "delta" || page.Items[1].Name != "gamma" {
		t.Errorf("unexpected first page: %+v", page.Items)
	}

	page, err = s.ListDemos(ctx, demo.ListQuery{Offset: 1, Limit: 10, OrderBy: "name"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 3 || page.Items[0].Name != "beta" {
		t.Errorf("unexpected name-ordered page: %+v", page.Items)
	}
}

// The SQL filter translation must agree with the in-memory matcher.
func TestListDemosFiltersMatchMemorySemantics(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	logo := "Acme.PNG"
	withLogo := newDemo("1", "Sales Demo", 0)
	withLogo.Logo = &logo
	noLogo := newDemo("2", "Support Demo", time.Minute)
	inactive := newDemo("3", "sales pitch", 2*time.Minute)
	inactive.IsActive = false
	inactive.Status = demo.StatusUpdated
	all := []demo.Demo{withLogo, noLogo, inactive}
	for _, d := range all {
		if err := s.CreateDemo(ctx, d); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	raw := [][]string{
		{`{"column_name":"name","operator":"contains","value":"SALES"}`},
		{`{"column_name":"name","operator":"contains","value":"Sales","case_sensitive":true}`},
		{`{"column_name":"name","operator":"starts_with","value":"sup"}`},
		{`{"column_name":"logo","operator":"ends_with","value":".png"}`},
		{`{"column_name":"logo","operator":"is_not","value":"x"}`},
		{`{"column_name":"logo","operator":"is","value":"x","logical":"not"}`},
		{`{"column_name":"logo","operator":"is_empty"}`},
		{`{"column_name":"logo","operator":"is_not_empty"}`},
		{`{"column_name":"name","operator":"ends_with","value":""}`},
		{`{"column_name":"is_active","operator":"is","value":false}`},
		{`{"column_name":"status","operator":"is_not","value":"created"}`},
		{`{"column_name":"name","operator":"does_not_contain","value":"demo"}`},
		{
			`{"column_name":"name","operator":"contains","value":"sales"}`,
			`{"column_name":"is_active","operator":"is","value":true}`,
		},
	}
	for _, r := range raw {
		filters := demo.ParseFilters(r)
		page, err := s.ListDemos(ctx, demo.ListQuery{Limit: 100, OrderBy: "created_at", Filters: filters})
		if err != nil {
			t.Fatalf("list %v: %v", r, err)
		}

		var want []string
		for _, d := range all {
			ok := true
			for _, f := range filters {
				ok = ok && f.Match(d)
			}
			if ok {
				want = append(want, d.DemoID)
			}
		}
		var got []string
		for _, d := range page.Items {
			got = append(got, d.DemoID)
		}
		if len(got) != len(want) {
			t.Errorf("filters %v: sqlite returned %v, memory matcher %v", r, got, want)
			continue
		}
		for i := range got {
			if got[i] != want[i] {
				t.Errorf("filters %v: sqlite returned %v, memory matcher %v", r, got, want)
				break
			}
		}
	}
}

func TestListDemosSearch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	logo := "ACME"
	d := newDemo("1", "Quarterly Review", 0)
	d.Logo = &logo
	if err := s.CreateDemo(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateDemo(ctx, newDemo("2", "Other", time.Second)); err != nil {
		t.Fatalf("create: %v", err)
	}

	for term, want := range map[string]int{"review": 1, "acme": 1, "o": 1, "zzz": 0, "": 2} {
		page, err := s.ListDemos(ctx, demo.ListQuery{Limit: 10, Search: term})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if page.Total != want {
			t.Errorf("search %q: expected %d, got %d", term, want, page.Total)
		}
	}
}

func TestMembers(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.CreateDemo(ctx, newDemo("d1", "Team", 0)); err != nil {
		t.Fatalf("create: %v", err)
	}

	m := demo.Member{DemoID: "d1", UserID: "u1", Role: demo.RoleOwner, CreatedAt: t0, CreatedBy: "owner"}
	if err := s.AddMember(ctx, m); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddMember(ctx, m); !errors.Is(err, demo.ErrMemberExists) {
		t.Errorf("expected ErrMemberExists, got %v", err)
	}
	m2 := demo.Member{DemoID: "d1", UserID: "u2", Role: demo.RoleViewer, CreatedAt: t0.Add(time.Second), CreatedBy: "owner"}
	if err := s.AddMember(ctx, m2); err != nil {
		t.Fatalf("add: %v", err)
	}

	page, err := s.ListMembers(ctx, "d1", demo.MemberQuery{Limit: 1, OrderBy: "-created_at"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 1 || page.Items[0].UserID != "u2" {
		t.Errorf("unexpected member page: %+v", page)
	}
	if page.Items[0].Role != demo.RoleViewer {
		t.Errorf("expected viewer role, got %s", page.Items[0].Role)
	}
}

func TestSnapshotLoadReset(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.CreateDemo(ctx, newDemo("d1", "Team", 0)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.AddMember(ctx, demo.Member{DemoID: "d1", UserID: "u1", Role: demo.RoleOwner, CreatedAt: t0, CreatedBy: "o"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := s.GetDemo(ctx, "d1"); !errors.Is(err, demo.ErrNotFound) {
		t.Fatalf("expected demo gone after reset, got %v", err)
	}

	if err := s.LoadState(ctx, data); err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := s.GetDemo(ctx, "d1")
	if err != nil || got.Name != "Team" {
		t.Fatalf("expected restored demo, got %+v, %v", got, err)
	}
	members, err := s.ListMembers(ctx, "d1", demo.MemberQuery{Limit: 10})
	if err != nil || members.Total != 1 {
		t.Errorf("expected 1 restored member, got %+v, %v", members, err)
	}
}
