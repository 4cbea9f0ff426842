package persist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgnsrekt/tabdeck/internal/tabs"
)

func change() tabs.Change { return tabs.Change{Kind: tabs.ChangeAppended} }

func section(ids ...tabs.TabID) tabs.SectionSnapshot {
	snap := tabs.SectionSnapshot{}
	for _, id := range ids {
		snap.Tabs = append(snap.Tabs, tabs.TabRecord{ID: id})
	}
	return snap
}

func TestDebounceCoalescesToLatestSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabs.json")
	p, err := New(path, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	defer func() { _ = p.Close() }()

	p.RecordChange(change(), section("a"))
	p.RecordChange(change(), section("a", "b"))
	p.RecordChange(change(), section("a", "b", "c"))

	deadline := time.Now().Add(2 * time.Second)
	for p.Writes() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no write within deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := p.Writes(); got != 1 {
		t.Fatalf("Writes() = %d; want 1 coalesced write", got)
	}
	snap, ok := Load(path)
	if !ok {
		t.Fatal("Load() reported no snapshot")
	}
	if len(snap.Tabs) != 3 || snap.Tabs[2].ID != "c" {
		t.Fatalf("loaded %d tabs; want the final 3-tab snapshot", len(snap.Tabs))
	}
}

func TestFlushDrainsSynchronously(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabs.json")
	p, err := New(path, time.Hour) // window never closes on its own
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	defer func() { _ = p.Close() }()

	p.RecordChange(change(), section("a"))
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush() = %v", err)
	}

	if got := p.Writes(); got != 1 {
		t.Fatalf("Writes() after Flush = %d; want 1", got)
	}
	if _, ok := Load(path); !ok {
		t.Fatal("snapshot missing after Flush")
	}

	// Nothing pending: Flush is a no-op.
	if err := p.Flush(); err != nil {
		t.Fatalf("empty Flush() = %v", err)
	}
	if got := p.Writes(); got != 1 {
		t.Fatalf("Writes() after empty Flush = %d; want 1", got)
	}
}

func TestIncognitoNeverWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabs.json")
	p, err := New(path, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	defer func() { _ = p.Close() }()

	snap := section("secret")
	snap.Incognito = true
	p.RecordChange(change(), snap)
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush() = %v", err)
	}

	if p.Writes() != 0 {
		t.Fatalf("Writes() = %d; incognito state must never hit disk", p.Writes())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("snapshot file exists after incognito-only changes")
	}
}

func TestLoadFreshStart(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing_file", func(t *testing.T) {
		if _, ok := Load(filepath.Join(dir, "nope.json")); ok {
			t.Fatal("Load(missing) = true; want fresh start")
		}
	})

	t.Run("corrupt_file", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatalf("WriteFile = %v", err)
		}
		if _, ok := Load(path); ok {
			t.Fatal("Load(corrupt) = true; want fresh start")
		}
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabs.json")
	p, err := New(path, time.Hour)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	defer func() { _ = p.Close() }()

	accessed := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	snap := tabs.SectionSnapshot{
		Tabs: []tabs.TabRecord{
			{ID: "a", URL: "https://example.com", Title: "Example", FaviconRef: "https://example.com/favicon.ico", ThumbnailRef: "a", LastAccessed: accessed},
			{ID: "b", OpenerID: "a"},
		},
		Selected: "a",
	}
	p.RecordChange(change(), snap)
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush() = %v", err)
	}

	got, ok := Load(path)
	if !ok {
		t.Fatal("Load() reported no snapshot")
	}
	if got.Selected != "a" || len(got.Tabs) != 2 {
		t.Fatalf("loaded snapshot = %+v", got)
	}
	if got.Tabs[0].URL != "https://example.com" || !got.Tabs[0].LastAccessed.Equal(accessed) {
		t.Fatalf("tab a round-trip mismatch: %+v", got.Tabs[0])
	}
	if got.Tabs[1].OpenerID != "a" {
		t.Fatalf("opener relation lost: %+v", got.Tabs[1])
	}
}
