package tabs

import (
	"testing"
	"time"
)

func rec(id TabID) TabRecord { return TabRecord{ID: id} }

func ids(sec *Section) []TabID {
	out := make([]TabID, sec.Len())
	for i := range out {
		out[i] = sec.At(i).ID
	}
	return out
}

func TestOrderMatchesReferenceModel(t *testing.T) {
	store := NewStore()
	sec := store.Default()

	type op struct {
		kind  string
		id    TabID
		after TabID
	}
	ops := []op{
		{kind: "append", id: "a"},
		{kind: "append", id: "b"},
		{kind: "insert", id: "c", after: "a"},
		{kind: "append", id: "d"},
		{kind: "remove", id: "b"},
		{kind: "insert", id: "e", after: "d"},
		{kind: "remove", id: "a"},
	}

	var ref []TabID
	for _, o := range ops {
		switch o.kind {
		case "append":
			if err := sec.AppendTab(rec(o.id)); err != nil {
				t.Fatalf("AppendTab(%s) = %v", o.id, err)
			}
			ref = append(ref, o.id)
		case "insert":
			if err := sec.InsertTab(rec(o.id), o.after); err != nil {
				t.Fatalf("InsertTab(%s, %s) = %v", o.id, o.after, err)
			}
			for i, v := range ref {
				if v == o.after {
					ref = append(ref[:i+1], append([]TabID{o.id}, ref[i+1:]...)...)
					break
				}
			}
		case "remove":
			if err := sec.RemoveTab(o.id); err != nil {
				t.Fatalf("RemoveTab(%s) = %v", o.id, err)
			}
			for i, v := range ref {
				if v == o.id {
					ref = append(ref[:i], ref[i+1:]...)
					break
				}
			}
		}

		got := ids(sec)
		if len(got) != len(ref) {
			t.Fatalf("after %s %s: got %v, want %v", o.kind, o.id, got, ref)
		}
		for i := range ref {
			if got[i] != ref[i] {
				t.Fatalf("after %s %s: got %v, want %v", o.kind, o.id, got, ref)
			}
		}
	}
}

func TestRemoveSelectedClearsSelection(t *testing.T) {
	store := NewStore()
	sec := store.Default()
	if err := sec.AppendTab(rec("a")); err != nil {
		t.Fatalf("AppendTab(a) = %v", err)
	}
	if err := sec.AppendTab(rec("b")); err != nil {
		t.Fatalf("AppendTab(b) = %v", err)
	}
	if err := sec.SelectTab("b"); err != nil {
		t.Fatalf("SelectTab(b) = %v", err)
	}
	if err := sec.RemoveTab("b"); err != nil {
		t.Fatalf("RemoveTab(b) = %v", err)
	}

	if got := sec.Selected(); got != "" {
		t.Fatalf("Selected() = %q; want empty", got)
	}
	if got := ids(sec); len(got) != 1 || got[0] != "a" {
		t.Fatalf("tabs = %v; want [a]", got)
	}
}

func TestDuplicateAndMissingIDs(t *testing.T) {
	store := NewStore()
	sec := store.Default()
	if err := sec.AppendTab(rec("a")); err != nil {
		t.Fatalf("AppendTab(a) = %v", err)
	}

	t.Run("duplicate_append", func(t *testing.T) {
		if err := sec.AppendTab(rec("a")); err == nil {
			t.Fatal("AppendTab(a) twice = nil; want ErrDuplicateID")
		}
	})
	t.Run("insert_after_missing", func(t *testing.T) {
		if err := sec.InsertTab(rec("b"), "nope"); err == nil {
			t.Fatal("InsertTab after missing = nil; want ErrNotFound")
		}
	})
	t.Run("select_missing", func(t *testing.T) {
		if err := sec.SelectTab("nope"); err == nil {
			t.Fatal("SelectTab(missing) = nil; want ErrNotFound")
		}
	})
	t.Run("remove_missing", func(t *testing.T) {
		if err := sec.RemoveTab("nope"); err == nil {
			t.Fatal("RemoveTab(missing) = nil; want ErrNotFound")
		}
	})
}

func TestEventsDeliveredInCallOrder(t *testing.T) {
	store := NewStore()
	sec := store.Default()

	var got []ChangeKind
	store.Subscribe(func(c Change) { got = append(got, c.Kind) })

	if err := sec.AppendTab(rec("a")); err != nil {
		t.Fatalf("AppendTab(a) = %v", err)
	}
	if err := sec.AppendTab(rec("b")); err != nil {
		t.Fatalf("AppendTab(b) = %v", err)
	}
	if err := sec.SelectTab("a"); err != nil {
		t.Fatalf("SelectTab(a) = %v", err)
	}
	if err := sec.SwapTabs(0, 1); err != nil {
		t.Fatalf("SwapTabs(0,1) = %v", err)
	}
	if err := sec.RemoveTab("a"); err != nil {
		t.Fatalf("RemoveTab(a) = %v", err)
	}
	sec.RemoveAllTabs()

	want := []ChangeKind{ChangeAppended, ChangeAppended, ChangeSelected, ChangeSwapped, ChangeRemoved, ChangeRemovedAll}
	if len(got) != len(want) {
		t.Fatalf("events = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v; want %v", got, want)
		}
	}
}

func TestUpdateSuppressionRule(t *testing.T) {
	store := NewStore()
	sec := store.Default()
	if err := sec.AppendTab(TabRecord{ID: "a", Title: "one", URL: "https://x"}); err != nil {
		t.Fatalf("AppendTab(a) = %v", err)
	}

	var count int
	store.Subscribe(func(c Change) {
		if c.Kind == ChangeUpdated {
			count++
		}
	})

	t.Run("identical_title_suppressed", func(t *testing.T) {
		count = 0
		if err := sec.SetTitle("a", "one"); err != nil {
			t.Fatalf("SetTitle = %v", err)
		}
		if count != 0 {
			t.Fatalf("identical title emitted %d events; want 0", count)
		}
	})

	t.Run("identical_favicon_suppressed", func(t *testing.T) {
		if err := sec.SetFavicon("a", "https://x/icon.png"); err != nil {
			t.Fatalf("SetFavicon = %v", err)
		}
		count = 0
		if err := sec.SetFavicon("a", "https://x/icon.png"); err != nil {
			t.Fatalf("SetFavicon = %v", err)
		}
		if count != 0 {
			t.Fatalf("identical favicon emitted %d events; want 0", count)
		}
	})

	t.Run("identical_url_still_emits", func(t *testing.T) {
		count = 0
		if err := sec.SetURL("a", "https://x"); err != nil {
			t.Fatalf("SetURL = %v", err)
		}
		if count != 1 {
			t.Fatalf("identical url emitted %d events; want 1", count)
		}
	})

	t.Run("touch_always_emits", func(t *testing.T) {
		now := time.Now()
		if err := sec.Touch("a", now); err != nil {
			t.Fatalf("Touch = %v", err)
		}
		count = 0
		if err := sec.Touch("a", now); err != nil {
			t.Fatalf("Touch = %v", err)
		}
		if count != 1 {
			t.Fatalf("identical touch emitted %d events; want 1", count)
		}
	})
}

func TestOpenerResolution(t *testing.T) {
	store := NewStore()
	sec := store.Default()
	if err := sec.AppendTab(rec("parent")); err != nil {
		t.Fatalf("AppendTab(parent) = %v", err)
	}
	if err := sec.AppendTab(TabRecord{ID: "child", OpenerID: "parent"}); err != nil {
		t.Fatalf("AppendTab(child) = %v", err)
	}

	if opener, ok := sec.ResolveOpener("child"); !ok || opener.ID != "parent" {
		t.Fatalf("ResolveOpener(child) = %v, %v; want parent, true", opener.ID, ok)
	}

	if err := sec.RemoveTab("parent"); err != nil {
		t.Fatalf("RemoveTab(parent) = %v", err)
	}
	if _, ok := sec.ResolveOpener("child"); ok {
		t.Fatal("ResolveOpener(child) after parent removal = true; want false")
	}

	sec.ClearOpener("child")
	got, _ := sec.Get("child")
	if got.OpenerID != "" {
		t.Fatalf("OpenerID after ClearOpener = %q; want empty", got.OpenerID)
	}
}

func TestScenarioAppendSelectRemove(t *testing.T) {
	store := NewStore()
	sec := store.Default()

	if err := sec.AppendTab(rec("A")); err != nil {
		t.Fatalf("AppendTab(A) = %v", err)
	}
	if err := sec.AppendTab(rec("B")); err != nil {
		t.Fatalf("AppendTab(B) = %v", err)
	}
	if err := sec.SelectTab("B"); err != nil {
		t.Fatalf("SelectTab(B) = %v", err)
	}
	if err := sec.RemoveTab("B"); err != nil {
		t.Fatalf("RemoveTab(B) = %v", err)
	}

	if got := ids(sec); len(got) != 1 || got[0] != "A" {
		t.Fatalf("tabs = %v; want [A]", got)
	}
	if got := sec.Selected(); got != "" {
		t.Fatalf("Selected() = %q; want empty", got)
	}
}

func TestRestoreDropsDanglingSelection(t *testing.T) {
	store := NewStore()
	store.Restore(SectionSnapshot{
		Tabs:     []TabRecord{{ID: "a"}, {ID: "b"}},
		Selected: "gone",
	})
	if got := store.Default().Selected(); got != "" {
		t.Fatalf("Selected() = %q; want empty", got)
	}
	if got := store.Default().Len(); got != 2 {
		t.Fatalf("Len() = %d; want 2", got)
	}
}
