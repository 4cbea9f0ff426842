package enginecache

import (
	"testing"

	"github.com/dgnsrekt/tabdeck/internal/engine"
	"github.com/dgnsrekt/tabdeck/internal/engine/enginetest"
	"github.com/dgnsrekt/tabdeck/internal/tabs"
)

func TestBoundNeverExceeded(t *testing.T) {
	var current tabs.TabID
	c := New(3, func() tabs.TabID { return current })

	fakes := map[tabs.TabID]*enginetest.Fake{}
	for _, id := range []tabs.TabID{"1", "2", "3", "4", "5"} {
		f := enginetest.NewFake()
		fakes[id] = f
		current = id
		c.Insert(id, "", f)
		if c.Len() > 3 {
			t.Fatalf("after insert %s: Len() = %d; want <= 3", id, c.Len())
		}
	}

	if !fakes["1"].Closed() || !fakes["2"].Closed() {
		t.Fatal("expected LRU entries 1 and 2 to be torn down")
	}
	if fakes["5"].Closed() {
		t.Fatal("most recent entry was torn down")
	}
}

func TestInsertExistingTouchesInsteadOfDuplicating(t *testing.T) {
	c := New(3, func() tabs.TabID { return "" })
	a, b := enginetest.NewFake(), enginetest.NewFake()
	c.Insert("a", "", a)
	c.Insert("b", "", b)
	c.Insert("a", "", enginetest.NewFake())

	if c.Len() != 2 {
		t.Fatalf("Len() = %d; want 2", c.Len())
	}
	if got := c.Lookup("a"); got != a {
		t.Fatal("re-insert replaced the original instance")
	}
	got := c.IDs()
	if got[0] != "b" || got[1] != "a" {
		t.Fatalf("IDs() = %v; want [b a]", got)
	}
}

func TestEvictionSkipsCurrent(t *testing.T) {
	// maxCount=2; insert 1, 2, 3 with current=3 leaves {2,3}; then insert 1
	// with current=1: 1 cannot be evicted at its own insert, so 2 (next LRU
	// non-current) goes, leaving {3,1}.
	var current tabs.TabID
	c := New(2, func() tabs.TabID { return current })

	f1, f2, f3 := enginetest.NewFake(), enginetest.NewFake(), enginetest.NewFake()
	current = "1"
	c.Insert("1", "", f1)
	current = "2"
	c.Insert("2", "", f2)
	current = "3"
	c.Insert("3", "", f3)

	if got := c.IDs(); len(got) != 2 || got[0] != "2" || got[1] != "3" {
		t.Fatalf("IDs() = %v; want [2 3]", got)
	}
	if !f1.Closed() {
		t.Fatal("entry 1 not torn down")
	}

	f1b := enginetest.NewFake()
	current = "1"
	c.Insert("1", "", f1b)

	got := c.IDs()
	if len(got) != 2 || got[0] != "3" || got[1] != "1" {
		t.Fatalf("IDs() = %v; want [3 1]", got)
	}
	if !f2.Closed() {
		t.Fatal("entry 2 not torn down")
	}
	if f3.Closed() || f1b.Closed() {
		t.Fatal("surviving entries were torn down")
	}
}

func TestEvictionHookSeesLiveInstance(t *testing.T) {
	c := New(1, func() tabs.TabID { return "b" })

	var gotID tabs.TabID
	var wasClosed bool
	c.OnEvict(func(id tabs.TabID, inst engine.Instance) {
		gotID = id
		wasClosed = inst.(*enginetest.Fake).Closed()
	})

	c.Insert("a", "", enginetest.NewFake())
	c.Insert("b", "", enginetest.NewFake())

	if gotID != "a" {
		t.Fatalf("hook saw %q; want the evicted entry a", gotID)
	}
	if wasClosed {
		t.Fatal("hook ran after teardown; instance must still be live")
	}

	// Explicit removal is not an eviction.
	gotID = ""
	c.Remove("b")
	if gotID != "" {
		t.Fatalf("hook fired on Remove with %q", gotID)
	}
}

func TestLookupDoesNotAffectRecency(t *testing.T) {
	c := New(2, func() tabs.TabID { return "" })
	c.Insert("a", "", enginetest.NewFake())
	c.Insert("b", "", enginetest.NewFake())

	if got := c.Lookup("a"); got == nil {
		t.Fatal("Lookup(a) = nil")
	}
	got := c.IDs()
	if got[0] != "a" || got[1] != "b" {
		t.Fatalf("IDs() after Lookup = %v; want [a b]", got)
	}
	if c.Lookup("missing") != nil {
		t.Fatal("Lookup(missing) != nil")
	}
}

func TestRemoveTearsDownImmediately(t *testing.T) {
	c := New(2, func() tabs.TabID { return "" })
	f := enginetest.NewFake()
	c.Insert("a", "", f)
	c.Remove("a")

	if !f.Closed() {
		t.Fatal("Remove did not tear down the instance")
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d; want 0", c.Len())
	}
	c.Remove("a") // absent remove is a no-op
}

func TestOpenerChain(t *testing.T) {
	c := New(3, func() tabs.TabID { return "" })
	parent := enginetest.NewFake()
	c.Insert("parent", "", parent)
	c.Insert("child", "parent", enginetest.NewFake())

	inst, id, ok := c.Opener("child")
	if !ok || id != "parent" || inst != parent {
		t.Fatalf("Opener(child) = %v, %v, %v; want parent entry", inst, id, ok)
	}

	c.Remove("parent")
	if _, _, ok := c.Opener("child"); ok {
		t.Fatal("Opener(child) resolved after the opener entry was removed")
	}
}
