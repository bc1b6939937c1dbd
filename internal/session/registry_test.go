package session

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

const testWindow = 30 * time.Second

// fakeSocket implements SocketSender for registry tests.
type fakeSocket struct {
	sent [][]byte
}

func (f *fakeSocket) Send(data []byte) error {
	f.sent = append(f.sent, data)
	return nil
}

func assertIDs(t *testing.T, got []string, want ...string) {
	t.Helper()
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("expected %d ids %v, got %d %v", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ids[%d]: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry(testWindow)
	r.Register("p1", map[string]string{"name": "Piano Lead"}, "http://localhost:9001")

	s, ok := r.Get("p1")
	if !ok {
		t.Fatal("Get returned ok=false after Register")
	}
	if s.ID != "p1" || s.Metadata["name"] != "Piano Lead" || s.CallbackURL != "http://localhost:9001" {
		t.Errorf("unexpected session: %+v", s)
	}
	if !s.Active {
		t.Error("freshly registered session not active")
	}
}

func TestGetMissing(t *testing.T) {
	r := NewRegistry(testWindow)
	s, ok := r.Get("nope")
	if ok || s != nil {
		t.Errorf("Get for missing id = (%v, %v), want (nil, false)", s, ok)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r := NewRegistry(testWindow)
	r.Register("p1", map[string]string{"name": "original"}, "")

	got, _ := r.Get("p1")
	got.Metadata["name"] = "mutated"

	got2, _ := r.Get("p1")
	if got2.Metadata["name"] != "original" {
		t.Error("Get did not return a copy; mutation leaked into registry")
	}
}

func TestRegisterReplacesRecord(t *testing.T) {
	r := NewRegistry(testWindow)
	r.Register("p1", map[string]string{"name": "old"}, "http://old")
	r.Register("p1", map[string]string{"name": "new"}, "")

	s, _ := r.Get("p1")
	if s.Metadata["name"] != "new" {
		t.Errorf("metadata not replaced: %+v", s.Metadata)
	}
	if s.CallbackURL != "" {
		t.Errorf("callback URL survived re-registration: %q", s.CallbackURL)
	}
	if got := len(r.GetAll()); got != 1 {
		t.Errorf("duplicate register produced %d records, want 1", got)
	}
}

func TestRegisterKeepsAttachedSocket(t *testing.T) {
	r := NewRegistry(testWindow)
	r.Register("p1", nil, "")
	sock := &fakeSocket{}
	r.AttachSocket("p1", sock)

	r.Register("p1", map[string]string{"name": "refreshed"}, "http://cb")

	s, _ := r.Get("p1")
	if !s.Live() {
		t.Error("re-registration dropped the live socket handle")
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	r := NewRegistry(testWindow)
	r.Register("p1", nil, "")
	r.Unregister("p1")
	r.Unregister("p1")
	r.Unregister("never-existed")

	if got := len(r.GetAll()); got != 0 {
		t.Errorf("registry has %d records after unregister, want 0", got)
	}
}

func TestRegisterUnregisterSequence(t *testing.T) {
	r := NewRegistry(testWindow)
	r.Register("a", nil, "")
	r.Register("b", nil, "")
	r.Register("c", nil, "")
	r.Unregister("b")
	r.Register("a", nil, "") // duplicate

	ids := make([]string, 0)
	for _, s := range r.GetAll() {
		ids = append(ids, s.ID)
	}
	assertIDs(t, ids, "a", "c")
}

func TestTouchUnknownIsNoop(t *testing.T) {
	r := NewRegistry(testWindow)
	r.Touch("ghost")
	if got := len(r.GetAll()); got != 0 {
		t.Errorf("Touch created a record: %d", got)
	}
}

func TestActiveIDsWithinWindow(t *testing.T) {
	r := NewRegistry(testWindow)
	base := time.Now()
	r.now = func() time.Time { return base }
	r.Register("p1", nil, "")

	// Just inside the window.
	r.now = func() time.Time { return base.Add(testWindow - time.Millisecond) }
	assertIDs(t, r.ActiveIDs(), "p1")

	// Window elapsed with no further touch.
	r.now = func() time.Time { return base.Add(testWindow) }
	assertIDs(t, r.ActiveIDs())
}

func TestTouchExtendsLiveness(t *testing.T) {
	r := NewRegistry(testWindow)
	base := time.Now()
	r.now = func() time.Time { return base }
	r.Register("p1", nil, "")

	r.now = func() time.Time { return base.Add(20 * time.Second) }
	r.Touch("p1")

	r.now = func() time.Time { return base.Add(45 * time.Second) }
	assertIDs(t, r.ActiveIDs(), "p1")

	r.now = func() time.Time { return base.Add(51 * time.Second) }
	assertIDs(t, r.ActiveIDs())
}

func TestActiveIDsLazyEviction(t *testing.T) {
	r := NewRegistry(testWindow)
	base := time.Now()
	r.now = func() time.Time { return base }
	r.Register("p1", nil, "")

	r.now = func() time.Time { return base.Add(time.Minute) }
	assertIDs(t, r.ActiveIDs())

	// Expired but still registered, flagged inactive.
	s, ok := r.Get("p1")
	if !ok {
		t.Fatal("expired session was deleted, want lazy eviction")
	}
	if s.Active {
		t.Error("expired session still flagged active")
	}

	// A touch revives it.
	r.Touch("p1")
	assertIDs(t, r.ActiveIDs(), "p1")
}

func TestAttachDetachSocket(t *testing.T) {
	r := NewRegistry(testWindow)
	r.Register("p1", map[string]string{"name": "keys"}, "http://cb")

	sock := &fakeSocket{}
	r.AttachSocket("p1", sock)
	s, _ := r.Get("p1")
	if !s.Live() || s.Socket() == nil {
		t.Fatal("socket not attached")
	}

	r.DetachSocket("p1")
	s, _ = r.Get("p1")
	if s.Live() {
		t.Error("socket still attached after detach")
	}
	// Detach never deletes; metadata survives for reconnects.
	if s.Metadata["name"] != "keys" || s.CallbackURL != "http://cb" {
		t.Errorf("detach lost session fields: %+v", s)
	}
}

func TestAttachSocketUnknownIsNoop(t *testing.T) {
	r := NewRegistry(testWindow)
	r.AttachSocket("ghost", &fakeSocket{})
	r.DetachSocket("ghost")
	if got := len(r.GetAll()); got != 0 {
		t.Errorf("attach on unknown id created a record: %d", got)
	}
}

func TestStats(t *testing.T) {
	r := NewRegistry(testWindow)
	base := time.Now()
	r.now = func() time.Time { return base }

	r.Register("live", nil, "")
	r.AttachSocket("live", &fakeSocket{})
	r.Register("callback", nil, "http://cb")
	r.Register("filedrop", nil, "")

	r.now = func() time.Time { return base.Add(10 * time.Second) }
	r.Touch("live")
	r.Touch("callback")

	r.now = func() time.Time { return base.Add(35 * time.Second) }
	st := r.Stats()

	if st.Total != 3 {
		t.Errorf("Total = %d, want 3", st.Total)
	}
	if st.Active != 2 || st.Inactive != 1 {
		t.Errorf("Active/Inactive = %d/%d, want 2/1", st.Active, st.Inactive)
	}
	if st.LiveSocket != 1 || st.CallbackOnly != 1 || st.FileDropOnly != 1 {
		t.Errorf("transport summary = %d/%d/%d, want 1/1/1",
			st.LiveSocket, st.CallbackOnly, st.FileDropOnly)
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry(testWindow)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("p%d", n)
			for j := 0; j < 100; j++ {
				r.Register(id, map[string]string{"n": id}, "")
				r.Touch(id)
				r.AttachSocket(id, &fakeSocket{})
				r.ActiveIDs()
				r.Stats()
				r.DetachSocket(id)
			}
		}(i)
	}
	wg.Wait()

	if got := len(r.GetAll()); got != 10 {
		t.Errorf("registry has %d records after concurrent churn, want 10", got)
	}
	assertIDs(t, r.ActiveIDs(),
		"p0", "p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9")
}
