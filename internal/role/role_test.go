package role

import (
	"errors"
	"testing"
)

type announcer struct {
	calls int
	trace *[]string
}

func (a *announcer) AnnounceSlide() {
	a.calls++
	*a.trace = append(*a.trace, "slide")
}

func TestRoleDecidedOnce(t *testing.T) {
	m := New(nil)
	if err := m.OnShared(); err != nil {
		t.Fatalf("OnShared: %v", err)
	}
	if err := m.OnJoined(); !errors.Is(err, ErrRoleDecided) {
		t.Fatalf("OnJoined err = %v, want ErrRoleDecided", err)
	}
	if m.Role() != Instructor {
		t.Fatalf("role = %v", m.Role())
	}
}

func TestUnsharedDeckBehavesAsOwner(t *testing.T) {
	m := New(nil)
	if !m.IsInstructor() || m.IsShared() {
		t.Fatalf("undecided role should own the deck")
	}
	if !m.CanNavigate(true) {
		t.Fatalf("owner cannot navigate")
	}
}

func TestStudentNavigationLock(t *testing.T) {
	m := New(nil)
	m.OnJoined()
	if !m.CanNavigate(true) {
		t.Fatalf("unlocked student blocked")
	}
	m.SetLockState(true)
	if m.CanNavigate(true) {
		t.Fatalf("locked student navigated locally")
	}
	if !m.CanNavigate(false) {
		t.Fatalf("instructor-driven navigation blocked")
	}
}

func TestStudentCannotToggleLock(t *testing.T) {
	m := New(nil)
	m.OnJoined()
	if err := m.ToggleLock(); !errors.Is(err, ErrNotInstructor) {
		t.Fatalf("ToggleLock err = %v", err)
	}
	if m.Locked() {
		t.Fatalf("student changed the lock")
	}
}

func TestInstructorLockAnnouncesSlideFirst(t *testing.T) {
	var trace []string
	a := &announcer{trace: &trace}
	m := New(nil)
	m.SetAnnouncer(a)
	m.OnLockChanged(func(locked bool) {
		if locked {
			trace = append(trace, "lock")
		} else {
			trace = append(trace, "unlock")
		}
	})
	m.OnShared()

	if err := m.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	m.Lock()
	m.ToggleLock()

	want := []string{"slide", "lock", "unlock"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
	if !m.CanNavigate(true) {
		t.Fatalf("instructor blocked by own lock")
	}
}

func TestSetLockStateRaisesRepeatedStates(t *testing.T) {
	m := New(nil)
	m.OnJoined()
	m.SetLockState(true)
	var got []bool
	m.OnLockChanged(func(locked bool) { got = append(got, locked) })
	m.SetLockState(true)
	m.SetLockState(false)
	m.SetLockState(false)
	want := []bool{true, false, false}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestLocalLockIgnoresUnchangedState(t *testing.T) {
	m := New(nil)
	m.OnShared()
	var n int
	m.OnLockChanged(func(bool) { n++ })
	if err := m.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := m.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if n != 1 {
		t.Fatalf("listener fired %d times, want 1", n)
	}
}
