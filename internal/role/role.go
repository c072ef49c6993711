// Package role tracks whether the local participant teaches or follows and
// whether student navigation is locked.
package role

import (
	"errors"

	"ClassPresenter/internal/logger"
)

type Role int

const (
	Undecided Role = iota
	Instructor
	Student
)

func (r Role) String() string {
	switch r {
	case Instructor:
		return "instructor"
	case Student:
		return "student"
	}
	return "undecided"
}

var (
	ErrRoleDecided   = errors.New("role: already decided")
	ErrNotInstructor = errors.New("role: only the instructor can change the lock")
)

// Announcer pushes the instructor's current slide to the session. Locking
// calls it first so students land on the right slide before they freeze.
type Announcer interface {
	AnnounceSlide()
}

// Manager is owned by the session engine goroutine.
type Manager struct {
	log       *logger.Logger
	role      Role
	locked    bool
	announcer Announcer
	listeners []func(locked bool)
}

func New(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{log: log}
}

func (m *Manager) SetAnnouncer(a Announcer) { m.announcer = a }

// OnLockChanged registers fn for NavigationLockChanged.
func (m *Manager) OnLockChanged(fn func(locked bool)) {
	m.listeners = append(m.listeners, fn)
}

// OnShared makes the local participant the instructor.
func (m *Manager) OnShared() error { return m.decide(Instructor) }

// OnJoined makes the local participant a student.
func (m *Manager) OnJoined() error { return m.decide(Student) }

func (m *Manager) decide(r Role) error {
	if m.role != Undecided {
		return ErrRoleDecided
	}
	m.role = r
	m.log.Info("role decided", "role", r.String())
	return nil
}

func (m *Manager) Role() Role { return m.role }

// IsInstructor is true for the instructor and for an unshared deck.
func (m *Manager) IsInstructor() bool { return m.role != Student }

func (m *Manager) IsShared() bool { return m.role != Undecided }

func (m *Manager) Locked() bool { return m.locked }

// CanNavigate rejects only a locked student's own navigation.
func (m *Manager) CanNavigate(isLocalUserRequest bool) bool {
	return !(m.role == Student && m.locked && isLocalUserRequest)
}

func (m *Manager) Lock() error   { return m.setLocal(true) }
func (m *Manager) Unlock() error { return m.setLocal(false) }

func (m *Manager) ToggleLock() error { return m.setLocal(!m.locked) }

func (m *Manager) setLocal(locked bool) error {
	if m.role == Student {
		return ErrNotInstructor
	}
	if locked == m.locked {
		return nil
	}
	m.locked = locked
	if locked && m.role == Instructor && m.announcer != nil {
		m.announcer.AnnounceSlide()
	}
	m.notify()
	return nil
}

// SetLockState applies a lock state dictated by the instructor. Listeners
// hear every remote state, repeated or not.
func (m *Manager) SetLockState(locked bool) {
	m.locked = locked
	m.notify()
}

func (m *Manager) notify() {
	m.log.Debug("navigation lock changed", "locked", m.locked, "role", m.role.String())
	for _, fn := range m.listeners {
		fn(m.locked)
	}
}
