// Package mediator is the single entry point the user interface talks to.
// Collaborators are registered explicitly at startup; asking for one that was
// never registered is a wiring bug reported as ErrNotRegistered.
package mediator

import (
	"context"
	"errors"
	"fmt"

	"ClassPresenter/internal/ink"
	"ClassPresenter/internal/logger"
	"ClassPresenter/internal/role"
	"ClassPresenter/internal/session"
	"ClassPresenter/internal/state"
)

var ErrNotRegistered = errors.New("mediator: collaborator not registered")

type NotRegisteredError struct {
	Name string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("mediator: %s not registered", e.Name)
}

func (e *NotRegisteredError) Is(target error) bool { return target == ErrNotRegistered }

// Exporter renders a snapshot of the deck to a file.
type Exporter interface {
	Export(path string, slides []state.Slide) error
}

type Mediator struct {
	log      *logger.Logger
	deck     *state.Deck
	roles    *role.Manager
	engine   *session.Engine
	exporter Exporter
}

func New(log *logger.Logger) *Mediator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Mediator{log: log}
}

func (m *Mediator) RegisterDeck(d *state.Deck)       { m.deck = d }
func (m *Mediator) RegisterRoles(r *role.Manager)    { m.roles = r }
func (m *Mediator) RegisterEngine(e *session.Engine) { m.engine = e }
func (m *Mediator) RegisterExporter(x Exporter)      { m.exporter = x }

func (m *Mediator) Deck() (*state.Deck, error) {
	if m.deck == nil {
		return nil, &NotRegisteredError{Name: "deck"}
	}
	return m.deck, nil
}

func (m *Mediator) Roles() (*role.Manager, error) {
	if m.roles == nil {
		return nil, &NotRegisteredError{Name: "roles"}
	}
	return m.roles, nil
}

func (m *Mediator) Engine() (*session.Engine, error) {
	if m.engine == nil {
		return nil, &NotRegisteredError{Name: "engine"}
	}
	return m.engine, nil
}

func (m *Mediator) Exporter() (Exporter, error) {
	if m.exporter == nil {
		return nil, &NotRegisteredError{Name: "exporter"}
	}
	return m.exporter, nil
}

// onDeck runs fn against the deck on the engine goroutine.
func (m *Mediator) onDeck(ctx context.Context, fn func(d *state.Deck)) error {
	eng, err := m.Engine()
	if err != nil {
		return err
	}
	d, err := m.Deck()
	if err != nil {
		return err
	}
	return eng.Do(ctx, func() { fn(d) })
}

func (m *Mediator) GotoSlide(ctx context.Context, index int) (bool, error) {
	var ok bool
	err := m.onDeck(ctx, func(d *state.Deck) { ok = d.GotoSlide(index, true) })
	return ok, err
}

func (m *Mediator) NextSlide(ctx context.Context) (bool, error) {
	var ok bool
	err := m.onDeck(ctx, func(d *state.Deck) { ok = d.NextSlide() })
	return ok, err
}

func (m *Mediator) PreviousSlide(ctx context.Context) (bool, error) {
	var ok bool
	err := m.onDeck(ctx, func(d *state.Deck) { ok = d.PreviousSlide() })
	return ok, err
}

// Draw stores a finished local stroke on the displayed slide.
func (m *Mediator) Draw(ctx context.Context, p ink.Path) error {
	return m.onDeck(ctx, func(d *state.Deck) { d.AddInk(p, false, state.CurrentSlide) })
}

func (m *Mediator) EraseAt(ctx context.Context, x, y int) ([]uint32, error) {
	var uids []uint32
	err := m.onDeck(ctx, func(d *state.Deck) { uids = d.EraseAt(x, y) })
	return uids, err
}

func (m *Mediator) Undo(ctx context.Context) (bool, error) {
	var ok bool
	err := m.onDeck(ctx, func(d *state.Deck) { ok = d.Undo() })
	return ok, err
}

func (m *Mediator) Redo(ctx context.Context) (bool, error) {
	var ok bool
	err := m.onDeck(ctx, func(d *state.Deck) { ok = d.Redo() })
	return ok, err
}

func (m *Mediator) ClearInk(ctx context.Context) error {
	return m.onDeck(ctx, func(d *state.Deck) { d.ClearInk(state.CurrentSlide) })
}

func (m *Mediator) SubmitInk(ctx context.Context) error {
	return m.onDeck(ctx, func(d *state.Deck) { d.SubmitInk() })
}

func (m *Mediator) BroadcastInk(ctx context.Context) error {
	return m.onDeck(ctx, func(d *state.Deck) { d.BroadcastInk() })
}

func (m *Mediator) SetSlideText(ctx context.Context, text string) error {
	return m.onDeck(ctx, func(d *state.Deck) { d.SetSlideText(text) })
}

func (m *Mediator) SelectSubmission(ctx context.Context, index int) (bool, error) {
	var ok bool
	err := m.onDeck(ctx, func(d *state.Deck) { ok = d.SetActiveSubmission(index) })
	return ok, err
}

// ToggleLock flips student navigation lock; only the instructor may.
func (m *Mediator) ToggleLock(ctx context.Context) (bool, error) {
	eng, err := m.Engine()
	if err != nil {
		return false, err
	}
	r, err := m.Roles()
	if err != nil {
		return false, err
	}
	var locked bool
	var lockErr error
	if err := eng.Do(ctx, func() {
		lockErr = r.ToggleLock()
		locked = r.Locked()
	}); err != nil {
		return false, err
	}
	return locked, lockErr
}

// Export renders a snapshot of every slide to path.
func (m *Mediator) Export(ctx context.Context, path string) error {
	x, err := m.Exporter()
	if err != nil {
		return err
	}
	var slides []state.Slide
	if err := m.onDeck(ctx, func(d *state.Deck) { slides = d.Slides() }); err != nil {
		return err
	}
	return x.Export(path, slides)
}

type Status struct {
	Role        string
	Locked      bool
	Active      bool
	Slide       int
	Count       int
	Transfer    string
	Submissions []string
	Selected    int
	Instructor  int
	Own         int
	Text        string
	CanUndo     bool
	CanRedo     bool
}

func (m *Mediator) Status(ctx context.Context) (Status, error) {
	var st Status
	eng, err := m.Engine()
	if err != nil {
		return st, err
	}
	r, err := m.Roles()
	if err != nil {
		return st, err
	}
	d, err := m.Deck()
	if err != nil {
		return st, err
	}
	err = eng.Do(ctx, func() {
		own, text := d.SelfInkOrSubmission()
		st = Status{
			Role:        r.Role().String(),
			Locked:      r.Locked(),
			Active:      eng.Active(),
			Slide:       d.SlideIndex(),
			Count:       d.SlideCount(),
			Transfer:    eng.TransferState().String(),
			Submissions: d.SubmissionAuthors(),
			Selected:    d.ActiveSubmission(),
			Instructor:  len(d.InstructorInk()),
			Own:         len(own),
			Text:        text,
			CanUndo:     d.CanUndo(),
			CanRedo:     d.CanRedo(),
		}
	})
	return st, err
}

// Quit closes the session and saves the deck.
func (m *Mediator) Quit(ctx context.Context) error {
	eng, err := m.Engine()
	if err != nil {
		return err
	}
	return eng.QuitAndWait(ctx)
}
