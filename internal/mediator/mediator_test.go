package mediator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ClassPresenter/internal/config"
	"ClassPresenter/internal/ink"
	"ClassPresenter/internal/role"
	"ClassPresenter/internal/session"
	"ClassPresenter/internal/state"
)

type fakeExporter struct {
	path   string
	slides int
}

func (f *fakeExporter) Export(path string, slides []state.Slide) error {
	f.path, f.slides = path, len(slides)
	return nil
}

func wired(t *testing.T) (*Mediator, *fakeExporter) {
	t.Helper()
	cfg := config.Default()
	cfg.WorkDir = t.TempDir()
	dir := t.TempDir()
	body := `<deck><slide><layer>a.png</layer></slide><slide><layer>b.png</layer></slide></deck>`
	if err := os.WriteFile(filepath.Join(dir, "deck.xml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	deck := state.LoadOrCreate(state.Options{WorkDir: cfg.DeckDir()}, dir)
	roles := role.New(nil)
	eng := session.New(session.Options{Config: cfg, Deck: deck, Roles: roles})
	ctx, cancel := context.WithCancel(context.Background())
	go eng.Run(ctx)
	t.Cleanup(cancel)

	x := &fakeExporter{}
	m := New(nil)
	m.RegisterDeck(deck)
	m.RegisterRoles(roles)
	m.RegisterEngine(eng)
	m.RegisterExporter(x)
	return m, x
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestUnregisteredCollaborators(t *testing.T) {
	m := New(nil)
	_, err := m.Deck()
	var nre *NotRegisteredError
	if !errors.As(err, &nre) || nre.Name != "deck" {
		t.Fatalf("Deck err = %v", err)
	}
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("error does not match ErrNotRegistered")
	}
	if _, err := m.NextSlide(ctx(t)); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("NextSlide err = %v", err)
	}
	if err := m.Export(ctx(t), "x.pdf"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("Export err = %v", err)
	}
}

func TestFacadeNavigatesAndDraws(t *testing.T) {
	m, _ := wired(t)
	c := ctx(t)

	if ok, err := m.NextSlide(c); err != nil || !ok {
		t.Fatalf("NextSlide = %v, %v", ok, err)
	}
	if ok, _ := m.NextSlide(c); ok {
		t.Fatalf("moved past the last slide")
	}
	p := ink.New()
	p.Add(0, 0)
	p.Add(10, 0)
	if err := m.Draw(c, p); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	st, err := m.Status(c)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Slide != 1 || st.Count != 2 || st.Instructor != 1 || !st.CanUndo || st.Role != "undecided" {
		t.Fatalf("status = %+v", st)
	}

	uids, err := m.EraseAt(c, 4, 0)
	if err != nil || len(uids) != 1 || uids[0] != p.UID {
		t.Fatalf("EraseAt = %v, %v", uids, err)
	}
	if ok, _ := m.Undo(c); ok {
		t.Fatalf("undo with nothing drawn")
	}
}

func TestToggleLockAndExport(t *testing.T) {
	m, x := wired(t)
	c := ctx(t)
	locked, err := m.ToggleLock(c)
	if err != nil || !locked {
		t.Fatalf("ToggleLock = %v, %v", locked, err)
	}
	if err := m.Export(c, "out.pdf"); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if x.path != "out.pdf" || x.slides != 2 {
		t.Fatalf("exporter got %q with %d slides", x.path, x.slides)
	}
}
