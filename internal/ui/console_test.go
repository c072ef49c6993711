package ui

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ClassPresenter/internal/config"
	"ClassPresenter/internal/mediator"
	"ClassPresenter/internal/role"
	"ClassPresenter/internal/session"
	"ClassPresenter/internal/state"
)

type recordingExporter struct{ paths []string }

func (r *recordingExporter) Export(path string, _ []state.Slide) error {
	r.paths = append(r.paths, path)
	return nil
}

func newConsole(t *testing.T, input string) (*Console, *bytes.Buffer, *recordingExporter) {
	t.Helper()
	cfg := config.Default()
	cfg.WorkDir = t.TempDir()
	dir := t.TempDir()
	body := `<deck><slide/><slide/><slide/></deck>`
	if err := os.WriteFile(filepath.Join(dir, "deck.xml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	deck := state.LoadOrCreate(state.Options{WorkDir: cfg.DeckDir()}, dir)
	roles := role.New(nil)
	eng := session.New(session.Options{Config: cfg, Deck: deck, Roles: roles})
	ctx, cancel := context.WithCancel(context.Background())
	go eng.Run(ctx)
	t.Cleanup(cancel)

	x := &recordingExporter{}
	m := mediator.New(nil)
	m.RegisterDeck(deck)
	m.RegisterRoles(roles)
	m.RegisterEngine(eng)
	m.RegisterExporter(x)

	out := &bytes.Buffer{}
	return NewConsole(m, strings.NewReader(input), out), out, x
}

func run(t *testing.T, c *Console) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestConsoleSession(t *testing.T) {
	c, out, x := newConsole(t, strings.Join([]string{
		"next",
		"goto 3",
		"goto three",
		"color red",
		"pen 6",
		"draw 0 0 20 0 20 20",
		"erase 10 0",
		"undo",
		"redo",
		"text hello world",
		"export deck.pdf",
		"bogus",
		"quit",
		"next",
	}, "\n"))
	run(t, c)

	got := out.String()
	for _, want := range []string{
		"slide 2/3",
		"slide 3/3",
		`not a page number: "three"`,
		"color 1.00 0.00 0.00",
		"pen 6",
		"ink=1",
		"erased 1 path(s)",
		"nothing to undo",
		"nothing to redo",
		`note="hello world"`,
		"exported to deck.pdf",
		`unknown command "bogus"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\n%s", want, got)
		}
	}
	if len(x.paths) != 1 {
		t.Fatalf("exports = %v", x.paths)
	}
	if strings.Contains(got, "cannot move there") {
		t.Fatalf("commands after quit ran:\n%s", got)
	}
}

func TestConsoleRejectsBadInput(t *testing.T) {
	c, out, _ := newConsole(t, "goto 9\ncolor 2 0 0\npen -1\ndraw 1 2 3\nsub x\nsub 4\n")
	run(t, c)
	got := out.String()
	for _, want := range []string{
		"cannot move there",
		"color components must be numbers in 0..1",
		"pen width must be in (0, 40]",
		"usage: draw X Y [X Y ...]",
		`not a submission number: "x"`,
		"no such submission",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\n%s", want, got)
		}
	}
}

func TestConsoleKeepsPenOnNonFiniteInput(t *testing.T) {
	c, _, _ := newConsole(t, "color NaN 0 0\ncolor 0 Inf 0\npen NaN\npen +Inf\n")
	color, pen := c.color, c.pen
	run(t, c)
	if c.color != color || c.pen != pen {
		t.Fatalf("pen changed to %+v width %g", c.color, c.pen)
	}
}

func TestConsoleWiringErrorsAreFatal(t *testing.T) {
	c := NewConsole(mediator.New(nil), strings.NewReader("next\n"), &bytes.Buffer{})
	err := c.Run(context.Background())
	if !errors.Is(err, mediator.ErrNotRegistered) {
		t.Fatalf("Run err = %v", err)
	}
}
