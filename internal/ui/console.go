// Package ui is a line-oriented front end: each command maps onto one
// mediator call and the resulting status is printed back.
package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ClassPresenter/internal/ink"
	"ClassPresenter/internal/mediator"
)

// Named pen colors, as offered by the toolbar swatches.
var swatches = map[string]ink.Color{
	"black":  {R: 0, G: 0, B: 0},
	"blue":   ink.DefaultColor,
	"red":    {R: 1, G: 0, B: 0},
	"green":  {R: 0, G: 0.6, B: 0},
	"orange": {R: 1, G: 0.5, B: 0},
	"purple": {R: 0.5, G: 0, B: 0.5},
}

const maxPen = 40

const help = `commands:
  next | prev | goto N          navigate (slides are numbered from 1)
  lock                          toggle student navigation lock
  color NAME | color R G B      pen color (components 0..1)
  pen WIDTH                     pen width
  draw X Y [X Y ...]            draw a stroke through the points
  erase X Y                     erase own ink at a point
  undo | redo | clear           edit own ink
  text WORDS...                 set the slide note
  sub N | sub self              show a submission or own ink
  submit | broadcast            send ink to instructor / to the class
  export FILE                   write the deck to PDF
  status | help | quit`

type Console struct {
	m   *mediator.Mediator
	in  io.Reader
	out io.Writer

	color ink.Color
	pen   float64
}

func NewConsole(m *mediator.Mediator, in io.Reader, out io.Writer) *Console {
	return &Console{m: m, in: in, out: out, color: ink.DefaultColor, pen: ink.DefaultPen}
}

// Run executes commands until quit, end of input or ctx ends.
func (c *Console) Run(ctx context.Context) error {
	sc := bufio.NewScanner(c.in)
	fmt.Fprintln(c.out, `type "help" for commands`)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		quit, err := c.Exec(ctx, sc.Text())
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
	return sc.Err()
}

// Exec runs one command line. Only wiring and shutdown failures come back as
// errors; user mistakes are printed.
func (c *Console) Exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "help", "?":
		fmt.Fprintln(c.out, help)
		return false, nil
	case "quit", "exit":
		return true, c.m.Quit(ctx)
	case "next", "n":
		err = c.move(c.m.NextSlide(ctx))
	case "prev", "p":
		err = c.move(c.m.PreviousSlide(ctx))
	case "goto", "g":
		err = c.gotoPage(ctx, args)
	case "lock":
		var locked bool
		locked, err = c.m.ToggleLock(ctx)
		if err == nil {
			c.printf("navigation %s", lockWord(locked))
		}
	case "color":
		c.setColor(args)
		return false, nil
	case "pen":
		c.setPen(args)
		return false, nil
	case "draw", "d":
		err = c.draw(ctx, args)
	case "erase", "e":
		err = c.erase(ctx, args)
	case "undo":
		err = c.report(c.m.Undo(ctx))("nothing to undo")
	case "redo":
		err = c.report(c.m.Redo(ctx))("nothing to redo")
	case "clear":
		err = c.m.ClearInk(ctx)
	case "text":
		err = c.m.SetSlideText(ctx, strings.Join(args, " "))
	case "sub":
		err = c.selectSubmission(ctx, args)
	case "submit":
		err = c.m.SubmitInk(ctx)
	case "broadcast", "bcast":
		err = c.m.BroadcastInk(ctx)
	case "export":
		if len(args) != 1 {
			c.printf("usage: export FILE")
			return false, nil
		}
		if err = c.m.Export(ctx, args[0]); err == nil {
			c.printf("exported to %s", args[0])
		}
	case "status", "s":
	default:
		c.printf("unknown command %q", cmd)
		return false, nil
	}

	if err != nil {
		if fatal(err) {
			return false, err
		}
		c.printf("error: %v", err)
	}
	return false, c.status(ctx)
}

func fatal(err error) bool {
	return errors.Is(err, mediator.ErrNotRegistered) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (c *Console) printf(format string, a ...interface{}) {
	fmt.Fprintf(c.out, format+"\n", a...)
}

func (c *Console) move(ok bool, err error) error {
	if err == nil && !ok {
		c.printf("cannot move there")
	}
	return err
}

func (c *Console) report(ok bool, err error) func(string) error {
	return func(msg string) error {
		if err == nil && !ok {
			c.printf("%s", msg)
		}
		return err
	}
}

// gotoPage accepts a 1-based page number; anything unparsable is refused.
func (c *Console) gotoPage(ctx context.Context, args []string) error {
	if len(args) != 1 {
		c.printf("usage: goto N")
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		c.printf("not a page number: %q", args[0])
		return nil
	}
	return c.move(c.m.GotoSlide(ctx, n-1))
}

func (c *Console) setColor(args []string) {
	switch len(args) {
	case 1:
		col, ok := swatches[strings.ToLower(args[0])]
		if !ok {
			c.printf("unknown color %q", args[0])
			return
		}
		c.color = col
	case 3:
		var rgb [3]float64
		for i, a := range args {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil {
				c.printf("color components must be numbers in 0..1")
				return
			}
			rgb[i] = v
		}
		col := ink.Color{R: rgb[0], G: rgb[1], B: rgb[2]}
		if !col.Valid() {
			c.printf("color components must be numbers in 0..1")
			return
		}
		c.color = col
	default:
		c.printf("usage: color NAME | color R G B")
		return
	}
	c.printf("color %.2f %.2f %.2f", c.color.R, c.color.G, c.color.B)
}

func (c *Console) setPen(args []string) {
	if len(args) != 1 {
		c.printf("usage: pen WIDTH")
		return
	}
	w, err := strconv.ParseFloat(args[0], 64)
	if err != nil || !(w > 0 && w <= maxPen) {
		c.printf("pen width must be in (0, %d]", maxPen)
		return
	}
	c.pen = w
	c.printf("pen %g", w)
}

func (c *Console) draw(ctx context.Context, args []string) error {
	pts, err := ints(args)
	if err != nil || len(pts) < 2 || len(pts)%2 != 0 {
		c.printf("usage: draw X Y [X Y ...]")
		return nil
	}
	p := ink.New()
	p.Color = c.color
	p.Pen = c.pen
	for i := 0; i < len(pts); i += 2 {
		p.Add(pts[i], pts[i+1])
	}
	if err := c.m.Draw(ctx, p); err != nil {
		return err
	}
	c.printf("drew path %d", p.UID)
	return nil
}

func (c *Console) erase(ctx context.Context, args []string) error {
	pts, err := ints(args)
	if err != nil || len(pts) != 2 {
		c.printf("usage: erase X Y")
		return nil
	}
	uids, err := c.m.EraseAt(ctx, pts[0], pts[1])
	if err != nil {
		return err
	}
	c.printf("erased %d path(s)", len(uids))
	return nil
}

func (c *Console) selectSubmission(ctx context.Context, args []string) error {
	if len(args) != 1 {
		c.printf("usage: sub N | sub self")
		return nil
	}
	idx := -1
	if strings.ToLower(args[0]) != "self" {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			c.printf("not a submission number: %q", args[0])
			return nil
		}
		idx = n - 1
	}
	return c.report(c.m.SelectSubmission(ctx, idx))("no such submission")
}

func (c *Console) status(ctx context.Context) error {
	st, err := c.m.Status(ctx)
	if err != nil {
		return err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] slide %d/%d", st.Role, st.Slide+1, st.Count)
	if st.Locked {
		sb.WriteString(" locked")
	}
	if st.Role == "student" {
		fmt.Fprintf(&sb, " transfer=%s", st.Transfer)
	}
	fmt.Fprintf(&sb, " ink=%d own=%d", st.Instructor, st.Own)
	if len(st.Submissions) > 0 {
		fmt.Fprintf(&sb, " submissions=%s", strings.Join(st.Submissions, ","))
		if st.Selected >= 0 {
			fmt.Fprintf(&sb, " showing=%s", st.Submissions[st.Selected])
		}
	}
	if st.Text != "" {
		fmt.Fprintf(&sb, " note=%q", st.Text)
	}
	if st.Role != "undecided" && !st.Active {
		sb.WriteString(" offline")
	}
	c.printf("%s", sb.String())
	return nil
}

func lockWord(locked bool) string {
	if locked {
		return "locked"
	}
	return "unlocked"
}

func ints(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
