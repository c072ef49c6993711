// Package export renders the deck's ink to PDF, one page per slide.
package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"ClassPresenter/internal/ink"
	"ClassPresenter/internal/logger"
	"ClassPresenter/internal/state"
)

// Slides without explicit dimensions are assumed to be this size in pixels.
const (
	defaultWidth  = 1024.0
	defaultHeight = 768.0

	margin = 10.0
)

var ErrEmptyDeck = errors.New("export: deck has no slides")

type PDF struct {
	log *logger.Logger
}

func NewPDF(log *logger.Logger) *PDF {
	if log == nil {
		log = logger.NewNop()
	}
	return &PDF{log: log}
}

// Export writes slides to path. Instructor ink is drawn under the viewer's
// own ink; the slide's note and submitters are listed in the footer.
func (x *PDF) Export(path string, slides []state.Slide) error {
	if len(slides) == 0 {
		return ErrEmptyDeck
	}
	p := gofpdf.New("L", "mm", "A4", "")
	p.SetFont("Helvetica", "", 9)
	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")
	pageW, pageH := p.GetPageSize()

	for i, s := range slides {
		p.AddPage()
		w, h := defaultWidth, defaultHeight
		if s.Dimensions != nil {
			w, h = s.Dimensions.Width, s.Dimensions.Height
		}
		scale := min((pageW-2*margin)/w, (pageH-3*margin)/h)

		p.SetDrawColor(200, 200, 200)
		p.SetLineWidth(0.2)
		p.Rect(margin, margin, w*scale, h*scale, "D")

		drawPaths(p, s.Instructor, scale)
		drawPaths(p, s.Self, scale)

		p.SetTextColor(60, 60, 60)
		p.Text(margin, pageH-margin, footer(i, len(slides), s))
	}

	if err := p.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	x.log.Info("exported deck", "path", path, "slides", len(slides))
	return nil
}

func drawPaths(p *gofpdf.Fpdf, paths []ink.Path, scale float64) {
	for _, path := range paths {
		p.SetDrawColor(channel(path.Color.R), channel(path.Color.G), channel(path.Color.B))
		p.SetLineWidth(path.Pen * scale)
		pts := path.Points
		if len(pts) == 1 {
			x, y := at(pts[0], scale)
			p.Line(x, y, x, y)
			continue
		}
		for i := 1; i < len(pts); i++ {
			x0, y0 := at(pts[i-1], scale)
			x1, y1 := at(pts[i], scale)
			p.Line(x0, y0, x1, y1)
		}
	}
}

func at(pt ink.Point, scale float64) (float64, float64) {
	return margin + float64(pt.X)*scale, margin + float64(pt.Y)*scale
}

func channel(v float64) int {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return int(v*255 + 0.5)
}

func footer(i, n int, s state.Slide) string {
	parts := []string{fmt.Sprintf("Slide %d/%d", i+1, n)}
	if s.SelfText != "" {
		parts = append(parts, s.SelfText)
	}
	if len(s.Submissions) > 0 {
		authors := make([]string, len(s.Submissions))
		for j, sub := range s.Submissions {
			authors[j] = sub.Author
		}
		parts = append(parts, "submissions: "+strings.Join(authors, ", "))
	}
	return strings.Join(parts, "  |  ")
}
