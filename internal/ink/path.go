// Package ink holds the freehand path representation shared by every
// participant and the spatial index used to hit-test the eraser.
package ink

import (
	"errors"
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// MaxUID bounds path identifiers to 31 bits.
const MaxUID = 1<<31 - 1

const (
	DefaultPen = 4.0

	pathSep = "$"
)

var (
	DefaultColor = Color{R: 0, G: 0, B: 1}

	errMalformed = errors.New("malformed ink string")
)

type Point struct{ X, Y int }

// Color components are in [0,1].
type Color struct{ R, G, B float64 }

type Path struct {
	UID    uint32
	Color  Color
	Pen    float64
	Points []Point
}

// NewUID returns a random 31-bit identifier.
func NewUID() uint32 {
	return uint32(rand.Int31())
}

// New returns an empty path with a fresh identifier and the default pen.
func New() Path {
	return Path{UID: NewUID(), Color: DefaultColor, Pen: DefaultPen}
}

// Add appends a point.
func (p *Path) Add(x, y int) {
	p.Points = append(p.Points, Point{X: x, Y: y})
}

// Valid reports whether the path can be drawn at all.
func (p Path) Valid() bool {
	return len(p.Points) > 0 && validPen(p.Pen) && p.Color.Valid()
}

// Valid reports whether every component is finite and within [0,1].
func (c Color) Valid() bool {
	return unit(c.R) && unit(c.G) && unit(c.B)
}

func unit(v float64) bool { return v >= 0 && v <= 1 }

func validPen(v float64) bool { return v > 0 && !math.IsInf(v, 1) }

// Clone returns a deep copy.
func (p Path) Clone() Path {
	out := p
	out.Points = append([]Point(nil), p.Points...)
	return out
}

// String renders uid;r,g,b;pen#x0,y0;x1,y1;...;
func (p Path) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(uint64(p.UID), 10))
	sb.WriteByte(';')
	sb.WriteString(formatFloat(p.Color.R))
	sb.WriteByte(',')
	sb.WriteString(formatFloat(p.Color.G))
	sb.WriteByte(',')
	sb.WriteString(formatFloat(p.Color.B))
	sb.WriteByte(';')
	sb.WriteString(formatFloat(p.Pen))
	sb.WriteByte('#')
	for _, pt := range p.Points {
		sb.WriteString(strconv.Itoa(pt.X))
		sb.WriteByte(',')
		sb.WriteString(strconv.Itoa(pt.Y))
		sb.WriteByte(';')
	}
	return sb.String()
}

// Parse decodes the text form. Malformed input never fails: it yields an
// empty path carrying a fresh identifier, so legacy ink degrades quietly.
func Parse(s string) Path {
	p, err := parse(s)
	if err != nil {
		return New()
	}
	return p
}

// ParseUID extracts only the identifier prefix; ok is false when absent.
func ParseUID(s string) (uint32, bool) {
	head, _, found := strings.Cut(s, ";")
	if !found {
		return 0, false
	}
	uid, err := strconv.ParseUint(head, 10, 31)
	if err != nil {
		return 0, false
	}
	return uint32(uid), true
}

func parse(s string) (Path, error) {
	header, body, found := strings.Cut(s, "#")
	if !found {
		return Path{}, errMalformed
	}
	params := strings.Split(header, ";")
	if len(params) < 3 {
		return Path{}, errMalformed
	}
	uid, err := strconv.ParseUint(strings.TrimSpace(params[0]), 10, 31)
	if err != nil {
		return Path{}, errMalformed
	}
	comps := strings.Split(params[1], ",")
	if len(comps) != 3 {
		return Path{}, errMalformed
	}
	var rgb [3]float64
	for i, c := range comps {
		v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil || !unit(v) {
			return Path{}, errMalformed
		}
		rgb[i] = v
	}
	pen, err := strconv.ParseFloat(strings.TrimSpace(params[2]), 64)
	if err != nil || !validPen(pen) {
		return Path{}, errMalformed
	}

	p := Path{UID: uint32(uid), Color: Color{R: rgb[0], G: rgb[1], B: rgb[2]}, Pen: pen}
	for _, ps := range strings.Split(body, ";") {
		if ps == "" {
			continue
		}
		xs, ys, ok := strings.Cut(ps, ",")
		if !ok {
			return Path{}, errMalformed
		}
		x, err := strconv.Atoi(strings.TrimSpace(xs))
		if err != nil {
			return Path{}, errMalformed
		}
		y, err := strconv.Atoi(strings.TrimSpace(ys))
		if err != nil {
			return Path{}, errMalformed
		}
		p.Add(x, y)
	}
	if len(p.Points) == 0 {
		return Path{}, errMalformed
	}
	return p, nil
}

// JoinPaths packs several paths into one submission field.
func JoinPaths(paths []Path) string {
	var sb strings.Builder
	for _, p := range paths {
		sb.WriteString(p.String())
		sb.WriteString(pathSep)
	}
	return sb.String()
}

// SplitPaths unpacks a submission field. Parts that do not decode to a
// drawable path are dropped.
func SplitPaths(s string) []Path {
	var out []Path
	for _, part := range strings.Split(s, pathSep) {
		if part == "" {
			continue
		}
		if p, err := parse(part); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// formatFloat always keeps a fractional part so 4 renders as 4.0.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}
