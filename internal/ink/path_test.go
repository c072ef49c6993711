package ink

import (
	"math"
	"reflect"
	"testing"
)

func TestPathStringScenario(t *testing.T) {
	p := Path{UID: 7, Color: Color{0, 0, 1}, Pen: 4, Points: []Point{{0, 0}, {10, 10}}}
	want := "7;0.0,0.0,1.0;4.0#0,0;10,10;"
	if got := p.String(); got != want {
		t.Fatalf("String: want=%q got=%q", want, got)
	}
}

func TestParseRoundTrip(t *testing.T) {
	cases := []Path{
		{UID: 0, Color: Color{0, 0, 0}, Pen: 1, Points: []Point{{0, 0}}},
		{UID: MaxUID, Color: Color{0.25, 0.5, 0.75}, Pen: 2.5, Points: []Point{{-3, 4}, {100, -200}, {7, 7}}},
		{UID: 12345, Color: Color{1.0 / 3, 0.1, 0.9999}, Pen: 12, Points: []Point{{1, 2}, {3, 4}}},
	}
	for _, tc := range cases {
		got := Parse(tc.String())
		if !reflect.DeepEqual(got, tc) {
			t.Fatalf("round trip: want=%+v got=%+v", tc, got)
		}
	}
}

func TestParseIntegerWidthReEmittedAsFloat(t *testing.T) {
	p := Parse("9;1,0,0;3#5,5;")
	if p.Pen != 3 || p.Color.R != 1 {
		t.Fatalf("unexpected parse: %+v", p)
	}
	if got := p.String(); got != "9;1.0,0.0,0.0;3.0#5,5;" {
		t.Fatalf("re-emit: got=%q", got)
	}
}

func TestParseMalformedYieldsEmptyPath(t *testing.T) {
	inputs := []string{
		"",
		"garbage",
		"1;0,0,1#",
		"x;0,0,1;4#1,1;",
		"1;0,0;4#1,1;",
		"1;0,0,1;-2#1,1;",
		"1;0,0,1;4#1,a;",
		"1;0,0,1;4#11;",
		"1;0,0,1.5;4#1,1;",
		"1;-0.1,0,1;4#1,1;",
		"1;NaN,0,1;4#1,1;",
		"1;0,Inf,1;4#1,1;",
		"1;0,0,1;+Inf#1,1;",
		"1;0,0,1;NaN#1,1;",
	}
	for _, in := range inputs {
		p := Parse(in)
		if len(p.Points) != 0 {
			t.Fatalf("Parse(%q): expected empty path, got %+v", in, p)
		}
		if p.UID > MaxUID {
			t.Fatalf("Parse(%q): uid out of range: %d", in, p.UID)
		}
		if p.Valid() {
			t.Fatalf("Parse(%q): empty path must not be valid", in)
		}
	}
}

func TestValidRejectsUndrawableValues(t *testing.T) {
	ok := Path{UID: 1, Color: Color{0, 0, 1}, Pen: 4, Points: []Point{{1, 1}}}
	if !ok.Valid() {
		t.Fatalf("baseline path must be valid")
	}
	bad := []Path{
		{UID: 1, Color: Color{0, 0, 2}, Pen: 4, Points: []Point{{1, 1}}},
		{UID: 1, Color: Color{math.NaN(), 0, 0}, Pen: 4, Points: []Point{{1, 1}}},
		{UID: 1, Color: Color{0, 0, 1}, Pen: math.Inf(1), Points: []Point{{1, 1}}},
		{UID: 1, Color: Color{0, 0, 1}, Pen: math.NaN(), Points: []Point{{1, 1}}},
	}
	for _, p := range bad {
		if p.Valid() {
			t.Fatalf("path %+v must not be valid", p)
		}
	}
	if got := SplitPaths(bad[0].String() + "$" + ok.String() + "$"); len(got) != 1 {
		t.Fatalf("SplitPaths kept %d paths, want 1", len(got))
	}
}

func TestParseUID(t *testing.T) {
	if uid, ok := ParseUID("42;0,0,1;4#1,1;"); !ok || uid != 42 {
		t.Fatalf("ParseUID: got=%d ok=%v", uid, ok)
	}
	if _, ok := ParseUID("nope"); ok {
		t.Fatalf("ParseUID should fail without separator")
	}
}

func TestJoinAndSplitPaths(t *testing.T) {
	a := Path{UID: 1, Color: DefaultColor, Pen: 4, Points: []Point{{1, 1}}}
	b := Path{UID: 2, Color: DefaultColor, Pen: 2, Points: []Point{{2, 2}, {3, 3}}}
	joined := JoinPaths([]Path{a, b})
	if joined != a.String()+"$"+b.String()+"$" {
		t.Fatalf("JoinPaths: got=%q", joined)
	}
	got := SplitPaths(joined + "broken$")
	if !reflect.DeepEqual(got, []Path{a, b}) {
		t.Fatalf("SplitPaths: got=%+v", got)
	}
	if len(SplitPaths("")) != 0 {
		t.Fatalf("empty field should split to nothing")
	}
}
