package state

import "ClassPresenter/internal/ink"

// Dimensions override the layer-derived slide size when present.
type Dimensions struct {
	Width  float64
	Height float64
}

// Submission is one author's ink and text for a slide.
type Submission struct {
	Author string
	Paths  []ink.Path
	Text   string
}

func (s Submission) clone() Submission {
	s.Paths = clonePaths(s.Paths)
	return s
}

// Slide is one page of the deck. Layers and Thumb are paths relative to the
// deck directory.
type Slide struct {
	Layers     []string
	Thumb      string
	Dimensions *Dimensions

	// Instructor is written only by the instructor.
	Instructor []ink.Path
	// Self and SelfText belong to the local participant.
	Self     []ink.Path
	SelfText string

	Submissions []Submission
}

func (s *Slide) clone() Slide {
	out := Slide{
		Layers:     append([]string(nil), s.Layers...),
		Thumb:      s.Thumb,
		Instructor: clonePaths(s.Instructor),
		Self:       clonePaths(s.Self),
		SelfText:   s.SelfText,
	}
	if s.Dimensions != nil {
		d := *s.Dimensions
		out.Dimensions = &d
	}
	for _, sub := range s.Submissions {
		out.Submissions = append(out.Submissions, sub.clone())
	}
	return out
}

func (s *Slide) submissionIndex(author string) int {
	for i, sub := range s.Submissions {
		if sub.Author == author {
			return i
		}
	}
	return -1
}

func clonePaths(paths []ink.Path) []ink.Path {
	if paths == nil {
		return nil
	}
	out := make([]ink.Path, len(paths))
	for i, p := range paths {
		out[i] = p.Clone()
	}
	return out
}

// removeUID drops every path carrying uid and reports whether any matched.
func removeUID(paths []ink.Path, uid uint32) ([]ink.Path, bool) {
	kept := paths[:0]
	removed := false
	for _, p := range paths {
		if p.UID == uid {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	return kept, removed
}
