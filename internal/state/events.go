package state

import "ClassPresenter/internal/ink"

// Events fans deck notifications out to observers. Delivery is synchronous
// and in registration order, on the goroutine that mutated the deck. The zero
// value is ready to use.
type Events struct {
	slideChanged          []func(index int)
	submissionListChanged []func(position int)
	redrawRequested       []func()
	deckChanged           []func()
	localInkAdded         []func(p ink.Path, slide int)
	remoteInkAdded        []func(p ink.Path)
	pathRemoved           []func(uid uint32)
	instructorInkCleared  []func(slide int)
	instructorInkRemoved  []func(uid uint32, slide int)
	inkSubmitted          []func(paths, text string)
	inkBroadcast          []func(author, paths, text string)
}

func (e *Events) OnSlideChanged(fn func(index int)) {
	e.slideChanged = append(e.slideChanged, fn)
}

// OnSubmissionListChanged receives the position of a new submission, or -1
// when the whole list should be reread.
func (e *Events) OnSubmissionListChanged(fn func(position int)) {
	e.submissionListChanged = append(e.submissionListChanged, fn)
}

func (e *Events) OnRedrawRequested(fn func()) {
	e.redrawRequested = append(e.redrawRequested, fn)
}

func (e *Events) OnDeckChanged(fn func()) {
	e.deckChanged = append(e.deckChanged, fn)
}

func (e *Events) OnLocalInkAdded(fn func(p ink.Path, slide int)) {
	e.localInkAdded = append(e.localInkAdded, fn)
}

func (e *Events) OnRemoteInkAdded(fn func(p ink.Path)) {
	e.remoteInkAdded = append(e.remoteInkAdded, fn)
}

func (e *Events) OnPathRemoved(fn func(uid uint32)) {
	e.pathRemoved = append(e.pathRemoved, fn)
}

func (e *Events) OnInstructorInkCleared(fn func(slide int)) {
	e.instructorInkCleared = append(e.instructorInkCleared, fn)
}

func (e *Events) OnInstructorInkRemoved(fn func(uid uint32, slide int)) {
	e.instructorInkRemoved = append(e.instructorInkRemoved, fn)
}

func (e *Events) OnInkSubmitted(fn func(paths, text string)) {
	e.inkSubmitted = append(e.inkSubmitted, fn)
}

func (e *Events) OnInkBroadcast(fn func(author, paths, text string)) {
	e.inkBroadcast = append(e.inkBroadcast, fn)
}

func (e *Events) emitSlideChanged(index int) {
	for _, fn := range e.slideChanged {
		fn(index)
	}
}

func (e *Events) emitSubmissionListChanged(position int) {
	for _, fn := range e.submissionListChanged {
		fn(position)
	}
}

func (e *Events) emitRedraw() {
	for _, fn := range e.redrawRequested {
		fn()
	}
}

func (e *Events) emitDeckChanged() {
	for _, fn := range e.deckChanged {
		fn()
	}
}

func (e *Events) emitLocalInkAdded(p ink.Path, slide int) {
	for _, fn := range e.localInkAdded {
		fn(p.Clone(), slide)
	}
}

func (e *Events) emitRemoteInkAdded(p ink.Path) {
	for _, fn := range e.remoteInkAdded {
		fn(p.Clone())
	}
}

func (e *Events) emitPathRemoved(uid uint32) {
	for _, fn := range e.pathRemoved {
		fn(uid)
	}
}

func (e *Events) emitInstructorInkCleared(slide int) {
	for _, fn := range e.instructorInkCleared {
		fn(slide)
	}
}

func (e *Events) emitInstructorInkRemoved(uid uint32, slide int) {
	for _, fn := range e.instructorInkRemoved {
		fn(uid, slide)
	}
}

func (e *Events) emitInkSubmitted(paths, text string) {
	for _, fn := range e.inkSubmitted {
		fn(paths, text)
	}
}

func (e *Events) emitInkBroadcast(author, paths, text string) {
	for _, fn := range e.inkBroadcast {
		fn(author, paths, text)
	}
}
