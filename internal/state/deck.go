// Package state owns the slide deck: slides, per-slide ink regions, student
// submissions and the navigation cursor. A Deck is not safe for concurrent
// use; the session engine serialises every call onto one goroutine.
package state

import (
	"os"
	"path/filepath"

	"ClassPresenter/internal/ink"
	"ClassPresenter/internal/logger"
)

// CurrentSlide targets whatever slide is displayed.
const CurrentSlide = -1

// SelfAuthor names the local participant's own ink when it is broadcast.
const SelfAuthor = "myself"

const (
	defaultLayer = "splash.svg"
	deckFile     = "deck.xml"
)

// Permissions is the slice of the role manager the deck consults.
type Permissions interface {
	IsInstructor() bool
	CanNavigate(isLocalUserRequest bool) bool
}

// solo applies before a session exists: the local user owns the deck.
type solo struct{}

func (solo) IsInstructor() bool    { return true }
func (solo) CanNavigate(bool) bool { return true }

type Options struct {
	Log    *logger.Logger
	Perms  Permissions
	Events *Events
	// WorkDir receives unpacked bundles and default decks.
	WorkDir         string
	InkMapBuckets   int
	EraseResolution int
}

type Deck struct {
	log    *logger.Logger
	perms  Permissions
	events *Events

	workDir string
	dir     string
	slides  []*Slide

	pos       int
	activeSub int
	author    string
	redo      []ink.Path
	inkmap    *ink.InkMap
}

// New returns an empty deck. Call Load to populate it.
func New(opts Options) *Deck {
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}
	if opts.Perms == nil {
		opts.Perms = solo{}
	}
	if opts.Events == nil {
		opts.Events = &Events{}
	}
	if opts.InkMapBuckets <= 0 {
		opts.InkMapBuckets = 2048
	}
	if opts.EraseResolution <= 0 {
		opts.EraseResolution = 8
	}
	return &Deck{
		log:       opts.Log,
		perms:     opts.Perms,
		events:    opts.Events,
		workDir:   opts.WorkDir,
		dir:       opts.WorkDir,
		activeSub: -1,
		author:    SelfAuthor,
		inkmap:    ink.NewInkMap(opts.InkMapBuckets, opts.EraseResolution),
	}
}

// LoadOrCreate builds a deck and loads path into it. It never fails: an
// unreadable source yields the single default slide.
func LoadOrCreate(opts Options, path string) *Deck {
	d := New(opts)
	d.Load(path)
	return d
}

// SetPermissions swaps the role source once a session is established.
func (d *Deck) SetPermissions(p Permissions) {
	if p == nil {
		p = solo{}
	}
	d.perms = p
	d.rebuildIndex()
}

// SetAuthor names the local participant in broadcasts of its own ink.
func (d *Deck) SetAuthor(name string) {
	if name == "" {
		name = SelfAuthor
	}
	d.author = name
}

func (d *Deck) Events() *Events { return d.events }

// Dir is the directory layer and thumbnail paths resolve against.
func (d *Deck) Dir() string { return d.dir }

// Load replaces the deck with the contents of path, which may be a bundle
// file or a directory holding deck.xml. The first slide is shown afterwards.
func (d *Deck) Load(path string) {
	slides, dir, err := d.read(path)
	if err != nil {
		d.log.Warn("deck unreadable, using default slide", "path", path, "error", err)
		slides = []*Slide{{Layers: []string{defaultLayer}}}
		dir = d.workDir
	}
	d.slides = slides
	d.dir = dir
	d.pos = 0
	d.activeSub = -1
	d.redo = nil
	d.log.Info("deck loaded", "path", path, "slides", len(d.slides))

	if len(d.slides) > 0 {
		d.enterSlide()
	} else {
		d.rebuildIndex()
		d.events.emitRedraw()
	}
	d.events.emitDeckChanged()
}

func (d *Deck) read(path string) ([]*Slide, string, error) {
	if path == "" {
		return nil, "", os.ErrNotExist
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", err
	}
	if info.IsDir() {
		slides, err := readDeckFile(filepath.Join(path, deckFile), d.log)
		return slides, path, err
	}
	if err := unpackBundle(path, d.workDir); err != nil {
		return nil, "", err
	}
	slides, err := readDeckFile(filepath.Join(d.workDir, deckFile), d.log)
	return slides, d.workDir, err
}

// Save writes deck.xml into the deck directory.
func (d *Deck) Save() error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return err
	}
	return writeDeckFile(filepath.Join(d.dir, deckFile), d.slides)
}

// WriteBundle saves the deck and packs its directory into a bundle at path.
func (d *Deck) WriteBundle(path string) error {
	if err := d.Save(); err != nil {
		return err
	}
	return packBundle(d.dir, path)
}

// GotoSlide moves the cursor. It fails without side effects when index is
// out of range or the role manager forbids the move.
func (d *Deck) GotoSlide(index int, isLocalUserRequest bool) bool {
	if index < 0 || index >= len(d.slides) {
		d.log.Debug("goto out of range", "index", index, "count", len(d.slides))
		return false
	}
	if !d.perms.CanNavigate(isLocalUserRequest) {
		d.log.Debug("navigation locked", "index", index)
		return false
	}
	d.pos = index
	d.enterSlide()
	return true
}

func (d *Deck) NextSlide() bool     { return d.GotoSlide(d.pos+1, true) }
func (d *Deck) PreviousSlide() bool { return d.GotoSlide(d.pos-1, true) }

func (d *Deck) enterSlide() {
	d.events.emitSlideChanged(d.pos)
	d.activeSub = -1
	d.redo = nil
	d.rebuildIndex()
	d.events.emitSubmissionListChanged(-1)
	d.events.emitRedraw()
}

func (d *Deck) current() *Slide {
	if len(d.slides) == 0 {
		return nil
	}
	return d.slides[d.pos]
}

// resolve maps a target to a slide index, falling back to the current slide.
func (d *Deck) resolve(target int) int {
	if target < 0 || target >= len(d.slides) {
		return d.pos
	}
	return target
}

// lookup maps a target to a slide index; ok is false for a missing slide.
func (d *Deck) lookup(target int) (int, bool) {
	if target == CurrentSlide {
		return d.pos, len(d.slides) > 0
	}
	if target < 0 || target >= len(d.slides) {
		return 0, false
	}
	return target, true
}

// own returns the region the local user draws into on slide n.
func (d *Deck) own(n int) *[]ink.Path {
	s := d.slides[n]
	if d.perms.IsInstructor() {
		return &s.Instructor
	}
	return &s.Self
}

func (d *Deck) editable() bool {
	return len(d.slides) > 0 && (d.activeSub == -1 || d.perms.IsInstructor())
}

func (d *Deck) rebuildIndex() {
	d.inkmap.Clear()
	if len(d.slides) == 0 {
		return
	}
	region := *d.own(d.pos)
	ptrs := make([]*ink.Path, len(region))
	for i := range region {
		ptrs[i] = &region[i]
	}
	d.inkmap.Rebuild(ptrs)
}

// AddInk stores a finished stroke. Instructor-owned ink (local instructor or
// any remote sender) lands on the target slide; a student's own ink always
// lands on the current slide.
func (d *Deck) AddInk(p ink.Path, isRemote bool, target int) {
	if d.addInk(p, isRemote, target) && !isRemote {
		d.redo = nil
	}
}

func (d *Deck) addInk(p ink.Path, isRemote bool, target int) bool {
	if len(d.slides) == 0 {
		return false
	}
	if !p.Valid() {
		d.log.Debug("dropping undrawable path", "uid", p.UID, "remote", isRemote)
		return false
	}
	p = p.Clone()
	n := d.pos
	if isRemote || d.perms.IsInstructor() {
		n = d.resolve(target)
		s := d.slides[n]
		s.Instructor = append(s.Instructor, p)
	} else {
		s := d.slides[n]
		s.Self = append(s.Self, p)
	}

	if n == d.pos && !isRemote {
		region := *d.own(n)
		d.inkmap.AddPath(&region[len(region)-1])
	}
	if !isRemote {
		d.events.emitLocalInkAdded(p, n)
	} else if n == d.pos {
		d.events.emitRemoteInkAdded(p)
	}
	return true
}

// RemoveInkByUID deletes a path from the local user's own region. Missing
// uids are ignored and fire nothing.
func (d *Deck) RemoveInkByUID(uid uint32, target int) bool {
	n, ok := d.lookup(target)
	if !ok {
		return false
	}
	region := d.own(n)
	var removed bool
	*region, removed = removeUID(*region, uid)
	if !removed {
		return false
	}
	if n == d.pos {
		d.rebuildIndex()
		d.events.emitPathRemoved(uid)
	}
	if d.perms.IsInstructor() {
		d.events.emitInstructorInkRemoved(uid, n)
	}
	return true
}

// RemoveInstructorInkByUID applies an instructor's removal on a student.
func (d *Deck) RemoveInstructorInkByUID(uid uint32, target int) bool {
	n, ok := d.lookup(target)
	if !ok {
		return false
	}
	s := d.slides[n]
	var removed bool
	s.Instructor, removed = removeUID(s.Instructor, uid)
	if !removed {
		return false
	}
	if n == d.pos {
		d.rebuildIndex()
		d.events.emitPathRemoved(uid)
	}
	return true
}

func (d *Deck) ClearInstructorInk(target int) {
	n, ok := d.lookup(target)
	if !ok {
		return
	}
	d.slides[n].Instructor = nil
	d.afterClear(n)
}

func (d *Deck) ClearSelfInk(target int) {
	n, ok := d.lookup(target)
	if !ok {
		return
	}
	d.slides[n].Self = nil
	d.afterClear(n)
}

// ClearInk is the local clear action: an instructor also wipes instructor
// ink and announces it.
func (d *Deck) ClearInk(target int) {
	n, ok := d.lookup(target)
	if !ok {
		return
	}
	if d.perms.IsInstructor() {
		d.slides[n].Instructor = nil
		d.events.emitInstructorInkCleared(n)
	}
	d.slides[n].Self = nil
	d.afterClear(n)
}

func (d *Deck) afterClear(n int) {
	if n != d.pos {
		return
	}
	d.redo = nil
	d.rebuildIndex()
	d.events.emitRedraw()
}

// AddSubmission stores author's work, replacing any earlier submission by
// the same author. The replacement moves to the end of the list.
func (d *Deck) AddSubmission(author string, paths []ink.Path, text string, target int) {
	if len(d.slides) == 0 {
		return
	}
	n := d.resolve(target)
	s := d.slides[n]

	if old := s.submissionIndex(author); old >= 0 {
		s.Submissions = append(s.Submissions[:old], s.Submissions[old+1:]...)
		if n == d.pos && d.activeSub >= 0 {
			switch {
			case d.activeSub == old:
				d.activeSub = len(s.Submissions)
			case d.activeSub > old:
				d.activeSub--
			}
		}
	}
	s.Submissions = append(s.Submissions, Submission{Author: author, Paths: clonePaths(paths), Text: text})

	if n == d.pos {
		d.events.emitSubmissionListChanged(len(s.Submissions) - 1)
	}
}

// SetActiveSubmission selects which ink the viewer shows: -1 for the local
// user's own ink, otherwise a submission index.
func (d *Deck) SetActiveSubmission(index int) bool {
	s := d.current()
	if s == nil || index < -1 || index >= len(s.Submissions) {
		d.log.Debug("submission index ignored", "index", index)
		return false
	}
	d.activeSub = index
	d.redo = nil
	d.rebuildIndex()
	d.events.emitRedraw()
	return true
}

func (d *Deck) SetSlideText(text string) {
	if s := d.current(); s != nil {
		s.SelfText = text
	}
}

func (d *Deck) SetSlideThumb(rel string, target int) {
	if n, ok := d.lookup(target); ok {
		d.slides[n].Thumb = rel
	}
}

// SubmitInk sends the local user's own ink to the instructor.
func (d *Deck) SubmitInk() {
	s := d.current()
	if s == nil {
		return
	}
	d.events.emitInkSubmitted(ink.JoinPaths(s.Self), s.SelfText)
}

// BroadcastInk shares whatever is selected: own ink or a submission.
func (d *Deck) BroadcastInk() {
	s := d.current()
	if s == nil {
		return
	}
	if d.activeSub == -1 {
		d.events.emitInkBroadcast(d.author, ink.JoinPaths(s.Self), s.SelfText)
		return
	}
	sub := s.Submissions[d.activeSub]
	d.events.emitInkBroadcast(sub.Author, ink.JoinPaths(sub.Paths), sub.Text)
}

// EraseAt removes every own-region path touching the pixel at x, y and
// returns their uids.
func (d *Deck) EraseAt(x, y int) []uint32 {
	if !d.editable() {
		return nil
	}
	hits := d.inkmap.Query(x, y)
	uids := make([]uint32, 0, len(hits))
	for _, p := range hits {
		uids = append(uids, p.UID)
	}
	var removed []uint32
	for _, uid := range uids {
		if d.RemoveInkByUID(uid, CurrentSlide) {
			removed = append(removed, uid)
		}
	}
	return removed
}

// Undo removes the newest own-region path of the current slide.
func (d *Deck) Undo() bool {
	if !d.editable() {
		return false
	}
	region := *d.own(d.pos)
	if len(region) == 0 {
		return false
	}
	last := region[len(region)-1].Clone()
	if !d.RemoveInkByUID(last.UID, CurrentSlide) {
		return false
	}
	d.redo = append(d.redo, last)
	return true
}

// Redo restores the most recently undone path.
func (d *Deck) Redo() bool {
	if !d.editable() || len(d.redo) == 0 {
		return false
	}
	p := d.redo[len(d.redo)-1]
	d.redo = d.redo[:len(d.redo)-1]
	return d.addInk(p, false, CurrentSlide)
}

func (d *Deck) CanUndo() bool {
	return d.editable() && len(*d.own(d.pos)) > 0
}

func (d *Deck) CanRedo() bool {
	return d.editable() && len(d.redo) > 0
}

func (d *Deck) InstructorInk() []ink.Path {
	if s := d.current(); s != nil {
		return clonePaths(s.Instructor)
	}
	return nil
}

// SelfInkOrSubmission returns the ink and text the viewer shows beside the
// instructor's layer.
func (d *Deck) SelfInkOrSubmission() ([]ink.Path, string) {
	s := d.current()
	if s == nil {
		return nil, ""
	}
	if d.activeSub == -1 {
		return clonePaths(s.Self), s.SelfText
	}
	sub := s.Submissions[d.activeSub]
	return clonePaths(sub.Paths), sub.Text
}

func (d *Deck) SubmissionAuthors() []string {
	s := d.current()
	if s == nil {
		return nil
	}
	out := make([]string, len(s.Submissions))
	for i, sub := range s.Submissions {
		out[i] = sub.Author
	}
	return out
}

// SlideDimensions reports the explicit size of the current slide, if any.
func (d *Deck) SlideDimensions() (Dimensions, bool) {
	s := d.current()
	if s == nil || s.Dimensions == nil {
		return Dimensions{}, false
	}
	return *s.Dimensions, true
}

// SlideLayers returns absolute paths of the current slide's layers.
func (d *Deck) SlideLayers() []string {
	s := d.current()
	if s == nil {
		return nil
	}
	out := make([]string, len(s.Layers))
	for i, l := range s.Layers {
		out[i] = filepath.Join(d.dir, l)
	}
	return out
}

func (d *Deck) SlideThumb(target int) (string, bool) {
	n, ok := d.lookup(target)
	if !ok || d.slides[n].Thumb == "" {
		return "", false
	}
	return filepath.Join(d.dir, d.slides[n].Thumb), true
}

func (d *Deck) IsAtBeginning() bool { return len(d.slides) < 1 || d.pos == 0 }
func (d *Deck) IsAtEnd() bool       { return len(d.slides) < 1 || d.pos == len(d.slides)-1 }
func (d *Deck) SlideCount() int     { return len(d.slides) }
func (d *Deck) SlideIndex() int     { return d.pos }
func (d *Deck) ActiveSubmission() int {
	return d.activeSub
}

// Slides returns a deep copy of every slide.
func (d *Deck) Slides() []Slide {
	out := make([]Slide, len(d.slides))
	for i, s := range d.slides {
		out[i] = s.clone()
	}
	return out
}
