package session

import (
	"ClassPresenter/internal/ink"
	"ClassPresenter/internal/protocol"
	"ClassPresenter/internal/role"
	"ClassPresenter/internal/state"
	"ClassPresenter/internal/tube"
)

// wireDeck turns local deck events into outbound messages.
func (e *Engine) wireDeck(ev *state.Events) {
	ev.OnSlideChanged(func(index int) {
		if e.instructing() && e.roles.Locked() {
			e.send(protocol.TopicSlideChanged, protocol.SlideChanged{Index: index})
		}
	})
	ev.OnLocalInkAdded(func(p ink.Path, slide int) {
		if e.instructing() {
			e.send(protocol.TopicAddInkPath, protocol.AddInkPath{Slide: slide, Path: p.String()})
		}
	})
	ev.OnInstructorInkCleared(func(slide int) {
		if e.instructing() {
			e.send(protocol.TopicInstructorClearInk, protocol.InstructorClearInk{Slide: slide})
		}
	})
	ev.OnInstructorInkRemoved(func(uid uint32, slide int) {
		if e.instructing() {
			e.send(protocol.TopicInstructorRemoveInk, protocol.InstructorRemoveInk{UID: uid, Slide: slide})
		}
	})
	ev.OnInkBroadcast(func(author, paths, text string) {
		if e.instructing() {
			e.send(protocol.TopicBroadcastSubmission, protocol.Submission{
				Author: author, Slide: e.deck.SlideIndex(), Paths: paths, Text: text,
			})
		}
	})
	ev.OnInkSubmitted(func(paths, text string) {
		if e.roles.Role() != role.Student || e.tube == nil {
			return
		}
		e.sendTo(e.tube.Initiator(), protocol.TopicSendSubmission, protocol.Submission{
			Author: e.cfg.Nick, Slide: e.deck.SlideIndex(), Paths: paths, Text: text,
		})
	})
}

func (e *Engine) instructing() bool {
	return e.roles.Role() == role.Instructor
}

// AnnounceSlide pushes the current slide to every student.
func (e *Engine) AnnounceSlide() {
	if e.instructing() {
		e.send(protocol.TopicSlideChanged, protocol.SlideChanged{Index: e.deck.SlideIndex()})
	}
}

func (e *Engine) lockChanged(locked bool) {
	if e.instructing() {
		e.send(protocol.TopicLockNav, protocol.LockNav{Locked: locked})
	}
}

func (e *Engine) handle(msg tube.Message) {
	topic := protocol.Topic(msg.Topic)
	log := e.log.With("topic", msg.Topic, "from", msg.From)

	switch {
	case topic.FromInstructor():
		if e.roles.Role() != role.Student {
			log.Debug("ignoring instructor topic, not a student")
			return
		}
		if msg.From != e.tube.Initiator() {
			log.Warn("instructor topic from non-initiator dropped")
			return
		}
	case topic.FromStudent():
		if !e.instructing() {
			log.Debug("ignoring student topic, not the instructor")
			return
		}
	default:
		log.Debug("unknown topic dropped")
		return
	}

	env, err := protocol.Open(msg.Payload)
	if err != nil {
		log.Warn("malformed message dropped", "error", err)
		return
	}
	if !e.seqs.Accept(env) {
		log.Debug("stale message dropped", "site", env.Site, "seq", env.Seq)
		return
	}
	e.clock.Observe(env.Lamport)

	if err := e.dispatch(topic, msg, env); err != nil {
		log.Warn("malformed message dropped", "error", err)
	}
}

func (e *Engine) dispatch(topic protocol.Topic, msg tube.Message, env protocol.Envelope) error {
	// Content topics are meaningless until the bundle replaces the
	// placeholder deck.
	if !e.ready && topic != protocol.TopicLockNav {
		e.log.Debug("deck not loaded, dropping", "topic", topic)
		return nil
	}

	switch topic {
	case protocol.TopicSlideChanged:
		var body protocol.SlideChanged
		if err := env.Decode(&body); err != nil {
			return err
		}
		e.deck.GotoSlide(body.Index, false)

	case protocol.TopicLockNav:
		var body protocol.LockNav
		if err := env.Decode(&body); err != nil {
			return err
		}
		e.roles.SetLockState(body.Locked)

	case protocol.TopicAddInkPath:
		var body protocol.AddInkPath
		if err := env.Decode(&body); err != nil {
			return err
		}
		p := ink.Parse(body.Path)
		if !p.Valid() {
			return protocol.ErrMalformed
		}
		e.deck.AddInk(p, true, body.Slide)

	case protocol.TopicInstructorClearInk:
		var body protocol.InstructorClearInk
		if err := env.Decode(&body); err != nil {
			return err
		}
		e.deck.ClearInstructorInk(body.Slide)

	case protocol.TopicInstructorRemoveInk:
		var body protocol.InstructorRemoveInk
		if err := env.Decode(&body); err != nil {
			return err
		}
		e.deck.RemoveInstructorInkByUID(body.UID, body.Slide)

	case protocol.TopicBroadcastSubmission:
		var body protocol.Submission
		if err := env.Decode(&body); err != nil {
			return err
		}
		e.deck.AddSubmission(body.Author, ink.SplitPaths(body.Paths), body.Text, body.Slide)

	case protocol.TopicPushInitialState:
		var body protocol.PushInitialState
		if err := env.Decode(&body); err != nil {
			return err
		}
		e.log.Info("initial state received", "slide", body.Slide, "locked", body.Locked)
		e.deck.GotoSlide(body.Slide, false)
		e.roles.SetLockState(body.Locked)

	case protocol.TopicDeckDownloadComplete:
		e.log.Info("student ready, pushing initial state", "student", msg.From)
		e.sendTo(msg.From, protocol.TopicPushInitialState, protocol.PushInitialState{
			Locked: e.roles.Locked(), Slide: e.deck.SlideIndex(),
		})

	case protocol.TopicSendSubmission:
		var body protocol.Submission
		if err := env.Decode(&body); err != nil {
			return err
		}
		e.deck.AddSubmission(e.author(msg.From, body.Author), ink.SplitPaths(body.Paths), body.Text, body.Slide)
	}
	return nil
}

// author prefers the roster nick over the self-reported one.
func (e *Engine) author(from tube.ParticipantID, claimed string) string {
	if nick, ok := tube.Nick(e.tube.Roster(), from); ok && nick != "" {
		return nick
	}
	if claimed != "" {
		return claimed
	}
	return "Unknown"
}
