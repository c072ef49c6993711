package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Topic string

// Instructor → students.
const (
	TopicSlideChanged        Topic = "slide_changed"
	TopicLockNav             Topic = "lock_nav"
	TopicAddInkPath          Topic = "add_ink_path"
	TopicInstructorClearInk  Topic = "instructor_clear_ink"
	TopicInstructorRemoveInk Topic = "instructor_remove_ink"
	TopicBroadcastSubmission Topic = "bcast_submission"
	TopicPushInitialState    Topic = "push_initial_state"
)

// Student → instructor.
const (
	TopicDeckDownloadComplete Topic = "deck_download_complete"
	TopicSendSubmission       Topic = "send_submission"
)

// FromInstructor reports whether only the instructor may send t.
func (t Topic) FromInstructor() bool {
	switch t {
	case TopicSlideChanged, TopicLockNav, TopicAddInkPath, TopicInstructorClearInk,
		TopicInstructorRemoveInk, TopicBroadcastSubmission, TopicPushInitialState:
		return true
	}
	return false
}

// FromStudent reports whether t is one of the student topics.
func (t Topic) FromStudent() bool {
	return t == TopicDeckDownloadComplete || t == TopicSendSubmission
}

type SlideChanged struct {
	Index int `json:"index"`
}

type LockNav struct {
	Locked bool `json:"locked"`
}

type AddInkPath struct {
	Slide int    `json:"slide"`
	Path  string `json:"path"`
}

type InstructorClearInk struct {
	Slide int `json:"slide"`
}

type InstructorRemoveInk struct {
	UID   uint32 `json:"uid"`
	Slide int    `json:"slide"`
}

// Submission is shared by SendSubmission and BroadcastSubmission. Paths is
// the $-joined path list.
type Submission struct {
	Author string `json:"author"`
	Slide  int    `json:"slide"`
	Paths  string `json:"paths"`
	Text   string `json:"text"`
}

type PushInitialState struct {
	Locked bool `json:"locked"`
	Slide  int  `json:"slide"`
}

type DeckDownloadComplete struct{}

var ErrMalformed = errors.New("protocol: malformed message")

// Envelope wraps every payload. Seq increases per site so receivers can drop
// replays; Lamport orders events across the session for logging.
type Envelope struct {
	Site    string          `json:"site"`
	Seq     uint64          `json:"seq"`
	Lamport uint64          `json:"lamport"`
	Body    json.RawMessage `json:"body"`
}

// Encode stamps body with the clock and serializes it.
func Encode(clk *Clock, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	seq, lamport := clk.Stamp()
	return json.Marshal(Envelope{Site: clk.Site(), Seq: seq, Lamport: lamport, Body: raw})
}

// Open parses an envelope without touching its body.
func Open(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Site == "" || env.Seq == 0 {
		return env, fmt.Errorf("%w: missing site or seq", ErrMalformed)
	}
	return env, nil
}

// Decode unmarshals the envelope body into out.
func (e Envelope) Decode(out any) error {
	if len(e.Body) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformed)
	}
	if err := json.Unmarshal(e.Body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
