package protocol

import (
	"errors"
	"testing"
)

func TestEncodeOpenDecode(t *testing.T) {
	clk := NewClock()
	raw, err := Encode(clk, AddInkPath{Slide: 2, Path: "7;0.0,0.0,1.0;4.0#0,0;10,10;"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	env, err := Open(raw)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if env.Site != clk.Site() || env.Seq != 1 || env.Lamport != 1 {
		t.Fatalf("envelope header: %+v", env)
	}
	var body AddInkPath
	if err := env.Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Slide != 2 || body.Path != "7;0.0,0.0,1.0;4.0#0,0;10,10;" {
		t.Fatalf("body: %+v", body)
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "{", `{"site":"","seq":1}`, `{"site":"a","seq":0}`} {
		if _, err := Open([]byte(in)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Open(%q): want ErrMalformed, got %v", in, err)
		}
	}
	env := Envelope{Site: "a", Seq: 1, Body: []byte(`{"index":"three"}`)}
	var sc SlideChanged
	if err := env.Decode(&sc); !errors.Is(err, ErrMalformed) {
		t.Fatalf("Decode: want ErrMalformed, got %v", err)
	}
}

func TestSeqFilterDropsReplays(t *testing.T) {
	f := NewSeqFilter()
	if !f.Accept(Envelope{Site: "a", Seq: 1}) || !f.Accept(Envelope{Site: "a", Seq: 2}) {
		t.Fatalf("fresh sequence should be accepted")
	}
	if f.Accept(Envelope{Site: "a", Seq: 2}) || f.Accept(Envelope{Site: "a", Seq: 1}) {
		t.Fatalf("stale sequence should be dropped")
	}
	if !f.Accept(Envelope{Site: "b", Seq: 1}) {
		t.Fatalf("sites are independent")
	}
}

func TestClockObserve(t *testing.T) {
	clk := NewClock()
	clk.Stamp()
	if got := clk.Observe(10); got != 11 {
		t.Fatalf("Observe: want=11 got=%d", got)
	}
	if got := clk.Observe(3); got != 12 {
		t.Fatalf("Observe older: want=12 got=%d", got)
	}
}

func TestTopicDirections(t *testing.T) {
	if !TopicPushInitialState.FromInstructor() || TopicPushInitialState.FromStudent() {
		t.Fatalf("push initial state is an instructor topic")
	}
	if !TopicSendSubmission.FromStudent() || TopicSendSubmission.FromInstructor() {
		t.Fatalf("send submission is a student topic")
	}
}
