package protocol

import (
	"sync"

	"github.com/google/uuid"
)

// Clock stamps outgoing envelopes with this process's site id, a per-site
// sequence number and a Lamport time.
type Clock struct {
	site string

	mu      sync.Mutex
	seq     uint64
	lamport uint64
}

func NewClock() *Clock {
	return &Clock{site: uuid.NewString()}
}

func (c *Clock) Site() string { return c.site }

// Stamp advances both counters for a local send.
func (c *Clock) Stamp() (seq, lamport uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.lamport++
	return c.seq, c.lamport
}

// Observe merges a remote Lamport time.
func (c *Clock) Observe(remote uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if remote > c.lamport {
		c.lamport = remote
	}
	c.lamport++
	return c.lamport
}

func (c *Clock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lamport
}

// SeqFilter remembers the last sequence number applied per site.
type SeqFilter struct {
	last map[string]uint64
}

func NewSeqFilter() *SeqFilter {
	return &SeqFilter{last: make(map[string]uint64)}
}

// Accept reports whether env is newer than anything seen from its site and
// records it if so.
func (f *SeqFilter) Accept(env Envelope) bool {
	if env.Seq <= f.last[env.Site] {
		return false
	}
	f.last[env.Site] = env.Seq
	return true
}
