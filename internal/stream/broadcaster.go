// Package stream fans out log lines to every attached observer
package stream

import (
	"sync"
	"time"
)

const (
	// DefaultWindow is the number of recent lines kept for late observers
	DefaultWindow = 500
	// DefaultBuffer is the per observer queue size
	DefaultBuffer = 256
)

// Line is a single published log line
type Line struct {
	Seq    uint64    `json:"seq"`
	Time   time.Time `json:"time"`
	Source string    `json:"source"`
	Text   string    `json:"text"`
}

// Broadcaster is the process wide log bus. Publishing never blocks,
// an observer whose queue is full misses lines.
type Broadcaster struct {
	mu     sync.Mutex
	seq    uint64
	window []Line
	size   int
	buffer int

	nextID uint64
	subs   map[uint64]*Subscription
}

// NewBroadcaster creates a broadcaster keeping window recent lines
func NewBroadcaster(window, buffer int) *Broadcaster {
	if window <= 0 {
		window = DefaultWindow
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	return &Broadcaster{
		size:   window,
		buffer: buffer,
		subs:   map[uint64]*Subscription{},
	}
}

// Publish appends a line and hands it to every observer
func (b *Broadcaster) Publish(source, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	line := Line{Seq: b.seq, Time: time.Now(), Source: source, Text: text}

	b.window = append(b.window, line)
	if len(b.window) > b.size {
		// reslice into a fresh array so the old one can be collected
		b.window = append([]Line(nil), b.window[len(b.window)-b.size:]...)
	}

	for _, sub := range b.subs {
		select {
		case sub.ch <- line:
		default:
			sub.dropped++
		}
	}
}

// Recent returns a copy of the recent window
func (b *Broadcaster) Recent() []Line {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]Line(nil), b.window...)
}

// Attach returns a live subscription starting after the last published line
func (b *Broadcaster) Attach() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.attach()
}

// AttachWithRecent returns the recent window and a subscription continuing right after it,
// no line is seen twice or skipped between the two.
func (b *Broadcaster) AttachWithRecent() ([]Line, *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]Line(nil), b.window...), b.attach()
}

// Observers returns the number of attached subscriptions
func (b *Broadcaster) Observers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}

func (b *Broadcaster) attach() *Subscription {
	b.nextID++
	sub := &Subscription{
		id:          b.nextID,
		ch:          make(chan Line, b.buffer),
		broadcaster: b,
	}
	b.subs[sub.id] = sub
	return sub
}

func (b *Broadcaster) detach(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	close(sub.ch)
}

// Subscription is a live view of the broadcaster
type Subscription struct {
	id          uint64
	ch          chan Line
	dropped     uint64
	broadcaster *Broadcaster
	once        sync.Once
}

// C delivers lines in publish order, closed after Close
func (s *Subscription) C() <-chan Line {
	return s.ch
}

// Dropped returns how many lines were missed because the queue was full
func (s *Subscription) Dropped() uint64 {
	s.broadcaster.mu.Lock()
	defer s.broadcaster.mu.Unlock()

	return s.dropped
}

// Close detaches the subscription
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broadcaster.detach(s)
	})
}
