package usecase

import (
	"sync"

	"livescribe/internal/domain"
	"livescribe/internal/ports"
)

// interimSlot is the authoritative last-value store for one recording session.
// Writes happen synchronously on the recognizer's delivery goroutine; the stop
// sequence reads it through take, which closes the slot so late events from a
// finished session are dropped.
type interimSlot struct {
	view *interimView

	mu     sync.Mutex
	text   string
	seq    uint64
	closed bool
}

func newInterimSlot(view *interimView) *interimSlot {
	return &interimSlot{view: view}
}

// offer replaces the held hypothesis unless the slot is closed or the result
// is older than what it already holds.
func (s *interimSlot) offer(result domain.InterimResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if result.Seq != 0 {
		if result.Seq <= s.seq {
			return
		}
		s.seq = result.Seq
	}
	s.text = result.Text
	s.view.set(result.Text)
}

// take returns the held hypothesis, closes the slot and clears the observer view.
func (s *interimSlot) take() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := s.text
	s.text = ""
	s.closed = true
	s.view.set("")
	return text
}

// interimView is the observer-facing interim text. Updates are coalesced and
// delivered to the sink from a single goroutine, newest value only.
type interimView struct {
	sink ports.EventSink

	mu   sync.Mutex
	text string
	gen  uint64

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func newInterimView(sink ports.EventSink) *interimView {
	v := &interimView{
		sink: sink,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go v.run()
	return v
}

func (v *interimView) set(text string) {
	v.mu.Lock()
	if v.text == text {
		v.mu.Unlock()
		return
	}
	v.text = text
	v.gen++
	v.mu.Unlock()

	select {
	case v.wake <- struct{}{}:
	default:
	}
}

func (v *interimView) get() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.text
}

func (v *interimView) run() {
	defer close(v.done)

	var delivered uint64
	for {
		select {
		case <-v.quit:
			return
		case <-v.wake:
		}

		v.mu.Lock()
		text, gen := v.text, v.gen
		v.mu.Unlock()
		if gen == delivered {
			continue
		}
		delivered = gen
		v.sink.InterimTranscript(text)
	}
}

func (v *interimView) close() {
	v.once.Do(func() {
		close(v.quit)
		<-v.done
	})
}
