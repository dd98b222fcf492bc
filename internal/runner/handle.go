package runner

import (
	"context"
	"sync"
)

// Handle tracks one toolchain invocation. All methods are safe to call from
// any goroutine.
type Handle struct {
	seq    uint64
	unitID string

	ctx     context.Context
	cancel  context.CancelFunc
	events  chan<- Event
	abandon chan struct{}
	once    sync.Once
	done    chan struct{}

	// sendMu serializes event delivery with Cancel.
	sendMu    sync.Mutex
	cancelled bool

	mu     sync.Mutex
	result *Result
}

func newHandle(ctx context.Context, req Request, events chan<- Event) *Handle {
	hctx, cancel := context.WithCancel(ctx)
	return &Handle{
		seq:     req.Seq,
		unitID:  req.UnitID,
		ctx:     hctx,
		cancel:  cancel,
		events:  events,
		abandon: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (h *Handle) Seq() uint64    { return h.seq }
func (h *Handle) UnitID() string { return h.unitID }

// Done is closed once the process has been reaped and the result recorded.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) Poll() (Status, *Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.result == nil {
		return StatusRunning, nil
	}
	return StatusFinished, h.result
}

// Cancel kills the process group and returns without waiting for it to exit.
// Once Cancel returns no further events are delivered for this handle.
func (h *Handle) Cancel() {
	h.once.Do(func() { close(h.abandon) })
	h.cancel()
	h.sendMu.Lock()
	h.cancelled = true
	h.sendMu.Unlock()
}

func (h *Handle) emitOutput(p []byte) {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	if h.cancelled {
		return
	}
	ev := Event{Seq: h.seq, UnitID: h.unitID, Kind: EventOutput, Chunk: append([]byte(nil), p...)}
	// Output events are advisory; the full text is in the Finished result.
	select {
	case h.events <- ev:
	default:
	}
}

func (h *Handle) finish(res *Result) {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	if h.cancelled {
		res.Cancelled = true
	}
	h.mu.Lock()
	h.result = res
	h.mu.Unlock()
	if h.cancelled {
		return
	}
	select {
	case h.events <- Event{Seq: h.seq, UnitID: h.unitID, Kind: EventFinished, Result: res}:
	case <-h.abandon:
	}
}
