package workflow

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/intelflow/types"
	"go.uber.org/zap"
)

// EventType classifies run lifecycle events.
type EventType string

const (
	// EventRunAccepted 运行已通过校验并入队。
	EventRunAccepted EventType = "run_accepted"
	// EventFocusTransition 某焦点发生状态迁移。
	EventFocusTransition EventType = "focus_transition"
	// EventRunFinished 运行抵达终态，响应契约已组装完成。
	EventRunFinished EventType = "run_finished"
)

// Event is one observable state change in a run. Focus-level fields are
// empty for run-level events.
type Event struct {
	RunID  string           `json:"run_id"`
	Type   EventType        `json:"type"`
	Focus  types.FocusArea  `json:"focus,omitempty"`
	From   types.FocusState `json:"from,omitempty"`
	To     types.FocusState `json:"to,omitempty"`
	Reason string           `json:"reason,omitempty"`
	Status types.RunStatus  `json:"status,omitempty"`
	At     time.Time        `json:"at"`
}

// Broadcaster 向任意数量的订阅者扇出事件。发布永不阻塞调度循环：
// 缓冲满的订阅者丢事件并计数，慢消费者不拖慢运行。
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	nextID  uint64
	closed  bool
	dropped atomic.Uint64
	logger  *zap.Logger
}

// NewBroadcaster creates an event broadcaster.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		subs:   make(map[uint64]chan Event),
		logger: logger.With(zap.String("component", "events")),
	}
}

// Subscribe registers a buffered subscriber and returns its channel plus a
// cancel function. The channel is closed on cancel or broadcaster shutdown.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish fans the event out to every subscriber without blocking.
func (b *Broadcaster) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
			b.logger.Debug("event dropped for slow subscriber",
				zap.String("run_id", ev.RunID),
				zap.String("type", string(ev.Type)))
		}
	}
}

// Dropped returns the number of events discarded for slow subscribers.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close shuts the broadcaster down and closes every subscriber channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
