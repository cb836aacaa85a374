package trace

import (
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Heartbeat emits a liveness event at a fixed interval with the goroutine
// count and live heap. Heartbeats with no span ends in between point at a
// sentence stuck in search.
type Heartbeat struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// StartHeartbeat starts the ticker goroutine. It returns nil when tracing is
// off or interval is not positive; Stop on nil is fine.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{stop: make(chan struct{}), done: make(chan struct{})}
	go h.run(tracer, interval)
	return h
}

func (h *Heartbeat) run(tracer Tracer, interval time.Duration) {
	defer close(h.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var beat int
	var mem runtime.MemStats
	for {
		select {
		case <-h.stop:
			return
		case now := <-ticker.C:
			beat++
			runtime.ReadMemStats(&mem)
			tracer.Emit(&Event{
				Time:   now,
				Seq:    NextSeq(),
				Kind:   KindHeartbeat,
				Scope:  ScopeBatch,
				GID:    goroutineID(),
				Name:   "heartbeat",
				Detail: fmt.Sprintf("#%d", beat),
				Extra: map[string]string{
					"goroutines": fmt.Sprint(runtime.NumGoroutine()),
					"heap_mb":    fmt.Sprintf("%.1f", float64(mem.HeapAlloc)/(1<<20)),
				},
			})
		}
	}
}

// Stop ends the ticker and waits for the goroutine to exit. Safe to call
// more than once.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	<-h.done
}
