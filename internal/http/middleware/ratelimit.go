package middleware

import (
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int64
}

// localWindows counts fixed windows in process for single-instance setups.
type localWindows struct {
	mu      sync.Mutex
	windows map[string]*window
	sweepAt time.Time
}

func newLocalWindows() *localWindows {
	return &localWindows{windows: make(map[string]*window)}
}

func (l *localWindows) incr(key string, size time.Duration, now time.Time) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.sweepAt) {
		for k, w := range l.windows {
			if now.Sub(w.start) > size {
				delete(l.windows, k)
			}
		}
		l.sweepAt = now.Add(time.Minute)
	}

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= size {
		w = &window{start: now}
		l.windows[key] = w
	}
	w.count++
	return w.count
}
