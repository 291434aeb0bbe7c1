package realtime

import (
	"sync/atomic"
	"time"
)

var lastEventID int64

// nextEventID returns a monotonically increasing id for broadcast envelopes.
// Receivers use it for de-duplication and ordering, so two events must never
// share an id even when assigned within the same nanosecond.
func nextEventID() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastEventID)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastEventID, last, now) {
			return now
		}
	}
}
