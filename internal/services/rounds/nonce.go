package rounds

import (
	"sync"
	"time"
)

// nonceSource hands out epoch milliseconds, bumped by one whenever the clock
// has not advanced past the previous value.
type nonceSource struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func newNonceSource() *nonceSource {
	return &nonceSource{now: time.Now}
}

func (n *nonceSource) Next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	v := n.now().UnixMilli()
	if v <= n.last {
		v = n.last + 1
	}

	n.last = v

	return v
}
