package orders

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFairLock_SerializesAccess(t *testing.T) {
	l := &fairLock{}
	var counter int64
	var wg sync.WaitGroup
	const n = 50

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := l.Acquire()
			defer release()
			cur := atomic.AddInt64(&counter, 1)
			time.Sleep(time.Millisecond)
			assert.Equal(t, cur, atomic.LoadInt64(&counter))
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(n), counter)
}

func TestFairLockRegistry_SharesLockPerContract(t *testing.T) {
	r := newFairLockRegistry()
	a := r.For("ES")
	b := r.For("ES")
	c := r.For("NQ")
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
