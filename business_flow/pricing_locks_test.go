package businessflow

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceLocks(t *testing.T) {
	t.Run("SerializesSameKey", func(t *testing.T) {
		locks := newServiceLocks()
		var inside, maxInside int32
		var wg sync.WaitGroup

		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := locks.lock("svc")
				defer unlock()

				n := atomic.AddInt32(&inside, 1)
				for {
					cur := atomic.LoadInt32(&maxInside)
					if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
						break
					}
				}
				atomic.AddInt32(&inside, -1)
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), maxInside)
		assert.Equal(t, 0, locks.size())
	})

	t.Run("IndependentKeys", func(t *testing.T) {
		locks := newServiceLocks()
		unlockA := locks.lock("a")
		unlockB := locks.lock("b")
		assert.Equal(t, 2, locks.size())

		unlockA()
		assert.Equal(t, 1, locks.size())
		unlockB()
		assert.Equal(t, 0, locks.size())
	})
}
