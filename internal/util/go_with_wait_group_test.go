package util_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/receivr-io/receivr/internal/util"
	"github.com/stretchr/testify/assert"
)

func TestGoWithWaitGroup(t *testing.T) {
	done := make(chan struct{})
	util.GoWithWaitGroup(nil, func() {
		close(done)
	})
	<-done

	counter := atomic.Int32{}
	wg := &sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		util.GoWithWaitGroup(wg, func() {
			time.Sleep(20 * time.Millisecond)
			counter.Add(1)
		})
	}
	wg.Wait()
	assert.Equal(t, int32(10), counter.Load())
}
