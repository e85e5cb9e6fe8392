package util

import "sync"

// GoWithWaitGroup runs fn in a goroutine tracked by wg. A nil wg runs fn untracked.
func GoWithWaitGroup(wg *sync.WaitGroup, fn func()) {
	if wg == nil {
		go fn()
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
}
