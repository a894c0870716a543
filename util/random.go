package util

import (
	"math/rand"
	"sync"
	"time"
)

func init() {
	r = rand.New(rand.NewSource(time.Now().UnixNano()))
}

var r *rand.Rand
var rLock sync.Mutex

// Jitter returns a duration uniformly distributed in [d/2, d*3/2).
//
func Jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	rLock.Lock()
	defer rLock.Unlock()
	return d/2 + time.Duration(r.Int63n(int64(d)))
}
