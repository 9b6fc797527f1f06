package docstore

import (
	"math/rand"
	"sync"
	"time"
)

// Push keys sort lexicographically in generation order: 8 characters of
// millisecond timestamp followed by 12 random characters. Keys generated
// within the same millisecond reuse the previous random suffix incremented
// by one, so insertion order survives even under bursts.
const pushAlphabet = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

type pushIDGen struct {
	mu       sync.Mutex
	lastMs   int64
	lastRand [12]int
}

func (g *pushIDGen) next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := now.UnixMilli()
	if ms == g.lastMs {
		// Same millisecond: increment the previous suffix.
		for i := 11; i >= 0; i-- {
			g.lastRand[i]++
			if g.lastRand[i] < len(pushAlphabet) {
				break
			}
			g.lastRand[i] = 0
		}
	} else {
		g.lastMs = ms
		for i := range g.lastRand {
			g.lastRand[i] = rand.Intn(len(pushAlphabet))
		}
	}

	var buf [20]byte
	rem := ms
	for i := 7; i >= 0; i-- {
		buf[i] = pushAlphabet[rem%64]
		rem /= 64
	}
	for i, v := range g.lastRand {
		buf[8+i] = pushAlphabet[v]
	}
	return string(buf[:])
}
