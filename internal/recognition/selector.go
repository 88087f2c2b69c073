package recognition

import (
	"math/rand/v2"
	"sync"
)

// Selector picks one provider from a non-empty candidate list. It must be
// safe for concurrent use.
type Selector func(candidates []Provider) Provider

// RandomSelector returns a [Selector] that picks uniformly using r. A nil r
// uses the global math/rand/v2 source.
func RandomSelector(r *rand.Rand) Selector {
	if r == nil {
		return func(candidates []Provider) Provider {
			return candidates[rand.IntN(len(candidates))]
		}
	}
	var mu sync.Mutex
	return func(candidates []Provider) Provider {
		mu.Lock()
		defer mu.Unlock()
		return candidates[r.IntN(len(candidates))]
	}
}
