package harvest

import "sync"

// budget is the run-scoped cost accumulator. It only ever grows.
type budget struct {
	mu    sync.Mutex
	total float64
}

func (b *budget) add(v float64) {
	b.mu.Lock()
	b.total += v
	b.mu.Unlock()
}

func (b *budget) value() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// exhausted reports whether the accumulated cost has met the ceiling. A
// ceiling of zero or less means no limit.
func (b *budget) exhausted(ceiling float64) bool {
	if ceiling <= 0 {
		return false
	}
	return b.value() >= ceiling
}
