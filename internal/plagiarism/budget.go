package plagiarism

import "sync/atomic"

// Budget is a per-scan allowance of checks shared by concurrent workers.
type Budget struct {
	remaining atomic.Int64
	used      atomic.Int64
}

// NewBudget returns a budget of n checks. n <= 0 allows none.
func NewBudget(n int) *Budget {
	b := &Budget{}
	if n > 0 {
		b.remaining.Store(int64(n))
	}
	return b
}

// TryConsume takes one check from the budget, reporting false once it is spent.
func (b *Budget) TryConsume() bool {
	for {
		cur := b.remaining.Load()
		if cur <= 0 {
			return false
		}
		if b.remaining.CompareAndSwap(cur, cur-1) {
			b.used.Add(1)
			return true
		}
	}
}

// Remaining is the number of checks left.
func (b *Budget) Remaining() int {
	return int(b.remaining.Load())
}

// Used is the number of checks consumed.
func (b *Budget) Used() int {
	return int(b.used.Load())
}
