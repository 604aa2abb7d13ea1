package query

import (
	"math/rand"
	"sync"
	"time"
)

var generalTips = []string{
	"Tip: reviewing subscriptions once a month is an easy way to find savings.",
	"Tip: setting a cap for each budget bucket makes overspending easier to spot.",
	"Tip: small daily purchases add up; try tracking coffee and snacks for a week.",
	"Tip: moving a fixed amount to savings right after payday makes saving automatic.",
	"Tip: comparing this month with last month shows which habits are changing.",
}

// TipPicker appends a general tip with a fixed probability. It is safe for concurrent use and
// deterministic for a given seed.
type TipPicker struct {
	mu          sync.Mutex
	rng         *rand.Rand
	probability float64
	tips        []string
}

func NewTipPicker(probability float64, seed int64) *TipPicker {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &TipPicker{
		rng:         rand.New(rand.NewSource(seed)),
		probability: probability,
		tips:        generalTips,
	}
}

func (p *TipPicker) Maybe() (string, bool) {
	if p == nil || p.probability <= 0 || len(p.tips) == 0 {
		return "", false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rng.Float64() >= p.probability {
		return "", false
	}
	return p.tips[p.rng.Intn(len(p.tips))], true
}
