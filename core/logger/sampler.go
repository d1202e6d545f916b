package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler lets through num of every den events. A zero ratio lets everything through.
type sampler struct {
	ratio atomic.Uint64 // num<<32 | den
	seen  atomic.Uint64
}

func (s *sampler) Set(num, den int) {
	if num <= 0 || den <= 0 {
		s.ratio.Store(0)
		return
	}
	if num > den {
		num = den
	}
	s.ratio.Store(uint64(num)<<32 | uint64(den))
	s.seen.Store(0)
}

// Allow reports whether the current event passes.
func (s *sampler) Allow() bool {
	r := s.ratio.Load()
	if r == 0 {
		return true
	}
	num, den := r>>32, r&0xffffffff
	return (s.seen.Add(1)-1)%den < num
}

// parseRatio accepts "n/d" or "d", the latter meaning 1/d.
func parseRatio(raw string) (int, int) {
	raw = strings.TrimSpace(raw)
	if n, d, ok := strings.Cut(raw, "/"); ok {
		num, err1 := strconv.Atoi(strings.TrimSpace(n))
		den, err2 := strconv.Atoi(strings.TrimSpace(d))
		if err1 == nil && err2 == nil {
			return num, den
		}
		return 0, 0
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return 1, v
	}
	return 0, 0
}
