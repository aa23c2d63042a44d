package device

// history is a bounded FIFO of samples. Appending past capacity drops the
// oldest sample first.
type history struct {
	samples []ConsumptionSample
	max     int
}

func newHistory(maxEntries int) *history {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &history{
		samples: make([]ConsumptionSample, 0, maxEntries),
		max:     maxEntries,
	}
}

func (h *history) push(s ConsumptionSample) {
	if len(h.samples) == h.max {
		copy(h.samples, h.samples[1:])
		h.samples = h.samples[:len(h.samples)-1]
	}
	h.samples = append(h.samples, s)
}

func (h *history) len() int {
	return len(h.samples)
}

// list returns a copy, oldest first. Never nil.
func (h *history) list() []ConsumptionSample {
	out := make([]ConsumptionSample, len(h.samples))
	copy(out, h.samples)
	return out
}
