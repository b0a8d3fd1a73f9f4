package sensor

import (
	"sync"
)

type recordingCounters struct {
	mu          sync.Mutex
	transitions []string
	clamps      []string
	skips       []string
	retries     []string
}

func (r *recordingCounters) Transition(direction, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, direction+"/"+outcome)
}

func (r *recordingCounters) Clamp(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clamps = append(r.clamps, kind)
}

func (r *recordingCounters) GuardSkip(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skips = append(r.skips, reason)
}

func (r *recordingCounters) BusRetry(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries = append(r.retries, op)
}

func registers(tables map[Mode]ModeTable, mode Mode) []RegisterValue {
	return append([]RegisterValue(nil), tables[mode].Registers...)
}

func writtenAddrs(writes []RegisterValue) []uint16 {
	addrs := make([]uint16, 0, len(writes))
	for _, w := range writes {
		addrs = append(addrs, w.Addr)
	}

	return addrs
}

func indexOf(addrs []uint16, addr uint16) int {
	for i, a := range addrs {
		if a == addr {
			return i
		}
	}

	return -1
}
