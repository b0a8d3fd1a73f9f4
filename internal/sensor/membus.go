package sensor

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBus is an in-memory register file. It backs --simulate and tests.
type MemoryBus struct {
	mu       sync.Mutex
	regs     map[uint16]byte
	failures map[uint16]int
	writes   []RegisterValue
}

func NewMemoryBus(initial ...RegisterValue) *MemoryBus {
	m := &MemoryBus{
		regs:     make(map[uint16]byte),
		failures: make(map[uint16]int),
	}
	for _, rv := range initial {
		m.regs[rv.Addr] = rv.Value
	}

	return m
}

func (m *MemoryBus) ReadRegister(_ context.Context, addr uint16) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail(addr); err != nil {
		return 0, err
	}

	return m.regs[addr], nil
}

func (m *MemoryBus) WriteRegister(_ context.Context, addr uint16, value byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail(addr); err != nil {
		return err
	}

	m.regs[addr] = value
	m.writes = append(m.writes, RegisterValue{Addr: addr, Value: value})

	return nil
}

// FailNext makes the next n transactions on addr fail.
func (m *MemoryBus) FailNext(addr uint16, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[addr] = n
}

// Get returns a register without going through the failure injection.
func (m *MemoryBus) Get(addr uint16) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[addr]
}

// Set stores a register without recording a write.
func (m *MemoryBus) Set(addr uint16, value byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[addr] = value
}

// Writes returns the recorded writes in bus order.
func (m *MemoryBus) Writes() []RegisterValue {
	m.mu.Lock()
	defer m.mu.Unlock()

	writes := make([]RegisterValue, len(m.writes))
	copy(writes, m.writes)

	return writes
}

func (m *MemoryBus) ResetWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = m.writes[:0]
}

func (m *MemoryBus) fail(addr uint16) error {
	if n := m.failures[addr]; n > 0 {
		m.failures[addr] = n - 1
		return fmt.Errorf("simulated bus failure at 0x%04x", addr)
	}

	return nil
}
