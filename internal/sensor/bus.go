package sensor

import (
	"context"
	"fmt"

	"codeberg.org/mutker/sensorctl/internal/errors"
	"codeberg.org/mutker/sensorctl/internal/logger"
)

// DefaultRetries is the number of extra attempts after a failed transaction.
const DefaultRetries = 2

// RetryBus retries idempotent register transactions before surfacing a
// transport error.
type RetryBus struct {
	bus      RegisterBus
	retries  int
	counters Counters
	logger   logger.Logger
}

func NewRetryBus(bus RegisterBus, retries int, counters Counters, log logger.Logger) *RetryBus {
	if retries < 0 {
		retries = 0
	}
	if counters == nil {
		counters = nopCounters{}
	}
	if log == nil {
		log = logger.Nop()
	}

	return &RetryBus{bus: bus, retries: retries, counters: counters, logger: log}
}

func (b *RetryBus) ReadRegister(ctx context.Context, addr uint16) (byte, error) {
	var value byte
	err := b.do(ctx, "read", addr, func() error {
		var err error
		value, err = b.bus.ReadRegister(ctx, addr)
		return err
	})

	return value, err
}

func (b *RetryBus) WriteRegister(ctx context.Context, addr uint16, value byte) error {
	return b.do(ctx, "write", addr, func() error {
		return b.bus.WriteRegister(ctx, addr, value)
	})
}

func (b *RetryBus) do(ctx context.Context, op string, addr uint16, fn func() error) error {
	errFactory := errors.New()

	var err error
	for attempt := 0; attempt <= b.retries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errFactory.Wrap(ErrTransport, ctxErr)
		}

		if attempt > 0 {
			b.counters.BusRetry(op)
			b.logger.Debug().
				Str("op", op).
				Str("addr", fmt.Sprintf("0x%04x", addr)).
				Int("attempt", attempt).
				Msg("Retrying register transaction")
		}

		if err = fn(); err == nil {
			return nil
		}
	}

	return errFactory.Wrap(ErrTransport, fmt.Errorf("%s 0x%04x after %d attempts: %w", op, addr, b.retries+1, err))
}

// readPair reads a big-endian 16-bit value split over two registers.
func readPair(ctx context.Context, bus RegisterBus, hi, lo uint16) (uint32, error) {
	h, err := bus.ReadRegister(ctx, hi)
	if err != nil {
		return 0, err
	}

	l, err := bus.ReadRegister(ctx, lo)
	if err != nil {
		return 0, err
	}

	return uint32(h)*256 + uint32(l), nil
}

func writePair(ctx context.Context, bus RegisterBus, hi, lo uint16, value uint32) error {
	if err := bus.WriteRegister(ctx, hi, byte(value>>8)); err != nil {
		return err
	}

	return bus.WriteRegister(ctx, lo, byte(value))
}

// updateBits sets or clears mask in a register with a read-modify-write.
func updateBits(ctx context.Context, bus RegisterBus, addr uint16, mask byte, set bool) error {
	v, err := bus.ReadRegister(ctx, addr)
	if err != nil {
		return err
	}

	if set {
		v |= mask
	} else {
		v &^= mask
	}

	return bus.WriteRegister(ctx, addr, v)
}
