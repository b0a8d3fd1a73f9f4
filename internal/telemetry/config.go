package telemetry

import (
	"net"

	"codeberg.org/mutker/sensorctl/internal/errors"
)

const (
	defaultNamespace = "sensorctl"
	defaultPath      = "/metrics"
)

type Config struct {
	Namespace string
	// Listen is the address the /metrics endpoint binds to. Empty disables it.
	Listen string
	Path   string
}

func DefaultConfig() Config {
	return Config{
		Namespace: defaultNamespace,
		Path:      defaultPath,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Namespace == "" {
		return errFactory.WithData(ErrInvalidConfig, "empty namespace")
	}

	if c.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			return errFactory.Wrap(ErrInvalidListen, err)
		}
	}

	return nil
}
