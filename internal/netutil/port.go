// Package netutil picks the console's listen address.
package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
)

// ErrNoAddr is returned when neither the preferred address nor any
// candidate can be bound.
var ErrNoAddr = errors.New("no available bind address")

// Listen binds the preferred address, or the first free candidate when
// fallback is enabled. The returned listener is already bound, so the
// address cannot be taken between selection and serving.
func Listen(preferred string, candidates []string, fallback bool) (net.Listener, error) {
	if preferred != "" {
		ln, err := net.Listen("tcp", preferred)
		if err == nil {
			return ln, nil
		}
		if !fallback {
			return nil, fmt.Errorf("preferred bind address unavailable: %s: %w", preferred, err)
		}
		slog.Warn("preferred bind address unavailable; trying candidates", "addr", preferred, "error", err)
	}

	for _, addr := range candidates {
		if addr == preferred {
			continue
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			slog.Debug("bind candidate unavailable", "addr", addr, "error", err)
			continue
		}
		return ln, nil
	}
	return nil, ErrNoAddr
}
