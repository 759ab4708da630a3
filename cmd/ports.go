package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

const maxPort = 65535

var errNoFreePort = errors.New("no free port")

// probePort returns the first port from start that can be bound, trying at
// most attempts ports
func probePort(start, attempts int) (int, error) {
	if attempts < 1 {
		attempts = 1
	}
	last := start + attempts - 1
	if last > maxPort {
		last = maxPort
	}
	for port := start; port <= last; port++ {
		l, err := net.Listen("tcp", ":"+strconv.Itoa(port))
		if err != nil {
			continue
		}
		l.Close()
		return port, nil
	}
	return 0, fmt.Errorf("%w in %d-%d", errNoFreePort, start, last)
}

// awaitListener dials addr until it accepts a connection, ctx is done or
// timeout passes
func awaitListener(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn.Close()
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not accepting connections: %w", addr, ctx.Err())
		case <-tick.C:
		}
	}
}
