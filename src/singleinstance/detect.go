package singleinstance

import (
	"bufio"
	"context"
	"net"
	"time"
)

const pingTimeout = 300 * time.Millisecond

// DetectResidentPort returns the first port in r whose listener answers PING.
func DetectResidentPort(ctx context.Context, r PortRange) (int, bool) {
	return findResident(ctx, r, pingTimeout)
}

func findResident(ctx context.Context, r PortRange, fallback time.Duration) (int, bool) {
	timeout := timeoutFrom(ctx, fallback)
	r = r.Normalize()
	for port := r.Start; port <= r.End; port++ {
		if ctx.Err() != nil {
			return 0, false
		}
		if ping(residentAddr(port), timeout) {
			return port, true
		}
	}
	return 0, false
}

func timeoutFrom(ctx context.Context, fallback time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return fallback
}

func ping(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if err := writeLine(conn, pingRequest); err != nil {
		return false
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && resp == pongResponse
}

func writeLine(conn net.Conn, line string) error {
	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(line); err != nil {
		return err
	}
	return w.Flush()
}
