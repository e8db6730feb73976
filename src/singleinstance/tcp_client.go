package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

const requestTimeout = 2 * time.Second

type tcpClient struct {
	ports PortRange
}

func newTcpClient(r PortRange) Client { return &tcpClient{ports: r.Normalize()} }

func (c *tcpClient) TryRunOnce(ctx context.Context, outputToStdout bool) (bool, string, error) {
	port, ok := findResident(ctx, c.ports, requestTimeout)
	if !ok {
		return false, "", nil
	}
	line := clipboardRequest
	if outputToStdout {
		line = stdoutRequest
	}
	text, err := c.request(residentAddr(port), line, timeoutFrom(ctx, requestTimeout))
	return true, text, err
}

// request sends one request line and reads the status line plus body.
func (c *tcpClient) request(addr, line string, timeout time.Duration) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	if err := writeLine(conn, line); err != nil {
		return "", err
	}
	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	body, _ := io.ReadAll(br)
	switch status {
	case successStatus:
		return string(body), nil
	case errorStatus:
		return "", &ResidentError{Message: string(body)}
	}
	return "", fmt.Errorf("singleinstance: unexpected status %q from %s", status, addr)
}
