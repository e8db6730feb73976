package singleinstance

import (
	"net"
	"strconv"
)

const (
	minPort = 1024
	maxPort = 65535
)

// PortRange is the inclusive loopback range shared by the resident and its
// clients. The resident binds Start; clients scan Start..End.
type PortRange struct {
	Start int
	End   int
}

// Normalize clamps both bounds to [1024, 65535] and orders them.
func (r PortRange) Normalize() PortRange {
	start, end := clampPort(r.Start), clampPort(r.End)
	if end < start {
		start, end = end, start
	}
	return PortRange{Start: start, End: end}
}

func residentAddr(port int) string {
	return net.JoinHostPort(residentHost, strconv.Itoa(port))
}

func clampPort(p int) int {
	switch {
	case p < minPort:
		return minPort
	case p > maxPort:
		return maxPort
	}
	return p
}
