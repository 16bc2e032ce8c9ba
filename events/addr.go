package events

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// ReverseDNS controls best-effort reverse resolution of recorded addresses.
// It costs one name lookup per addressing event.
var ReverseDNS = true

// lookupAddr is swapped out in tests to avoid real reverse DNS.
var lookupAddr = net.LookupAddr

// Minimal port-to-service table. Go has no getservbyport; these cover the
// services worth naming in a trace.
var serviceNames = map[int]string{
	21:   "ftp",
	22:   "ssh",
	25:   "smtp",
	53:   "domain",
	80:   "http",
	110:  "pop3",
	143:  "imap",
	443:  "https",
	993:  "imaps",
	995:  "pop3s",
	3306: "mysql",
	5432: "postgresql",
	6379: "redis",
	8080: "http-alt",
}

// Addr is the recorded form of a socket address: the printable IP and port,
// plus best-effort reverse-resolved host and service names.
type Addr struct {
	IP       string `json:"ip"`
	Port     string `json:"port"`
	Hostname string `json:"hostname,omitempty"`
	Service  string `json:"service,omitempty"`

	sa unix.Sockaddr
}

// NewAddr converts a raw sockaddr into its recorded form. Reverse resolution
// failures are not errors; the fields stay empty.
func NewAddr(sa unix.Sockaddr) Addr {
	a := Addr{sa: sa}
	var ip net.IP
	var port int
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		ip = net.IP(v.Addr[:])
		port = v.Port
	case *unix.SockaddrInet6:
		ip = net.IP(v.Addr[:])
		port = v.Port
	default:
		return a
	}
	a.IP = ip.String()
	a.Port = strconv.Itoa(port)
	a.Service = serviceNames[port]
	if ReverseDNS {
		if names, err := lookupAddr(a.IP); err == nil && len(names) > 0 {
			a.Hostname = names[0]
		}
	}
	return a
}

// Sockaddr returns the raw address this Addr was built from.
func (a Addr) Sockaddr() unix.Sockaddr {
	return a.sa
}

// IsZero reports whether the address is unset.
func (a Addr) IsZero() bool {
	return a.sa == nil
}

// IsIPv6 reports whether the underlying address is an AF_INET6 one.
func (a Addr) IsIPv6() bool {
	_, ok := a.sa.(*unix.SockaddrInet6)
	return ok
}
