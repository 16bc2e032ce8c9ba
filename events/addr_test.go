package events

import (
	"testing"

	"golang.org/x/sys/unix"
)

func withFakeDNS(t *testing.T, names []string) {
	orig := lookupAddr
	lookupAddr = func(string) ([]string, error) { return names, nil }
	t.Cleanup(func() { lookupAddr = orig })
}

func TestNewAddrInet4(t *testing.T) {
	withFakeDNS(t, []string{"web.example.net."})
	sa := &unix.SockaddrInet4{Port: 443, Addr: [4]byte{93, 184, 216, 34}}
	a := NewAddr(sa)
	if a.IP != "93.184.216.34" {
		t.Errorf("ip: got %q", a.IP)
	}
	if a.Port != "443" {
		t.Errorf("port: got %q", a.Port)
	}
	if a.Service != "https" {
		t.Errorf("service: got %q", a.Service)
	}
	if a.Hostname != "web.example.net." {
		t.Errorf("hostname: got %q", a.Hostname)
	}
	if a.IsZero() || a.IsIPv6() {
		t.Errorf("classification wrong: zero=%v ipv6=%v", a.IsZero(), a.IsIPv6())
	}
	if a.Sockaddr() != unix.Sockaddr(sa) {
		t.Error("raw sockaddr not preserved")
	}
}

func TestNewAddrInet6(t *testing.T) {
	withFakeDNS(t, nil)
	sa := &unix.SockaddrInet6{Port: 8080}
	sa.Addr[15] = 1 // ::1
	a := NewAddr(sa)
	if a.IP != "::1" {
		t.Errorf("ip: got %q", a.IP)
	}
	if a.Port != "8080" {
		t.Errorf("port: got %q", a.Port)
	}
	if !a.IsIPv6() {
		t.Error("IsIPv6 false for an AF_INET6 address")
	}
}

func TestNewAddrReverseDNSDisabled(t *testing.T) {
	ReverseDNS = false
	t.Cleanup(func() { ReverseDNS = true })
	lookupCalled := false
	orig := lookupAddr
	lookupAddr = func(string) ([]string, error) {
		lookupCalled = true
		return []string{"x."}, nil
	}
	t.Cleanup(func() { lookupAddr = orig })

	a := NewAddr(&unix.SockaddrInet4{Port: 80, Addr: [4]byte{10, 0, 0, 1}})
	if lookupCalled {
		t.Error("reverse lookup ran while disabled")
	}
	if a.Hostname != "" {
		t.Errorf("hostname set while disabled: %q", a.Hostname)
	}
}

func TestNewAddrUnknownFamily(t *testing.T) {
	a := NewAddr(&unix.SockaddrUnix{Name: "/tmp/sock"})
	if a.IP != "" || a.Port != "" || a.Hostname != "" {
		t.Errorf("fields set for non-IP sockaddr: %+v", a)
	}
	var zero Addr
	if !zero.IsZero() {
		t.Error("zero Addr should report IsZero")
	}
}
