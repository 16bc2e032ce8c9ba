package interposer

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tcpsnitch/tcpsnitch/capture"
	"github.com/tcpsnitch/tcpsnitch/connections"
	"github.com/tcpsnitch/tcpsnitch/events"
	"github.com/tcpsnitch/tcpsnitch/logger"
)

const sockTypeMask = 0xf

// tracked reports whether a socket() call opens a descriptor we record:
// only TCP over IPv4/IPv6.
func tracked(domain, typ int) bool {
	if domain != unix.AF_INET && domain != unix.AF_INET6 {
		return false
	}
	return typ&sockTypeMask == unix.SOCK_STREAM
}

// record is the shared post-hook shape: borrow the connection under its slot
// lock, build the event with the next dense id, let fill populate the
// variant payload and counters, append, flush when due, release the lock,
// then synthesize a tcp_info sample outside the lock when both gates pass.
func record(fd int, t events.Type, rv int, callErr error, fill func(*connections.Connection, *events.Event)) {
	con := table.GetAndLock(fd)
	if con == nil {
		logger.Debugf("%s on untracked descriptor %d", t, fd)
		return
	}
	logger.Tracef("%s on connection %d", t, con.ID)

	ev := events.New(t, con.EventsCount, rv, callErr)
	fill(con, ev)
	con.Append(ev)

	sampleInfo := t != events.TypeTCPInfo && con.ShouldSampleTCPInfo(cfg)
	if con.ShouldFlush(cfg) {
		con.Flush(false)
	}
	table.Unlock(fd)

	if sampleInfo {
		sampleTCPInfo(fd)
	}
}

// sampleTCPInfo queries the kernel and records a tcp_info event. A failed
// query still yields an event carrying the error. The sample itself never
// triggers another sample.
func sampleTCPInfo(fd int) {
	info, err := sys.TCPInfo(fd)
	rv := 0
	if err != nil {
		rv = -1
	}
	record(fd, events.TypeTCPInfo, rv, err, func(con *connections.Connection, ev *events.Event) {
		ev.Details = events.NewTCPInfoDetails(info)
		con.LastInfoDumpBytes = con.BytesSent + con.BytesReceived
		con.LastInfoDumpMicros = time.Now().UnixMicro()
		if info != nil {
			con.RTT = info.Rtt
		}
	})
}

func socketHook(fd, domain, typ, protocol int) {
	// A still-present record means the host lost this descriptor without a
	// close we could observe. Retire it before starting over.
	if table.IsPresent(fd) {
		logger.Warnf("descriptor %d reused while still tracked, synthesizing close", fd)
		closeHook(fd, 0, nil, true)
	}

	con := connections.New(outDir)
	if err := table.Put(fd, con); err != nil {
		logger.Errorf("cannot track descriptor %d: %v", fd, err)
		return
	}
	record(fd, events.TypeSocket, fd, nil, func(_ *connections.Connection, ev *events.Event) {
		ev.Details = events.SocketDetails{
			Domain:       domain,
			Type:         typ & sockTypeMask,
			Protocol:     protocol,
			SockCloexec:  typ&unix.SOCK_CLOEXEC != 0,
			SockNonblock: typ&unix.SOCK_NONBLOCK != 0,
		}
	})
}

func bindHook(fd, rv int, callErr error, sa unix.Sockaddr) {
	record(fd, events.TypeBind, rv, callErr, func(con *connections.Connection, ev *events.Event) {
		addr := events.NewAddr(sa)
		ev.Details = events.BindDetails{Addr: addr, ForceBind: con.ForceBind}
		if rv == 0 {
			con.Bound = true
			con.BoundAddr = addr
		}
	})
}

func connectHook(fd, rv int, callErr error, sa unix.Sockaddr) {
	record(fd, events.TypeConnect, rv, callErr, func(_ *connections.Connection, ev *events.Event) {
		ev.Details = events.ConnectDetails{Addr: events.NewAddr(sa)}
	})
	// The peer address is now known; this is where a capture session can
	// attach. EINPROGRESS is a non-blocking connect underway, not a failure.
	if cfg.CaptureEnabled && (callErr == nil || errors.Is(callErr, unix.EINPROGRESS)) {
		startCapture(fd, events.NewAddr(sa))
	}
}

func shutdownHook(fd, rv int, callErr error, how int) {
	record(fd, events.TypeShutdown, rv, callErr, func(_ *connections.Connection, ev *events.Event) {
		ev.Details = events.ShutdownDetails{
			ShutRd: how == unix.SHUT_RD || how == unix.SHUT_RDWR,
			ShutWr: how == unix.SHUT_WR || how == unix.SHUT_RDWR,
		}
	})
}

func listenHook(fd, rv int, callErr error, backlog int) {
	record(fd, events.TypeListen, rv, callErr, func(_ *connections.Connection, ev *events.Event) {
		ev.Details = events.ListenDetails{Backlog: backlog}
	})
}

func setsockoptHook(fd, rv int, callErr error, level, optname int) {
	record(fd, events.TypeSetsockopt, rv, callErr, func(_ *connections.Connection, ev *events.Event) {
		ev.Details = events.NewSetsockoptDetails(level, optname)
	})
}

func sendHook(fd, rv int, callErr error, bytes int64, flags int) {
	record(fd, events.TypeSend, rv, callErr, func(con *connections.Connection, ev *events.Event) {
		ev.Details = events.SendDetails{Bytes: bytes, Flags: events.DecodeSendFlags(flags)}
		con.BytesSent += bytes
	})
}

func recvHook(fd, rv int, callErr error, bytes int64, flags int) {
	record(fd, events.TypeRecv, rv, callErr, func(con *connections.Connection, ev *events.Event) {
		ev.Details = events.RecvDetails{Bytes: bytes, Flags: events.DecodeRecvFlags(flags)}
		con.BytesReceived += bytes
	})
}

func sendtoHook(fd, rv int, callErr error, bytes int64, flags int, to unix.Sockaddr) {
	record(fd, events.TypeSendto, rv, callErr, func(con *connections.Connection, ev *events.Event) {
		ev.Details = events.SendtoDetails{
			Bytes: bytes,
			Flags: events.DecodeSendFlags(flags),
			Addr:  events.NewAddr(to),
		}
		con.BytesSent += bytes
	})
}

func recvfromHook(fd, rv int, callErr error, bytes int64, flags int, from unix.Sockaddr) {
	record(fd, events.TypeRecvfrom, rv, callErr, func(con *connections.Connection, ev *events.Event) {
		ev.Details = events.RecvfromDetails{
			Bytes: bytes,
			Flags: events.DecodeRecvFlags(flags),
			Addr:  events.NewAddr(from),
		}
		con.BytesReceived += bytes
	})
}

func sendmsgHook(fd, rv int, callErr error, bufs [][]byte, oob []byte, to unix.Sockaddr, flags int) {
	record(fd, events.TypeSendmsg, rv, callErr, func(con *connections.Connection, ev *events.Event) {
		iov, total := events.NewIovec(bufs)
		msghdr := events.Msghdr{ControlData: len(oob) > 0, Iovec: iov}
		if to != nil {
			addr := events.NewAddr(to)
			msghdr.Addr = &addr
		}
		ev.Details = events.SendmsgDetails{Bytes: total, Flags: events.DecodeSendFlags(flags), Msghdr: msghdr}
		con.BytesSent += total
	})
}

func recvmsgHook(fd, rv int, callErr error, bufs [][]byte, oob []byte, from unix.Sockaddr, flags int) {
	record(fd, events.TypeRecvmsg, rv, callErr, func(con *connections.Connection, ev *events.Event) {
		iov, total := events.NewIovec(bufs)
		msghdr := events.Msghdr{ControlData: len(oob) > 0, Iovec: iov}
		if from != nil {
			addr := events.NewAddr(from)
			msghdr.Addr = &addr
		}
		ev.Details = events.RecvmsgDetails{Bytes: total, Flags: events.DecodeRecvFlags(flags), Msghdr: msghdr}
		con.BytesReceived += total
	})
}

func writeHook(fd, rv int, callErr error, bytes int64) {
	record(fd, events.TypeWrite, rv, callErr, func(con *connections.Connection, ev *events.Event) {
		ev.Details = events.WriteDetails{Bytes: bytes}
		con.BytesSent += bytes
	})
}

func readHook(fd, rv int, callErr error, bytes int64) {
	record(fd, events.TypeRead, rv, callErr, func(con *connections.Connection, ev *events.Event) {
		ev.Details = events.ReadDetails{Bytes: bytes}
		con.BytesReceived += bytes
	})
}

func writevHook(fd, rv int, callErr error, bufs [][]byte) {
	record(fd, events.TypeWritev, rv, callErr, func(con *connections.Connection, ev *events.Event) {
		iov, total := events.NewIovec(bufs)
		ev.Details = events.WritevDetails{Bytes: total, Iovec: iov}
		con.BytesSent += total
	})
}

func readvHook(fd, rv int, callErr error, bufs [][]byte) {
	record(fd, events.TypeReadv, rv, callErr, func(con *connections.Connection, ev *events.Event) {
		iov, total := events.NewIovec(bufs)
		ev.Details = events.ReadvDetails{Bytes: total, Iovec: iov}
		con.BytesReceived += total
	})
}

// closeHook drives the terminal path: the record leaves the table first, the
// capture worker is stopped (delayed past the teardown packets), the close
// event is appended and the JSON array is finalized. detected marks closes
// the library synthesized itself.
func closeHook(fd, rv int, callErr error, detected bool) {
	con := table.Remove(fd)
	if con == nil {
		logger.Debugf("close on untracked descriptor %d", fd)
		return
	}
	logger.Infof("close on connection %d", con.ID)

	ev := events.New(events.TypeClose, con.EventsCount, rv, callErr)
	ev.Details = events.CloseDetails{Detected: detected}

	if con.Capture != nil {
		con.Capture.Stop(2 * time.Duration(con.RTT) * time.Microsecond)
		con.Capture = nil
	}

	con.Append(ev)
	con.Flush(true)
}

// Ephemeral port range scanned by the forced bind, matching the kernel's
// net.ipv4.ip_local_port_range default.
const (
	minEphemeralPort = 32768
	maxEphemeralPort = 60999
)

// startCapture is the packet-capture coordinator. It runs after the event
// that revealed the peer address. When the host never bound the socket, a
// bind is forced first so the filter can pin the local port; that bind goes
// through the wrapped entry point and must therefore happen with the slot
// lock released.
func startCapture(fd int, peer events.Addr) {
	con := table.GetAndLock(fd)
	if con == nil {
		return
	}
	if con.Capture != nil || con.Directory == "" {
		table.Unlock(fd)
		return
	}

	if !con.Bound {
		con.ForceBind = true
		ipv6 := peer.IsIPv6()
		table.Unlock(fd)
		if err := forceBind(fd, ipv6); err != nil {
			logger.Infof("forced bind failed (%v), filter dest IP/port only", err)
		}
		if con = table.GetAndLock(fd); con == nil {
			return
		}
	}

	var local *events.Addr
	if con.Bound {
		// The kernel may have picked the port (host bind to port 0); ask for
		// the effective address.
		if sa, err := sys.Getsockname(fd); err == nil {
			con.BoundAddr = events.NewAddr(sa)
		}
		addr := con.BoundAddr
		local = &addr
	}

	filter := capture.BuildFilter(peer, local)
	pcapPath := filepath.Join(con.Directory, connections.PcapFile)
	session, err := capture.Start(cfg.CaptureDevice, filter, pcapPath)
	if err != nil {
		logger.Errorf("no capture for connection %d: %v", con.ID, err)
	} else {
		con.Capture = session
	}
	table.Unlock(fd)
}

// forceBind walks the ephemeral range until a port takes, retrying only on
// EADDRINUSE. Each attempt is an observed bind event.
func forceBind(fd int, ipv6 bool) error {
	for port := minEphemeralPort; port <= maxEphemeralPort; port++ {
		var sa unix.Sockaddr
		if ipv6 {
			sa = &unix.SockaddrInet6{Port: port}
		} else {
			sa = &unix.SockaddrInet4{Port: port}
		}
		err := Bind(fd, sa)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EADDRINUSE) {
			return err
		}
	}
	return fmt.Errorf("ephemeral port range %d-%d exhausted", minEphemeralPort, maxEphemeralPort)
}
