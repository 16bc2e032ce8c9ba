// Package interposer wraps the socket entry points of the kernel API and
// records a structured per-connection event timeline as the host uses them.
// Each replacement invokes the real entry point with unchanged arguments,
// hands the outcome to a post-hook, and returns the true result: nothing the
// library does ever surfaces into the host's return path.
package interposer

import "golang.org/x/sys/unix"

func retOf(n int, err error) int {
	if err != nil {
		return -1
	}
	return n
}

func retErr(err error) int {
	if err != nil {
		return -1
	}
	return 0
}

// Socket opens a socket and, for TCP descriptors, starts tracking a fresh
// connection.
func Socket(domain, typ, protocol int) (int, error) {
	initialize()
	fd, err := sys.Socket(domain, typ, protocol)
	if err == nil && tracked(domain, typ) {
		socketHook(fd, domain, typ, protocol)
	}
	return fd, err
}

func Bind(fd int, sa unix.Sockaddr) error {
	initialize()
	err := sys.Bind(fd, sa)
	bindHook(fd, retErr(err), err, sa)
	return err
}

func Connect(fd int, sa unix.Sockaddr) error {
	initialize()
	err := sys.Connect(fd, sa)
	connectHook(fd, retErr(err), err, sa)
	return err
}

func Shutdown(fd, how int) error {
	initialize()
	err := sys.Shutdown(fd, how)
	shutdownHook(fd, retErr(err), err, how)
	return err
}

func Listen(fd, backlog int) error {
	initialize()
	err := sys.Listen(fd, backlog)
	listenHook(fd, retErr(err), err, backlog)
	return err
}

func SetsockoptInt(fd, level, optname, value int) error {
	initialize()
	err := sys.SetsockoptInt(fd, level, optname, value)
	setsockoptHook(fd, retErr(err), err, level, optname)
	return err
}

// The data-transfer family records the nominal byte count the host asked
// for, not the possibly short count the kernel moved; the recorded return
// value keeps the true outcome.

func Send(fd int, p []byte, flags int) (int, error) {
	initialize()
	n, err := sys.Send(fd, p, flags)
	sendHook(fd, retOf(n, err), err, int64(len(p)), flags)
	return n, err
}

func Recv(fd int, p []byte, flags int) (int, error) {
	initialize()
	n, err := sys.Recv(fd, p, flags)
	recvHook(fd, retOf(n, err), err, int64(len(p)), flags)
	return n, err
}

func Sendto(fd int, p []byte, flags int, to unix.Sockaddr) (int, error) {
	initialize()
	n, err := sys.Sendto(fd, p, flags, to)
	sendtoHook(fd, retOf(n, err), err, int64(len(p)), flags, to)
	return n, err
}

func Recvfrom(fd int, p []byte, flags int) (int, unix.Sockaddr, error) {
	initialize()
	n, from, err := sys.Recvfrom(fd, p, flags)
	recvfromHook(fd, retOf(n, err), err, int64(len(p)), flags, from)
	return n, from, err
}

func Sendmsg(fd int, bufs [][]byte, oob []byte, to unix.Sockaddr, flags int) (int, error) {
	initialize()
	n, err := sys.Sendmsg(fd, bufs, oob, to, flags)
	sendmsgHook(fd, retOf(n, err), err, bufs, oob, to, flags)
	return n, err
}

func Recvmsg(fd int, bufs [][]byte, oob []byte, flags int) (int, unix.Sockaddr, error) {
	initialize()
	n, from, err := sys.Recvmsg(fd, bufs, oob, flags)
	recvmsgHook(fd, retOf(n, err), err, bufs, oob, from, flags)
	return n, from, err
}

func Write(fd int, p []byte) (int, error) {
	initialize()
	n, err := sys.Write(fd, p)
	writeHook(fd, retOf(n, err), err, int64(len(p)))
	return n, err
}

func Read(fd int, p []byte) (int, error) {
	initialize()
	n, err := sys.Read(fd, p)
	readHook(fd, retOf(n, err), err, int64(len(p)))
	return n, err
}

func Writev(fd int, bufs [][]byte) (int, error) {
	initialize()
	n, err := sys.Writev(fd, bufs)
	writevHook(fd, retOf(n, err), err, bufs)
	return n, err
}

func Readv(fd int, bufs [][]byte) (int, error) {
	initialize()
	n, err := sys.Readv(fd, bufs)
	readvHook(fd, retOf(n, err), err, bufs)
	return n, err
}

func Close(fd int) error {
	initialize()
	err := sys.Close(fd)
	closeHook(fd, retErr(err), err, false)
	return err
}

// Fork forwards to the real fork and resets all library state in the child
// before it runs anything else: inherited connection records belong to the
// parent, and appending to them would interleave two processes' events.
func Fork() (int, error) {
	initialize()
	pid, err := sys.Fork()
	if err == nil && pid == 0 {
		Reset()
	}
	return pid, err
}
