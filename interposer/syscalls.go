package interposer

import "golang.org/x/sys/unix"

// Syscalls is the set of real kernel entry points the interposer wraps.
// The production implementation goes straight to the kernel; tests swap in
// a fake to drive the engine deterministically.
type Syscalls interface {
	Socket(domain, typ, protocol int) (int, error)
	Bind(fd int, sa unix.Sockaddr) error
	Connect(fd int, sa unix.Sockaddr) error
	Shutdown(fd, how int) error
	Listen(fd, backlog int) error
	SetsockoptInt(fd, level, optname, value int) error
	Send(fd int, p []byte, flags int) (int, error)
	Recv(fd int, p []byte, flags int) (int, error)
	Sendto(fd int, p []byte, flags int, to unix.Sockaddr) (int, error)
	Recvfrom(fd int, p []byte, flags int) (int, unix.Sockaddr, error)
	Sendmsg(fd int, bufs [][]byte, oob []byte, to unix.Sockaddr, flags int) (int, error)
	Recvmsg(fd int, bufs [][]byte, oob []byte, flags int) (int, unix.Sockaddr, error)
	Write(fd int, p []byte) (int, error)
	Read(fd int, p []byte) (int, error)
	Close(fd int) error
	Writev(fd int, bufs [][]byte) (int, error)
	Readv(fd int, bufs [][]byte) (int, error)
	Getsockname(fd int) (unix.Sockaddr, error)
	TCPInfo(fd int) (*unix.TCPInfo, error)
	Fork() (int, error)
}

// realSyscalls forwards to the kernel. Where x/sys drops the byte count of
// the send family, the sendmsg-based equivalents are used so the true return
// value can be recorded.
type realSyscalls struct{}

func (realSyscalls) Socket(domain, typ, protocol int) (int, error) {
	return unix.Socket(domain, typ, protocol)
}

func (realSyscalls) Bind(fd int, sa unix.Sockaddr) error {
	return unix.Bind(fd, sa)
}

func (realSyscalls) Connect(fd int, sa unix.Sockaddr) error {
	return unix.Connect(fd, sa)
}

func (realSyscalls) Shutdown(fd, how int) error {
	return unix.Shutdown(fd, how)
}

func (realSyscalls) Listen(fd, backlog int) error {
	return unix.Listen(fd, backlog)
}

func (realSyscalls) SetsockoptInt(fd, level, optname, value int) error {
	return unix.SetsockoptInt(fd, level, optname, value)
}

func (realSyscalls) Send(fd int, p []byte, flags int) (int, error) {
	return unix.SendmsgN(fd, p, nil, nil, flags)
}

func (realSyscalls) Recv(fd int, p []byte, flags int) (int, error) {
	n, _, err := unix.Recvfrom(fd, p, flags)
	return n, err
}

func (realSyscalls) Sendto(fd int, p []byte, flags int, to unix.Sockaddr) (int, error) {
	return unix.SendmsgN(fd, p, nil, to, flags)
}

func (realSyscalls) Recvfrom(fd int, p []byte, flags int) (int, unix.Sockaddr, error) {
	return unix.Recvfrom(fd, p, flags)
}

func (realSyscalls) Sendmsg(fd int, bufs [][]byte, oob []byte, to unix.Sockaddr, flags int) (int, error) {
	return unix.SendmsgBuffers(fd, bufs, oob, to, flags)
}

func (realSyscalls) Recvmsg(fd int, bufs [][]byte, oob []byte, flags int) (int, unix.Sockaddr, error) {
	n, _, _, from, err := unix.RecvmsgBuffers(fd, bufs, oob, flags)
	return n, from, err
}

func (realSyscalls) Write(fd int, p []byte) (int, error) {
	return unix.Write(fd, p)
}

func (realSyscalls) Read(fd int, p []byte) (int, error) {
	return unix.Read(fd, p)
}

func (realSyscalls) Close(fd int) error {
	return unix.Close(fd)
}

func (realSyscalls) Writev(fd int, bufs [][]byte) (int, error) {
	return unix.Writev(fd, bufs)
}

func (realSyscalls) Readv(fd int, bufs [][]byte) (int, error) {
	return unix.Readv(fd, bufs)
}

func (realSyscalls) Getsockname(fd int) (unix.Sockaddr, error) {
	return unix.Getsockname(fd)
}

func (realSyscalls) TCPInfo(fd int) (*unix.TCPInfo, error) {
	return unix.GetsockoptTCPInfo(fd, unix.IPPROTO_TCP, unix.TCP_INFO)
}

// Fork is clone(SIGCHLD), the fork equivalent that exists on every Linux
// architecture.
func (realSyscalls) Fork() (int, error) {
	pid, _, errno := unix.Syscall(unix.SYS_CLONE, uintptr(unix.SIGCHLD), 0, 0)
	if errno != 0 {
		return -1, errno
	}
	return int(pid), nil
}
