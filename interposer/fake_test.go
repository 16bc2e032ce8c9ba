package interposer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/tcpsnitch/tcpsnitch/config"
	"github.com/tcpsnitch/tcpsnitch/connections"
	"github.com/tcpsnitch/tcpsnitch/events"
)

// fakeSyscalls drives the engine without touching the kernel. Data calls
// report the full nominal count as moved; error fields inject failures.
type fakeSyscalls struct {
	fd         int
	socketErr  error
	bindErr    error
	connectErr error
	closeErr   error
	tcpInfo    *unix.TCPInfo
	tcpInfoErr error
	sockname   unix.Sockaddr
	forkPid    int

	// bindFailures makes that many leading Bind calls fail with EADDRINUSE.
	bindFailures int

	bindCalls []unix.Sockaddr
}

func (f *fakeSyscalls) Socket(domain, typ, protocol int) (int, error) {
	return f.fd, f.socketErr
}

func (f *fakeSyscalls) Bind(fd int, sa unix.Sockaddr) error {
	f.bindCalls = append(f.bindCalls, sa)
	if f.bindFailures > 0 {
		f.bindFailures--
		return unix.EADDRINUSE
	}
	return f.bindErr
}

func (f *fakeSyscalls) Connect(fd int, sa unix.Sockaddr) error { return f.connectErr }
func (f *fakeSyscalls) Shutdown(fd, how int) error             { return nil }
func (f *fakeSyscalls) Listen(fd, backlog int) error           { return nil }

func (f *fakeSyscalls) SetsockoptInt(fd, level, optname, value int) error { return nil }

func (f *fakeSyscalls) Send(fd int, p []byte, flags int) (int, error) { return len(p), nil }
func (f *fakeSyscalls) Recv(fd int, p []byte, flags int) (int, error) { return len(p), nil }

func (f *fakeSyscalls) Sendto(fd int, p []byte, flags int, to unix.Sockaddr) (int, error) {
	return len(p), nil
}

func (f *fakeSyscalls) Recvfrom(fd int, p []byte, flags int) (int, unix.Sockaddr, error) {
	return len(p), f.sockname, nil
}

func (f *fakeSyscalls) Sendmsg(fd int, bufs [][]byte, oob []byte, to unix.Sockaddr, flags int) (int, error) {
	return totalLen(bufs), nil
}

func (f *fakeSyscalls) Recvmsg(fd int, bufs [][]byte, oob []byte, flags int) (int, unix.Sockaddr, error) {
	return totalLen(bufs), f.sockname, nil
}

func (f *fakeSyscalls) Write(fd int, p []byte) (int, error) { return len(p), nil }
func (f *fakeSyscalls) Read(fd int, p []byte) (int, error)  { return len(p), nil }

func (f *fakeSyscalls) Close(fd int) error { return f.closeErr }

func (f *fakeSyscalls) Writev(fd int, bufs [][]byte) (int, error) { return totalLen(bufs), nil }
func (f *fakeSyscalls) Readv(fd int, bufs [][]byte) (int, error)  { return totalLen(bufs), nil }

func (f *fakeSyscalls) Getsockname(fd int) (unix.Sockaddr, error) {
	if f.sockname == nil {
		return nil, unix.EBADF
	}
	return f.sockname, nil
}

func (f *fakeSyscalls) TCPInfo(fd int) (*unix.TCPInfo, error) { return f.tcpInfo, f.tcpInfoErr }

func (f *fakeSyscalls) Fork() (int, error) { return f.forkPid, nil }

func totalLen(bufs [][]byte) int {
	n := 0
	for _, b := range bufs {
		n += len(b)
	}
	return n
}

// setupTest wires a fake into a fresh engine writing under a temp directory.
// Sampling and capture are off unless the test turns them on.
func setupTest(t *testing.T, fake *fakeSyscalls) string {
	t.Helper()
	base := t.TempDir()
	t.Setenv(config.EnvLogDir, base)
	t.Setenv(config.EnvCapture, "false")
	t.Setenv(config.EnvBytesInterval, "1000000")
	t.Setenv(config.EnvMicrosInterval, "0")
	t.Setenv(config.EnvEventsInterval, "")
	t.Setenv(config.EnvFileLogLevel, "0")
	t.Setenv(config.EnvStderrLogLevel, "0")

	events.ReverseDNS = false
	SetSyscalls(fake)
	Reset()
	t.Cleanup(func() {
		Reset()
		SetSyscalls(realSyscalls{})
		events.ReverseDNS = true
	})
	return base
}

// readEvents parses the finalized events.json of one connection.
func readEvents(t *testing.T, base string, run, conID int) []map[string]interface{} {
	t.Helper()
	path := filepath.Join(base, strconv.Itoa(run), strconv.Itoa(conID), connections.EventsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var evs []map[string]interface{}
	if err := json.Unmarshal(data, &evs); err != nil {
		t.Fatalf("%s is not one JSON array: %v\n%s", path, err, data)
	}
	return evs
}

func eventTypes(evs []map[string]interface{}) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i], _ = ev["type"].(string)
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
