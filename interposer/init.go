package interposer

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/tcpsnitch/tcpsnitch/config"
	"github.com/tcpsnitch/tcpsnitch/connections"
	"github.com/tcpsnitch/tcpsnitch/export"
	"github.com/tcpsnitch/tcpsnitch/logger"
	"github.com/tcpsnitch/tcpsnitch/sysinfo"
)

const mainLogFile = "main.log"

var (
	initMu      sync.Mutex
	initialized bool

	cfg    config.Snapshot
	outDir string
	table  = connections.NewTable()

	sys Syscalls = realSyscalls{}
)

// SetSyscalls replaces the kernel entry points. Tests use this to drive the
// engine with a fake.
func SetSyscalls(s Syscalls) {
	sys = s
}

// initialize runs the one-time process setup: configuration snapshot,
// per-process output directory, logging, machine snapshot, export sink.
// Every wrapped entry point calls it; only the first call does work. Any
// failure degrades to in-memory-only collection, it never disables event
// recording.
func initialize() {
	initMu.Lock()
	defer initMu.Unlock()
	if initialized {
		return
	}
	initialized = true

	cfg = config.FromEnv()
	outDir = createLogsDir(cfg.LogDir)
	if outDir == "" {
		logger.Errorf("nothing will be written to file (log, pcap, json)")
	} else if err := logger.Init(filepath.Join(outDir, mainLogFile), cfg.FileLogLevel, cfg.StderrLogLevel); err != nil {
		logger.Errorf("no log file: %v", err)
	}
	sysinfo.LogSnapshot()
	export.Init()
}

// createLogsDir picks the first free numbered directory under base and
// creates it. Returns "" when persistence is unavailable.
func createLogsDir(base string) string {
	if base == "" {
		logger.Errorf("%s not set", config.EnvLogDir)
		return ""
	}
	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		logger.Errorf("%s is not a usable directory: %v", base, err)
		return ""
	}
	for i := 0; ; i++ {
		path := filepath.Join(base, strconv.Itoa(i))
		_, err := os.Stat(path)
		if err == nil {
			continue // Already exists.
		}
		if !os.IsNotExist(err) {
			logger.Errorf("stat %s failed: %v", path, err)
			return ""
		}
		if err := os.Mkdir(path, 0o777); err != nil {
			logger.Errorf("mkdir %s failed: %v", path, err)
			return ""
		}
		return path
	}
}

// Cleanup synthesizes a close for every connection still alive and shuts
// down the export sink. The launcher calls it right before process exit;
// hosts embedding the library directly can defer it.
func Cleanup() {
	logger.Infof("performing library cleanup before end of process")
	for fd := 0; fd < table.Size(); fd++ {
		if table.IsPresent(fd) {
			closeHook(fd, 0, nil, true)
		}
	}
	export.Close()
}

// Reset drops all library state after a fork. The child inherits the
// descriptors but not ownership of the per-connection records: continuing to
// append would interleave two processes' events into one file, so the table
// is dropped without synthesizing events and the next wrapped call
// reinitializes into a fresh per-pid output directory. Known limitation:
// when parent and child keep using a shared descriptor, each trace holds
// only its own partial view of the flow.
func Reset() {
	table.Reset()
	connections.ResetCounter()
	logger.Reset()
	export.Reset()

	initMu.Lock()
	initialized = false
	outDir = ""
	initMu.Unlock()
}
