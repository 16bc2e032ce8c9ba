package logger

import (
	"fmt"
	"log"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Verbosity levels for both sinks. 0 silences a sink entirely.
const (
	LevelSilent = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

// The launcher dups the library's own stderr onto descriptor 4 so that the
// host program's stream stays clean. It announces the redirection through
// TCPSNITCH_ALT_STDIO; without it the regular stderr is used.
const (
	stderrFd    = 4
	envAltStdio = "TCPSNITCH_ALT_STDIO"
)

var (
	mu          sync.Mutex
	fileSink    *log.Logger
	stderrSink  *log.Logger
	logFile     *os.File
	fileLevel   = LevelSilent
	stderrLevel = LevelWarn
)

func init() {
	stderrSink = log.New(stderrStream(), "tcpsnitch ", log.LstdFlags|log.Lmicroseconds)
}

func stderrStream() *os.File {
	if os.Getenv(envAltStdio) != "true" {
		return os.Stderr
	}
	if _, err := unix.FcntlInt(uintptr(stderrFd), unix.F_GETFD, 0); err == nil {
		return os.NewFile(stderrFd, "tcpsnitch-stderr")
	}
	return os.Stderr
}

// Init points the file sink at path and sets both verbosity levels. An empty
// path disables the file sink. Calling Init again replaces the previous file.
func Init(path string, fLevel, sLevel int) error {
	mu.Lock()
	defer mu.Unlock()

	fileLevel, stderrLevel = fLevel, sLevel
	if logFile != nil {
		logFile.Close()
		logFile = nil
		fileSink = nil
	}
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	logFile = f
	fileSink = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
	return nil
}

// Reset drops the file sink and restores default levels, for post-fork use.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
		fileSink = nil
	}
	fileLevel = LevelSilent
	stderrLevel = LevelWarn
}

func output(level int, tag, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	msg := tag + " " + fmt.Sprintf(format, args...)
	if fileSink != nil && level <= fileLevel {
		fileSink.Print(msg)
	}
	if stderrSink != nil && level <= stderrLevel {
		stderrSink.Print(msg)
	}
}

func Errorf(format string, args ...interface{}) {
	output(LevelError, "ERROR", format, args...)
}

func Warnf(format string, args ...interface{}) {
	output(LevelWarn, "WARN", format, args...)
}

func Infof(format string, args ...interface{}) {
	output(LevelInfo, "INFO", format, args...)
}

func Debugf(format string, args ...interface{}) {
	output(LevelDebug, "DEBUG", format, args...)
}

func Tracef(format string, args ...interface{}) {
	output(LevelTrace, "TRACE", format, args...)
}
