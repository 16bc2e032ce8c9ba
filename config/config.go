package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Env keys consumed by the library. The launcher is expected to set at least
// TCPSNITCH_LOG_DIR; everything else has a usable default.
const (
	EnvBytesInterval  = "TCPSNITCH_BYTES_IVAL"
	EnvMicrosInterval = "TCPSNITCH_MICROS_IVAL"
	EnvEventsInterval = "TCPSNITCH_EVENTS_IVAL"
	EnvCapture        = "TCPSNITCH_CAPTURE"
	EnvCaptureDevice  = "TCPSNITCH_DEV"
	EnvLogDir         = "TCPSNITCH_LOG_DIR"
	EnvFileLogLevel   = "TCPSNITCH_FILE_LOG_LEVEL"
	EnvStderrLogLevel = "TCPSNITCH_STDERR_LOG_LEVEL"
)

// Snapshot holds the read-once option set. It is built at init time and never
// mutated afterwards; a fork reset rebuilds a fresh one.
type Snapshot struct {
	// DumpEveryBytes is the lower bound on the byte delta between two
	// tcp_info samples on one connection. 0 disables the byte gate.
	DumpEveryBytes int64
	// DumpEveryMicros is the lower bound on elapsed microseconds between two
	// tcp_info samples. 0 disables the time gate.
	DumpEveryMicros int64
	// DumpEveryEvents is the pending-event count that triggers a JSON flush.
	DumpEveryEvents int
	// CaptureEnabled turns on per-connection pcap capture.
	CaptureEnabled bool
	// CaptureDevice is the capture interface. Empty means default device.
	CaptureDevice string
	// LogDir is the base output directory. Empty means in-memory only mode.
	LogDir string

	FileLogLevel   int
	StderrLogLevel int
}

// FromEnv reads the full option set from the environment. Missing or
// malformed variables keep their defaults.
func FromEnv() Snapshot {
	s := Snapshot{
		DumpEveryBytes:  4096,
		DumpEveryMicros: 0,
		DumpEveryEvents: 1000,
		FileLogLevel:    2,
		StderrLogLevel:  2,
	}
	InitVar(EnvBytesInterval, &s.DumpEveryBytes)
	InitVar(EnvMicrosInterval, &s.DumpEveryMicros)
	InitVar(EnvEventsInterval, &s.DumpEveryEvents)
	InitVar(EnvCapture, &s.CaptureEnabled)
	InitVar(EnvCaptureDevice, &s.CaptureDevice)
	InitVar(EnvLogDir, &s.LogDir)
	InitVar(EnvFileLogLevel, &s.FileLogLevel)
	InitVar(EnvStderrLogLevel, &s.StderrLogLevel)
	if s.DumpEveryEvents <= 0 {
		s.DumpEveryEvents = 1
	}
	return s
}

// InitVar overrides *targetVar with the value of the named env variable when
// it is set and parses cleanly. Unparsable values keep the default.
func InitVar(envVarName string, targetVar interface{}) {
	envVar := os.Getenv(envVarName)
	if len(envVar) == 0 {
		return
	}
	switch v := targetVar.(type) {
	case *bool:
		*v = strings.EqualFold(envVar, "true") || envVar == "1"
	case *string:
		*v = envVar
	case *int:
		temp, err := strconv.Atoi(envVar)
		if err == nil {
			*v = temp
		}
	case *int64:
		temp, err := strconv.ParseInt(envVar, 10, 64)
		if err == nil {
			*v = temp
		}
	case *time.Duration:
		temp, err := time.ParseDuration(envVar)
		if err == nil {
			*v = temp
		}
	default:
		log.Printf("unsupported type for %s: %T\n", envVarName, v)
	}
}
