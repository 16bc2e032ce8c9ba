package connections

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tcpsnitch/tcpsnitch/config"
	"github.com/tcpsnitch/tcpsnitch/events"
)

func TestNewNumbersConnections(t *testing.T) {
	ResetCounter()
	base := t.TempDir()
	first := New(base)
	second := New(base)
	if first.ID != 0 || second.ID != 1 {
		t.Errorf("ids: got %d,%d want 0,1", first.ID, second.ID)
	}
	if first.Directory != filepath.Join(base, "0") {
		t.Errorf("directory: got %q", first.Directory)
	}
	if info, err := os.Stat(second.Directory); err != nil || !info.IsDir() {
		t.Errorf("directory %q not created: %v", second.Directory, err)
	}

	ResetCounter()
	if New("").ID != 0 {
		t.Error("counter not reset")
	}
}

func TestNewWithoutBaseDir(t *testing.T) {
	ResetCounter()
	con := New("")
	if con.Directory != "" {
		t.Errorf("directory should stay empty, got %q", con.Directory)
	}
	// In-memory connections still collect and flush without touching disk.
	con.Append(events.New(events.TypeSocket, 0, 3, nil))
	con.Flush(true)
	if con.EventsCount != 1 {
		t.Errorf("events count: got %d", con.EventsCount)
	}
}

func TestShouldFlush(t *testing.T) {
	cfg := config.Snapshot{DumpEveryEvents: 3}
	con := &Connection{}
	for i := 0; i < 2; i++ {
		con.Append(events.New(events.TypeSend, i, 1, nil))
	}
	if con.ShouldFlush(cfg) {
		t.Error("flush triggered below the threshold")
	}
	con.Append(events.New(events.TypeSend, 2, 1, nil))
	if !con.ShouldFlush(cfg) {
		t.Error("flush not triggered at the threshold")
	}
}

func TestShouldSampleTCPInfoGates(t *testing.T) {
	cfg := config.Snapshot{DumpEveryBytes: 100, DumpEveryMicros: 0}
	con := &Connection{BytesSent: 50}
	if con.ShouldSampleTCPInfo(cfg) {
		t.Error("byte gate passed below threshold")
	}
	con.BytesReceived = 60
	if !con.ShouldSampleTCPInfo(cfg) {
		t.Error("byte gate failed at 110 bytes")
	}
	con.LastInfoDumpBytes = 110
	if con.ShouldSampleTCPInfo(cfg) {
		t.Error("byte gate ignored the last sample point")
	}

	// Both gates must pass; with a just-taken sample and a huge interval the
	// time gate blocks even though the byte gate is satisfied.
	con.LastInfoDumpBytes = 0
	con.LastInfoDumpMicros = time.Now().UnixMicro()
	cfg.DumpEveryMicros = math.MaxInt64
	if con.ShouldSampleTCPInfo(cfg) {
		t.Error("time gate did not block")
	}

	// A record that never sampled passes any elapsed-time interval.
	cfg = config.Snapshot{DumpEveryMicros: 1}
	if !(&Connection{}).ShouldSampleTCPInfo(cfg) {
		t.Error("fresh record should pass the time gate")
	}

	// A zero byte interval disables that gate.
	cfg = config.Snapshot{DumpEveryBytes: 0, DumpEveryMicros: 0}
	if !(&Connection{}).ShouldSampleTCPInfo(cfg) {
		t.Error("disabled gates should always pass")
	}
}

func TestFlushProducesOneJSONArray(t *testing.T) {
	ResetCounter()
	con := New(t.TempDir())

	for i := 0; i < 3; i++ {
		ev := events.New(events.TypeSend, i, 100, nil)
		ev.Details = events.SendDetails{Bytes: 100}
		con.Append(ev)
	}
	con.Flush(false)

	ev := events.New(events.TypeClose, 3, 0, nil)
	ev.Details = events.CloseDetails{}
	con.Append(ev)
	con.Flush(true)

	data, err := os.ReadFile(filepath.Join(con.Directory, EventsFile))
	if err != nil {
		t.Fatalf("read events file: %v", err)
	}
	var decoded []map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("events file is not one JSON array: %v\n%s", err, data)
	}
	if len(decoded) != 4 {
		t.Fatalf("event count: got %d, want 4", len(decoded))
	}
	for i, ev := range decoded {
		if int(ev["id"].(float64)) != i {
			t.Errorf("event %d has id %v, ids must be dense", i, ev["id"])
		}
	}
	if decoded[3]["type"] != "close" {
		t.Errorf("last event type: got %v", decoded[3]["type"])
	}
}

func TestFlushSingleFinalBatch(t *testing.T) {
	ResetCounter()
	con := New(t.TempDir())
	con.Append(events.New(events.TypeSocket, 0, 4, nil))
	con.Flush(true)

	data, err := os.ReadFile(filepath.Join(con.Directory, EventsFile))
	if err != nil {
		t.Fatalf("read events file: %v", err)
	}
	var decoded []map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("single-event file invalid: %v\n%s", err, data)
	}
	if len(decoded) != 1 {
		t.Errorf("event count: got %d, want 1", len(decoded))
	}
}

func TestFlushEmptyIsNoop(t *testing.T) {
	ResetCounter()
	con := New(t.TempDir())
	con.Flush(false)
	if _, err := os.Stat(filepath.Join(con.Directory, EventsFile)); !os.IsNotExist(err) {
		t.Error("non-final flush with no events should not create the file")
	}
}
