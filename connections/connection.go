package connections

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/tcpsnitch/tcpsnitch/capture"
	"github.com/tcpsnitch/tcpsnitch/config"
	"github.com/tcpsnitch/tcpsnitch/events"
	"github.com/tcpsnitch/tcpsnitch/export"
	"github.com/tcpsnitch/tcpsnitch/logger"
)

// Per-connection artifact names under <log_dir>/<id>/.
const (
	EventsFile = "events.json"
	PcapFile   = "capture.pcap"
)

var (
	countMu          sync.Mutex
	connectionsCount int
)

func nextConnectionID() int {
	countMu.Lock()
	defer countMu.Unlock()
	id := connectionsCount
	connectionsCount++
	return id
}

// ResetCounter restarts connection numbering from zero, for post-fork use.
func ResetCounter() {
	countMu.Lock()
	connectionsCount = 0
	countMu.Unlock()
}

type eventNode struct {
	ev   *events.Event
	next *eventNode
}

// Connection is the in-process state for one tracked socket descriptor.
// All fields are mutated only under the descriptor table's slot lock.
type Connection struct {
	ID        int
	Directory string

	// Pending event timeline: a singly-linked FIFO, O(1) append. Flushed
	// nodes are freed; EventsCount keeps counting across flushes.
	head             *eventNode
	tail             *eventNode
	EventsCount      int
	lastFlushedCount int

	BytesSent     int64
	BytesReceived int64

	LastInfoDumpBytes  int64
	LastInfoDumpMicros int64

	Bound     bool
	BoundAddr events.Addr
	ForceBind bool

	Capture *capture.Session

	// RTT is the last kernel-reported smoothed RTT estimate in microseconds.
	// Used to delay capture shutdown past the TCP teardown exchange.
	RTT uint32
}

// New allocates a fresh connection with the next process-wide id and creates
// its numbered output directory. A directory failure leaves the connection
// collecting events in memory only.
func New(baseDir string) *Connection {
	con := &Connection{ID: nextConnectionID()}
	if baseDir == "" {
		return con
	}
	dir := filepath.Join(baseDir, strconv.Itoa(con.ID))
	if err := os.Mkdir(dir, 0o777); err != nil {
		logger.Errorf("mkdir %s failed: %v; connection %d stays in memory", dir, err, con.ID)
		return con
	}
	con.Directory = dir
	return con
}

// Append adds ev to the timeline. Event ids are dense: the caller built ev
// with id == EventsCount.
func (con *Connection) Append(ev *events.Event) {
	node := &eventNode{ev: ev}
	if con.head == nil {
		con.head = node
	} else {
		con.tail.next = node
	}
	con.tail = node
	con.EventsCount++
}

// ShouldFlush reports whether enough events accumulated since the last JSON
// flush.
func (con *Connection) ShouldFlush(cfg config.Snapshot) bool {
	return con.EventsCount-con.lastFlushedCount >= cfg.DumpEveryEvents
}

// ShouldSampleTCPInfo evaluates the periodic tcp_info gates. Both must pass;
// a zero interval disables its gate.
func (con *Connection) ShouldSampleTCPInfo(cfg config.Snapshot) bool {
	if cfg.DumpEveryMicros > 0 {
		elapsed := time.Now().UnixMicro() - con.LastInfoDumpMicros
		if elapsed < cfg.DumpEveryMicros {
			return false
		}
	}
	if cfg.DumpEveryBytes > 0 {
		delta := con.BytesSent + con.BytesReceived - con.LastInfoDumpBytes
		if delta < cfg.DumpEveryBytes {
			return false
		}
	}
	return true
}

// Flush appends the pending events to <dir>/events.json and frees them. The
// file is a single JSON array built incrementally: event 0 opens the
// bracket, every non-final event is followed by a comma, the final flush
// closes the bracket. On any I/O error the pending list is kept and the next
// flush retries implicitly.
func (con *Connection) Flush(final bool) {
	if con.head == nil && !final {
		return
	}

	// Encode first so an encoding failure cannot leave a half-freed list.
	var batch [][]byte
	for cur := con.head; cur != nil; cur = cur.next {
		buf, err := json.Marshal(cur.ev)
		if err != nil {
			logger.Errorf("connection %d: event %d not encodable: %v", con.ID, cur.ev.ID, err)
			return
		}
		batch = append(batch, buf)
	}

	if con.Directory != "" {
		if err := con.writeBatch(batch, final); err != nil {
			logger.Errorf("connection %d: flush failed: %v", con.ID, err)
			return
		}
	}
	if export.Enabled() && len(batch) > 0 {
		go export.ProduceEvents(con.ID, batch)
	}

	con.head = nil
	con.tail = nil
	con.lastFlushedCount = con.EventsCount
}

func (con *Connection) writeBatch(batch [][]byte, final bool) error {
	path := filepath.Join(con.Directory, EventsFile)
	fp, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return err
	}

	write := func(p []byte) {
		if err == nil {
			_, err = fp.Write(p)
		}
	}
	firstID := con.lastFlushedCount
	for i, buf := range batch {
		if firstID+i == 0 {
			write([]byte("[\n"))
		}
		write(buf)
		if final && firstID+i+1 == con.EventsCount {
			write([]byte("\n"))
		} else {
			write([]byte(",\n"))
		}
	}
	if final {
		write([]byte("]"))
	}
	if cerr := fp.Close(); err == nil {
		err = cerr
	}
	return err
}
