package events

import (
	"encoding/json"
	"testing"

	"golang.org/x/sys/unix"
)

func TestNewSuccessRules(t *testing.T) {
	tests := []struct {
		name    string
		typ     Type
		rv      int
		success bool
	}{
		{"socket returns the descriptor", TypeSocket, 7, true},
		{"socket failure", TypeSocket, -1, false},
		{"send partial count is still success", TypeSend, 12, true},
		{"send failure", TypeSend, -1, false},
		{"close succeeds only on zero", TypeClose, 0, true},
		{"close nonzero is failure", TypeClose, 3, false},
	}
	for _, tt := range tests {
		ev := New(tt.typ, 0, tt.rv, nil)
		if ev.Success != tt.success {
			t.Errorf("%s: success=%v, want %v", tt.name, ev.Success, tt.success)
		}
	}
}

func TestNewErrorString(t *testing.T) {
	ev := New(TypeConnect, 4, -1, unix.ECONNREFUSED)
	if ev.ID != 4 {
		t.Errorf("id: got %d, want 4", ev.ID)
	}
	if ev.Success {
		t.Error("failed connect marked successful")
	}
	if ev.ErrorStr != unix.ECONNREFUSED.Error() {
		t.Errorf("error_str: got %q", ev.ErrorStr)
	}

	// A successful call never carries an error string, even when the caller
	// passed a stale one.
	ev = New(TypeConnect, 5, 0, unix.EINTR)
	if ev.ErrorStr != "" {
		t.Errorf("success with error_str %q", ev.ErrorStr)
	}
}

func TestEventJSONShape(t *testing.T) {
	ev := New(TypeBind, 1, 0, nil)
	ev.Details = BindDetails{ForceBind: true}
	buf, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(buf, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "bind" {
		t.Errorf("type: got %v", decoded["type"])
	}
	details, ok := decoded["details"].(map[string]interface{})
	if !ok {
		t.Fatalf("details is %T, want object", decoded["details"])
	}
	if details["force_bind"] != true {
		t.Errorf("force_bind: got %v", details["force_bind"])
	}
	if _, present := decoded["error_str"]; present {
		t.Error("error_str serialized for a successful event")
	}
}

func TestTypeJSONRoundTrip(t *testing.T) {
	for typ, name := range TypeToString {
		buf, err := json.Marshal(typ)
		if err != nil {
			t.Fatalf("marshal %s: %v", name, err)
		}
		if string(buf) != `"`+name+`"` {
			t.Errorf("marshal %s: got %s", name, buf)
		}
		var back Type
		if err := json.Unmarshal(buf, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", name, err)
		}
		if back != typ {
			t.Errorf("round trip %s: got %v", name, back)
		}
	}
}

func TestDecodeFlags(t *testing.T) {
	sf := DecodeSendFlags(unix.MSG_DONTWAIT | unix.MSG_NOSIGNAL)
	if !sf.MsgDontwait || !sf.MsgNosignal {
		t.Errorf("send flags not decoded: %+v", sf)
	}
	if sf.MsgOOB || sf.MsgMore {
		t.Errorf("spurious send flags: %+v", sf)
	}

	rf := DecodeRecvFlags(unix.MSG_PEEK | unix.MSG_WAITALL)
	if !rf.MsgPeek || !rf.MsgWaitall {
		t.Errorf("recv flags not decoded: %+v", rf)
	}
	if rf.MsgTrunc || rf.MsgErrqueue {
		t.Errorf("spurious recv flags: %+v", rf)
	}
}

func TestNewIovec(t *testing.T) {
	iov, total := NewIovec([][]byte{make([]byte, 10), make([]byte, 0), make([]byte, 25)})
	if iov.IovecCount != 3 {
		t.Errorf("count: got %d", iov.IovecCount)
	}
	if total != 35 {
		t.Errorf("total: got %d", total)
	}
	if iov.IovecSizes[0] != 10 || iov.IovecSizes[1] != 0 || iov.IovecSizes[2] != 25 {
		t.Errorf("sizes: got %v", iov.IovecSizes)
	}

	iov, total = NewIovec(nil)
	if iov.IovecCount != 0 || total != 0 {
		t.Errorf("empty iovec: %+v total %d", iov, total)
	}
}

func TestNewSetsockoptDetails(t *testing.T) {
	d := NewSetsockoptDetails(unix.SOL_SOCKET, unix.SO_REUSEADDR)
	if d.LevelStr != "socket" || d.OptnameStr != "SO_REUSEADDR" {
		t.Errorf("SOL_SOCKET option: %+v", d)
	}
	d = NewSetsockoptDetails(unix.IPPROTO_TCP, unix.TCP_NODELAY)
	if d.LevelStr != "tcp" || d.OptnameStr != "TCP_NODELAY" {
		t.Errorf("IPPROTO_TCP option: %+v", d)
	}

	// Unknown pairs keep the numeric form with empty symbolic names.
	d = NewSetsockoptDetails(9999, 42)
	if d.Level != 9999 || d.Optname != 42 {
		t.Errorf("numeric fields lost: %+v", d)
	}
	if d.LevelStr != "" || d.OptnameStr != "" {
		t.Errorf("invented names for unknown option: %+v", d)
	}
}
