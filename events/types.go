package events

import (
	"bytes"
	"encoding/json"
)

// Type identifies one of the intercepted socket entry points. The set is
// closed: every wrapped call maps to exactly one variant.
type Type uint8

const (
	TypeSocket Type = iota
	TypeBind
	TypeConnect
	TypeShutdown
	TypeListen
	TypeSetsockopt
	TypeSend
	TypeRecv
	TypeSendto
	TypeRecvfrom
	TypeSendmsg
	TypeRecvmsg
	TypeWrite
	TypeRead
	TypeClose
	TypeWritev
	TypeReadv
	TypeTCPInfo
)

// TypeToString : convert Type to the string representation used in JSON.
var TypeToString = map[Type]string{
	TypeSocket:     "socket",
	TypeBind:       "bind",
	TypeConnect:    "connect",
	TypeShutdown:   "shutdown",
	TypeListen:     "listen",
	TypeSetsockopt: "setsockopt",
	TypeSend:       "send",
	TypeRecv:       "recv",
	TypeSendto:     "sendto",
	TypeRecvfrom:   "recvfrom",
	TypeSendmsg:    "sendmsg",
	TypeRecvmsg:    "recvmsg",
	TypeWrite:      "write",
	TypeRead:       "read",
	TypeClose:      "close",
	TypeWritev:     "writev",
	TypeReadv:      "readv",
	TypeTCPInfo:    "tcp_info",
}

// TypeFromString : get Type from a string representation.
var TypeFromString = func() map[string]Type {
	m := make(map[string]Type, len(TypeToString))
	for t, s := range TypeToString {
		m[s] = t
	}
	return m
}()

func (t Type) String() string {
	return TypeToString[t]
}

// MarshalJSON marshals the enum as a quoted json string.
func (t Type) MarshalJSON() ([]byte, error) {
	buffer := bytes.NewBufferString(`"`)
	buffer.WriteString(TypeToString[t])
	buffer.WriteString(`"`)
	return buffer.Bytes(), nil
}

// UnmarshalJSON un-marshals a quoted json string to the enum value.
func (t *Type) UnmarshalJSON(b []byte) error {
	var j string
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*t = TypeFromString[j]
	return nil
}
