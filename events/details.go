package events

import "golang.org/x/sys/unix"

// Iovec summarizes a scatter/gather buffer list: the per-buffer sizes, not
// the data itself.
type Iovec struct {
	IovecCount int   `json:"iovec_count"`
	IovecSizes []int `json:"iovec_sizes"`
}

// NewIovec builds the summary and returns the total nominal byte count.
func NewIovec(bufs [][]byte) (Iovec, int64) {
	iov := Iovec{IovecCount: len(bufs), IovecSizes: make([]int, len(bufs))}
	var total int64
	for i, b := range bufs {
		iov.IovecSizes[i] = len(b)
		total += int64(len(b))
	}
	return iov, total
}

// Msghdr summarizes a sendmsg/recvmsg header: destination (when present),
// whether ancillary data was attached, and the iovec summary.
type Msghdr struct {
	Addr        *Addr `json:"addr,omitempty"`
	ControlData bool  `json:"control_data"`
	Iovec       Iovec `json:"iovec"`
}

type SocketDetails struct {
	Domain       int  `json:"domain"`
	Type         int  `json:"type"`
	Protocol     int  `json:"protocol"`
	SockCloexec  bool `json:"sock_cloexec"`
	SockNonblock bool `json:"sock_nonblock"`
}

type BindDetails struct {
	Addr      Addr `json:"addr"`
	ForceBind bool `json:"force_bind"`
}

type ConnectDetails struct {
	Addr Addr `json:"addr"`
}

type ShutdownDetails struct {
	ShutRd bool `json:"shut_rd"`
	ShutWr bool `json:"shut_wr"`
}

type ListenDetails struct {
	Backlog int `json:"backlog"`
}

type SetsockoptDetails struct {
	Level      int    `json:"level"`
	LevelStr   string `json:"level_str,omitempty"`
	Optname    int    `json:"optname"`
	OptnameStr string `json:"optname_str,omitempty"`
}

type SendDetails struct {
	Bytes int64     `json:"bytes"`
	Flags SendFlags `json:"flags"`
}

type RecvDetails struct {
	Bytes int64     `json:"bytes"`
	Flags RecvFlags `json:"flags"`
}

type SendtoDetails struct {
	Bytes int64     `json:"bytes"`
	Flags SendFlags `json:"flags"`
	Addr  Addr      `json:"addr"`
}

type RecvfromDetails struct {
	Bytes int64     `json:"bytes"`
	Flags RecvFlags `json:"flags"`
	Addr  Addr      `json:"addr"`
}

type SendmsgDetails struct {
	Bytes  int64     `json:"bytes"`
	Flags  SendFlags `json:"flags"`
	Msghdr Msghdr    `json:"msghdr"`
}

type RecvmsgDetails struct {
	Bytes  int64     `json:"bytes"`
	Flags  RecvFlags `json:"flags"`
	Msghdr Msghdr    `json:"msghdr"`
}

type WriteDetails struct {
	Bytes int64 `json:"bytes"`
}

type ReadDetails struct {
	Bytes int64 `json:"bytes"`
}

type CloseDetails struct {
	// Detected is true when the close was synthesized by the library
	// (stale-descriptor replacement or the exit sweep) rather than observed
	// from the host.
	Detected bool `json:"detected"`
}

type WritevDetails struct {
	Bytes int64 `json:"bytes"`
	Iovec Iovec `json:"iovec"`
}

type ReadvDetails struct {
	Bytes int64 `json:"bytes"`
	Iovec Iovec `json:"iovec"`
}

func (SocketDetails) eventDetails()     {}
func (BindDetails) eventDetails()       {}
func (ConnectDetails) eventDetails()    {}
func (ShutdownDetails) eventDetails()   {}
func (ListenDetails) eventDetails()     {}
func (SetsockoptDetails) eventDetails() {}
func (SendDetails) eventDetails()       {}
func (RecvDetails) eventDetails()       {}
func (SendtoDetails) eventDetails()     {}
func (RecvfromDetails) eventDetails()   {}
func (SendmsgDetails) eventDetails()    {}
func (RecvmsgDetails) eventDetails()    {}
func (WriteDetails) eventDetails()      {}
func (ReadDetails) eventDetails()       {}
func (CloseDetails) eventDetails()      {}
func (WritevDetails) eventDetails()     {}
func (ReadvDetails) eventDetails()      {}
func (TCPInfoDetails) eventDetails()    {}

var protocolNames = map[int]string{
	unix.IPPROTO_IP:     "ip",
	unix.IPPROTO_ICMP:   "icmp",
	unix.IPPROTO_TCP:    "tcp",
	unix.IPPROTO_UDP:    "udp",
	unix.IPPROTO_ICMPV6: "ipv6-icmp",
	unix.IPPROTO_SCTP:   "sctp",
}

var sockOptNames = map[int]map[int]string{
	unix.SOL_SOCKET: {
		unix.SO_REUSEADDR: "SO_REUSEADDR",
		unix.SO_REUSEPORT: "SO_REUSEPORT",
		unix.SO_KEEPALIVE: "SO_KEEPALIVE",
		unix.SO_LINGER:    "SO_LINGER",
		unix.SO_SNDBUF:    "SO_SNDBUF",
		unix.SO_RCVBUF:    "SO_RCVBUF",
		unix.SO_SNDTIMEO:  "SO_SNDTIMEO",
		unix.SO_RCVTIMEO:  "SO_RCVTIMEO",
		unix.SO_ERROR:     "SO_ERROR",
		unix.SO_BROADCAST: "SO_BROADCAST",
		unix.SO_OOBINLINE: "SO_OOBINLINE",
		unix.SO_PRIORITY:  "SO_PRIORITY",
	},
	unix.IPPROTO_TCP: {
		unix.TCP_NODELAY:      "TCP_NODELAY",
		unix.TCP_MAXSEG:       "TCP_MAXSEG",
		unix.TCP_CORK:         "TCP_CORK",
		unix.TCP_KEEPIDLE:     "TCP_KEEPIDLE",
		unix.TCP_KEEPINTVL:    "TCP_KEEPINTVL",
		unix.TCP_KEEPCNT:      "TCP_KEEPCNT",
		unix.TCP_QUICKACK:     "TCP_QUICKACK",
		unix.TCP_USER_TIMEOUT: "TCP_USER_TIMEOUT",
		unix.TCP_FASTOPEN:     "TCP_FASTOPEN",
		unix.TCP_CONGESTION:   "TCP_CONGESTION",
	},
}

// NewSetsockoptDetails resolves the level to a protocol name and the option
// to its symbolic constant when known.
func NewSetsockoptDetails(level, optname int) SetsockoptDetails {
	d := SetsockoptDetails{Level: level, Optname: optname}
	if level == unix.SOL_SOCKET {
		d.LevelStr = "socket"
	} else {
		d.LevelStr = protocolNames[level]
	}
	if opts, ok := sockOptNames[level]; ok {
		d.OptnameStr = opts[optname]
	}
	return d
}
