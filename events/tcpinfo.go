package events

import "golang.org/x/sys/unix"

// TCPInfoDetails is the recorded form of a TCP_INFO kernel snapshot.
type TCPInfoDetails struct {
	State         uint8  `json:"state"`
	CaState       uint8  `json:"ca_state"`
	Retransmits   uint8  `json:"retransmits"`
	Probes        uint8  `json:"probes"`
	Backoff       uint8  `json:"backoff"`
	Options       uint8  `json:"options"`
	Rto           uint32 `json:"rto"`
	Ato           uint32 `json:"ato"`
	SndMss        uint32 `json:"snd_mss"`
	RcvMss        uint32 `json:"rcv_mss"`
	Unacked       uint32 `json:"unacked"`
	Sacked        uint32 `json:"sacked"`
	Lost          uint32 `json:"lost"`
	Retrans       uint32 `json:"retrans"`
	Fackets       uint32 `json:"fackets"`
	LastDataSent  uint32 `json:"last_data_sent"`
	LastAckSent   uint32 `json:"last_ack_sent"`
	LastDataRecv  uint32 `json:"last_data_recv"`
	LastAckRecv   uint32 `json:"last_ack_recv"`
	Pmtu          uint32 `json:"pmtu"`
	RcvSsthresh   uint32 `json:"rcv_ssthresh"`
	Rtt           uint32 `json:"rtt"`
	Rttvar        uint32 `json:"rttvar"`
	SndSsthresh   uint32 `json:"snd_ssthresh"`
	SndCwnd       uint32 `json:"snd_cwnd"`
	Advmss        uint32 `json:"advmss"`
	Reordering    uint32 `json:"reordering"`
	RcvRtt        uint32 `json:"rcv_rtt"`
	RcvSpace      uint32 `json:"rcv_space"`
	TotalRetrans  uint32 `json:"total_retrans"`
}

// NewTCPInfoDetails copies the kernel snapshot into its recorded form.
// A nil info (failed query) yields a zero snapshot.
func NewTCPInfoDetails(info *unix.TCPInfo) TCPInfoDetails {
	if info == nil {
		return TCPInfoDetails{}
	}
	return TCPInfoDetails{
		State:        info.State,
		CaState:      info.Ca_state,
		Retransmits:  info.Retransmits,
		Probes:       info.Probes,
		Backoff:      info.Backoff,
		Options:      info.Options,
		Rto:          info.Rto,
		Ato:          info.Ato,
		SndMss:       info.Snd_mss,
		RcvMss:       info.Rcv_mss,
		Unacked:      info.Unacked,
		Sacked:       info.Sacked,
		Lost:         info.Lost,
		Retrans:      info.Retrans,
		Fackets:      info.Fackets,
		LastDataSent: info.Last_data_sent,
		LastAckSent:  info.Last_ack_sent,
		LastDataRecv: info.Last_data_recv,
		LastAckRecv:  info.Last_ack_recv,
		Pmtu:         info.Pmtu,
		RcvSsthresh:  info.Rcv_ssthresh,
		Rtt:          info.Rtt,
		Rttvar:       info.Rttvar,
		SndSsthresh:  info.Snd_ssthresh,
		SndCwnd:      info.Snd_cwnd,
		Advmss:       info.Advmss,
		Reordering:   info.Reordering,
		RcvRtt:       info.Rcv_rtt,
		RcvSpace:     info.Rcv_space,
		TotalRetrans: info.Total_retrans,
	}
}
