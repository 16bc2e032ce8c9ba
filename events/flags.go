package events

import "golang.org/x/sys/unix"

// SendFlags decodes the flag bits accepted by the send family.
type SendFlags struct {
	MsgConfirm   bool `json:"msg_confirm"`
	MsgDontroute bool `json:"msg_dontroute"`
	MsgDontwait  bool `json:"msg_dontwait"`
	MsgEOR       bool `json:"msg_eor"`
	MsgMore      bool `json:"msg_more"`
	MsgNosignal  bool `json:"msg_nosignal"`
	MsgOOB       bool `json:"msg_oob"`
}

// RecvFlags decodes the flag bits accepted by the recv family.
type RecvFlags struct {
	MsgCmsgCloexec bool `json:"msg_cmsg_cloexec"`
	MsgDontwait    bool `json:"msg_dontwait"`
	MsgErrqueue    bool `json:"msg_errqueue"`
	MsgOOB         bool `json:"msg_oob"`
	MsgPeek        bool `json:"msg_peek"`
	MsgTrunc       bool `json:"msg_trunc"`
	MsgWaitall     bool `json:"msg_waitall"`
}

func DecodeSendFlags(flags int) SendFlags {
	return SendFlags{
		MsgConfirm:   flags&unix.MSG_CONFIRM != 0,
		MsgDontroute: flags&unix.MSG_DONTROUTE != 0,
		MsgDontwait:  flags&unix.MSG_DONTWAIT != 0,
		MsgEOR:       flags&unix.MSG_EOR != 0,
		MsgMore:      flags&unix.MSG_MORE != 0,
		MsgNosignal:  flags&unix.MSG_NOSIGNAL != 0,
		MsgOOB:       flags&unix.MSG_OOB != 0,
	}
}

func DecodeRecvFlags(flags int) RecvFlags {
	return RecvFlags{
		MsgCmsgCloexec: flags&unix.MSG_CMSG_CLOEXEC != 0,
		MsgDontwait:    flags&unix.MSG_DONTWAIT != 0,
		MsgErrqueue:    flags&unix.MSG_ERRQUEUE != 0,
		MsgOOB:         flags&unix.MSG_OOB != 0,
		MsgPeek:        flags&unix.MSG_PEEK != 0,
		MsgTrunc:       flags&unix.MSG_TRUNC != 0,
		MsgWaitall:     flags&unix.MSG_WAITALL != 0,
	}
}
