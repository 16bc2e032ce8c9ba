// Package capture records a per-connection packet trace: a live pcap handle
// with a targeted BPF filter feeding a libpcap-format dump file.
package capture

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"

	"github.com/tcpsnitch/tcpsnitch/logger"
)

const (
	snapLen = 65535
	// The worker polls the quit flag at this granularity; it bounds how long
	// Stop waits after the shutdown delay.
	readTimeout = 500 * time.Millisecond
)

// Session is one running per-connection capture worker.
type Session struct {
	handle  *pcap.Handle
	file    *os.File
	quit    chan struct{}
	done    chan struct{}
	packets int64
}

// Start opens a filtered capture on device (default device when empty) and
// spawns the worker writing matching frames to path.
func Start(device, filter, path string) (*Session, error) {
	if device == "" {
		device = defaultDevice()
	}
	handle, err := pcap.OpenLive(device, snapLen, false, readTimeout)
	if err != nil {
		return nil, err
	}
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return nil, err
	}

	file, err := os.Create(path)
	if err != nil {
		handle.Close()
		return nil, err
	}
	writer := pcapgo.NewWriter(file)
	if err := writer.WriteFileHeader(snapLen, handle.LinkType()); err != nil {
		handle.Close()
		file.Close()
		return nil, err
	}

	s := &Session{
		handle: handle,
		file:   file,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.loop(writer)
	logger.Infof("capture started on %s with filter '%s'", device, filter)
	return s, nil
}

// defaultDevice picks the first available interface, falling back to the
// Linux pseudo-device that listens on all interfaces.
func defaultDevice() string {
	devs, err := pcap.FindAllDevs()
	if err != nil || len(devs) == 0 {
		logger.Warnf("no capture device found, capturing on all interfaces")
		return "any"
	}
	return devs[0].Name
}

func (s *Session) loop(writer *pcapgo.Writer) {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		default:
		}
		data, ci, err := s.handle.ReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			continue
		}
		if err != nil {
			logger.Warnf("capture read ended: %v", err)
			return
		}
		if err := writer.WritePacket(ci, data); err != nil {
			logger.Errorf("pcap dump write failed: %v", err)
			return
		}
		atomic.AddInt64(&s.packets, 1)
	}
}

// Stop interrupts the worker after the given delay, waits for it and closes
// the handle and dump file. The delay lets the TCP teardown packets reach
// the filter. Returns the number of captured packets.
func (s *Session) Stop(delay time.Duration) int64 {
	if delay > 0 {
		time.Sleep(delay)
	}
	close(s.quit)
	<-s.done
	s.handle.Close()
	if err := s.file.Close(); err != nil {
		logger.Errorf("pcap dump close failed: %v", err)
	}
	count := atomic.LoadInt64(&s.packets)
	logger.Infof("capture ended, %d packets", count)
	return count
}
