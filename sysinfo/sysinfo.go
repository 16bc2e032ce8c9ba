// Package sysinfo logs a one-shot snapshot of the machine the traced process
// runs on, so every main.log carries its own context.
package sysinfo

import (
	"os"

	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"

	"github.com/tcpsnitch/tcpsnitch/logger"
)

// LogSnapshot writes host identity and memory headroom to the library log.
// Failures are non-fatal; tracing works the same without the snapshot.
func LogSnapshot() {
	logger.Infof("pid %d ppid %d", os.Getpid(), os.Getppid())

	if info, err := host.Info(); err == nil {
		logger.Infof("host %s: %s %s (%s, kernel %s)",
			info.Hostname, info.Platform, info.PlatformVersion, info.KernelArch, info.KernelVersion)
	} else {
		logger.Warnf("host info unavailable: %v", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		logger.Infof("memory: %d MB total, %d MB available", vm.Total/1024/1024, vm.Available/1024/1024)
	} else {
		logger.Warnf("memory info unavailable: %v", err)
	}
}
