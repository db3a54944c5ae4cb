// internal/sysinfo/sysinfo.go
package sysinfo

import (
	"context"
	"runtime"
	"strconv"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"
)

// Attribute keys produced by Collect.
const (
	KeyOS                 = "os"
	KeyPlatform           = "platform"
	KeyPlatformVersion    = "platform_version"
	KeyKernelVersion      = "kernel_version"
	KeyArch               = "arch"
	KeyNumCPU             = "num_cpu"
	KeyMemoryTotal        = "memory_total"
	KeyGoVersion          = "go_version"
	KeyApplicationName    = "application_name"
	KeyApplicationVersion = "application_version"
)

// Provider is what the reporter needs from a system info source.
type Provider interface {
	Collect(ctx context.Context) map[string]string
}

// Collector gathers machine and OS details attached to every submission.
// The hostname is never collected.
type Collector struct {
	logger     *zap.Logger
	appName    string
	appVersion string

	hostInfo func(ctx context.Context) (*host.InfoStat, error)
	memInfo  func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// NewCollector returns a Collector that tags attributes with the application identity.
func NewCollector(logger *zap.Logger, appName, appVersion string) *Collector {
	return &Collector{
		logger:     logger.Named("sysinfo"),
		appName:    appName,
		appVersion: appVersion,
		hostInfo:   host.InfoWithContext,
		memInfo:    mem.VirtualMemoryWithContext,
	}
}

// Collect returns the attributes it could gather. Lookup failures are logged
// and the affected keys are left out.
func (c *Collector) Collect(ctx context.Context) map[string]string {
	attrs := map[string]string{
		KeyOS:        runtime.GOOS,
		KeyArch:      runtime.GOARCH,
		KeyNumCPU:    strconv.Itoa(runtime.NumCPU()),
		KeyGoVersion: runtime.Version(),
	}
	if c.appName != "" {
		attrs[KeyApplicationName] = c.appName
	}
	if c.appVersion != "" {
		attrs[KeyApplicationVersion] = c.appVersion
	}

	if info, err := c.hostInfo(ctx); err != nil {
		c.logger.Warn("Could not read host information.", zap.Error(err))
	} else if info != nil {
		setIfPresent(attrs, KeyPlatform, info.Platform)
		setIfPresent(attrs, KeyPlatformVersion, info.PlatformVersion)
		setIfPresent(attrs, KeyKernelVersion, info.KernelVersion)
		if info.KernelArch != "" {
			attrs[KeyArch] = info.KernelArch
		}
	}

	if vm, err := c.memInfo(ctx); err != nil {
		c.logger.Warn("Could not read memory information.", zap.Error(err))
	} else if vm != nil && vm.Total > 0 {
		attrs[KeyMemoryTotal] = strconv.FormatUint(vm.Total, 10)
	}
	return attrs
}

func setIfPresent(attrs map[string]string, key, value string) {
	if value != "" {
		attrs[key] = value
	}
}
