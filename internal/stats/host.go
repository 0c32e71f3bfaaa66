package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/net"

	"github.com/timfallmk/traffic-watcher/internal/format"
)

// HostSampler measures live bandwidth from the kernel's interface counters.
type HostSampler struct {
	counters func(ctx context.Context) ([]net.IOCountersStat, error)
	wait     func(ctx context.Context, d time.Duration) error
}

// NewHostSampler creates a sampler backed by gopsutil.
func NewHostSampler() *HostSampler {
	return &HostSampler{
		counters: func(ctx context.Context) ([]net.IOCountersStat, error) {
			return net.IOCountersWithContext(ctx, true)
		},
		wait: sleepContext,
	}
}

// Sample reads the counters twice, sampleSeconds apart, and formats the rate.
func (h *HostSampler) Sample(ctx context.Context, iface string, sampleSeconds int) (LiveRate, error) {
	if sampleSeconds < 1 {
		sampleSeconds = 1
	}

	first, err := h.read(ctx, iface)
	if err != nil {
		return ZeroLiveRate(), err
	}
	if err := h.wait(ctx, time.Duration(sampleSeconds)*time.Second); err != nil {
		return ZeroLiveRate(), err
	}
	second, err := h.read(ctx, iface)
	if err != nil {
		return ZeroLiveRate(), err
	}

	secs := float64(sampleSeconds)
	return LiveRate{
		Rx: format.Rate(float64(delta(first.BytesRecv, second.BytesRecv)) * 8 / secs),
		Tx: format.Rate(float64(delta(first.BytesSent, second.BytesSent)) * 8 / secs),
	}, nil
}

func (h *HostSampler) read(ctx context.Context, iface string) (net.IOCountersStat, error) {
	all, err := h.counters(ctx)
	if err != nil {
		return net.IOCountersStat{}, fmt.Errorf("read interface counters: %w", err)
	}
	for _, c := range all {
		if c.Name == iface {
			return c, nil
		}
	}
	return net.IOCountersStat{}, fmt.Errorf("interface %q not found", iface)
}

// HostInterfaces lists the interface names known to the host.
func HostInterfaces(ctx context.Context) ([]string, error) {
	list, err := net.InterfacesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list host interfaces: %w", err)
	}
	names := make([]string, 0, len(list))
	for _, i := range list {
		names = append(names, i.Name)
	}
	return names, nil
}

// delta treats a counter that went backwards (reset or wrap) as no traffic.
func delta(before, after uint64) uint64 {
	if after < before {
		return 0
	}
	return after - before
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
