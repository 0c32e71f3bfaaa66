package stats

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultBinary is the collector executable looked up on PATH.
const DefaultBinary = "vnstat"

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args. A non-zero exit is an error carrying stderr.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}
		return out, err
	}
	return out, nil
}

// VnstatSource reads traffic statistics by invoking the vnstat binary.
type VnstatSource struct {
	runner  CommandRunner
	live    LiveSampler
	loc     *time.Location
	binary  string
	timeout time.Duration
}

// Option configures a VnstatSource.
type Option func(*VnstatSource)

// WithRunner replaces the command runner. Tests use it to feed canned output.
func WithRunner(r CommandRunner) Option {
	return func(v *VnstatSource) { v.runner = r }
}

// WithTimeout bounds every collector invocation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(v *VnstatSource) { v.timeout = d }
}

// WithLiveSampler takes live measurements from s instead of "vnstat -tr".
func WithLiveSampler(s LiveSampler) Option {
	return func(v *VnstatSource) { v.live = s }
}

// WithLocation sets the zone the collector's wall-clock dates are read in.
func WithLocation(loc *time.Location) Option {
	return func(v *VnstatSource) { v.loc = loc }
}

// NewVnstatSource creates a source for the given binary path.
func NewVnstatSource(binary string, opts ...Option) *VnstatSource {
	if binary == "" {
		binary = DefaultBinary
	}
	v := &VnstatSource{
		binary: binary,
		runner: ExecRunner{},
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Info returns the all-time counters for iface.
func (v *VnstatSource) Info(ctx context.Context, iface string) (InterfaceInfo, error) {
	out, err := v.run(ctx, 0, "-i", iface, "--json")
	if err != nil {
		return InterfaceInfo{}, collectorError("info", iface, err)
	}
	info, err := parseInfo(out, v.loc)
	if err != nil {
		return InterfaceInfo{}, collectorError("info", iface, err)
	}
	return info, nil
}

// Query returns up to window samples of granularity g, oldest first.
func (v *VnstatSource) Query(ctx context.Context, iface string, g Granularity, window int) (IntervalSeries, error) {
	op := "query " + g.String()
	if window < 1 {
		return IntervalSeries{}, nil
	}
	out, err := v.run(ctx, 0, "-i", iface, "--json", g.mode(), strconv.Itoa(window))
	if err != nil {
		return nil, collectorError(op, iface, err)
	}
	series, err := parseSeries(out, g, v.loc)
	if err != nil {
		return nil, collectorError(op, iface, err)
	}
	if len(series) > window {
		series = series[len(series)-window:]
	}
	return series, nil
}

// LiveRate samples bandwidth for sampleSeconds. Failures yield ZeroLiveRate.
func (v *VnstatSource) LiveRate(ctx context.Context, iface string, sampleSeconds int) LiveRate {
	if sampleSeconds < 1 {
		sampleSeconds = 1
	}
	if v.live != nil {
		rate, err := v.live.Sample(ctx, iface, sampleSeconds)
		if err != nil {
			return ZeroLiveRate()
		}
		return rate
	}

	window := time.Duration(sampleSeconds) * time.Second
	out, err := v.run(ctx, window, "-i", iface, "-tr", strconv.Itoa(sampleSeconds))
	if err != nil {
		return ZeroLiveRate()
	}
	return parseLiveRate(string(out))
}

// ListInterfaces returns the interfaces the collector knows about.
func (v *VnstatSource) ListInterfaces(ctx context.Context) []string {
	out, err := v.run(ctx, 0, "--iflist")
	if err != nil {
		return []string{}
	}
	return parseInterfaceList(string(out))
}

// run invokes the collector. extra is added on top of the configured timeout
// for commands that block by design, such as a live sample.
func (v *VnstatSource) run(ctx context.Context, extra time.Duration, args ...string) ([]byte, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout+extra)
		defer cancel()
	}
	return v.runner.Run(ctx, v.binary, args...)
}
