package devicemgr

import (
	"context"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
)

// ProbeResult is the outcome of an ICMP reachability probe.
type ProbeResult struct {
	Reachable bool
	RTT       time.Duration
}

// Prober checks whether a host answers ICMP echo.
type Prober interface {
	Probe(ctx context.Context, host string) (ProbeResult, error)
}

// ICMPProber pings with pro-bing.
type ICMPProber struct {
	Count      int
	Timeout    time.Duration
	Privileged bool
	Logger     *zap.Logger
}

// Probe sends Count echo requests and waits at most Timeout for replies.
func (p *ICMPProber) Probe(ctx context.Context, host string) (ProbeResult, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return ProbeResult{}, err
	}
	pinger.Count = p.Count
	pinger.Timeout = p.Timeout
	pinger.SetPrivileged(p.Privileged)

	// Run with context for cancellation support.
	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case err := <-done:
		if err != nil {
			return ProbeResult{}, err
		}
	case <-ctx.Done():
		pinger.Stop()
		return ProbeResult{}, ctx.Err()
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv > 0 {
		return ProbeResult{Reachable: true, RTT: stats.AvgRtt}, nil
	}
	return ProbeResult{}, nil
}
