package metrics

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Pusher sends a registry to a Prometheus Pushgateway. Short-lived jobs use
// it because nothing scrapes them.
type Pusher struct {
	endpoint string
	job      string
	grouping map[string]string
	gatherer prometheus.Gatherer
}

// NewPusher returns nil when endpoint is empty. A nil gatherer means the
// default registry.
func NewPusher(endpoint, job string, grouping map[string]string, gatherer prometheus.Gatherer) *Pusher {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Pusher{
		endpoint: endpoint,
		job:      strings.TrimSpace(job),
		grouping: grouping,
		gatherer: gatherer,
	}
}

// Push replaces the job's metric group on the gateway. A nil Pusher is a no-op.
func (p *Pusher) Push(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if p.job == "" {
		return errors.New("pushgateway job is required")
	}

	pusher := push.New(p.endpoint, p.job).Gatherer(p.gatherer)
	for key, value := range p.grouping {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		pusher = pusher.Grouping(key, value)
	}
	return pusher.PushContext(ctx)
}
