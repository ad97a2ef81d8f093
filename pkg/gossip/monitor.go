package gossip

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// MonitorConfig configures the optional monitoring sink: a strictly
// observational HTTP POST of the node's id and current peer addresses,
// sent after every gossip cycle that found a partner. The posted messages
// list is always empty; update state is not reported. It never affects
// protocol correctness; failures are logged and dropped.
type MonitorConfig struct {
	Enabled bool
	URL     string
	Timeout time.Duration
}

// monitorReport is the JSON body posted to the monitoring endpoint.
type monitorReport struct {
	ID       string   `json:"id"`
	Peers    []string `json:"peers"`
	Messages []string `json:"messages"`
}

type monitorSink struct {
	cfg    MonitorConfig
	client *http.Client
	logger *slog.Logger
}

func newMonitorSink(cfg MonitorConfig, logger *slog.Logger) *monitorSink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &monitorSink{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// report fires the POST in its own goroutine, fire-and-forget. A nil
// receiver or disabled config is a no-op.
func (m *monitorSink) report(id string, peers []string) {
	if m == nil || !m.cfg.Enabled {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.client.Timeout)
		defer cancel()

		body, err := json.Marshal(monitorReport{ID: id, Peers: peers, Messages: []string{}})
		if err != nil {
			m.logger.Warn("monitor: encode report", "error", err)
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.URL, bytes.NewReader(body))
		if err != nil {
			m.logger.Warn("monitor: build request", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := m.client.Do(req)
		if err != nil {
			m.logger.Warn("monitor: post failed", "url", m.cfg.URL, "error", err)
			return
		}
		defer resp.Body.Close()
	}()
}
