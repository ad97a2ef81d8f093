package gossip

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestMonitorSinkDisabledIsNoop(t *testing.T) {
	m := newMonitorSink(MonitorConfig{}, testLogger())
	m.report("node-1", []string{"a", "b"}) // must not panic, must not block
}

func TestMonitorSinkNilReceiverIsNoop(t *testing.T) {
	var m *monitorSink
	m.report("node-1", nil)
}

func TestMonitorSinkPostsReport(t *testing.T) {
	var mu sync.Mutex
	var got monitorReport
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		json.NewDecoder(r.Body).Decode(&got)
		close(done)
	}))
	defer srv.Close()

	m := newMonitorSink(MonitorConfig{Enabled: true, URL: srv.URL}, testLogger())
	m.report("node-1", []string{"peer-a"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("monitor did not post within timeout")
	}

	mu.Lock()
	defer mu.Unlock()
	if got.ID != "node-1" || len(got.Peers) != 1 || got.Peers[0] != "peer-a" {
		t.Fatalf("unexpected report: %+v", got)
	}
}
