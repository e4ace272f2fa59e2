package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrafana(t *testing.T) {

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	history := []model.Snapshot{
		{Time: start, Accuracy: 0.1, Clusters: 10},
		{Time: start.Add(time.Hour), Accuracy: 0.5, Clusters: 10},
		{Time: start.Add(2 * time.Hour), Accuracy: 0.9, Clusters: 12},
	}
	var broken atomic.Bool
	grafana := NewGrafana().Snapshots(func() ([]model.Snapshot, error) {
		if broken.Load() {
			return nil, errors.New("archive closed")
		}
		return history, nil
	})
	ts := httptest.NewServer(NewServer("grafana", 0).Add(grafana.Routes()...).Handler())
	defer ts.Close()

	code, payload := call(t, ts, http.MethodPost, "/data/search", nil)
	require.Equal(t, http.StatusOK, code)
	var targets []string
	require.NoError(t, json.Unmarshal(payload, &targets))
	assert.Equal(t, []string{"accuracy", "clusters", "confidence", "entropy", "presented"}, targets)

	tests := map[string]struct {
		query  Query
		series []Series
	}{
		"all": {
			query: Query{Targets: []Target{{Target: "accuracy"}}},
			series: []Series{{Target: "accuracy", DataPoints: [][]float64{
				{0.1, float64(start.UnixNano() / 1e6)},
				{0.5, float64(start.Add(time.Hour).UnixNano() / 1e6)},
				{0.9, float64(start.Add(2*time.Hour).UnixNano() / 1e6)},
			}}},
		},
		"range": {
			query: Query{
				Range:   Range{From: start.Add(30 * time.Minute), To: start.Add(90 * time.Minute)},
				Targets: []Target{{Target: "clusters"}, {Target: "unknown"}},
			},
			series: []Series{{Target: "clusters", DataPoints: [][]float64{
				{10, float64(start.Add(time.Hour).UnixNano() / 1e6)},
			}}},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			code, payload := call(t, ts, http.MethodPost, "/data/query", tt.query)
			require.Equal(t, http.StatusOK, code, string(payload))
			var series []Series
			require.NoError(t, json.Unmarshal(payload, &series))
			assert.Equal(t, tt.series, series)
		})
	}

	broken.Store(true)
	code, _ = call(t, ts, http.MethodPost, "/data/query", Query{Targets: []Target{{Target: "accuracy"}}})
	assert.Equal(t, http.StatusInternalServerError, code)
}
