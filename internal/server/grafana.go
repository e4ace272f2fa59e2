package server

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/rs/zerolog/log"
)

// Query is the grafana simple json datasource query.
type Query struct {
	PanelID       int      `json:"panelId"`
	Range         Range    `json:"range"`
	IntervalMS    int64    `json:"intervalMs"`
	Targets       []Target `json:"targets"`
	MaxDataPoints int      `json:"maxDataPoints"`
}

type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type Target struct {
	RefID  string `json:"refId"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Series holds [value, unix millis] pairs.
type Series struct {
	Target     string      `json:"target"`
	DataPoints [][]float64 `json:"datapoints"`
}

// TargetQuery returns the series of a target within the given range.
type TargetQuery func(from, to time.Time) (Series, error)

// Grafana serves time series to a grafana simple json datasource.
type Grafana struct {
	targets map[string]TargetQuery
}

func NewGrafana() *Grafana {
	return &Grafana{
		targets: make(map[string]TargetQuery),
	}
}

func (g *Grafana) Target(target string, query TargetQuery) *Grafana {
	g.targets[target] = query
	return g
}

// Snapshots adds a target for every statistic of the snapshot history.
func (g *Grafana) Snapshots(history func() ([]model.Snapshot, error)) *Grafana {
	stats := map[string]func(s model.Snapshot) float64{
		"accuracy": func(s model.Snapshot) float64 {
			return s.Accuracy
		},
		"confidence": func(s model.Snapshot) float64 {
			return s.MeanConfidence
		},
		"entropy": func(s model.Snapshot) float64 {
			return s.MeanWeightEntropy
		},
		"clusters": func(s model.Snapshot) float64 {
			return float64(s.Clusters)
		},
		"presented": func(s model.Snapshot) float64 {
			return float64(s.Presented)
		},
	}
	for name, stat := range stats {
		name, stat := name, stat
		g.Target(name, func(from, to time.Time) (Series, error) {
			snapshots, err := history()
			if err != nil {
				return Series{}, err
			}
			series := Series{Target: name, DataPoints: make([][]float64, 0)}
			for _, s := range snapshots {
				if !from.IsZero() && s.Time.Before(from) {
					continue
				}
				if !to.IsZero() && s.Time.After(to) {
					continue
				}
				series.DataPoints = append(series.DataPoints, []float64{stat(s), float64(s.Time.UnixNano() / int64(time.Millisecond))})
			}
			return series, nil
		})
	}
	return g
}

// Routes returns the datasource routes.
func (g *Grafana) Routes() []Route {
	return []Route{
		{Action: Data, Path: "search", Method: POST, Exec: g.search},
		{Action: Data, Path: "query", Method: POST, Exec: g.query},
	}
}

func (g *Grafana) search(r *http.Request) ([]byte, int, error) {
	targets := make([]string, 0, len(g.targets))
	for target := range g.targets {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	return reply(targets, nil)
}

func (g *Grafana) query(r *http.Request) ([]byte, int, error) {
	var query Query
	if err := JsonRead(r, false, &query); err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("could not decode query: %w", err)
	}
	data := make([]Series, 0)
	for _, target := range query.Targets {
		t, ok := g.targets[target.Target]
		if !ok {
			log.Error().Str("target", target.Target).Msg("unknown target")
			continue
		}
		series, err := t(query.Range.From, query.Range.To)
		if err != nil {
			return nil, http.StatusInternalServerError, err
		}
		data = append(data, series)
	}
	return reply(data, nil)
}
