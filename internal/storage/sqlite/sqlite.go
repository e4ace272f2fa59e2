package sqlite

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/drakos74/hybrid-digits/internal/storage"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS system_config (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    feature_extractor TEXT NOT NULL,
    clustering TEXT NOT NULL,
    weights TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS clusters (
    id INTEGER PRIMARY KEY,
    generation TEXT NOT NULL,
    centroid BLOB NOT NULL,
    size INTEGER NOT NULL,
    params TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS cluster_weights (
    cluster_id INTEGER NOT NULL,
    label INTEGER NOT NULL,
    weight REAL NOT NULL,
    PRIMARY KEY (cluster_id, label)
);
CREATE TABLE IF NOT EXISTS samples (
    id TEXT PRIMARY KEY,
    generation TEXT NOT NULL,
    image BLOB,
    predicted_label INTEGER NOT NULL,
    confidence REAL NOT NULL,
    cluster_id INTEGER NOT NULL,
    feedback TEXT NOT NULL,
    verified_label INTEGER,
    true_label INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS statistics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    time TEXT NOT NULL,
    generation TEXT NOT NULL,
    accuracy REAL NOT NULL,
    payload TEXT NOT NULL
);
`

// Archive is the sqlite implementation of the session archive.
type Archive struct {
	db *sql.DB
}

var _ storage.Archive = (*Archive)(nil)

// Open opens or creates the database at the given path.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("could not open database '%s': %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create schema: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) SaveConfig(cfg model.SystemConfig) error {
	fe, err := json.Marshal(cfg.FeatureExtractor)
	if err != nil {
		return err
	}
	cl, err := json.Marshal(cfg.Clustering)
	if err != nil {
		return err
	}
	w, err := json.Marshal(cfg.Weights)
	if err != nil {
		return err
	}
	_, err = a.db.Exec(`
        INSERT OR REPLACE INTO system_config (id, feature_extractor, clustering, weights, updated_at)
        VALUES (1, ?, ?, ?, ?)`,
		string(fe), string(cl), string(w), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("could not save config: %w", err)
	}
	return nil
}

func (a *Archive) LoadConfig() (model.SystemConfig, error) {
	var cfg model.SystemConfig
	var fe, cl, w string
	err := a.db.QueryRow(`SELECT feature_extractor, clustering, weights FROM system_config WHERE id = 1`).Scan(&fe, &cl, &w)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, fmt.Errorf("no config: %w", storage.NotFoundErr)
	}
	if err != nil {
		return cfg, fmt.Errorf("could not load config: %w", err)
	}
	if err := json.Unmarshal([]byte(fe), &cfg.FeatureExtractor); err != nil {
		return cfg, fmt.Errorf("could not decode feature extractor config: %v: %w", err, storage.CouldNotLoadErr)
	}
	if err := json.Unmarshal([]byte(cl), &cfg.Clustering); err != nil {
		return cfg, fmt.Errorf("could not decode clustering config: %v: %w", err, storage.CouldNotLoadErr)
	}
	if err := json.Unmarshal([]byte(w), &cfg.Weights); err != nil {
		return cfg, fmt.Errorf("could not decode weights config: %v: %w", err, storage.CouldNotLoadErr)
	}
	return cfg, nil
}

// SaveClusters replaces the stored clusters within one transaction.
func (a *Archive) SaveClusters(clusters []model.Cluster) error {
	tx, err := a.db.Begin()
	if err != nil {
		return err
	}
	if err := saveClusters(tx, clusters); err != nil {
		tx.Rollback()
		return fmt.Errorf("could not save clusters: %w", err)
	}
	return tx.Commit()
}

func saveClusters(tx *sql.Tx, clusters []model.Cluster) error {
	if _, err := tx.Exec(`DELETE FROM cluster_weights`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM clusters`); err != nil {
		return err
	}
	for _, c := range clusters {
		params, err := json.Marshal(c.Params)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
            INSERT INTO clusters (id, generation, centroid, size, params)
            VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.Generation, encode(c.Centroid), c.Size, string(params))
		if err != nil {
			return err
		}
		for l, w := range c.Weights {
			_, err = tx.Exec(`
                INSERT INTO cluster_weights (cluster_id, label, weight)
                VALUES (?, ?, ?)`, c.ID, l, w)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Archive) LoadClusters() ([]model.Cluster, error) {
	rows, err := a.db.Query(`SELECT id, generation, centroid, size, params FROM clusters ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("could not query clusters: %w", err)
	}
	defer rows.Close()

	clusters := make([]model.Cluster, 0)
	index := make(map[int]int)
	for rows.Next() {
		var c model.Cluster
		var centroid []byte
		var params string
		if err := rows.Scan(&c.ID, &c.Generation, &centroid, &c.Size, &params); err != nil {
			return nil, err
		}
		c.Centroid = decode(centroid)
		if err := json.Unmarshal([]byte(params), &c.Params); err != nil {
			return nil, fmt.Errorf("could not decode params of cluster %d: %v: %w", c.ID, err, storage.CouldNotLoadErr)
		}
		index[c.ID] = len(clusters)
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	wRows, err := a.db.Query(`SELECT cluster_id, label, weight FROM cluster_weights`)
	if err != nil {
		return nil, fmt.Errorf("could not query weights: %w", err)
	}
	defer wRows.Close()
	for wRows.Next() {
		var id, label int
		var w float64
		if err := wRows.Scan(&id, &label, &w); err != nil {
			return nil, err
		}
		i, ok := index[id]
		if !ok || !model.Label(label).Valid() {
			return nil, fmt.Errorf("orphan weight for cluster %d label %d: %w", id, label, storage.CouldNotLoadErr)
		}
		clusters[i].Weights[label] = w
	}
	return clusters, wRows.Err()
}

func (a *Archive) SaveSample(s model.Sample) error {
	var verified interface{}
	if s.VerifiedLabel != nil {
		verified = int(*s.VerifiedLabel)
	}
	_, err := a.db.Exec(`
        INSERT INTO samples (id, generation, image, predicted_label, confidence, cluster_id,
            feedback, verified_label, true_label, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            feedback = excluded.feedback,
            verified_label = excluded.verified_label,
            updated_at = excluded.updated_at`,
		s.ID, s.Generation, encode(s.Image), int(s.PredictedLabel), s.Confidence, s.ClusterID,
		string(s.Feedback), verified, int(s.TrueLabel), formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("could not save sample '%s': %w", s.ID, err)
	}
	return nil
}

func (a *Archive) LoadSamples() ([]model.Sample, error) {
	rows, err := a.db.Query(`
        SELECT id, generation, image, predicted_label, confidence, cluster_id,
            feedback, verified_label, true_label, created_at, updated_at
        FROM samples ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("could not query samples: %w", err)
	}
	defer rows.Close()

	samples := make([]model.Sample, 0)
	for rows.Next() {
		var s model.Sample
		var image []byte
		var feedback, created, updated string
		var verified sql.NullInt64
		err := rows.Scan(&s.ID, &s.Generation, &image, &s.PredictedLabel, &s.Confidence, &s.ClusterID,
			&feedback, &verified, &s.TrueLabel, &created, &updated)
		if err != nil {
			return nil, err
		}
		if len(image) > 0 {
			s.Image = model.Image(decode(image))
		}
		s.Feedback = model.Feedback(feedback)
		if verified.Valid {
			l := model.Label(verified.Int64)
			s.VerifiedLabel = &l
		}
		if s.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if s.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

func (a *Archive) AppendSnapshot(snapshot model.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = a.db.Exec(`
        INSERT INTO statistics (time, generation, accuracy, payload)
        VALUES (?, ?, ?, ?)`,
		formatTime(snapshot.Time), snapshot.Generation, snapshot.Accuracy, string(payload))
	if err != nil {
		return fmt.Errorf("could not save snapshot: %w", err)
	}
	return nil
}

func (a *Archive) Snapshots() ([]model.Snapshot, error) {
	rows, err := a.db.Query(`SELECT payload FROM statistics ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("could not query statistics: %w", err)
	}
	defer rows.Close()
	snapshots := make([]model.Snapshot, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var s model.Snapshot
		if err := json.Unmarshal([]byte(payload), &s); err != nil {
			return nil, fmt.Errorf("could not decode snapshot: %v: %w", err, storage.CouldNotLoadErr)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// ResetAll clears everything but the statistics history.
func (a *Archive) ResetAll() error {
	tx, err := a.db.Begin()
	if err != nil {
		return err
	}
	for _, table := range []string{"cluster_weights", "clusters", "samples", "system_config"} {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			tx.Rollback()
			return fmt.Errorf("could not clear '%s': %w", table, err)
		}
	}
	return tx.Commit()
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func encode(v []float64) []byte {
	bb := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(bb[8*i:], math.Float64bits(f))
	}
	return bb
}

func decode(bb []byte) []float64 {
	v := make([]float64, len(bb)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(bb[8*i:]))
	}
	return v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return t, fmt.Errorf("could not parse time '%s': %v: %w", s, err, storage.CouldNotLoadErr)
	}
	return t, nil
}
