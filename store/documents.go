package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/defenselab/pcapwatch/models"
)

const (
	analysesRecentKey  = "analyses:recent" // document ids, newest first
	analysesSeqKey     = "analyses:seq"
	analysesByFileKey  = "analyses:byfile" // filename -> latest document id
	threatsRecentKey   = "threats:recent"
	threatsSeqKey      = "threats:seq"
	threatsHighKey     = "threats:high"
	highSeverityMarker = "high"
)

// Documents persists analyses and threats documents in redis. A nil
// Documents is valid: every method degrades to a no-op, so persistence
// problems never fail an analysis.
type Documents struct {
	rdb *redis.Client
}

// NewDocuments connects to redis and verifies the connection.
func NewDocuments(addr, password string) (*Documents, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address not configured")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Documents{rdb: rdb}, nil
}

func (d *Documents) available() bool { return d != nil && d.rdb != nil }

func (d *Documents) Close() error {
	if !d.available() {
		return nil
	}
	return d.rdb.Close()
}

// SaveAnalysis stores one analyses document and indexes it by filename.
// Returns the document id, or "" when the store is absent.
func (d *Documents) SaveAnalysis(ctx context.Context, doc models.AnalysisDocument) (string, error) {
	if !d.available() {
		return "", nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	seq, err := d.rdb.Incr(ctx, analysesSeqKey).Result()
	if err != nil {
		return "", err
	}
	id := fmt.Sprintf("analysis:%d", seq)

	pipe := d.rdb.TxPipeline()
	pipe.Set(ctx, id, data, 0)
	pipe.LPush(ctx, analysesRecentKey, id)
	pipe.HSet(ctx, analysesByFileKey, doc.Filename, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return id, nil
}

// SaveThreats stores one threats document. High-severity documents are
// additionally tracked on a dedicated list for the dashboard.
func (d *Documents) SaveThreats(ctx context.Context, doc models.ThreatsDocument) (string, error) {
	if !d.available() {
		return "", nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	seq, err := d.rdb.Incr(ctx, threatsSeqKey).Result()
	if err != nil {
		return "", err
	}
	id := fmt.Sprintf("threat:%d", seq)

	pipe := d.rdb.TxPipeline()
	pipe.Set(ctx, id, data, 0)
	pipe.LPush(ctx, threatsRecentKey, id)
	if doc.ThreatSummary.OverallThreatLevel == highSeverityMarker {
		pipe.LPush(ctx, threatsHighKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return id, nil
}

// RecentAnalyses returns up to limit analyses documents, newest first.
func (d *Documents) RecentAnalyses(ctx context.Context, limit int) ([]models.AnalysisDocument, error) {
	var docs []models.AnalysisDocument
	err := d.collect(ctx, analysesRecentKey, limit, func(data []byte) error {
		var doc models.AnalysisDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	return docs, err
}

// RecentThreats returns up to limit threats documents, newest first.
func (d *Documents) RecentThreats(ctx context.Context, limit int) ([]models.ThreatsDocument, error) {
	return d.collectThreats(ctx, threatsRecentKey, limit)
}

// HighThreats returns every high-severity threats document, newest first.
func (d *Documents) HighThreats(ctx context.Context) ([]models.ThreatsDocument, error) {
	return d.collectThreats(ctx, threatsHighKey, -1)
}

// AnalysisByFilename returns the latest analyses document for a file.
func (d *Documents) AnalysisByFilename(ctx context.Context, filename string) (*models.AnalysisDocument, error) {
	if !d.available() {
		return nil, nil
	}
	id, err := d.rdb.HGet(ctx, analysesByFileKey, filename).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	data, err := d.rdb.Get(ctx, id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc models.AnalysisDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Stats reports document counts for the reporting dashboard.
func (d *Documents) Stats(ctx context.Context) (models.StoreStats, error) {
	var stats models.StoreStats
	if !d.available() {
		return stats, nil
	}
	var err error
	if stats.TotalAnalyses, err = d.counter(ctx, analysesSeqKey); err != nil {
		return stats, err
	}
	if stats.TotalThreats, err = d.counter(ctx, threatsSeqKey); err != nil {
		return stats, err
	}
	if stats.HighSeverityThreats, err = d.rdb.LLen(ctx, threatsHighKey).Result(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (d *Documents) counter(ctx context.Context, key string) (int64, error) {
	n, err := d.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

func (d *Documents) collectThreats(ctx context.Context, key string, limit int) ([]models.ThreatsDocument, error) {
	var docs []models.ThreatsDocument
	err := d.collect(ctx, key, limit, func(data []byte) error {
		var doc models.ThreatsDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	return docs, err
}

// collect walks an id list and decodes each referenced document. A
// negative limit means the whole list.
func (d *Documents) collect(ctx context.Context, key string, limit int, decode func([]byte) error) error {
	if !d.available() {
		return nil
	}
	stop := int64(limit) - 1
	if limit < 0 {
		stop = -1
	}
	ids, err := d.rdb.LRange(ctx, key, 0, stop).Result()
	if err != nil {
		return err
	}
	for _, id := range ids {
		data, err := d.rdb.Get(ctx, id).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return err
		}
		if err := decode(data); err != nil {
			return err
		}
	}
	return nil
}
