package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/tab-monitor/pkg/aggregator"
	"github.com/0xmhha/tab-monitor/pkg/logger"
)

// Bucket names.
var (
	bucketDomains   = []byte("domains")         // Domain -> domainRecord
	bucketDaily     = []byte("daily")           // Date -> dailyRecord
	bucketMeta      = []byte("meta")            // Key -> JSON scalar
	bucketPositions = []byte("spool_positions") // Path -> Offset
)

// BoltStore implements Backend using BoltDB.
type BoltStore struct {
	db     *bolt.DB
	path   string
	logger logger.Logger
}

// OpenBolt opens or creates a BoltDB file at path.
//
// Parameters:
//   - path: Database file path (directory must exist)
//   - timeout: How long to wait for the file lock
//   - log: Logger instance
func OpenBolt(path string, timeout time.Duration, log logger.Logger) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Initialize buckets.
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketDomains, bucketDaily, bucketMeta, bucketPositions} {
			if _, createErr := tx.CreateBucketIfNotExists(name); createErr != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, createErr)
			}
		}
		return nil
	}); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after initialization error",
				"error", closeErr)
		}
		return nil, err
	}

	log.Info("bolt storage opened", "db_path", path)

	return &BoltStore{
		db:     db,
		path:   path,
		logger: log,
	}, nil
}

// Load implements aggregator.Persister.Load.
func (s *BoltStore) Load(ctx context.Context) (*aggregator.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := &aggregator.Snapshot{
		Domains: make(map[string]aggregator.DomainAggregate),
		Days:    make(map[string]aggregator.DailyStats),
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketDomains).ForEach(func(k, v []byte) error {
			var rec domainRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("%w: domain %s: %v", ErrCorruptRecord, k, err)
			}
			snap.Domains[string(k)] = decodeDomain(rec)
			return nil
		}); err != nil {
			return err
		}

		if err := tx.Bucket(bucketDaily).ForEach(func(k, v []byte) error {
			var rec dailyRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("%w: day %s: %v", ErrCorruptRecord, k, err)
			}
			snap.Days[string(k)] = decodeDay(rec)
			return nil
		}); err != nil {
			return err
		}

		meta := tx.Bucket(bucketMeta)
		if data := meta.Get([]byte(metaTrackingEnabled)); data != nil {
			if err := json.Unmarshal(data, &snap.Meta.TrackingEnabled); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrCorruptRecord, metaTrackingEnabled, err)
			}
			snap.HasMeta = true
		}
		if data := meta.Get([]byte(metaSessionAnchor)); data != nil {
			var ms int64
			if err := json.Unmarshal(data, &ms); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrCorruptRecord, metaSessionAnchor, err)
			}
			snap.Meta.SessionAnchor = msToTime(ms)
			snap.HasMeta = true
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// Save implements aggregator.Persister.Save.
func (s *BoltStore) Save(ctx context.Context, batch aggregator.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		domains := tx.Bucket(bucketDomains)
		for _, d := range batch.Domains {
			data, err := json.Marshal(encodeDomain(d))
			if err != nil {
				return fmt.Errorf("failed to marshal domain: %w", err)
			}
			if putErr := domains.Put([]byte(d.Domain), data); putErr != nil {
				return fmt.Errorf("failed to store domain: %w", putErr)
			}
		}

		daily := tx.Bucket(bucketDaily)
		for _, d := range batch.Days {
			data, err := json.Marshal(encodeDay(d))
			if err != nil {
				return fmt.Errorf("failed to marshal day: %w", err)
			}
			if putErr := daily.Put([]byte(d.Date), data); putErr != nil {
				return fmt.Errorf("failed to store day: %w", putErr)
			}
		}

		if batch.Meta != nil {
			meta := tx.Bucket(bucketMeta)
			enabled, _ := json.Marshal(batch.Meta.TrackingEnabled)
			anchor, _ := json.Marshal(timeToMS(batch.Meta.SessionAnchor))
			if putErr := meta.Put([]byte(metaTrackingEnabled), enabled); putErr != nil {
				return fmt.Errorf("failed to store meta: %w", putErr)
			}
			if putErr := meta.Put([]byte(metaSessionAnchor), anchor); putErr != nil {
				return fmt.Errorf("failed to store meta: %w", putErr)
			}
		}

		return nil
	})
}

// Clear implements aggregator.Persister.Clear.
func (s *BoltStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketDomains, bucketDaily} {
			if err := tx.DeleteBucket(name); err != nil {
				return fmt.Errorf("failed to delete %s bucket: %w", name, err)
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("failed to recreate %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("aggregates cleared", "db_path", s.path)
	return nil
}

// GetPosition implements reader.PositionStore.GetPosition.
func (s *BoltStore) GetPosition(path string) (int64, error) {
	var offset int64

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPositions).Get([]byte(path))
		if data == nil {
			// No position stored, start from beginning.
			offset = 0
			return nil
		}

		if unmarshalErr := json.Unmarshal(data, &offset); unmarshalErr != nil {
			return fmt.Errorf("failed to unmarshal offset: %w", unmarshalErr)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return offset, nil
}

// SetPosition implements reader.PositionStore.SetPosition.
func (s *BoltStore) SetPosition(path string, offset int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(offset)
		if err != nil {
			return fmt.Errorf("failed to marshal offset: %w", err)
		}

		if putErr := tx.Bucket(bucketPositions).Put([]byte(path), data); putErr != nil {
			return fmt.Errorf("failed to store position: %w", putErr)
		}

		return nil
	})
}

// Path implements Backend.Path.
func (s *BoltStore) Path() string {
	return s.path
}

// Close implements Backend.Close.
func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.logger.Info("bolt storage closed")
	return nil
}
