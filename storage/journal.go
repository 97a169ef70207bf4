// Package storage persists the operational record of the strategy daemon: a
// journal of emitted strategy events, keyed so the most recent harvests can
// be served cheaply over RPC.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"compounder/core/events"
)

var (
	bucketHarvests = []byte("harvests")
	bucketEvents   = []byte("events")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

// EventRecord is the persisted form of any strategy event.
type EventRecord struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
	RecordedAt time.Time         `json:"recordedAt"`
}

// Journal is a BoltDB-backed event sink. It satisfies events.Emitter so it
// can be fanned into the strategy's emitter alongside metrics and logging.
type Journal struct {
	db  *bolt.DB
	now func() time.Time
}

// OpenJournal initialises (and migrates) the BoltDB-backed journal.
func OpenJournal(path string, options *bolt.Options) (*Journal, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketHarvests, bucketEvents} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Emit implements events.Emitter. Persistence failures are swallowed here:
// the journal is an observer and must never abort a harvest that already
// settled on chain. Callers wanting the error path use Record directly.
func (j *Journal) Emit(evt events.Event) {
	_ = j.Record(evt)
}

// Record appends an event to the journal.
func (j *Journal) Record(evt events.Event) error {
	if evt == nil {
		return nil
	}
	payload := evt.Event()
	if payload == nil {
		return nil
	}
	record := EventRecord{
		ID:         uuid.NewString(),
		Type:       payload.Type,
		Attributes: payload.Attributes,
		RecordedAt: j.now().UTC(),
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEvents)
		if record.Type == events.TypeHarvested {
			bucket = tx.Bucket(bucketHarvests)
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		return bucket.Put(sequenceKey(seq), encoded)
	})
}

// LastHarvest returns the most recent harvest record.
func (j *Journal) LastHarvest() (EventRecord, error) {
	var record EventRecord
	err := j.db.View(func(tx *bolt.Tx) error {
		_, raw := tx.Bucket(bucketHarvests).Cursor().Last()
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &record)
	})
	if err != nil {
		return EventRecord{}, err
	}
	return record, nil
}

// RecentHarvests returns up to limit harvest records, newest first.
func (j *Journal) RecentHarvests(limit int) ([]EventRecord, error) {
	return j.recent(bucketHarvests, limit)
}

// RecentEvents returns up to limit non-harvest records, newest first.
func (j *Journal) RecentEvents(limit int) ([]EventRecord, error) {
	return j.recent(bucketEvents, limit)
}

func (j *Journal) recent(name []byte, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	var records []EventRecord
	err := j.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(name)
		// The caller controls limit, the bucket bounds the preallocation.
		prealloc := limit
		if keys := bucket.Stats().KeyN; keys < prealloc {
			prealloc = keys
		}
		records = make([]EventRecord, 0, prealloc)
		cursor := bucket.Cursor()
		for k, raw := cursor.Last(); k != nil && len(records) < limit; k, raw = cursor.Prev() {
			var record EventRecord
			if err := json.Unmarshal(raw, &record); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// HarvestCount reports how many harvest cycles the journal has recorded.
func (j *Journal) HarvestCount() (int, error) {
	var count int
	err := j.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketHarvests).Stats().KeyN
		return nil
	})
	return count, err
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
