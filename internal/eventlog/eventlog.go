// Package eventlog implements a bounded per-session replay buffer for the
// dynamic engine's event bus: a subscriber that connects after a session
// has already produced events (a reconnecting dashboard, a freshly attached
// control client) can ask for the last N events before it starts receiving
// the live stream, instead of seeing a cold start. Sessions are not durable
// across a process restart — the log itself lives in a badger instance
// opened in-memory, scoped to this process's lifetime.
package eventlog

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/streamkit/streamkit/internal/dynamicengine"
)

// Log records events per session, keeping only the most recent capacity
// entries for each. It is safe for concurrent use.
type Log struct {
	db       *badger.DB
	capacity int
	logger   zerolog.Logger

	mu     sync.Mutex
	seq    map[string]int64 // next sequence number to assign, per session
	lowSeq map[string]int64 // oldest sequence number still retained, per session
}

// Open starts an in-memory badger instance backing the replay buffer.
// capacity bounds how many events are retained per session; older entries
// are dropped as new ones arrive.
func Open(capacity int, logger zerolog.Logger) (*Log, error) {
	if capacity <= 0 {
		capacity = 200
	}
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open badger: %w", err)
	}
	return &Log{
		db:       db,
		capacity: capacity,
		logger:   logger,
		seq:      make(map[string]int64),
		lowSeq:   make(map[string]int64),
	}, nil
}

// Close releases the underlying badger instance.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record appends ev to sessionID's replay buffer, evicting the oldest
// entry once the buffer exceeds capacity.
func (l *Log) Record(sessionID string, ev dynamicengine.Event) error {
	l.mu.Lock()
	seq := l.seq[sessionID]
	l.seq[sessionID] = seq + 1
	low := l.lowSeq[sessionID]
	evict := int64(-1)
	if seq-low >= int64(l.capacity) {
		evict = low
		l.lowSeq[sessionID] = low + 1
	}
	l.mu.Unlock()

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventlog: marshal event: %w", err)
	}

	return l.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(eventKey(sessionID, seq), data); err != nil {
			return err
		}
		if evict >= 0 {
			if err := txn.Delete(eventKey(sessionID, evict)); err != nil && err != badger.ErrKeyNotFound {
				return err
			}
		}
		return nil
	})
}

// Replay returns every event currently retained for sessionID, oldest
// first.
func (l *Log) Replay(sessionID string) ([]dynamicengine.Event, error) {
	prefix := []byte(sessionID + ":")
	var events []dynamicengine.Event
	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				var ev dynamicengine.Event
				if err := json.Unmarshal(val, &ev); err != nil {
					return err
				}
				events = append(events, ev)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("eventlog: replay %q: %w", sessionID, err)
	}
	return events, nil
}

// Forget drops every retained event for sessionID, called once a session is
// destroyed.
func (l *Log) Forget(sessionID string) error {
	l.mu.Lock()
	delete(l.seq, sessionID)
	delete(l.lowSeq, sessionID)
	l.mu.Unlock()
	return l.db.DropPrefix([]byte(sessionID + ":"))
}

// eventKey formats a lexicographically sortable key: zero-padded sequence
// numbers keep badger's prefix iteration in insertion order.
func eventKey(sessionID string, seq int64) []byte {
	return []byte(fmt.Sprintf("%s:%019d", sessionID, seq))
}
