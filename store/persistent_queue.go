package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"

	"github.com/caffeine-vm/caffeine"
)

var _ caffeine.ExecutionContextStore = (*PersistentQueue)(nil)

var snapshotBucket = []byte("contexts")

// ContextSnapshot is a durable, lossy record of a Context at the moment
// it was queued: enough to audit and resume exploration bookkeeping
// after a crash, but not a serialization of full execution state. A
// Context's stack frames bind ir.Value keys into the *ir.Module being
// interpreted, and its Expr trees and Heap/AssertionList internals have
// no module-independent wire form; reconstructing either without the
// original module in hand isn't attempted here.
type ContextSnapshot struct {
	ID         uint64
	Status     string
	Reason     string
	StackDepth int
	NumProven  int
	NumOpen    int
	QueuedAt   time.Time
}

func snapshotOf(ctx *caffeine.Context) ContextSnapshot {
	return ContextSnapshot{
		ID:         ctx.ID,
		Status:     string(ctx.Status),
		Reason:     ctx.Reason,
		StackDepth: len(ctx.Stack),
		NumProven:  len(ctx.Assertions.Proven()),
		NumOpen:    len(ctx.Assertions.Unproven()),
	}
}

// PersistentQueue is a DFS-ordered ExecutionContextStore whose AddContext
// calls are additionally mirrored to a bbolt-backed journal, so a long
// exploration run's progress (which context IDs were ever queued, and in
// what state) survives a process restart for audit and crash-recovery
// purposes. NextContext/Size still operate purely in memory: on restart
// the journal can be inspected but the in-flight search worklist itself
// is not reloaded from it, since a Context's live LLVM bindings cannot be
// reconstructed from the journal alone. Flushes batch, the way
// crytic-medusa's persistentCache defers bucket writes until
// flushThreshold pending entries accumulate, rather than hitting disk on
// every AddContext.
type PersistentQueue struct {
	mu       sync.Mutex
	contexts []*caffeine.Context
	db       *bbolt.DB

	pending        []ContextSnapshot
	flushThreshold int

	// Log reports journal flushes; its zero value is a no-op logger.
	Log zerolog.Logger
}

// OpenPersistentQueue opens (creating if absent) a bbolt database at path
// and returns a PersistentQueue backed by it.
func OpenPersistentQueue(path string) (*PersistentQueue, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("caffeine: could not open context journal: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &PersistentQueue{
		db:             db,
		flushThreshold: 25,
		Log:            zerolog.Nop(),
	}, nil
}

// AddContext queues ctx for exploration and journals its snapshot.
func (s *PersistentQueue) AddContext(ctx *caffeine.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contexts = append(s.contexts, ctx)
	s.pending = append(s.pending, snapshotOf(ctx))
	if len(s.pending) >= s.flushThreshold {
		if err := s.flushLocked(); err != nil {
			// The in-memory worklist is authoritative for exploration;
			// a journal write failure is recorded but not fatal.
			s.Log.Warn().Err(err).Msg("context journal flush failed")
		}
	}
}

// NextContext pops the most recently added context, the same LIFO order
// as DFS.
func (s *PersistentQueue) NextContext() (*caffeine.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.contexts) == 0 {
		return nil, false
	}
	ctx := s.contexts[len(s.contexts)-1]
	s.contexts = s.contexts[:len(s.contexts)-1]
	return ctx, true
}

func (s *PersistentQueue) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts)
}

// Flush forces any batched snapshots out to the journal immediately,
// for callers that want a consistent on-disk view (e.g. before an
// intentional shutdown) without waiting for flushThreshold to fill.
func (s *PersistentQueue) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *PersistentQueue) flushLocked() error {
	if len(s.pending) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(snapshotBucket)
		for _, snap := range s.pending {
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
				return err
			}
			if err := bucket.Put(snapshotKey(snap.ID), buf.Bytes()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("caffeine: flushing context journal: %w", err)
	}
	s.Log.Debug().Int("snapshots", len(s.pending)).Msg("flushed context journal")
	s.pending = s.pending[:0]
	return nil
}

// Snapshots returns every journaled snapshot currently on disk, ordered
// by context ID, for inspecting a prior run's progress.
func (s *PersistentQueue) Snapshots() ([]ContextSnapshot, error) {
	var out []ContextSnapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(snapshotBucket)
		return bucket.ForEach(func(k, v []byte) error {
			var snap ContextSnapshot
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&snap); err != nil {
				return err
			}
			out = append(out, snap)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("caffeine: reading context journal: %w", err)
	}
	return out, nil
}

// Close flushes any pending snapshots and closes the underlying database.
func (s *PersistentQueue) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flushLocked(); err != nil {
		return err
	}
	return s.db.Close()
}

func snapshotKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}
