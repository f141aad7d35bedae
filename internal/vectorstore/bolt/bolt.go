package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"multirag/internal/domain"
	"multirag/internal/vectorstore"
)

// Open opens (creating if needed) the bbolt database at path.
func Open(path string) (*bbolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
}

// Storage keeps one session's vectors in a bucket named after its table.
// Build discards whatever the bucket held before.
type Storage struct {
	db    *bbolt.DB
	table []byte

	mu    sync.RWMutex
	count int
}

// NewStorage returns a store for table inside db. Nothing is written until Build.
func NewStorage(db *bbolt.DB, table string) *Storage {
	return &Storage{db: db, table: []byte(table)}
}

type record struct {
	Chunk  domain.Chunk `json:"chunk"`
	Vector []float64    `json:"vector"`
}

func key(i int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(i))
	return k
}

func (s *Storage) Build(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := vectorstore.CheckDimensions(chunks); !ok {
		return vectorstore.ErrDimensionMismatch
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(s.table) != nil {
			if err := tx.DeleteBucket(s.table); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(s.table)
		if err != nil {
			return err
		}
		for i, ec := range chunks {
			data, err := json.Marshal(record{Chunk: ec.Chunk, Vector: ec.Vector})
			if err != nil {
				return err
			}
			if err := b.Put(key(i), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bolt build %s: %w", s.table, err)
	}
	s.mu.Lock()
	s.count = len(chunks)
	s.mu.Unlock()
	return nil
}

// Search scans the bucket in key order, which is insertion order.
func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var chunks []domain.EmbeddedChunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.table)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var r record
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			chunks = append(chunks, domain.EmbeddedChunk{Chunk: r.Chunk, Vector: r.Vector})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bolt search %s: %w", s.table, err)
	}
	return vectorstore.Rank(vector, chunks, topK)
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *Storage) Drop(ctx context.Context) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.DeleteBucket(s.table)
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.count = 0
	s.mu.Unlock()
	return nil
}
