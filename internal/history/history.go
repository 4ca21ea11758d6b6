package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/evanofslack/ddns-agent/internal/metrics"
)

const updatePrefix = "update:"

// Entry records one confirmed change of the remote record.
type Entry struct {
	At       time.Time `json:"at"`
	RecordID string    `json:"recordId"`
	Name     string    `json:"name"`
	OldIP    string    `json:"oldIp"`
	NewIP    string    `json:"newIp"`
}

type Journal interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

type badgerJournal struct {
	db      *badger.DB
	metrics *metrics.Metrics
}

func Open(path string, metrics *metrics.Metrics) (Journal, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable Badger's internal logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &badgerJournal{db: db, metrics: metrics}, nil
}

func (j *badgerJournal) Append(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		j.metrics.IncHistoryRequest("append", false)
		return err
	}

	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(entry.At), data)
	})
	j.metrics.IncHistoryRequest("append", err == nil)
	return err
}

// List returns all entries, oldest first.
func (j *badgerJournal) List(ctx context.Context) ([]Entry, error) {
	entries := []Entry{}

	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(updatePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry Entry
				if err := json.Unmarshal(val, &entry); err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	j.metrics.IncHistoryRequest("read", err == nil)
	return entries, err
}

func (j *badgerJournal) Close() error {
	return j.db.Close()
}

// Keys sort by time since the timestamp is zero padded.
func entryKey(at time.Time) []byte {
	return []byte(fmt.Sprintf("%s%020d", updatePrefix, at.UnixNano()))
}

type nopJournal struct{}

// Nop returns a journal that stores nothing.
func Nop() Journal {
	return nopJournal{}
}

func (nopJournal) Append(ctx context.Context, entry Entry) error { return nil }
func (nopJournal) List(ctx context.Context) ([]Entry, error)     { return []Entry{}, nil }
func (nopJournal) Close() error                                  { return nil }
