package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"tanchat/pkg/logger"
	"tanchat/pkg/models"
)

var db *pebble.DB
var dbPath string

// seq is a small counter appended to keys so that two messages created in
// the same nanosecond still sort deterministically.
var seq uint64

// Message keys are "msg:<20-digit unixnano>-<6-digit seq>" and message IDs
// are "m-<20-digit unixnano>-<6-digit seq>", so chronology, time cutoffs
// and patch-by-id all derive from the id itself.
const (
	keyPrefix = "msg:"
	// keyEnd is the exclusive upper bound for the message keyspace
	// (':' + 1 == ';').
	keyEnd = "msg;"
)

// ErrNotFound is returned when a message id does not exist in the log.
var ErrNotFound = pebble.ErrNotFound

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for use by this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool { return db != nil }

func idFor(ts int64, s uint64) string {
	return fmt.Sprintf("m-%020d-%06d", ts, s)
}

func keyForID(id string) ([]byte, error) {
	if !strings.HasPrefix(id, "m-") {
		return nil, fmt.Errorf("invalid message id: %s", id)
	}
	return []byte(keyPrefix + id[2:]), nil
}

// TSFromID extracts the creation timestamp encoded in a message id.
func TSFromID(id string) (int64, error) {
	if !strings.HasPrefix(id, "m-") || len(id) < 23 {
		return 0, fmt.Errorf("invalid message id: %s", id)
	}
	return strconv.ParseInt(id[2:22], 10, 64)
}

// Append inserts a new message at the tail of the log and returns it with
// its assigned id and timestamp.
func Append(author, body string, complete bool) (models.Message, error) {
	if db == nil {
		return models.Message{}, fmt.Errorf("pebble not opened; call store.Open first")
	}
	ts := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&seq, 1)
	m := models.Message{ID: idFor(ts, s), Author: author, TS: ts, Body: body, Complete: complete}
	data, err := json.Marshal(m)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to marshal message: %w", err)
	}
	key, _ := keyForID(m.ID)
	if err := db.Set(key, data, pebble.Sync); err != nil {
		logger.Error("append_failed", "key", string(key), "error", err)
		return models.Message{}, err
	}
	appendsTotal.Inc()
	logger.Debug("message_appended", "id", m.ID, "author", author, "complete", complete)
	return m, nil
}

// Get returns the message with the given id.
func Get(id string) (models.Message, error) {
	if db == nil {
		return models.Message{}, fmt.Errorf("pebble not opened; call store.Open first")
	}
	key, err := keyForID(id)
	if err != nil {
		return models.Message{}, err
	}
	v, closer, err := db.Get(key)
	if err != nil {
		return models.Message{}, err
	}
	defer closer.Close()
	var m models.Message
	if err := json.Unmarshal(v, &m); err != nil {
		return models.Message{}, fmt.Errorf("invalid message JSON: %w", err)
	}
	return m, nil
}

// Patch rewrites the mutable fields of a message in place. Nil fields are
// left untouched.
func Patch(id string, body *string, complete *bool) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	m, err := Get(id)
	if err != nil {
		return err
	}
	if body != nil {
		m.Body = *body
	}
	if complete != nil {
		m.Complete = *complete
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	key, _ := keyForID(id)
	if err := db.Set(key, data, pebble.Sync); err != nil {
		logger.Error("patch_failed", "id", id, "error", err)
		return err
	}
	patchesTotal.Inc()
	logger.Debug("message_patched", "id", id, "complete", m.Complete, "body_len", len(m.Body))
	return nil
}

// Delete removes the message with the given id. Deletion is permanent.
func Delete(id string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	key, err := keyForID(id)
	if err != nil {
		return err
	}
	if err := db.Delete(key, pebble.Sync); err != nil {
		logger.Error("delete_failed", "id", id, "error", err)
		return err
	}
	deletesTotal.Inc()
	logger.Info("message_deleted", "id", id)
	return nil
}

func newIter() (*pebble.Iterator, error) {
	return db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyEnd),
	})
}

func decodeValue(v []byte) (models.Message, error) {
	var m models.Message
	if err := json.Unmarshal(v, &m); err != nil {
		return models.Message{}, fmt.Errorf("invalid message JSON: %w", err)
	}
	return m, nil
}

// ListRecent returns up to limit messages in descending creation order
// (newest first). Callers that present conversation context must reverse.
func ListRecent(limit int) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := newIter()
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for valid := iter.Last(); valid; valid = iter.Prev() {
		m, err := decodeValue(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}

// ListBefore returns up to limit messages strictly preceding cutoffTS, in
// descending creation order.
func ListBefore(cutoffTS int64, limit int) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := newIter()
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	// Keys at cutoffTS start with "msg:<padded>-", which sorts after the
	// bare "msg:<padded>" bound, so SeekLT lands strictly before the cutoff.
	bound := []byte(fmt.Sprintf("%s%020d", keyPrefix, cutoffTS))
	var out []models.Message
	for valid := iter.SeekLT(bound); valid; valid = iter.Prev() {
		m, err := decodeValue(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}

// ListIncomplete scans the whole log and returns every message with
// Complete=false, in ascending creation order.
func ListIncomplete() ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := newIter()
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for valid := iter.First(); valid; valid = iter.Next() {
		m, err := decodeValue(iter.Value())
		if err != nil {
			return nil, err
		}
		if !m.Complete {
			out = append(out, m)
		}
	}
	return out, iter.Error()
}

// Reset deletes every message in the log.
func Reset() error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if err := db.DeleteRange([]byte(keyPrefix), []byte(keyEnd), pebble.Sync); err != nil {
		logger.Error("reset_failed", "error", err)
		return err
	}
	logger.Info("log_reset")
	return nil
}
