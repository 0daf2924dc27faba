package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"settlr/core/events"
	"settlr/core/types"
	"settlr/observability"
	"settlr/storage"
)

var (
	entryPrefix = []byte("audit/entry/")
	metaKey     = []byte("audit/meta")
)

func entryKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", entryPrefix, seq))
}

// Entry is a single append-only audit record. Entries carry the full event
// attribute payload, including the plaintext bank details and payment
// references that are deliberately absent from persisted ledger state; the log
// is the canonical and only durable source for that plaintext.
type Entry struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	ReceivedAt int64             `json:"receivedAt"`
	Attributes map[string]string `json:"attributes"`
}

type logMeta struct {
	NextSequence uint64 `json:"nextSequence"`
}

// Log is an append-only, publicly queryable record of every event emitted by
// the settlement engine. Entries are never mutated or pruned. Log satisfies
// the events.Emitter interface.
type Log struct {
	mu      sync.Mutex
	db      storage.Database
	nextSeq uint64
	nowFn   func() int64
	logger  *slog.Logger
}

// NewLog opens the audit log over the given database, resuming the sequence
// counter from the last committed entry.
func NewLog(db storage.Database) (*Log, error) {
	l := &Log{
		db:     db,
		nowFn:  func() int64 { return time.Now().Unix() },
		logger: slog.Default(),
	}
	raw, err := db.Get(metaKey)
	switch {
	case err == nil:
		var meta logMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("audit: decode log meta: %w", err)
		}
		l.nextSeq = meta.NextSequence
	case err == storage.ErrNotFound:
		l.nextSeq = 1
	default:
		return nil, err
	}
	return l, nil
}

// SetNowFunc overrides the receive timestamp source. Primarily intended for
// tests.
func (l *Log) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

// SetLogger overrides the logger used to report persistence failures.
func (l *Log) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	l.logger = logger
}

type eventPayload interface {
	Event() *types.Event
}

// Emit appends the event to the log. Emission happens after the enclosing
// ledger transaction has committed, so a persistence failure here is reported
// but does not unwind the operation.
func (l *Log) Emit(evt events.Event) {
	if l == nil || evt == nil {
		return
	}
	payload, ok := evt.(eventPayload)
	if !ok {
		l.logger.Warn("audit: event without payload", slog.String("type", evt.EventType()))
		return
	}
	wire := payload.Event()
	if wire == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := Entry{
		Sequence:   l.nextSeq,
		Type:       wire.Type,
		ReceivedAt: l.nowFn(),
		Attributes: wire.Attributes,
	}
	rawEntry, err := json.Marshal(entry)
	if err != nil {
		l.logger.Error("audit: encode entry", slog.Any("error", err))
		return
	}
	rawMeta, err := json.Marshal(logMeta{NextSequence: l.nextSeq + 1})
	if err != nil {
		l.logger.Error("audit: encode log meta", slog.Any("error", err))
		return
	}
	batch := []storage.KV{
		{Key: entryKey(entry.Sequence), Value: rawEntry},
		{Key: metaKey, Value: rawMeta},
	}
	if err := l.db.WriteBatch(batch); err != nil {
		l.logger.Error("audit: persist entry", slog.Uint64("sequence", entry.Sequence), slog.Any("error", err))
		return
	}
	l.nextSeq++
	observability.Settlement().AuditEntryAppended()
}

// List returns up to limit entries starting at fromSeq in sequence order. A
// limit of zero or less means no limit.
func (l *Log) List(fromSeq uint64, limit int) ([]Entry, error) {
	return l.collect(func(entry Entry) bool {
		return entry.Sequence >= fromSeq
	}, limit)
}

// ListByType returns up to limit entries of the given event type in sequence
// order.
func (l *Log) ListByType(eventType string, limit int) ([]Entry, error) {
	return l.collect(func(entry Entry) bool {
		return entry.Type == eventType
	}, limit)
}

// ListByAddress returns up to limit entries carrying the address in any
// attribute value, in sequence order. Addresses are matched in their encoded
// bech32 form.
func (l *Log) ListByAddress(address string, limit int) ([]Entry, error) {
	return l.collect(func(entry Entry) bool {
		for _, value := range entry.Attributes {
			if value == address {
				return true
			}
		}
		return false
	}, limit)
}

func (l *Log) collect(match func(Entry) bool, limit int) ([]Entry, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("audit: log not initialised")
	}
	entries := []Entry{}
	var decodeErr error
	err := l.db.Iterate(entryPrefix, func(key, value []byte) bool {
		var entry Entry
		if err := json.Unmarshal(value, &entry); err != nil {
			decodeErr = fmt.Errorf("audit: decode entry %s: %w", key, err)
			return false
		}
		if match(entry) {
			entries = append(entries, entry)
		}
		return limit <= 0 || len(entries) < limit
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return entries, nil
}
