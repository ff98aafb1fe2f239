package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Log is the single-writer audit chain. Appends serialize on the writer
// mutex; readers get copies.
type Log struct {
	mu      sync.RWMutex
	sink    Sink
	entries []Entry
	head    string
	halted  error
	clock   func() time.Time
	logger  *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(l *Log) { l.clock = clock }
}

// NewLog returns an empty log over a MemorySink.
func NewLog(opts ...Option) *Log {
	return newLog(NewMemorySink(), opts)
}

// Open replays sink and refuses to continue a broken chain.
func Open(ctx context.Context, sink Sink, opts ...Option) (*Log, error) {
	l := newLog(sink, opts)
	entries, err := sink.Load(ctx)
	if err != nil {
		return nil, &ChainError{Op: "open", Cause: err}
	}
	head, err := VerifyEntries(entries)
	if err != nil {
		return nil, err
	}
	l.entries = entries
	l.head = head
	l.logger.InfoContext(ctx, "audit log opened", "entries", len(entries), "head", head)
	return l, nil
}

func newLog(sink Sink, opts []Option) *Log {
	l := &Log{
		sink:   sink,
		head:   GenesisHash,
		clock:  time.Now,
		logger: slog.Default().With("component", "audit_log"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records one event and advances the head. Entries are durable in
// the sink before Append returns. Any failure halts the log permanently.
func (l *Log) Append(ctx context.Context, eventType EventType, inputHash, decision, axiomRef string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.halted != nil {
		return Entry{}, &ChainError{Op: "append", Cause: fmt.Errorf("%w: %v", ErrHalted, l.halted)}
	}

	e := Entry{
		Sequence:     uint64(len(l.entries)) + 1,
		EventType:    eventType,
		InputHash:    inputHash,
		Decision:     decision,
		AxiomRef:     axiomRef,
		RecordedAt:   l.clock().UTC(),
		PreviousHash: l.head,
	}
	hash, err := ComputeHash(e)
	if err != nil {
		return Entry{}, l.haltLocked(ctx, &ChainError{Op: "hash", Sequence: e.Sequence, Cause: err})
	}
	e.EntryHash = hash

	if err := l.sink.Write(ctx, e); err != nil {
		return Entry{}, l.haltLocked(ctx, &ChainError{Op: "write", Sequence: e.Sequence, Cause: err})
	}

	l.entries = append(l.entries, e)
	l.head = hash
	return e, nil
}

func (l *Log) haltLocked(ctx context.Context, err *ChainError) error {
	l.halted = err
	l.logger.ErrorContext(ctx, "audit log halted", "op", err.Op, "sequence", err.Sequence, "error", err.Cause)
	return err
}

func asChainError(op string, err error) *ChainError {
	var ce *ChainError
	if errors.As(err, &ce) {
		return ce
	}
	return &ChainError{Op: op, Cause: err}
}

// VerifyChain recomputes the durable chain from genesis and checks it
// against the in-process head. A mismatch halts the log.
func (l *Log) VerifyChain(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, err := l.sink.Load(ctx)
	if err != nil {
		return l.haltLocked(ctx, &ChainError{Op: "verify", Cause: err})
	}
	head, err := VerifyEntries(stored)
	if err != nil {
		return l.haltLocked(ctx, asChainError("verify", err))
	}
	if head != l.head || len(stored) != len(l.entries) {
		return l.haltLocked(ctx, &ChainError{Op: "verify",
			Cause: fmt.Errorf("stored head %s (%d entries) does not match %s (%d entries)", head, len(stored), l.head, len(l.entries))})
	}
	if _, err := VerifyEntries(l.entries); err != nil {
		return l.haltLocked(ctx, asChainError("verify", err))
	}
	return nil
}

// Halted reports whether the log refuses appends, and why.
func (l *Log) Halted() (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.halted != nil, l.halted
}

// Head is the hash of the latest entry, or GenesisHash.
func (l *Log) Head() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.head
}

// Len is the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of the chain in order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// EntryAt returns the entry with the given sequence number.
func (l *Log) EntryAt(seq uint64) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if seq == 0 || seq > uint64(len(l.entries)) {
		return Entry{}, fmt.Errorf("%w: sequence %d", ErrNoEntry, seq)
	}
	return l.entries[seq-1], nil
}

// Query returns entries of the given types, in order. No types means all.
func (l *Log) Query(types ...EventType) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(types) == 0 {
		return append([]Entry(nil), l.entries...)
	}
	want := make(map[EventType]struct{}, len(types))
	for _, t := range types {
		want[t] = struct{}{}
	}
	var out []Entry
	for _, e := range l.entries {
		if _, ok := want[e.EventType]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Close closes the sink.
func (l *Log) Close() error {
	return l.sink.Close()
}
