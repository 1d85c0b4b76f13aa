// Package convlog implements the append-only, day-partitioned conversation log.
package convlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"semantic-memory/internal/contextutil"
	"semantic-memory/internal/fsutil"
	"semantic-memory/internal/memerr"
)

// SummaryChecker reports whether a committed summary exists for a YYYY-MM-DD date.
type SummaryChecker interface {
	HasSummaryFor(date string) bool
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithLogger sets the logger used for load warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// WithSummaryChecker guards PruneDates: a date may only be pruned once checker reports its summary.
func WithSummaryChecker(checker SummaryChecker) Option {
	return func(l *Log) { l.guard = checker }
}

// Log is the conversation log. Writes are serialized; reads run concurrently.
// A Log with an empty path is memory-only.
type Log struct {
	mu      sync.RWMutex
	path    string
	loc     *time.Location
	now     func() time.Time
	logger  *slog.Logger
	guard   SummaryChecker
	entries []Entry
	gen     uint64 // bumped when the whole log is replaced
}

// New creates an empty memory-only log bucketed in loc.
func New(loc *time.Location, opts ...Option) *Log {
	if loc == nil {
		loc = time.UTC
	}
	l := &Log{loc: loc, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open loads the log persisted at path. A missing file yields an empty log.
// Malformed records are dropped and logged; a file that is not a JSON array is an error.
func Open(ctx context.Context, path string, loc *time.Location, opts ...Option) (*Log, error) {
	l := New(loc, opts...)
	l.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation log: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return l, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &memerr.ParseError{Source: path, Index: -1, Err: err}
	}

	logger := contextutil.LoggerFromContext(ctx, l.logger)
	for i, msg := range raw {
		var rec Record
		if err := json.Unmarshal(msg, &rec); err != nil {
			logger.WarnContext(ctx, "dropping malformed conversation record", "file", path, "index", i, "error", err)
			continue
		}
		entry, err := DecodeRecord(rec, l.loc)
		if err != nil {
			logger.WarnContext(ctx, "dropping malformed conversation record",
				"file", path, "index", i, "error", &memerr.ParseError{Source: path, Index: i, Err: err})
			continue
		}
		l.entries = append(l.entries, entry)
	}

	logger.DebugContext(ctx, "conversation log loaded", "file", path, "entries", len(l.entries), "records", len(raw))
	return l, nil
}

// DecodeRecord converts a persisted record into an Entry in loc.
func DecodeRecord(rec Record, loc *time.Location) (Entry, error) {
	role := Speaker(strings.ToLower(strings.TrimSpace(rec.Role)))
	if !role.Valid() {
		return Entry{}, fmt.Errorf("unknown role %q", rec.Role)
	}
	if rec.Content == "" {
		return Entry{}, fmt.Errorf("empty content")
	}
	ts, err := ParseTimestamp(rec.Timestamp, loc)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Role: role, Content: rec.Content, Timestamp: ts}, nil
}

// Location returns the reference timezone.
func (l *Log) Location() *time.Location {
	return l.loc
}

// Today returns the current date in the reference timezone.
func (l *Log) Today() Date {
	return DateOf(l.now(), l.loc)
}

// Append records a turn and returns its timestamp. The entry is kept in memory even when
// persisting fails; the persistence error is returned.
func (l *Log) Append(ctx context.Context, role Speaker, content string) (time.Time, error) {
	if !role.Valid() {
		return time.Time{}, memerr.Validation("role", "unknown speaker %q", role)
	}
	if strings.TrimSpace(content) == "" {
		return time.Time{}, memerr.Validation("content", "cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.stampLocked()
	l.entries = append(l.entries, Entry{Role: role, Content: content, Timestamp: ts})
	if err := l.saveLocked(); err != nil {
		return ts, fmt.Errorf("failed to persist conversation log: %w", err)
	}
	return ts, nil
}

// AppendInteraction records a user turn followed by the assistant's reply.
func (l *Log) AppendInteraction(ctx context.Context, userText, botText string) error {
	if strings.TrimSpace(userText) == "" {
		return memerr.Validation("user", "cannot be empty")
	}
	if strings.TrimSpace(botText) == "" {
		return memerr.Validation("assistant", "cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.stampLocked()
	l.entries = append(l.entries,
		Entry{Role: User, Content: userText, Timestamp: ts},
		Entry{Role: Assistant, Content: botText, Timestamp: ts},
	)
	if err := l.saveLocked(); err != nil {
		return fmt.Errorf("failed to persist conversation log: %w", err)
	}
	return nil
}

// stampLocked returns a minute-precision timestamp that never goes backwards.
func (l *Log) stampLocked() time.Time {
	ts := l.now().In(l.loc).Truncate(time.Minute)
	if n := len(l.entries); n > 0 && ts.Before(l.entries[n-1].Timestamp) {
		ts = l.entries[n-1].Timestamp
	}
	return ts
}

// Entries returns a copy of all entries in insertion order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// CurrentDayEntries returns today's entries in insertion order.
func (l *Log) CurrentDayEntries() []Entry {
	today := l.Today()

	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	for _, e := range l.entries {
		if DateOf(e.Timestamp, l.loc) == today {
			out = append(out, e)
		}
	}
	return out
}

// PastDayCounts returns the number of entries per day before today.
func (l *Log) PastDayCounts() map[Date]int {
	today := l.Today()

	l.mu.RLock()
	defer l.mu.RUnlock()

	counts := make(map[Date]int)
	for _, e := range l.entries {
		if d := DateOf(e.Timestamp, l.loc); d.Before(today) {
			counts[d]++
		}
	}
	return counts
}

// PastDayCandidates groups entries dated before today, keeping only dates with at least
// minCount entries. Dates below the threshold are left alone.
func (l *Log) PastDayCandidates(minCount int) map[Date][]Entry {
	today := l.Today()

	l.mu.RLock()
	defer l.mu.RUnlock()

	groups := make(map[Date][]Entry)
	for _, e := range l.entries {
		if d := DateOf(e.Timestamp, l.loc); d.Before(today) {
			groups[d] = append(groups[d], e)
		}
	}
	for d, entries := range groups {
		if len(entries) < minCount {
			delete(groups, d)
		}
	}
	return groups
}

// SortedDates returns the keys of m in ascending order.
func SortedDates[V any](m map[Date]V) []Date {
	dates := make([]Date, 0, len(m))
	for d := range m {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, Date.Compare)
	return dates
}

// PruneDates deletes every entry whose date is in dates and returns how many were removed.
// Dates with no entries are ignored. When a SummaryChecker is configured, pruning a date that
// still has entries but no committed summary fails with *memerr.InvariantViolation and nothing
// is removed.
func (l *Log) PruneDates(ctx context.Context, dates []Date) (int, error) {
	if len(dates) == 0 {
		return 0, nil
	}
	set := make(map[Date]struct{}, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	present := make(map[Date]bool)
	for _, e := range l.entries {
		d := DateOf(e.Timestamp, l.loc)
		if _, ok := set[d]; ok {
			present[d] = true
		}
	}
	if len(present) == 0 {
		return 0, nil
	}
	if l.guard != nil {
		for d := range present {
			if !l.guard.HasSummaryFor(d.String()) {
				return 0, &memerr.InvariantViolation{
					Op:     "PruneDates",
					Detail: fmt.Sprintf("no committed summary for %s", d),
				}
			}
		}
	}

	kept := l.entries[:0:0]
	for _, e := range l.entries {
		if _, ok := set[DateOf(e.Timestamp, l.loc)]; !ok {
			kept = append(kept, e)
		}
	}
	removed := len(l.entries) - len(kept)
	prev := l.entries
	l.entries = kept
	if err := l.saveLocked(); err != nil {
		l.entries = prev
		return 0, fmt.Errorf("failed to persist conversation log: %w", err)
	}

	contextutil.LoggerFromContext(ctx, l.logger).DebugContext(ctx, "pruned conversation entries",
		"dates", len(present), "removed", removed)
	return removed, nil
}

// ReplaceAll swaps the whole log for entries, used by snapshot import.
func (l *Log) ReplaceAll(ctx context.Context, entries []Entry) error {
	for i, e := range entries {
		if !e.Role.Valid() {
			return memerr.Validation(fmt.Sprintf("entries[%d].role", i), "unknown speaker %q", e.Role)
		}
		if e.Content == "" {
			return memerr.Validation(fmt.Sprintf("entries[%d].content", i), "cannot be empty")
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.entries
	l.entries = slices.Clone(entries)
	for i := range l.entries {
		l.entries[i].Timestamp = l.entries[i].Timestamp.In(l.loc)
	}
	if err := l.saveLocked(); err != nil {
		l.entries = prev
		return fmt.Errorf("failed to persist conversation log: %w", err)
	}
	l.gen++
	return nil
}

// Generation changes whenever ReplaceAll or Clear swaps the whole log. Appends and prunes
// leave it unchanged.
func (l *Log) Generation() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gen
}

// Clear removes every entry.
func (l *Log) Clear(ctx context.Context) error {
	return l.ReplaceAll(ctx, nil)
}

// saveLocked writes the log atomically. Callers hold l.mu for writing.
func (l *Log) saveLocked() error {
	if l.path == "" {
		return nil
	}
	records := make([]Record, len(l.entries))
	for i, e := range l.entries {
		records[i] = e.ToRecord()
	}
	return fsutil.WriteJSONAtomic(l.path, records)
}
