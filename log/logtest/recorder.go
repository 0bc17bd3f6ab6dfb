/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"sync"
	"time"

	"github.com/ssgreg/logf"

	"github.com/acronis/go-throttledbucket/log"
)

// RecordedEntry is a log entry kept by the Recorder.
type RecordedEntry struct {
	LoggerName string
	// Fields contains fields of the logger followed by fields of the message.
	Fields []log.Field
	Level  log.Level
	Time   time.Time
	Text   string
}

// FindField returns the first field with the given key.
func (re *RecordedEntry) FindField(key string) (*log.Field, bool) {
	for i := range re.Fields {
		if re.Fields[i].Key == key {
			return &re.Fields[i], true
		}
	}
	return nil, false
}

// entryStore is shared by a Recorder and all loggers derived from it.
type entryStore struct {
	mu      sync.RWMutex
	entries []RecordedEntry
}

//nolint:gocritic // logf.EntryWriter passes entries by value.
func (s *entryStore) WriteEntry(e logf.Entry) {
	fields := make([]log.Field, 0, len(e.DerivedFields)+len(e.Fields))
	fields = append(fields, e.DerivedFields...)
	fields = append(fields, e.Fields...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, RecordedEntry{
		LoggerName: e.LoggerName,
		Fields:     fields,
		Level:      log.Level(e.Level.String()),
		Time:       e.Time,
		Text:       e.Text,
	})
}

func (s *entryStore) filter(match func(entry *RecordedEntry) bool) []RecordedEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []RecordedEntry
	for i := range s.entries {
		if match == nil || match(&s.entries[i]) {
			res = append(res, s.entries[i])
		}
	}
	return res
}

// Recorder is a log.FieldLogger keeping all entries in memory for assertions in tests.
// Loggers returned by With and WithLevel record into the same Recorder.
type Recorder struct {
	*log.LogfAdapter
	store *entryStore
}

// NewRecorder creates a Recorder accepting entries of all levels.
func NewRecorder() *Recorder {
	store := &entryStore{}
	return &Recorder{LogfAdapter: &log.LogfAdapter{Logger: logf.NewLogger(logf.LevelDebug, store)}, store: store}
}

// With returns a Recorder adding fs to every entry.
func (r *Recorder) With(fs ...log.Field) log.FieldLogger {
	return &Recorder{LogfAdapter: r.LogfAdapter.With(fs...).(*log.LogfAdapter), store: r.store}
}

// WithLevel returns a Recorder ignoring entries below the level.
func (r *Recorder) WithLevel(level log.Level) log.FieldLogger {
	return &Recorder{LogfAdapter: r.LogfAdapter.WithLevel(level).(*log.LogfAdapter), store: r.store}
}

// Entries returns a copy of all recorded entries.
func (r *Recorder) Entries() []RecordedEntry {
	return r.store.filter(nil)
}

// FindEntry returns the first entry with the given message.
func (r *Recorder) FindEntry(msg string) (RecordedEntry, bool) {
	if found := r.FindEntries(msg); len(found) > 0 {
		return found[0], true
	}
	return RecordedEntry{}, false
}

// FindEntries returns all entries with the given message.
func (r *Recorder) FindEntries(msg string) []RecordedEntry {
	return r.store.filter(func(entry *RecordedEntry) bool {
		return entry.Text == msg
	})
}

// CountEntries returns the number of entries with the given message.
func (r *Recorder) CountEntries(msg string) int {
	return len(r.FindEntries(msg))
}

// Reset drops all recorded entries.
func (r *Recorder) Reset() {
	r.store.mu.Lock()
	r.store.entries = nil
	r.store.mu.Unlock()
}
