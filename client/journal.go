package client

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// JournalEntry records how far an import into one room got.
type JournalEntry struct {
	Room       string    `json:"room"`
	BaseURL    string    `json:"base_url"`
	Source     string    `json:"source"` // "sha256:<hex>" of the workbook bytes
	Filename   string    `json:"filename,omitempty"`
	Mode       string    `json:"mode"`
	Sheets     int       `json:"sheets"`
	Written    []string  `json:"written,omitempty"`
	TOCWritten bool      `json:"toc_written"`
	Updated    time.Time `json:"updated"`
}

// Complete reports whether every unit of the import reached the server.
func (e JournalEntry) Complete() bool {
	return e.TOCWritten
}

// SkipSet returns the written ids as a lookup set for Sequencer.Upload.
func (e JournalEntry) SkipSet() map[string]bool {
	set := make(map[string]bool, len(e.Written))
	for _, id := range e.Written {
		set[id] = true
	}
	if e.TOCWritten {
		set[e.Room] = true
	}
	return set
}

type journalData struct {
	Version int                     `json:"v"`
	Rooms   map[string]JournalEntry `json:"rooms"`
}

// Journal persists per-room import progress on disk.
// If no writable directory is found, it operates in-memory only.
type Journal struct {
	mu   sync.Mutex
	dir  string // empty string = in-memory only
	data journalData
	now  func() time.Time
}

// NewJournal probes for a writable directory using the cascade:
//  1. $TMPDIR/cosheet/ (or os.TempDir()/cosheet/)
//  2. .cosheet/ in cwd
//  3. in-memory only (no persistence)
func NewJournal() *Journal {
	if dir := filepath.Join(os.TempDir(), "cosheet"); probeWritable(dir) {
		return OpenJournal(dir)
	}
	if cwd, err := os.Getwd(); err == nil {
		if dir := filepath.Join(cwd, ".cosheet"); probeWritable(dir) {
			return OpenJournal(dir)
		}
	}
	j := &Journal{now: time.Now}
	j.reset()
	return j
}

// OpenJournal uses dir as the journal directory. An empty dir keeps the
// journal in memory.
func OpenJournal(dir string) *Journal {
	j := &Journal{dir: dir, now: time.Now}
	j.load()
	return j
}

// Dir is the backing directory, or "" when in memory.
func (j *Journal) Dir() string { return j.dir }

// Get looks up a room.
func (j *Journal) Get(room string) (JournalEntry, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.data.Rooms[room]
	return e, ok
}

// Begin starts (or restarts) the record for a room, keeping previously
// written ids when the source, mode and server are unchanged.
func (j *Journal) Begin(entry JournalEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if prev, ok := j.data.Rooms[entry.Room]; ok && prev.Source == entry.Source && prev.Mode == entry.Mode && prev.BaseURL == entry.BaseURL {
		entry.Written = prev.Written
		entry.TOCWritten = prev.TOCWritten
	}
	entry.Updated = j.now()
	j.data.Rooms[entry.Room] = entry
	j.save()
}

// Record marks a unit of room as written. Safe for concurrent use.
func (j *Journal) Record(room string, u UploadUnit) {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.data.Rooms[room]
	if !ok {
		return
	}
	// The unit stored at the room id itself (TOC, or the single concatenated
	// stream) is always the last write.
	if u.ResourceID == room {
		e.TOCWritten = true
	} else if !slices.Contains(e.Written, u.ResourceID) {
		e.Written = append(e.Written, u.ResourceID)
		slices.Sort(e.Written)
	}
	e.Updated = j.now()
	j.data.Rooms[room] = e
	j.save()
}

// Forget removes a room (after cleanup).
func (j *Journal) Forget(room string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.data.Rooms, room)
	j.save()
}

// Rooms lists journaled rooms, most recent first.
func (j *Journal) Rooms() []JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]JournalEntry, 0, len(j.data.Rooms))
	for _, e := range j.data.Rooms {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b JournalEntry) int { return b.Updated.Compare(a.Updated) })
	return out
}

// HashBytes computes the source key for workbook bytes: "sha256:<hex>".
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func (j *Journal) reset() {
	j.data = journalData{Version: 1, Rooms: make(map[string]JournalEntry)}
}

func (j *Journal) load() {
	j.reset()
	if j.dir == "" {
		return
	}
	raw, err := os.ReadFile(filepath.Join(j.dir, "journal.json"))
	if err != nil {
		return
	}
	var data journalData
	if err := json.Unmarshal(raw, &data); err != nil || data.Version != 1 {
		return
	}
	if data.Rooms != nil {
		j.data = data
	}
}

// save replaces journal.json through a unique temp file readable only by
// the owner.
func (j *Journal) save() {
	if j.dir == "" {
		return
	}
	_ = os.MkdirAll(j.dir, 0o700)
	raw, err := json.MarshalIndent(j.data, "", "  ")
	if err != nil {
		return
	}
	tmp, err := os.CreateTemp(j.dir, "journal-*.json.tmp")
	if err != nil {
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return
	}
	if err := tmp.Close(); err != nil {
		return
	}
	_ = os.Rename(tmp.Name(), filepath.Join(j.dir, "journal.json"))
}

// probeWritable tries to create the directory and write a probe file.
func probeWritable(dir string) bool {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return false
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return false
	}
	probe.Close()
	os.Remove(probe.Name())
	return true
}
