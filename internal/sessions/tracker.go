// Package sessions tracks in-flight and completed incoming transfers,
// keyed by session id and file id.
package sessions

import (
	"sort"
	"sync"
	"time"
)

// Status of a file within a session.
type Status string

const (
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
)

// FileInfo describes a file announced by the engine.
type FileInfo struct {
	FileName   string
	FileSize   int64
	FileType   string
	SHA256     string
	IsTextOnly bool
}

// Record is the state of one file transfer.
type Record struct {
	FileID     string
	FileName   string
	FileSize   int64
	FileType   string
	SHA256     string
	IsTextOnly bool
	Status     Status
	StartTime  time.Time
	EndTime    time.Time // zero until completed
}

// Duration returns how long the transfer took, or zero while uploading.
func (r Record) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// FileView is the flattened, UI-facing form of a Record.
type FileView struct {
	SessionID  string  `json:"session_id"`
	FileID     string  `json:"file_id"`
	FileName   string  `json:"file_name"`
	FileSize   int64   `json:"file_size"`
	FileType   string  `json:"file_type"`
	SHA256     string  `json:"sha256"`
	StartTime  float64 `json:"start_time"`
	Status     Status  `json:"status"`
	IsTextOnly bool    `json:"is_text_only"`
	EndTime    float64 `json:"end_time,omitempty"`
}

// Tracker owns the session map for the process lifetime. Records are only
// removed by Clear.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*Record
	now      func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string]map[string]*Record),
		now:      time.Now,
	}
}

// Start creates or refreshes the record for (sessionID, fileID) with
// status uploading.
func (t *Tracker) Start(sessionID, fileID string, info FileInfo) Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	files, ok := t.sessions[sessionID]
	if !ok {
		files = make(map[string]*Record)
		t.sessions[sessionID] = files
	}
	rec := &Record{
		FileID:     fileID,
		FileName:   info.FileName,
		FileSize:   info.FileSize,
		FileType:   info.FileType,
		SHA256:     info.SHA256,
		IsTextOnly: info.IsTextOnly,
		Status:     StatusUploading,
		StartTime:  t.now(),
	}
	files[fileID] = rec
	return *rec
}

// End marks (sessionID, fileID) completed. It reports false when no
// matching upload was started.
func (t *Tracker) End(sessionID, fileID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.sessions[sessionID][fileID]
	if !ok {
		return Record{}, false
	}
	end := t.now()
	if end.Before(rec.StartTime) {
		end = rec.StartTime
	}
	rec.Status = StatusCompleted
	rec.EndTime = end
	return *rec, true
}

// Get returns a copy of one record.
func (t *Tracker) Get(sessionID, fileID string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.sessions[sessionID][fileID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// List flattens every record, newest start first.
func (t *Tracker) List() []FileView {
	t.mu.RLock()
	defer t.mu.RUnlock()

	views := make([]FileView, 0)
	for sessionID, files := range t.sessions {
		for _, rec := range files {
			views = append(views, toView(sessionID, rec))
		}
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].StartTime > views[j].StartTime
	})
	return views
}

// Len returns the number of file records.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, files := range t.sessions {
		n += len(files)
	}
	return n
}

// Clear drops every session.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions = make(map[string]map[string]*Record)
}

func toView(sessionID string, rec *Record) FileView {
	v := FileView{
		SessionID:  sessionID,
		FileID:     rec.FileID,
		FileName:   rec.FileName,
		FileSize:   rec.FileSize,
		FileType:   rec.FileType,
		SHA256:     rec.SHA256,
		StartTime:  epochSeconds(rec.StartTime),
		Status:     rec.Status,
		IsTextOnly: rec.IsTextOnly,
	}
	if !rec.EndTime.IsZero() {
		v.EndTime = epochSeconds(rec.EndTime)
	}
	return v
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
