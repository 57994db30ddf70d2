package relay

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/deckshare/localsend-bridge/internal/events"
	"github.com/deckshare/localsend-bridge/internal/history"
	"github.com/deckshare/localsend-bridge/internal/logging"
	"github.com/deckshare/localsend-bridge/internal/sessions"
)

type emitted struct {
	name    events.Name
	payload interface{}
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []emitted
}

func (f *fakeNotifier) Emit(name events.Name, payload interface{}) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{name, payload})
	return true
}

func (f *fakeNotifier) Notify(n events.Notification) bool {
	return f.Emit(events.NameNotification, n)
}

func (f *fakeNotifier) notificationsOfType(kind string) []events.Notification {
	var out []events.Notification
	for _, p := range f.named(events.NameNotification) {
		if n := p.(events.Notification); n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

func (f *fakeNotifier) named(name events.Name) []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []interface{}
	for _, e := range f.events {
		if e.name == name {
			out = append(out, e.payload)
		}
	}
	return out
}

type handlerFixture struct {
	handler  *Handler
	tracker  *sessions.Tracker
	history  *history.Store
	notifier *fakeNotifier
	prefs    Preferences
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	dir := t.TempDir()
	f := &handlerFixture{
		tracker:  sessions.NewTracker(),
		history:  history.NewStore(filepath.Join(dir, "receive-history.json")),
		notifier: &fakeNotifier{},
		prefs: Preferences{
			UploadDir:   filepath.Join(dir, "uploads"),
			SaveHistory: true,
		},
	}
	f.handler = NewHandler(f.tracker, f.history, f.notifier, func() Preferences { return f.prefs }, logging.NewNop())
	return f
}

func fileMessage(kind, session, file string) Message {
	return Message{
		Type:  kind,
		Title: "From Phone",
		Data: map[string]interface{}{
			"sessionId": session,
			"fileId":    file,
			"fileName":  "photo.jpg",
			"size":      float64(4096),
			"fileType":  "image/jpeg",
			"sha256":    "abc",
		},
	}
}

func TestUploadStartThenEnd(t *testing.T) {
	f := newHandlerFixture(t)
	sessionDir := filepath.Join(f.prefs.UploadDir, "s1")
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(sessionDir, "photo.jpg"), []byte("jpeg"), 0644)

	f.handler.Handle(fileMessage("upload_start", "s1", "f1"))
	rec, ok := f.tracker.Get("s1", "f1")
	if !ok || rec.Status != sessions.StatusUploading || rec.FileSize != 4096 {
		t.Fatalf("unexpected record after start: %+v (found=%v)", rec, ok)
	}

	f.handler.Handle(fileMessage("upload_end", "s1", "f1"))
	rec, _ = f.tracker.Get("s1", "f1")
	if rec.Status != sessions.StatusCompleted {
		t.Errorf("status = %s, want completed", rec.Status)
	}
	if rec.EndTime.Before(rec.StartTime) {
		t.Error("endTime before startTime")
	}

	entries := f.history.List()
	if len(entries) != 1 {
		t.Fatalf("history len = %d, want 1", len(entries))
	}
	if entries[0].FolderPath != sessionDir || entries[0].FileCount != 1 || entries[0].Title != "From Phone" {
		t.Errorf("unexpected history entry %+v", entries[0])
	}

	if got := f.notifier.named(events.NameNotification); len(got) != 2 {
		t.Errorf("generic notifications = %d, want 2", len(got))
	}
	if got := f.notifier.named(events.NameFileReceived); len(got) != 0 {
		t.Error("file_received must not be emitted when notify_on_download is off")
	}
}

func TestFileReceivedWhenEnabled(t *testing.T) {
	f := newHandlerFixture(t)
	f.prefs.NotifyOnDownload = true
	f.prefs.SaveHistory = false

	f.handler.Handle(fileMessage("upload_end", "s2", "f1"))

	got := f.notifier.named(events.NameFileReceived)
	if len(got) != 1 {
		t.Fatalf("file_received count = %d, want 1", len(got))
	}
	ev := got[0].(events.FileReceived)
	if ev.FolderPath != filepath.Join(f.prefs.UploadDir, "s2") || ev.FileCount != 0 {
		t.Errorf("unexpected payload %+v", ev)
	}
	if f.history.Len() != 0 {
		t.Error("history disabled but an entry was recorded")
	}
}

func TestTextOnlyEmitsTextReceived(t *testing.T) {
	for _, where := range []string{"top-level", "data"} {
		t.Run(where, func(t *testing.T) {
			f := newHandlerFixture(t)
			sessionDir := filepath.Join(f.prefs.UploadDir, "txt-session")
			os.MkdirAll(sessionDir, 0755)
			os.WriteFile(filepath.Join(sessionDir, "clip.txt"), []byte("hello deck"), 0644)

			msg := fileMessage("upload_end", "txt-session", "f1")
			msg.Title = ""
			if where == "top-level" {
				msg.IsTextOnly = true
			} else {
				msg.Data["isTextOnly"] = true
			}
			f.handler.Handle(msg)

			got := f.notifier.named(events.NameTextReceived)
			if len(got) != 1 {
				t.Fatalf("text_received count = %d, want 1", len(got))
			}
			ev := got[0].(events.TextReceived)
			if ev.Content != "hello deck" || ev.FileName != "clip.txt" || ev.Title != "Text Received" {
				t.Errorf("unexpected payload %+v", ev)
			}
			if f.history.Len() != 0 {
				t.Error("text-only transfers must not be recorded in history")
			}
		})
	}
}

func TestTextOnlyMissingFile(t *testing.T) {
	f := newHandlerFixture(t)
	msg := fileMessage("upload_end", "empty", "f1")
	msg.IsTextOnly = true
	f.handler.Handle(msg)

	if got := f.notifier.named(events.NameTextReceived); len(got) != 0 {
		t.Error("no text event expected without a .txt file")
	}
	for _, p := range f.notifier.named(events.NameNotification) {
		if p.(events.Notification).Type == events.TypeError {
			t.Error("missing text file should only warn, not raise an error event")
		}
	}
}

func TestUnknownTypeEmitsWarning(t *testing.T) {
	f := newHandlerFixture(t)
	f.handler.Handle(Message{Type: "mystery", Data: map[string]interface{}{}})

	var warned bool
	for _, p := range f.notifier.named(events.NameNotification) {
		if p.(events.Notification).Type == events.TypeWarning {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a warning notification for an unknown type")
	}
}

func TestHandlerErrorBecomesErrorEvent(t *testing.T) {
	f := newHandlerFixture(t)
	f.handler.Handle(fileMessage("upload_end", "../escape", "f1"))

	var errored bool
	for _, p := range f.notifier.named(events.NameNotification) {
		if p.(events.Notification).Type == events.TypeError {
			errored = true
		}
	}
	if !errored {
		t.Error("expected an error notification for an invalid session id")
	}
}

func TestHandlerRecoversFromPanic(t *testing.T) {
	f := newHandlerFixture(t)
	f.handler.prefs = func() Preferences { panic("settings unavailable") }

	f.handler.Handle(fileMessage("upload_end", "s", "f"))

	var errored bool
	for _, p := range f.notifier.named(events.NameNotification) {
		if p.(events.Notification).Type == events.TypeError {
			errored = true
		}
	}
	if !errored {
		t.Error("panic should be reported as an error notification")
	}
}

func TestDecode(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"info","title":"Hi","message":"there"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.Type != "info" || msg.Data == nil {
		t.Errorf("unexpected message %+v", msg)
	}

	for _, raw := range []string{"not json", "[1,2]", "null"} {
		if _, err := Decode([]byte(raw)); !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("Decode(%s) err = %v, want ErrMalformedMessage", raw, err)
		}
	}

	msg, err = Decode([]byte(`{"type":"upload_start","title":7,"isTextOnly":true,"data":{"size":"12"}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.Title != "7" || !msg.TextOnly() || msg.Size() != 12 || msg.Err() != nil {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestNonObjectDataIsReportedNotDropped(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"info","title":"Hi","data":"oops"}`))
	if err != nil {
		t.Fatalf("Decode rejected a JSON object: %v", err)
	}
	if !errors.Is(msg.Err(), ErrInvalidData) {
		t.Fatalf("Err() = %v, want ErrInvalidData", msg.Err())
	}
	if msg.Data == nil {
		t.Error("Data should be an empty map")
	}

	f := newHandlerFixture(t)
	f.handler.Handle(msg)

	if got := f.notifier.notificationsOfType("info"); len(got) != 1 || got[0].Title != "Hi" {
		t.Errorf("generic notification not forwarded: %+v", got)
	}
	if got := f.notifier.notificationsOfType(events.TypeError); len(got) != 1 {
		t.Errorf("expected one error notification, got %+v", got)
	}
}

func TestUploadEndWithoutSessionIDOnlyWarns(t *testing.T) {
	f := newHandlerFixture(t)
	f.prefs.NotifyOnDownload = true

	msg := fileMessage("upload_end", "", "f1")
	delete(msg.Data, "sessionId")
	f.handler.Handle(msg)

	if got := f.notifier.notificationsOfType(events.TypeError); len(got) != 0 {
		t.Errorf("missing session id should not raise an error event: %+v", got)
	}
	if f.history.Len() != 0 {
		t.Errorf("history has %d entries, want 0", f.history.Len())
	}
	if got := f.notifier.named(events.NameFileReceived); len(got) != 0 {
		t.Errorf("unexpected file_received: %+v", got)
	}
}
