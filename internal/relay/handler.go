package relay

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/deckshare/localsend-bridge/internal/constants"
	"github.com/deckshare/localsend-bridge/internal/events"
	"github.com/deckshare/localsend-bridge/internal/history"
	"github.com/deckshare/localsend-bridge/internal/logging"
	"github.com/deckshare/localsend-bridge/internal/sessions"
	"github.com/deckshare/localsend-bridge/internal/validation"
)

// Notifier forwards events toward the UI without blocking.
type Notifier interface {
	Emit(name events.Name, payload interface{}) bool
	Notify(n events.Notification) bool
}

// HistoryRecorder stores completed transfers.
type HistoryRecorder interface {
	Add(folderPath string, files []string, title string) (history.Entry, error)
}

// Preferences are the settings the handler consults per message.
type Preferences struct {
	UploadDir        string
	SaveHistory      bool
	NotifyOnDownload bool
}

// Handler applies decoded notifications to the session tracker and the
// receive history and emits the matching UI events.
type Handler struct {
	tracker  *sessions.Tracker
	history  HistoryRecorder
	notifier Notifier
	prefs    func() Preferences
	log      *logging.Logger
}

// NewHandler wires a handler. prefs is called once per message so that
// settings changes apply without restarting the relay.
func NewHandler(tracker *sessions.Tracker, hist HistoryRecorder, notifier Notifier, prefs func() Preferences, log *logging.Logger) *Handler {
	return &Handler{
		tracker:  tracker,
		history:  hist,
		notifier: notifier,
		prefs:    prefs,
		log:      log.Component("relay"),
	}
}

// Handle processes one message. Failures and panics are logged and
// reported to the UI as an error notification; they never propagate.
func (h *Handler) Handle(msg Message) {
	err := h.safeDispatch(msg)
	if err == nil {
		return
	}
	h.log.Error().Err(err).Str("type", msg.Type).Msg("error processing notification")
	h.notifier.Notify(events.Notification{
		Type:    events.TypeError,
		Title:   "Error",
		Message: fmt.Sprintf("Error processing notification: %v", err),
	})
}

func (h *Handler) safeDispatch(msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.dispatch(msg)
}

func (h *Handler) dispatch(msg Message) error {
	h.notifier.Notify(events.Notification{
		Type:    msg.Type,
		Title:   msg.Title,
		Message: msg.Message,
		Data:    msg.Data,
	})
	if err := msg.Err(); err != nil {
		return err
	}

	switch msg.Type {
	case events.TypeUploadStart:
		h.uploadStart(msg)
		return nil
	case events.TypeUploadEnd:
		return h.uploadEnd(msg)
	case events.TypeInfo:
		h.log.Info().Str("title", msg.Title).Msg(msg.Message)
		return nil
	default:
		h.log.Warn().Str("type", msg.Type).Msg("unknown notification type")
		h.notifier.Notify(events.Notification{
			Type:    events.TypeWarning,
			Title:   "Unknown notification",
			Message: fmt.Sprintf("Unknown notification type: %s", msg.Type),
		})
		return nil
	}
}

func (h *Handler) uploadStart(msg Message) {
	h.tracker.Start(msg.SessionID(), msg.FileID(), sessions.FileInfo{
		FileName:   msg.FileName(),
		FileSize:   msg.Size(),
		FileType:   msg.FileType(),
		SHA256:     msg.SHA256(),
		IsTextOnly: msg.TextOnly(),
	})
	h.log.Info().
		Str("session", msg.SessionID()).
		Str("file_id", msg.FileID()).
		Str("size", humanize.IBytes(uint64(max(msg.Size(), 0)))).
		Msgf("upload started: %s", msg.FileName())
}

func (h *Handler) uploadEnd(msg Message) error {
	sessionID := msg.SessionID()
	event := h.log.Info().
		Str("session", sessionID).
		Str("sha256", msg.SHA256()).
		Str("size", humanize.IBytes(uint64(max(msg.Size(), 0))))
	if rec, ok := h.tracker.End(sessionID, msg.FileID()); ok {
		event = event.Dur("duration", rec.Duration())
	}
	event.Msgf("upload completed: %s", msg.FileName())

	if sessionID == "" {
		h.log.Warn().Str("file_id", msg.FileID()).Msg("upload_end without session id, skipping folder handling")
		return nil
	}

	prefs := h.prefs()
	folder, err := sessionFolder(prefs.UploadDir, sessionID)
	if err != nil {
		return err
	}
	if msg.TextOnly() {
		return h.textReceived(folder, msg.Title)
	}
	return h.filesReceived(folder, msg.Title, prefs)
}

// textReceived reads the first .txt file in the session folder and sends
// its content to the UI.
func (h *Handler) textReceived(folder, title string) error {
	entries, err := os.ReadDir(folder)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read text session folder: %w", err)
	}
	var name string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			name = e.Name()
			break
		}
	}
	if name == "" {
		h.log.Warn().Str("folder", folder).Msg("text file not found")
		return nil
	}

	content, err := os.ReadFile(filepath.Join(folder, name))
	if err != nil {
		return fmt.Errorf("failed to read text content: %w", err)
	}
	if title == "" {
		title = constants.DefaultTextTitle
	}
	h.notifier.Emit(events.NameTextReceived, events.TextReceived{
		Title:    title,
		Content:  string(content),
		FileName: name,
	})
	h.log.Info().Int("chars", len([]rune(string(content)))).Msg("text content sent to UI")
	return nil
}

func (h *Handler) filesReceived(folder, title string, prefs Preferences) error {
	files := []string{}
	entries, err := os.ReadDir(folder)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to list received files: %w", err)
	}
	for _, e := range entries {
		files = append(files, e.Name())
	}
	if title == "" {
		title = constants.DefaultHistoryTitle
	}

	if prefs.SaveHistory {
		if _, err := h.history.Add(folder, files, title); err != nil {
			h.log.Error().Err(err).Msg("failed to persist receive history")
		} else {
			h.log.Info().Str("folder", folder).Int("files", len(files)).Msg("added receive history")
		}
	}

	if prefs.NotifyOnDownload {
		h.notifier.Emit(events.NameFileReceived, events.FileReceived{
			Title:      title,
			FolderPath: folder,
			FileCount:  len(files),
			Files:      files,
		})
	}
	return nil
}

// sessionFolder resolves the per-session download folder, rejecting ids
// that would escape the upload directory.
func sessionFolder(uploadDir, sessionID string) (string, error) {
	if err := validation.ValidateComponent(sessionID); err != nil {
		return "", fmt.Errorf("invalid session id: %w", err)
	}
	folder := filepath.Join(uploadDir, sessionID)
	if err := validation.ValidatePathInDirectory(folder, uploadDir); err != nil {
		return "", err
	}
	return folder, nil
}
