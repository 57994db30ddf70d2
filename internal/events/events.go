// Package events defines the events the bridge pushes to the UI.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Name is the UI-facing event name.
type Name string

const (
	// NameNotification carries every notification from the engine plus the
	// bridge's own warnings and errors.
	NameNotification Name = "unix_socket_notification"

	// NameTextReceived carries the content of a text-only transfer.
	NameTextReceived Name = "text_received"

	// NameFileReceived announces a completed file transfer.
	NameFileReceived Name = "file_received"
)

// Notification types used by the engine and the bridge.
const (
	TypeUploadStart = "upload_start"
	TypeUploadEnd   = "upload_end"
	TypeInfo        = "info"
	TypeWarning     = "warning"
	TypeError       = "error"
)

// Event is one emission toward the UI.
type Event struct {
	ID      string
	Name    Name
	Time    time.Time
	Payload interface{}
}

// New stamps a payload with an id and the current time.
func New(name Name, payload interface{}) Event {
	return Event{
		ID:      uuid.NewString(),
		Name:    name,
		Time:    time.Now(),
		Payload: payload,
	}
}

// Notification is the payload of NameNotification.
type Notification struct {
	Type    string                 `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// TextReceived is the payload of NameTextReceived.
type TextReceived struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	FileName string `json:"fileName"`
}

// FileReceived is the payload of NameFileReceived.
type FileReceived struct {
	Title      string   `json:"title"`
	FolderPath string   `json:"folderPath"`
	FileCount  int      `json:"fileCount"`
	Files      []string `json:"files"`
}

// DTO is the wire form written to the UI stream.
type DTO struct {
	ID        string      `json:"id"`
	Event     Name        `json:"event"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ToDTO converts an Event for serialization.
func (e Event) ToDTO() DTO {
	return DTO{
		ID:        e.ID,
		Event:     e.Name,
		Timestamp: e.Time.Format(time.RFC3339Nano),
		Data:      e.Payload,
	}
}
