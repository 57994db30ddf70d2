// Package relay receives push notifications from the engine over a local
// channel, updates transfer state and forwards them to the UI.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedMessage is returned for payloads that are not a JSON object.
var ErrMalformedMessage = errors.New("malformed notification")

// ErrInvalidData marks a message whose data field is not an object. The
// message is still acknowledged and forwarded; the handler reports it.
var ErrInvalidData = errors.New("notification data is not an object")

// Message is one notification from the engine.
type Message struct {
	Type    string                 `json:"type"`
	Title   string                 `json:"title,omitempty"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`

	// IsTextOnly may appear at the top level or inside Data.
	IsTextOnly bool `json:"isTextOnly,omitempty"`

	dataErr error
}

// Ack is the reply sent for every decoded message.
type Ack struct {
	OK bool `json:"ok"`
}

var ackBytes = []byte(`{"ok":true}`)

// Decode parses a notification. Only a payload that is not a JSON object
// fails; mistyped fields are coerced, and a non-object data field is
// recorded on the message for the handler to report.
func Decode(raw []byte) (Message, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if fields == nil {
		return Message{}, fmt.Errorf("%w: null payload", ErrMalformedMessage)
	}

	msg := Message{
		Type:    text(fields["type"]),
		Title:   text(fields["title"]),
		Message: text(fields["message"]),
		Data:    map[string]interface{}{},
	}
	msg.IsTextOnly, _ = fields["isTextOnly"].(bool)

	switch data := fields["data"].(type) {
	case map[string]interface{}:
		msg.Data = data
	case nil:
	default:
		msg.dataErr = fmt.Errorf("%w: got %T", ErrInvalidData, data)
	}
	return msg, nil
}

// Err reports a problem found while decoding that did not prevent the
// message from being accepted.
func (m Message) Err() error { return m.dataErr }

// SessionID returns data.sessionId.
func (m Message) SessionID() string { return m.str("sessionId") }

// FileID returns data.fileId.
func (m Message) FileID() string { return m.str("fileId") }

// FileName returns data.fileName.
func (m Message) FileName() string { return m.str("fileName") }

// FileType returns data.fileType.
func (m Message) FileType() string { return m.str("fileType") }

// SHA256 returns data.sha256.
func (m Message) SHA256() string { return m.str("sha256") }

// Size returns data.size in bytes, or 0 when absent or not a number.
func (m Message) Size() int64 {
	switch v := m.Data["size"].(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n
	default:
		return 0
	}
}

// TextOnly reports whether the transfer is a text clipboard payload.
func (m Message) TextOnly() bool {
	if m.IsTextOnly {
		return true
	}
	b, _ := m.Data["isTextOnly"].(bool)
	return b
}

func (m Message) str(key string) string { return text(m.Data[key]) }

func text(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
