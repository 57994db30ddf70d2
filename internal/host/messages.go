// Package host speaks the plugin runtime protocol over a pair of streams:
// one JSON request per input line, one JSON response or event frame per
// output line.
package host

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// Method names accepted in Request.Method.
const (
	MethodStartBackend             = "start_backend"
	MethodStopBackend              = "stop_backend"
	MethodGetBackendStatus         = "get_backend_status"
	MethodProxyGet                 = "proxy_get"
	MethodProxyPost                = "proxy_post"
	MethodGetUploadSessions        = "get_upload_sessions"
	MethodClearUploadSessions      = "clear_upload_sessions"
	MethodGetNotifyServerStatus    = "get_notify_server_status"
	MethodGetBackendConfig         = "get_backend_config"
	MethodSetBackendConfig         = "set_backend_config"
	MethodGetReceiveHistory        = "get_receive_history"
	MethodClearReceiveHistory      = "clear_receive_history"
	MethodDeleteReceiveHistoryItem = "delete_receive_history_item"
	MethodListFolderFiles          = "list_folder_files"
	MethodPrepareFolderUpload      = "prepare_folder_upload"
	MethodFactoryReset             = "factory_reset"
)

var (
	// ErrUnknownMethod is returned for a method name the host does not serve.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrBadArguments is returned when positional arguments do not decode.
	ErrBadArguments = errors.New("bad arguments")
)

// Request is one call from the UI. Args are positional.
type Request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Args   []json.RawMessage `json:"args,omitempty"`
}

// Response answers exactly one Request.
type Response struct {
	ID     json.RawMessage `json:"id"`
	Result interface{}     `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// NewResultResponse builds a successful reply.
func NewResultResponse(id json.RawMessage, result interface{}) *Response {
	return &Response{ID: id, Result: result}
}

// NewErrorResponse builds a failed reply.
func NewErrorResponse(id json.RawMessage, msg string) *Response {
	return &Response{ID: id, Error: msg}
}

// arg decodes positional argument i into v. A missing or null argument
// leaves v untouched.
func (r *Request) arg(i int, v interface{}) error {
	if i >= len(r.Args) || string(r.Args[i]) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.Args[i], v); err != nil {
		return fmt.Errorf("%w: argument %d of %s: %v", ErrBadArguments, i, r.Method, err)
	}
	return nil
}

// bytesArg decodes a binary argument sent either as a base64 string or as
// an array of byte values.
func (r *Request) bytesArg(i int) ([]byte, error) {
	if i >= len(r.Args) || string(r.Args[i]) == "null" {
		return nil, nil
	}
	raw := r.Args[i]

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d of %s is not base64", ErrBadArguments, i, r.Method)
		}
		return data, nil
	}

	var values []int
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("%w: argument %d of %s: %v", ErrBadArguments, i, r.Method, err)
	}
	data := make([]byte, len(values))
	for j, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: argument %d of %s has byte value %d", ErrBadArguments, i, r.Method, v)
		}
		data[j] = byte(v)
	}
	return data, nil
}
