package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/deckshare/localsend-bridge/internal/util/atomicfile"
)

// Change sets Key to Value. Changes are applied in slice order and keys
// not yet in the document are appended in that order.
type Change struct {
	Key   string
	Value interface{}
}

type entryKind int

const (
	entryPassthrough entryKind = iota // blank, comment or unparsable line
	entryPair
)

// entry is one physical line of the document. raw holds the exact bytes,
// including the line terminator when present.
type entry struct {
	kind entryKind
	key  string
	raw  string
}

// Document is an ordered sequence of lines from a flat `key: value` file.
// Lines are kept verbatim until a Change targets their key.
type Document struct {
	entries []entry
}

// ParseDocument splits data into lines and tags each one.
func ParseDocument(data []byte) *Document {
	doc := &Document{}
	if len(data) == 0 {
		return doc
	}
	for _, line := range strings.SplitAfter(string(data), "\n") {
		if line == "" {
			continue
		}
		doc.entries = append(doc.entries, parseLine(line))
	}
	return doc
}

func parseLine(line string) entry {
	stripped := strings.TrimSpace(line)
	if stripped == "" || strings.HasPrefix(stripped, "#") || !strings.Contains(stripped, ":") {
		return entry{kind: entryPassthrough, raw: line}
	}
	key, _, _ := strings.Cut(stripped, ":")
	return entry{kind: entryPair, key: strings.TrimSpace(key), raw: line}
}

// Bytes serializes the document.
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	for _, e := range d.entries {
		buf.WriteString(e.raw)
	}
	return buf.Bytes()
}

// Values returns every key with its coerced value. Later duplicates win.
func (d *Document) Values() map[string]interface{} {
	values := make(map[string]interface{})
	for _, e := range d.entries {
		if e.kind != entryPair {
			continue
		}
		stripped := strings.TrimSpace(e.raw)
		_, value, _ := strings.Cut(stripped, ":")
		values[e.key] = ParseValue(strings.TrimSpace(value))
	}
	return values
}

// Apply rewrites every line whose key appears in changes and appends the
// rest. It reports whether the serialized document changed.
func (d *Document) Apply(changes []Change) bool {
	before := d.Bytes()

	pending := make(map[string]string, len(changes))
	order := make([]string, 0, len(changes))
	for _, c := range changes {
		if _, seen := pending[c.Key]; !seen {
			order = append(order, c.Key)
		}
		pending[c.Key] = FormatValue(c.Value)
	}

	written := make(map[string]bool, len(changes))
	for i, e := range d.entries {
		if e.kind != entryPair {
			continue
		}
		formatted, ok := pending[e.key]
		if !ok {
			continue
		}
		d.entries[i].raw = e.key + ": " + formatted + lineEnding(e.raw)
		written[e.key] = true
	}

	eol := d.newline()
	for _, key := range order {
		if written[key] {
			continue
		}
		if n := len(d.entries); n > 0 && !strings.HasSuffix(d.entries[n-1].raw, "\n") {
			d.entries[n-1].raw += eol
		}
		d.entries = append(d.entries, entry{
			kind: entryPair,
			key:  key,
			raw:  key + ": " + pending[key] + eol,
		})
	}

	return !bytes.Equal(before, d.Bytes())
}

// newline is the line ending of the first terminated line, "\n" if none.
func (d *Document) newline() string {
	for _, e := range d.entries {
		if eol := lineEnding(e.raw); eol != "" {
			return eol
		}
	}
	return "\n"
}

func lineEnding(raw string) string {
	switch {
	case strings.HasSuffix(raw, "\r\n"):
		return "\r\n"
	case strings.HasSuffix(raw, "\n"):
		return "\n"
	default:
		return ""
	}
}

// FormatValue renders a value for the right-hand side of `key: value`.
// Strings are quoted only when the bare form would be misread.
func FormatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return `""`
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case json.Number:
		return v.String()
	case string:
		return formatString(v)
	default:
		return formatString(fmt.Sprint(v))
	}
}

func formatString(s string) string {
	if s == "" {
		return `""`
	}
	if !needsQuoting(s) {
		return s
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func needsQuoting(s string) bool {
	if strings.ContainsAny(s, ":#") {
		return true
	}
	if strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		return true
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// ParseValue coerces the right-hand side of a line: quoted strings are
// unwrapped, true/false become bools, integers become ints and anything
// else stays a string.
func ParseValue(raw string) interface{} {
	if len(raw) >= 2 {
		first, last := raw[0], raw[len(raw)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			var s string
			if err := yaml.Unmarshal([]byte(raw), &s); err == nil {
				return s
			}
			return raw[1 : len(raw)-1]
		}
	}
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return raw
}

// lockTimeout bounds how long an update waits for another writer.
const lockTimeout = 5 * time.Second

// ConfigFile is the engine config on disk. Writers from separate bridge
// processes are serialized with a lock file next to it.
type ConfigFile struct {
	path string
	lock *flock.Flock
}

// NewConfigFile returns a handle for the config at path.
func NewConfigFile(path string) *ConfigFile {
	return &ConfigFile{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the config file location.
func (c *ConfigFile) Path() string {
	return c.path
}

// Read returns the coerced key/value mapping. A missing file is empty.
func (c *ConfigFile) Read() (map[string]interface{}, error) {
	doc, err := c.load()
	if err != nil {
		return map[string]interface{}{}, err
	}
	return doc.Values(), nil
}

// Update patches the listed keys and leaves every other line untouched.
// The file and its directory are created when missing.
func (c *ConfigFile) Update(ctx context.Context, changes ...Change) error {
	if len(changes) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := c.lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to lock config: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to lock config: %s is held by another process", c.lock.Path())
	}
	defer c.lock.Unlock()

	doc, err := c.load()
	if err != nil {
		return err
	}
	if !doc.Apply(changes) {
		if _, statErr := os.Stat(c.path); statErr == nil {
			return nil
		}
	}
	if err := atomicfile.WriteFile(c.path, doc.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Remove deletes the config file if present.
func (c *ConfigFile) Remove() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (c *ConfigFile) load() (*Document, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ParseDocument(nil), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseDocument(data), nil
}
