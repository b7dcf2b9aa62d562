package testutil

import (
	"bufio"
	"encoding/json"
	"strings"
	"testing"
)

// LogEntry is one record written by the JSON handler
type LogEntry struct {
	Time    string
	Level   string
	Message string
	// Attrs holds everything except time, level and msg. Groups appear as
	// nested maps.
	Attrs map[string]interface{}
}

// Attr looks up an attribute by its group path, e.g. Attr("launcher", "name")
func (e LogEntry) Attr(path ...string) (interface{}, bool) {
	var cur interface{} = e.Attrs
	for _, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// ParseLogEntry parses a single JSON log line
func ParseLogEntry(t *testing.T, line string) LogEntry {
	t.Helper()

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		t.Fatalf("Failed to parse log entry %q: %v", line, err)
	}

	entry := LogEntry{Attrs: make(map[string]interface{})}
	entry.Time, _ = raw["time"].(string)
	entry.Level, _ = raw["level"].(string)
	entry.Message, _ = raw["msg"].(string)
	for k, v := range raw {
		if k != "time" && k != "level" && k != "msg" {
			entry.Attrs[k] = v
		}
	}
	return entry
}

// ParseLogEntries parses every non-empty line of out
func ParseLogEntries(t *testing.T, out string) []LogEntry {
	t.Helper()

	var entries []LogEntry
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			entries = append(entries, ParseLogEntry(t, line))
		}
	}
	return entries
}
