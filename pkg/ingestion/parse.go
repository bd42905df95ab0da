package ingestion

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/spool/pkg/config"
)

// textTailLines bounds how much of a plain-text log one activity carries.
const textTailLines = 100

// parseFile dispatches on the source format.
func parseFile(src config.SourceConfig, path string) ([]Activity, error) {
	switch src.Format {
	case "jsonl":
		return parseJSONL(src, path)
	case "json":
		return parseJSON(src, path)
	case "text":
		return parseText(src, path)
	default:
		return nil, fmt.Errorf("unknown source format %q", src.Format)
	}
}

// parseJSONL reads one JSON object per line. Malformed lines are skipped.
func parseJSONL(src config.SourceConfig, path string) ([]Activity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var out []Activity
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}

		if a, ok := activityFromObject(src, path, obj); ok {
			out = append(out, a)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return out, nil
}

// parseJSON reads a whole-file JSON document. Top-level arrays iterate
// their elements; objects with a "messages" array iterate the messages;
// anything else is treated as a single record.
func parseJSON(src config.SourceConfig, path string) ([]Activity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	var objects []map[string]any
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				objects = append(objects, obj)
			}
		}
	case map[string]any:
		if messages, ok := v["messages"].([]any); ok {
			for _, item := range messages {
				if obj, ok := item.(map[string]any); ok {
					objects = append(objects, obj)
				}
			}
		} else {
			objects = append(objects, v)
		}
	default:
		return nil, fmt.Errorf("unsupported JSON shape in %s", path)
	}

	var out []Activity
	for _, obj := range objects {
		if a, ok := activityFromObject(src, path, obj); ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// parseText treats the tail of a plain-text file as one activity, stamped
// with the file's modification time.
func parseText(src config.SourceConfig, path string) ([]Activity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, nil
	}

	lines := strings.Split(content, "\n")
	if len(lines) > textTailLines {
		lines = lines[len(lines)-textTailLines:]
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("statting %s: %w", path, err)
	}

	return []Activity{{
		Source:    src.Name,
		Project:   defaultProject(path),
		Timestamp: info.ModTime(),
		Content:   strings.Join(lines, "\n"),
	}}, nil
}

// activityFromObject maps one source object onto an Activity using the
// source bindings. Records without usable content are dropped.
func activityFromObject(src config.SourceConfig, path string, obj map[string]any) (Activity, bool) {
	a := Activity{
		Source:  src.Name,
		Project: defaultProject(path),
	}

	b := src.Bindings

	content, ok := lookupString(obj, b.Content)
	if !ok || content == "" {
		return Activity{}, false
	}
	a.Content = content

	if role, ok := lookupString(obj, b.Role); ok {
		a.Role = role
	}
	if project, ok := lookupString(obj, b.Project); ok && project != "" {
		a.Project = project
	}
	if conv, ok := lookupString(obj, b.ConversationID); ok {
		a.ConversationID = conv
	}

	if raw, ok := lookupField(obj, b.Timestamp); ok {
		if ts, ok := parseTimestamp(raw); ok {
			a.Timestamp = ts
		}
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}

	return a, true
}

// lookupField resolves a dotted field path into nested objects.
func lookupField(obj map[string]any, field string) (any, bool) {
	if field == "" {
		return nil, false
	}

	parts := strings.Split(field, ".")
	var current any = obj
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func lookupString(obj map[string]any, field string) (string, bool) {
	v, ok := lookupField(obj, field)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// parseTimestamp accepts RFC3339 strings, numeric strings, and numbers.
// Numbers above 1e11 are taken to be milliseconds.
func parseTimestamp(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, true
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return fromEpoch(f), true
		}
		return time.Time{}, false
	case float64:
		return fromEpoch(v), true
	default:
		return time.Time{}, false
	}
}

func fromEpoch(v float64) time.Time {
	// Millisecond epochs are 13 digits, second epochs 10.
	if v > 1e11 {
		v = v / 1000
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
