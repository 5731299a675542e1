package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// RawArticle is a provider-supplied article with no fixed schema.
// Keys are provider field names; nested objects are addressed with dots
// (e.g. "source.name").
type RawArticle map[string]any

// IsEmpty reports whether the article carries no fields at all.
func (r RawArticle) IsEmpty() bool {
	return len(r) == 0
}

// Lookup returns the raw value for a (possibly dotted) key.
func (r RawArticle) Lookup(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	if v, ok := r[key]; ok {
		return v, v != nil
	}
	parts := strings.Split(key, ".")
	if len(parts) == 1 {
		return nil, false
	}
	var cur any = map[string]any(r)
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			if ra, isRaw := cur.(RawArticle); isRaw {
				m = ra
			} else {
				return nil, false
			}
		}
		cur, ok = m[p]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// String returns the first non-blank string value among keys.
func (r RawArticle) String(keys ...string) string {
	for _, k := range keys {
		v, ok := r.Lookup(k)
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			if t := strings.TrimSpace(s); t != "" {
				return t
			}
		case []byte:
			if t := strings.TrimSpace(string(s)); t != "" {
				return t
			}
		case json.Number:
			return s.String()
		}
	}
	return ""
}

// Strings returns the first list-like value among keys. A single string is
// split on commas.
func (r RawArticle) Strings(keys ...string) []string {
	for _, k := range keys {
		v, ok := r.Lookup(k)
		if !ok {
			continue
		}
		var out []string
		switch s := v.(type) {
		case []string:
			out = s
		case []any:
			for _, item := range s {
				if str, ok := item.(string); ok {
					out = append(out, str)
				}
			}
		case string:
			out = strings.Split(s, ",")
		}
		cleaned := out[:0:0]
		for _, item := range out {
			if t := strings.TrimSpace(item); t != "" {
				cleaned = append(cleaned, t)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return nil
}

// Time returns the first parseable timestamp among keys.
func (r RawArticle) Time(keys ...string) (time.Time, bool) {
	for _, k := range keys {
		v, ok := r.Lookup(k)
		if !ok {
			continue
		}
		if t, ok := ParseTimestamp(v); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// timestampLayouts are tried in order when parsing string timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 -0700",
	"01/02/2006, 03:04 PM, -0700 MST", // SerpApi google_news
	"Jan 2, 2006",
	"2006-01-02",
}

// ParseTimestamp converts a loosely typed timestamp into a time.Time.
// Numbers are Unix seconds, or milliseconds when large enough.
func ParseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case string:
		return parseTimestampString(strings.TrimSpace(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return unixTime(f)
	case float64:
		return unixTime(t)
	case int64:
		return unixTime(float64(t))
	case int:
		return unixTime(float64(t))
	}
	return time.Time{}, false
}

func parseTimestampString(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return unixTime(f)
	}
	return time.Time{}, false
}

func unixTime(f float64) (time.Time, bool) {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	if f > 1e12 {
		return time.UnixMilli(int64(f)), true
	}
	return time.Unix(int64(f), 0), true
}
