package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissing marks a required field that was absent or blank.
	ErrMissing = errors.New("missing required field")
	// ErrInvalid marks a field whose value does not parse as its kind.
	ErrInvalid = errors.New("invalid field value")
)

// FieldError reports which column failed binding.
type FieldError struct {
	Column string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Column, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// BindCreate validates input for an insert and returns the scalar column
// values, with defaults and server stamps applied. Asset columns are not
// included.
func (r *Resource) BindCreate(input map[string]string, now time.Time) (map[string]any, error) {
	out := make(map[string]any, len(r.Fields))
	for _, f := range r.Fields {
		switch {
		case f.Fixed:
			out[f.Column] = f.Default
			continue
		case f.Kind == KindStamp:
			out[f.Column] = now.UTC()
			continue
		}
		raw, ok := lookup(input, f.Column)
		if !ok {
			if f.Default != nil {
				out[f.Column] = f.Default
				continue
			}
			if f.Required {
				return nil, &FieldError{Column: f.Column, Err: ErrMissing}
			}
			continue
		}
		val, err := Coerce(f, raw)
		if err != nil {
			return nil, err
		}
		out[f.Column] = val
	}
	return out, nil
}

// BindUpdate returns only the scalar fields present in input. Fixed and
// server-stamped fields are never client-assignable.
func (r *Resource) BindUpdate(input map[string]string) (map[string]any, error) {
	out := make(map[string]any)
	for _, f := range r.Fields {
		if f.Fixed || f.Kind == KindStamp {
			continue
		}
		raw, ok := lookup(input, f.Column)
		if !ok {
			continue
		}
		val, err := Coerce(f, raw)
		if err != nil {
			return nil, err
		}
		out[f.Column] = val
	}
	return out, nil
}

func lookup(input map[string]string, column string) (string, bool) {
	raw, ok := input[column]
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// Coerce parses raw according to the field kind.
func Coerce(f Field, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch f.Kind {
	case KindInt:
		n, err := ParseInt(raw)
		if err != nil {
			return nil, &FieldError{Column: f.Column, Err: fmt.Errorf("%w: %q is not an integer", ErrInvalid, raw)}
		}
		return n, nil
	case KindText:
		return raw, nil
	case KindInterval:
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs >= 0 {
			return fmt.Sprintf("%d seconds", secs), nil
		}
		if clock, ok := parseClock(raw); ok {
			return clock, nil
		}
		return nil, &FieldError{Column: f.Column, Err: fmt.Errorf("%w: %q is not a duration", ErrInvalid, raw)}
	case KindClock:
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs >= 0 {
			return clockFromSeconds(secs), nil
		}
		if clock, ok := parseClock(raw); ok {
			return clock, nil
		}
		return nil, &FieldError{Column: f.Column, Err: fmt.Errorf("%w: %q is not a time of day", ErrInvalid, raw)}
	default:
		return nil, &FieldError{Column: f.Column, Err: fmt.Errorf("%w: %s fields are server-assigned", ErrInvalid, f.Kind)}
	}
}

// ParseInt parses a base-10 identifier or counter.
func ParseInt(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}

// clockFromSeconds wraps at 24h the way a time-of-day column would.
func clockFromSeconds(secs int64) string {
	secs %= 86400
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

func parseClock(raw string) (string, bool) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("15:04:05"), true
		}
	}
	return "", false
}
