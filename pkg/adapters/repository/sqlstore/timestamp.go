package sqlstore

import (
	"time"

	"github.com/pkg/errors"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// timestamp scans the representations the supported drivers return for a
// TIMESTAMP column.
type timestamp struct {
	Time  time.Time
	Valid bool
}

func (t *timestamp) Scan(v any) error {
	switch v := v.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case int64:
		t.Time, t.Valid = time.Unix(v, 0).UTC(), true
	default:
		return errors.Errorf("unsupported timestamp value %T", v)
	}
	return nil
}

func (t *timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return errors.Errorf("unparseable timestamp %q", s)
}

func (t timestamp) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
