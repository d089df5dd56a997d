package dbx

import (
	"fmt"
	"time"
)

// sqliteLayout matches CURRENT_TIMESTAMP so values written from Go and values
// defaulted by SQLite compare correctly as text.
const sqliteLayout = "2006-01-02 15:04:05"

// SQLiteTimestamp formats t the way SQLite's CURRENT_TIMESTAMP does (UTC).
func SQLiteTimestamp(t time.Time) string {
	return t.UTC().Format(sqliteLayout)
}

// SQLiteTime scans a TIMESTAMP column regardless of whether the driver
// hands back a time.Time or its text form.
type SQLiteTime struct {
	Time time.Time
}

func (s *SQLiteTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		s.Time = time.Time{}
		return nil
	case time.Time:
		s.Time = v.UTC()
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (s *SQLiteTime) parse(v string) error {
	for _, layout := range []string{sqliteLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05.999999999 -0700 MST"} {
		if t, err := time.Parse(layout, v); err == nil {
			s.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", v)
}
