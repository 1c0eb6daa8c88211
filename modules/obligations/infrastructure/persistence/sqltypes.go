package persistence

import (
	"database/sql/driver"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	dateLayout,
}

// nullDate stores a calendar date as YYYY-MM-DD on both drivers.
type nullDate struct {
	Time  time.Time
	Valid bool
}

func dateFromPtr(t *time.Time) nullDate {
	if t == nil {
		return nullDate{}
	}
	return nullDate{Time: *t, Valid: true}
}

func (d nullDate) Ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	y, m, day := d.Time.Date()
	t := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func (d nullDate) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.Time.Format(dateLayout), nil
}

func (d *nullDate) Scan(src any) error {
	if src == nil {
		*d = nullDate{}
		return nil
	}
	t, err := scanTime(src)
	if err != nil {
		return err
	}
	*d = nullDate{Time: t, Valid: true}
	return nil
}

// timestamp accepts the textual forms sqlite hands back for TIMESTAMP columns.
type timestamp struct {
	time.Time
}

func (t timestamp) Value() (driver.Value, error) {
	return t.UTC(), nil
}

func (t *timestamp) Scan(src any) error {
	if src == nil {
		t.Time = time.Time{}
		return nil
	}
	v, err := scanTime(src)
	if err != nil {
		return err
	}
	t.Time = v.UTC()
	return nil
}

func scanTime(src any) (time.Time, error) {
	switch v := src.(type) {
	case time.Time:
		return v, nil
	case string:
		return parseTimestamp(v)
	case []byte:
		return parseTimestamp(string(v))
	}
	return time.Time{}, fmt.Errorf("cannot scan %T into time", src)
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time value %q", s)
}
