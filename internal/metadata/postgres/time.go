package postgres

import "time"

// Every timestamp column is a BIGINT/INTEGER unix-epoch microsecond value
// (see migrations/*/0001_init.up.sql) so scanning behaves identically on
// both the pgx and modernc.org/sqlite drivers; toMicros/fromMicros are the
// single conversion point.

func toMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixMicro()
}

func fromMicros(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}

	return time.UnixMicro(v).UTC()
}

func toMicrosPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}

	v := toMicros(*t)

	return &v
}

func fromMicrosPtr(v *int64) *time.Time {
	if v == nil {
		return nil
	}

	t := fromMicros(*v)

	return &t
}
