package domain

import "time"

// comparators holds the change rule for each field kind.
var comparators = map[Kind]func(prev, cur Value) int{
	KindCount:     countMagnitude,
	KindBool:      equalityMagnitude,
	KindString:    equalityMagnitude,
	KindVersion:   equalityMagnitude,
	KindTimestamp: timestampMagnitude,
}

// Magnitude returns how much a field moved between two values of the same kind.
func Magnitude(prev, cur Value) int {
	return comparators[cur.Kind](prev, cur)
}

// BaselineMagnitude is the magnitude of a field when there is no prior history.
// Counts establish a baseline and report no change; every other kind reports
// a full change when the current value is present.
func BaselineMagnitude(cur Value) int {
	if cur.Kind == KindCount || !cur.Present {
		return 0
	}
	return 1
}

// countMagnitude is the absolute difference of two known counts. A count that
// became known or unknown is a presence change of 1, never a jump from zero.
func countMagnitude(prev, cur Value) int {
	if prev.Present != cur.Present {
		return 1
	}
	if !cur.Present {
		return 0
	}
	if cur.Int < prev.Int {
		return prev.Int - cur.Int
	}
	return cur.Int - prev.Int
}

func equalityMagnitude(prev, cur Value) int {
	if prev.Present != cur.Present {
		return 1
	}
	if !cur.Present || (prev.Text == cur.Text && prev.Bool == cur.Bool) {
		return 0
	}
	return 1
}

func timestampMagnitude(prev, cur Value) int {
	if prev.Present != cur.Present {
		return 1
	}
	if !cur.Present {
		return 0
	}
	d := cur.Time.Sub(prev.Time)
	if d < 0 {
		d = -d
	}
	return int(d / (24 * time.Hour))
}

// Diff returns the change magnitude of the field at path between the previous
// record and the current report. A nil previous record means no history.
func Diff(prev *HistoryRecord, cur *Report, path string) (int, error) {
	curValue, err := Resolve(cur, path)
	if err != nil {
		return 0, err
	}
	if prev == nil {
		return BaselineMagnitude(curValue), nil
	}
	prevValue, err := Resolve(&prev.LastData, path)
	if err != nil {
		return 0, err
	}
	return Magnitude(prevValue, curValue), nil
}

// Changed reports whether any field other than fetched_at moved since the previous record.
// With no history it returns false: the first run only establishes a baseline.
func Changed(prev *HistoryRecord, cur *Report) bool {
	if prev == nil {
		return false
	}
	for path, f := range fields {
		if path == "fetched_at" {
			continue
		}
		if Magnitude(f.get(&prev.LastData), f.get(cur)) > 0 {
			return true
		}
	}
	return false
}
