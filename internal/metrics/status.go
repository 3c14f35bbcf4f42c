package metrics

import "sort"

// StatusCount is one row of a status code distribution.
type StatusCount struct {
	Code  int
	Count int
}

// FlattenStatusCodes converts a status->count map into rows sorted by
// descending count, then ascending code for stability.
func FlattenStatusCodes(dist map[int]int) []StatusCount {
	if len(dist) == 0 {
		return nil
	}
	rows := make([]StatusCount, 0, len(dist))
	for code, count := range dist {
		rows = append(rows, StatusCount{Code: code, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

// ErrorCount is one row of an error classification breakdown.
type ErrorCount struct {
	Class string
	Count int
}

// FlattenErrors converts a class->count map into rows sorted by descending
// count, then by class name.
func FlattenErrors(errs map[string]int) []ErrorCount {
	if len(errs) == 0 {
		return nil
	}
	rows := make([]ErrorCount, 0, len(errs))
	for class, count := range errs {
		rows = append(rows, ErrorCount{Class: class, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Class < rows[j].Class
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
