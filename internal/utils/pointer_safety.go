package utils

import "time"

func Ptr[T any](v T) *T {
	return &v
}

// CopyTime returns an independent copy of an optional timestamp.
func CopyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return Ptr(*t)
}
