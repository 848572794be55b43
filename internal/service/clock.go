package service

import "time"

// Clock supplies the server time used for every stored timestamp.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC at second precision, which is
// what the store keeps.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
