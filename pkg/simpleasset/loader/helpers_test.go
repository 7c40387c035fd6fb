package loader_test

import "time"

const (
	time5s = 5 * time.Second
	tick   = 5 * time.Millisecond
)
