package core

import "time"

// FixedWindow computes the fixed counting window containing now.
//
// Windows are aligned to the Unix epoch, so two processes with synchronized
// clocks always agree on the bucket. Counting is not sliding: up to twice the
// limit can be admitted across a boundary.
func FixedWindow(now time.Time, period time.Duration) Window {
	secs := int64(period / time.Second)
	if secs <= 0 {
		secs = int64(DefaultRatePeriod / time.Second)
	}

	unix := now.Unix()
	bucket := unix / secs
	if unix < 0 && unix%secs != 0 {
		bucket--
	}

	start := time.Unix(bucket*secs, 0)
	return Window{
		Bucket:  bucket,
		Start:   start,
		ResetAt: start.Add(time.Duration(secs) * time.Second),
	}
}
