// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package caldate implements the date/time helper functions spec §4.8
// names (toYYYY, toYYYYMM, toYYYYMMDD): calendar-field decomposition of a
// unix timestamp under the proleptic Gregorian calendar, after adding a
// session timezone offset in seconds. The standard library's time package
// already implements the proleptic Gregorian calendar correctly (including
// leap years) for any int64 offset from the epoch, so this package is a
// thin, well-named wrapper rather than hand-rolled calendar arithmetic; no
// retrieved example or pack dependency implements calendar decomposition,
// and re-deriving it by hand would just reinvent what time.Unix already
// gets right.
package caldate

import "time"

// civil returns the UTC calendar date for unix timestamp sec plus
// tzOffsetSeconds, per spec §4.8 ("timezone offset in seconds is added to
// the unix timestamp before decomposition").
func civil(sec int64, tzOffsetSeconds int32) (year int, month time.Month, day int) {
	t := time.Unix(sec+int64(tzOffsetSeconds), 0).UTC()
	year, month, day = t.Date()
	return
}

// ToYYYY returns the calendar year of sec (spec §4.8).
func ToYYYY(sec int64, tzOffsetSeconds int32) int64 {
	year, _, _ := civil(sec, tzOffsetSeconds)
	return int64(year)
}

// ToYYYYMM returns year*100+month of sec (spec §4.8), the default
// partition-key shape for time-bucketed tables.
func ToYYYYMM(sec int64, tzOffsetSeconds int32) int64 {
	year, month, _ := civil(sec, tzOffsetSeconds)
	return int64(year)*100 + int64(month)
}

// ToYYYYMMDD returns year*10000+month*100+day of sec (spec §4.8/§8).
func ToYYYYMMDD(sec int64, tzOffsetSeconds int32) int64 {
	year, month, day := civil(sec, tzOffsetSeconds)
	return int64(year)*10000 + int64(month)*100 + int64(day)
}
