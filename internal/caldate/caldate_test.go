// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package caldate

import "testing"

func TestToYYYYMMDDKnownDates(t *testing.T) {
	cases := []struct {
		sec  int64
		want int64
	}{
		{0, 19700101},
		{946684800, 20000101},  // 2000-01-01 00:00:00 UTC
		{1609459200, 20210101}, // 2021-01-01 00:00:00 UTC
	}
	for _, c := range cases {
		if got := ToYYYYMMDD(c.sec, 0); got != c.want {
			t.Fatalf("ToYYYYMMDD(%d) = %d, want %d", c.sec, got, c.want)
		}
	}
}

func TestToYYYYMMDDValidFieldsAcrossRange(t *testing.T) {
	for sec := int64(0); sec < (1 << 31); sec += 3_674_911 {
		v := ToYYYYMMDD(sec, 0)
		month := (v / 100) % 100
		day := v % 100
		if month < 1 || month > 12 {
			t.Fatalf("ToYYYYMMDD(%d) = %d has invalid month %d", sec, v, month)
		}
		if day < 1 || day > 31 {
			t.Fatalf("ToYYYYMMDD(%d) = %d has invalid day %d", sec, v, day)
		}
	}
}

func TestToYYYYMMConsistentWithToYYYYMMDD(t *testing.T) {
	sec := int64(1_700_000_000)
	full := ToYYYYMMDD(sec, 0)
	mm := ToYYYYMM(sec, 0)
	if full/100 != mm {
		t.Fatalf("ToYYYYMMDD/100 = %d, ToYYYYMM = %d", full/100, mm)
	}
}

func TestTimezoneOffsetShiftsDay(t *testing.T) {
	// 2021-01-01 00:00:00 UTC, shifted by a -1h offset, should land on
	// 2020-12-31.
	sec := int64(1609459200)
	got := ToYYYYMMDD(sec, -3600)
	if got != 20201231 {
		t.Fatalf("got %d, want 20201231", got)
	}
}
