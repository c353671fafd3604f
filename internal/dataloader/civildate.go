// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dataloader implements spec.md §4.7: the TsiSourceDataloader
// episode engine — command grammar, key-range indexing into a
// memory-mapped dataset, and [B,C,T,D+1] packed-tensor batch assembly.
package dataloader

import (
	"fmt"
	"strconv"
	"strings"
)

const msPerDay = 86_400_000

// daysFromCivil implements Howard Hinnant's days-from-civil algorithm
// (http://howardhinnant.github.io/date_algorithms.html#days_from_civil),
// avoiding a timezone database dependency for the FROM/TO date range
// parsing spec §4.7 requires. y/m/d is the proleptic Gregorian
// calendar date; the result is the signed day count relative to
// 1970-01-01.
func daysFromCivil(y int64, m, d uint) int64 {
	if m <= 2 {
		y--
	}
	var era int64
	if y >= 0 {
		era = y / 400
	} else {
		era = (y - 399) / 400
	}
	yoe := y - era*400 // [0, 399]
	var mp int64
	if int64(m) > 2 {
		mp = int64(m) - 3
	} else {
		mp = int64(m) + 9
	}
	doy := (153*mp+2)/5 + int64(d) - 1 // [0, 365]
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

// ParseDDMMYYYY parses a "dd.mm.yyyy" date into milliseconds since the
// Unix epoch at UTC day-start (endOfDay=false) or the last millisecond
// of that UTC day (endOfDay=true), matching spec's "FROM maps to
// day*86_400_000 ms, TO maps to (day+1)*86_400_000 - 1 ms". Years
// before 1970 or an impossible (day, month) pair fail.
func ParseDDMMYYYY(s string, endOfDay bool) (int64, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return 0, fmt.Errorf("dataloader: malformed date %q, expected dd.mm.yyyy", s)
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, fmt.Errorf("dataloader: malformed date %q", s)
	}
	if year < 1970 {
		return 0, fmt.Errorf("dataloader: year before 1970 in date %q", s)
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, fmt.Errorf("dataloader: impossible date %q", s)
	}
	if !isValidDayForMonth(int64(year), uint(month), uint(day)) {
		return 0, fmt.Errorf("dataloader: impossible date %q", s)
	}

	days := daysFromCivil(int64(year), uint(month), uint(day))
	if endOfDay {
		return (days+1)*msPerDay - 1, nil
	}
	return days * msPerDay, nil
}

func isValidDayForMonth(y int64, m, d uint) bool {
	lengths := [...]uint{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	maxDay := lengths[m-1]
	if m == 2 && isLeapYear(y) {
		maxDay = 29
	}
	return d <= maxDay
}

func isLeapYear(y int64) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
