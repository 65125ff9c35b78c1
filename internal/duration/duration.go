// Package duration provides an immutable (amount, unit) duration value used
// for cadence and deadline configuration. All arithmetic and comparison
// operates on the canonical millisecond projection.
package duration

import (
	"fmt"
	"time"
)

// Unit is the time unit a Duration amount is expressed in.
type Unit int

const (
	UnitMilliseconds Unit = iota
	UnitSeconds
	UnitMinutes
	UnitHours
	UnitDays
	UnitWeeks
)

// millisPerUnit maps each unit to its millisecond multiplier.
var millisPerUnit = map[Unit]int64{
	UnitMilliseconds: 1,
	UnitSeconds:      1000,
	UnitMinutes:      60 * 1000,
	UnitHours:        60 * 60 * 1000,
	UnitDays:         24 * 60 * 60 * 1000,
	UnitWeeks:        7 * 24 * 60 * 60 * 1000,
}

// unitNames maps each unit to its display name.
var unitNames = map[Unit]string{
	UnitMilliseconds: "milliseconds",
	UnitSeconds:      "seconds",
	UnitMinutes:      "minutes",
	UnitHours:        "hours",
	UnitDays:         "days",
	UnitWeeks:        "weeks",
}

// Duration is an immutable amount of time in a fixed unit. The zero value is
// zero milliseconds. Construction never fails.
type Duration struct {
	amount int64
	unit   Unit
}

// Of creates a Duration from an amount and unit. Unknown units are treated
// as milliseconds.
func Of(amount int64, unit Unit) Duration {
	if _, ok := millisPerUnit[unit]; !ok {
		unit = UnitMilliseconds
	}
	return Duration{amount: amount, unit: unit}
}

// Milliseconds creates a Duration of n milliseconds.
func Milliseconds(n int64) Duration { return Of(n, UnitMilliseconds) }

// Seconds creates a Duration of n seconds.
func Seconds(n int64) Duration { return Of(n, UnitSeconds) }

// Minutes creates a Duration of n minutes.
func Minutes(n int64) Duration { return Of(n, UnitMinutes) }

// Hours creates a Duration of n hours.
func Hours(n int64) Duration { return Of(n, UnitHours) }

// Days creates a Duration of n days.
func Days(n int64) Duration { return Of(n, UnitDays) }

// Weeks creates a Duration of n weeks.
func Weeks(n int64) Duration { return Of(n, UnitWeeks) }

// Amount returns the raw amount in the Duration's own unit.
func (d Duration) Amount() int64 { return d.amount }

// Unit returns the Duration's unit.
func (d Duration) Unit() Unit { return d.unit }

// ToMilliseconds returns the canonical millisecond projection.
func (d Duration) ToMilliseconds() int64 {
	return d.amount * millisPerUnit[d.unit]
}

// Std converts the Duration to a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d.ToMilliseconds()) * time.Millisecond
}

// IsPositive reports whether the Duration is strictly greater than zero.
func (d Duration) IsPositive() bool { return d.ToMilliseconds() > 0 }

// Compare returns -1, 0, or 1 if d is less than, equal to, or greater than
// other by millisecond value. Durations of different units compare equal
// when their projections match.
func (d Duration) Compare(other Duration) int {
	a, b := d.ToMilliseconds(), other.ToMilliseconds()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal reports whether two Durations have the same millisecond value.
func (d Duration) Equal(other Duration) bool { return d.Compare(other) == 0 }

// String renders the Duration in its own unit, e.g. "90 milliseconds".
func (d Duration) String() string {
	return fmt.Sprintf("%d %s", d.amount, unitNames[d.unit])
}
