package scheduler

import (
	"fmt"
	"time"
)

// Schedule computes the next run after a given time.
type Schedule interface {
	Next(after time.Time) time.Time
	String() string
}

// Every runs at a fixed interval.
func Every(d time.Duration) Schedule { return every{d: d} }

type every struct{ d time.Duration }

func (e every) Next(after time.Time) time.Time { return after.Add(e.d) }
func (e every) String() string                 { return "every " + e.d.String() }

// DailyAt runs once a day at hour:minute in the location of the time passed
// to Next.
func DailyAt(hour, minute int) Schedule { return daily{hour: hour, minute: minute} }

type daily struct{ hour, minute int }

func (d daily) Next(after time.Time) time.Time {
	next := time.Date(after.Year(), after.Month(), after.Day(), d.hour, d.minute, 0, 0, after.Location())
	if !next.After(after) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (d daily) String() string { return fmt.Sprintf("daily at %02d:%02d", d.hour, d.minute) }
