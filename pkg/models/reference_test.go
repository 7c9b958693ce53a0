package models

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)

func minutes(n int64) time.Time { return epoch.Add(time.Duration(n) * time.Minute) }

func TestOverlaps(t *testing.T) {
	// request window is 22:00 to 03:00 the next day
	reqStart, reqEnd := minutes(22*60), minutes(27*60)

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"starts inside", minutes(23 * 60), minutes(29 * 60), true},
		{"ends inside", minutes(20 * 60), minutes(23 * 60), true},
		{"contains request", minutes(20 * 60), minutes(30 * 60), true},
		{"inside request", minutes(23 * 60), minutes(25 * 60), true},
		{"identical", reqStart, reqEnd, true},
		{"ends at request start", minutes(20 * 60), reqStart, false},
		{"starts at request end", reqEnd, minutes(29 * 60), false},
		{"entirely before", minutes(10 * 60), minutes(12 * 60), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(reqStart, reqEnd, tt.start, tt.end))
		})
	}
}

func TestOverlapsProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	offset := gen.Int64Range(0, 7*24*60)
	length := gen.Int64Range(1, 24*60)

	properties.Property("overlap is symmetric", prop.ForAll(
		func(as, al, bs, bl int64) bool {
			a0, a1 := minutes(as), minutes(as+al)
			b0, b1 := minutes(bs), minutes(bs+bl)
			return Overlaps(a0, a1, b0, b1) == Overlaps(b0, b1, a0, a1)
		},
		offset, length, offset, length,
	))

	properties.Property("overlap matches interval intersection", prop.ForAll(
		func(as, al, bs, bl int64) bool {
			want := as < bs+bl && bs < as+al
			return Overlaps(minutes(as), minutes(as+al), minutes(bs), minutes(bs+bl)) == want
		},
		offset, length, offset, length,
	))

	properties.Property("an interval overlaps itself", prop.ForAll(
		func(s, l int64) bool {
			return Overlaps(minutes(s), minutes(s+l), minutes(s), minutes(s+l))
		},
		offset, length,
	))

	properties.Property("adjacent intervals do not overlap", prop.ForAll(
		func(s, al, bl int64) bool {
			mid := s + al
			return !Overlaps(minutes(s), minutes(mid), minutes(mid), minutes(mid+bl))
		},
		offset, length, length,
	))

	properties.TestingRun(t)
}

func TestMaintenanceWindowAppliesOn(t *testing.T) {
	w := MaintenanceWindow{Weekdays: []time.Weekday{time.Saturday, time.Sunday}}
	assert.True(t, w.AppliesOn(time.Sunday))
	assert.False(t, w.AppliesOn(time.Monday))
	assert.False(t, MaintenanceWindow{}.AppliesOn(time.Monday))
}
