package model

import (
	"testing"
	"time"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func intPtr(v int) *int { return &v }

func TestGroupIsPlanned(t *testing.T) {
	today := time.Date(2026, time.March, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name         string
		startingDate *time.Time
		want         bool
	}{
		{"no start date", nil, false},
		{"future start", datePtr(2026, time.March, 11), true},
		{"starts today", datePtr(2026, time.March, 10), false},
		{"started yesterday", datePtr(2026, time.March, 9), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Group{StartingDate: tt.startingDate}
			if got := g.IsPlanned(today); got != tt.want {
				t.Errorf("IsPlanned() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGroupShouldBeActive(t *testing.T) {
	today := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		startingDate *time.Time
		want         bool
	}{
		{"no start date is active", nil, true},
		{"past start is active", datePtr(2026, time.February, 1), true},
		{"starts today is active", datePtr(2026, time.March, 10), true},
		{"future start is not active", datePtr(2026, time.April, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Group{StartingDate: tt.startingDate}
			if got := g.ShouldBeActive(today); got != tt.want {
				t.Errorf("ShouldBeActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGroupDaysSinceStart(t *testing.T) {
	today := time.Date(2026, time.March, 10, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name         string
		startingDate *time.Time
		want         int
	}{
		{"no start date", nil, -1},
		{"future start", datePtr(2026, time.March, 15), -1},
		{"starts today", datePtr(2026, time.March, 10), 0},
		{"five days in", datePtr(2026, time.March, 5), 5},
		{"fifteen days in", datePtr(2026, time.February, 23), 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Group{StartingDate: tt.startingDate}
			if got := g.DaysSinceStart(today); got != tt.want {
				t.Errorf("DaysSinceStart() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGroupCanAcceptBookings(t *testing.T) {
	today := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		startingDate *time.Time
		want         bool
	}{
		{"no start date always open", nil, true},
		{"planned group open", datePtr(2026, time.April, 1), true},
		{"started 5 days ago still open", datePtr(2026, time.March, 5), true},
		{"started 9 days ago still open", datePtr(2026, time.March, 1), true},
		{"window closes on day 10", datePtr(2026, time.February, 28), false},
		{"started 15 days ago closed", datePtr(2026, time.February, 23), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Group{StartingDate: tt.startingDate}
			if got := g.CanAcceptBookings(today); got != tt.want {
				t.Errorf("CanAcceptBookings() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGroupFinishDate(t *testing.T) {
	tests := []struct {
		name         string
		schedule     string
		startingDate *time.Time
		totalLessons *int
		want         *time.Time
	}{
		{
			// 2026-03-02 is a Monday. One lesson finishes the same day.
			name:         "single lesson",
			schedule:     ScheduleMonWedFri,
			startingDate: datePtr(2026, time.March, 2),
			totalLessons: intPtr(1),
			want:         datePtr(2026, time.March, 2),
		},
		{
			// Mon 2, Wed 4, Fri 6.
			name:         "one week of mon_wed_fri",
			schedule:     ScheduleMonWedFri,
			startingDate: datePtr(2026, time.March, 2),
			totalLessons: intPtr(3),
			want:         datePtr(2026, time.March, 6),
		},
		{
			// Four full weeks: lesson 12 lands on Fri March 27.
			name:         "twelve lessons mon_wed_fri",
			schedule:     ScheduleMonWedFri,
			startingDate: datePtr(2026, time.March, 2),
			totalLessons: intPtr(12),
			want:         datePtr(2026, time.March, 27),
		},
		{
			// 2026-03-03 is a Tuesday. Tue 3, Thu 5, Sat 7, Tue 10.
			name:         "tue_thu_sat crosses week",
			schedule:     ScheduleTueThuSat,
			startingDate: datePtr(2026, time.March, 3),
			totalLessons: intPtr(4),
			want:         datePtr(2026, time.March, 10),
		},
		{
			// Start on a non-lesson day still counts as lesson one; the
			// walk continues on scheduled weekdays only.
			name:         "off-schedule start counts as first lesson",
			schedule:     ScheduleMonWedFri,
			startingDate: datePtr(2026, time.March, 3), // Tuesday
			totalLessons: intPtr(2),
			want:         datePtr(2026, time.March, 4), // Wednesday
		},
		{
			name:         "no start date",
			schedule:     ScheduleMonWedFri,
			startingDate: nil,
			totalLessons: intPtr(10),
			want:         nil,
		},
		{
			name:         "no lesson count",
			schedule:     ScheduleMonWedFri,
			startingDate: datePtr(2026, time.March, 2),
			totalLessons: nil,
			want:         nil,
		},
		{
			name:         "unknown schedule",
			schedule:     "sunday_only",
			startingDate: datePtr(2026, time.March, 2),
			totalLessons: intPtr(3),
			want:         nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Group{
				Schedule:     tt.schedule,
				StartingDate: tt.startingDate,
				TotalLessons: tt.totalLessons,
			}
			got := g.FinishDate()
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("FinishDate() = %v, want %v", got, tt.want)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Errorf("FinishDate() = %s, want %s", got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
			}
		})
	}
}

func TestGroupAvailableSeats(t *testing.T) {
	g := &Group{Seats: 12}

	if got := g.AvailableSeats(0); got != 12 {
		t.Errorf("AvailableSeats(0) = %d, want 12", got)
	}
	if got := g.AvailableSeats(12); got != 0 {
		t.Errorf("AvailableSeats(12) = %d, want 0", got)
	}
	if got := g.AvailableSeats(15); got != 0 {
		t.Errorf("AvailableSeats(15) = %d, want 0 (never negative)", got)
	}
}
