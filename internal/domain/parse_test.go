package domain

import (
	"errors"
	"testing"
	"time"
)

func TestValidateTime(t *testing.T) {
	t.Parallel()
	accept := []string{"00:00", "09:00", "16:30", "23:59"}
	for _, s := range accept {
		if err := ValidateTime(s); err != nil {
			t.Errorf("ValidateTime(%q) = %v, want nil", s, err)
		}
	}
	reject := []string{"24:00", "9:30", "9:3", "", "12:60", "ab:cd", "12:00 "}
	for _, s := range reject {
		if err := ValidateTime(s); err == nil {
			t.Errorf("ValidateTime(%q) = nil, want error", s)
		}
	}
}

func TestMinutesOfDay(t *testing.T) {
	t.Parallel()
	m, err := MinutesOfDay("23:15")
	if err != nil {
		t.Fatalf("MinutesOfDay error: %v", err)
	}
	if m != 23*60+15 {
		t.Fatalf("MinutesOfDay = %d, want %d", m, 23*60+15)
	}
	if _, err := MinutesOfDay("24:00"); err == nil {
		t.Fatal("expected error for 24:00")
	}
}

func TestParseDays(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want []string
		err  error
	}{
		{name: "simple", raw: "MON,WED", want: []string{"MON", "WED"}},
		{name: "lowercase and spaces", raw: "mon, fri ", want: []string{"MON", "FRI"}},
		{name: "duplicates collapse", raw: "MON,MON,TUE", want: []string{"MON", "TUE"}},
		{name: "bad code", raw: "MON,XYZ", err: ErrBadDay},
		{name: "empty", raw: "", err: ErrNoDays},
		{name: "only delimiters", raw: ",,", err: ErrNoDays},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDays(tt.raw)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("ParseDays(%q) error = %v, want %v", tt.raw, err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDays(%q) error: %v", tt.raw, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseDays(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("ParseDays(%q) = %v, want %v", tt.raw, got, tt.want)
				}
			}
		})
	}
}

func TestWeekdayCode(t *testing.T) {
	t.Parallel()
	if got := WeekdayCode(time.Monday); got != "MON" {
		t.Fatalf("WeekdayCode(Monday) = %q", got)
	}
	if got := WeekdayCode(time.Sunday); got != "SUN" {
		t.Fatalf("WeekdayCode(Sunday) = %q", got)
	}
}

func TestScheduleValidate(t *testing.T) {
	t.Parallel()
	ok := Schedule{
		Target:    TargetChannel,
		TargetIDs: []string{"123"},
		Message:   "hi",
		Days:      []string{"MON", "WED"},
		Time:      "09:00",
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	tests := []struct {
		name   string
		mut    func(*Schedule)
		expect error
	}{
		{"empty message", func(s *Schedule) { s.Message = "  " }, ErrEmptyMessage},
		{"no recipients", func(s *Schedule) { s.TargetIDs = nil }, ErrNoRecipients},
		{"delimiter in id", func(s *Schedule) { s.TargetIDs = []string{"1,2"} }, ErrBadRecipientID},
		{"no days", func(s *Schedule) { s.Days = nil }, ErrNoDays},
		{"bad day", func(s *Schedule) { s.Days = []string{"FUN"} }, ErrBadDay},
		{"bad time", func(s *Schedule) { s.Time = "9:00" }, ErrBadTime},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := ok
			s.TargetIDs = append([]string(nil), ok.TargetIDs...)
			s.Days = append([]string(nil), ok.Days...)
			tt.mut(&s)
			if err := s.Validate(); !errors.Is(err, tt.expect) {
				t.Fatalf("Validate = %v, want %v", err, tt.expect)
			}
		})
	}
}
