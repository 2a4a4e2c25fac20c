package domain

import (
	"errors"
	"fmt"
	"strings"
)

// TargetKind says whether a schedule delivers to individual users or to a
// single channel.
type TargetKind string

const (
	TargetDirect  TargetKind = "DIRECT"
	TargetChannel TargetKind = "CHANNEL"
)

// ParseTargetKind validates a stored target string.
func ParseTargetKind(s string) (TargetKind, error) {
	switch TargetKind(strings.ToUpper(strings.TrimSpace(s))) {
	case TargetDirect:
		return TargetDirect, nil
	case TargetChannel:
		return TargetChannel, nil
	}
	return "", fmt.Errorf("unknown target kind %q", s)
}

// Schedule is a recurring message definition. Time is a zero-padded "HH:MM"
// string and LastSent a "YYYY-MM-DD" date ("" = never sent). Both stay in
// their wire form across the store boundary; parse helpers live in parse.go.
type Schedule struct {
	ID        int64
	Target    TargetKind
	TargetIDs []string
	Message   string
	Days      []string
	Time      string
	LastSent  string
}

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrNoRecipients    = errors.New("no recipients")
	ErrNoDays          = errors.New("no days selected")
	ErrBadRecipientID  = errors.New("recipient id contains the list delimiter")
	ErrEmptyRecipentID = errors.New("recipient id is empty")
)

// Validate checks the entity invariants that must hold before a schedule is
// committed. The wizard defers all of these to this single point.
func (s *Schedule) Validate() error {
	if _, err := ParseTargetKind(string(s.Target)); err != nil {
		return err
	}
	if strings.TrimSpace(s.Message) == "" {
		return ErrEmptyMessage
	}
	if len(s.TargetIDs) == 0 {
		return ErrNoRecipients
	}
	for _, id := range s.TargetIDs {
		if strings.TrimSpace(id) == "" {
			return ErrEmptyRecipentID
		}
		// Lists are stored comma-delimited; a comma inside an identifier
		// would corrupt the row on read-back.
		if strings.Contains(id, listDelimiter) {
			return fmt.Errorf("%w: %q", ErrBadRecipientID, id)
		}
	}
	if len(s.Days) == 0 {
		return ErrNoDays
	}
	for _, d := range s.Days {
		if !IsWeekday(d) {
			return fmt.Errorf("%w: %q", ErrBadDay, d)
		}
	}
	if err := ValidateTime(s.Time); err != nil {
		return err
	}
	return nil
}

// FiresOn reports whether the schedule is configured for the given weekday
// code.
func (s *Schedule) FiresOn(day string) bool {
	for _, d := range s.Days {
		if d == day {
			return true
		}
	}
	return false
}
