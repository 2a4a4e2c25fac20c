package session

import (
	"time"

	"schedbot/internal/domain"
)

// Step is the wizard position. Each step is advanced by exactly one external
// event; between steps the session just sits in the registry.
type Step int

const (
	// StepTarget waits for the DIRECT/CHANNEL choice.
	StepTarget Step = iota
	// StepRecipients waits for recipient ids (user ids, or one channel id).
	StepRecipients
	// StepMessage waits for the message text.
	StepMessage
	// StepDays is a sub-loop of day toggles until "done".
	StepDays
	// StepTime waits for a valid HH:MM; invalid input stays here.
	StepTime
	// StepEditForm waits for the three-line edit form of an existing
	// schedule (EditID).
	StepEditForm
)

func (s Step) String() string {
	switch s {
	case StepTarget:
		return "target"
	case StepRecipients:
		return "recipients"
	case StepMessage:
		return "message"
	case StepDays:
		return "days"
	case StepTime:
		return "time"
	case StepEditForm:
		return "edit"
	}
	return "unknown"
}

// Session accumulates one user's wizard state. It is mutated by single
// external events only; per-user serialization comes from the update pump
// delivering one event at a time.
type Session struct {
	UserID     int64
	Step       Step
	Target     domain.TargetKind
	Recipients []string
	Message    string
	Days       []string

	// EditID is set for StepEditForm sessions only.
	EditID int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ToggleDay adds the day if absent and removes it if present. Toggling the
// same code twice restores the original set.
func (s *Session) ToggleDay(code string) {
	for i, d := range s.Days {
		if d == code {
			s.Days = append(s.Days[:i], s.Days[i+1:]...)
			return
		}
	}
	s.Days = append(s.Days, code)
}

// HasDay reports whether the day is currently selected.
func (s *Session) HasDay(code string) bool {
	for _, d := range s.Days {
		if d == code {
			return true
		}
	}
	return false
}

// Schedule assembles the accumulated fields into a schedule draft. The
// caller validates; no minimum is enforced while toggling.
func (s *Session) Schedule(timeOfDay string) *domain.Schedule {
	return &domain.Schedule{
		Target:    s.Target,
		TargetIDs: append([]string(nil), s.Recipients...),
		Message:   s.Message,
		Days:      append([]string(nil), s.Days...),
		Time:      timeOfDay,
	}
}
