package bot

import (
	"context"
	"fmt"
	"strings"

	"schedbot/internal/domain"
	"schedbot/internal/session"
	"schedbot/internal/storage"
	kit "schedbot/internal/transport"
)

func (b *Bot) cmdList(ctx context.Context, chatID int64) {
	schedules, err := b.store.ListSchedules(ctx)
	if err != nil {
		b.reply(ctx, chatID, "Could not load schedules: "+err.Error())
		return
	}
	if len(schedules) == 0 {
		b.reply(ctx, chatID, textNoSchedules)
		return
	}
	blocks := make([]string, 0, len(schedules))
	for i := range schedules {
		blocks = append(blocks, renderSchedule(&schedules[i]))
	}
	b.reply(ctx, chatID, strings.Join(blocks, "\n\n"))
}

func renderSchedule(s *domain.Schedule) string {
	target := "DM to " + domain.JoinList(s.TargetIDs)
	if s.Target == domain.TargetChannel {
		target = "Channel " + domain.JoinList(s.TargetIDs)
	}
	lastSent := s.LastSent
	if lastSent == "" {
		lastSent = "never"
	}
	msg := s.Message
	if len(msg) > 60 {
		msg = msg[:57] + "..."
	}
	return fmt.Sprintf("#%d %s\nDays: %s at %s\nLast sent: %s\n%s",
		s.ID, target, domain.JoinList(s.Days), s.Time, lastSent, msg)
}

func (b *Bot) cmdDelete(ctx context.Context, m *kit.Message, args []string) {
	id, ok := parseID(args)
	if !ok {
		b.reply(ctx, m.ChatID, "Usage: /delete <id>")
		return
	}
	if err := b.store.DeleteSchedule(ctx, id); err != nil {
		if isNotFound(err) {
			b.reply(ctx, m.ChatID, fmt.Sprintf("Schedule #%d not found.", id))
			return
		}
		b.reply(ctx, m.ChatID, "Could not delete the schedule: "+err.Error())
		return
	}
	b.audit(ctx, m.FromID, "delete", id)
	b.reply(ctx, m.ChatID, fmt.Sprintf("Schedule #%d deleted.", id))
}

func (b *Bot) cmdEdit(ctx context.Context, m *kit.Message, args []string) {
	id, ok := parseID(args)
	if !ok {
		b.reply(ctx, m.ChatID, "Usage: /edit <id>")
		return
	}
	s, err := b.store.GetSchedule(ctx, id)
	if err != nil {
		if isNotFound(err) {
			b.reply(ctx, m.ChatID, fmt.Sprintf("Schedule #%d not found.", id))
			return
		}
		b.reply(ctx, m.ChatID, "Could not load the schedule: "+err.Error())
		return
	}
	b.sessions.StartEdit(m.FromID, id)
	b.reply(ctx, m.ChatID, fmt.Sprintf(textAskEditForm, renderSchedule(s)))
}

// stepEditForm applies the three-line edit form: message, days, time.
// A lone "-" keeps the stored value for that line.
func (b *Bot) stepEditForm(ctx context.Context, chatID int64, s *session.Session, text string) {
	lines := strings.SplitN(text, "\n", 3)
	if len(lines) != 3 {
		b.reply(ctx, chatID, "Send exactly three lines: message, days, time. Use - to keep a value.")
		return
	}

	var upd storage.ScheduleUpdate
	if msg := strings.TrimSpace(lines[0]); msg != "-" {
		if msg == "" {
			b.reply(ctx, chatID, "The message line is empty. Use - to keep the current message.")
			return
		}
		upd.Message = &msg
	}
	if dayLine := strings.TrimSpace(lines[1]); dayLine != "-" {
		days, err := domain.ParseDays(domain.JoinList(splitRecipients(dayLine)))
		if err != nil {
			b.reply(ctx, chatID, "Days must be codes like MON WED FRI. Use - to keep the current days.")
			return
		}
		upd.Days = days
	}
	if timeLine := strings.TrimSpace(lines[2]); timeLine != "-" {
		if err := domain.ValidateTime(timeLine); err != nil {
			b.reply(ctx, chatID, textBadTime)
			return
		}
		upd.Time = &timeLine
	}

	if upd.Message == nil && upd.Days == nil && upd.Time == nil {
		b.sessions.Remove(s.UserID)
		b.reply(ctx, chatID, "Nothing to change.")
		return
	}

	if err := b.store.UpdateSchedule(ctx, s.EditID, upd); err != nil {
		b.sessions.Remove(s.UserID)
		if isNotFound(err) {
			b.reply(ctx, chatID, fmt.Sprintf("Schedule #%d is gone.", s.EditID))
			return
		}
		b.reply(ctx, chatID, "Could not update the schedule: "+err.Error())
		return
	}
	b.sessions.Remove(s.UserID)
	b.audit(ctx, s.UserID, "update", s.EditID)
	b.reply(ctx, chatID, fmt.Sprintf("Schedule #%d updated.", s.EditID))
}
