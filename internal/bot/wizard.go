package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"schedbot/internal/domain"
	"schedbot/internal/session"
	kit "schedbot/internal/transport"
	"schedbot/pkg/logx"
	"schedbot/pkg/tgui"
)

func (b *Bot) cmdCreate(ctx context.Context, m *kit.Message) {
	// A fresh /create overwrites whatever was in progress.
	b.sessions.Start(m.FromID)
	b.sendTargetPrompt(ctx, m.ChatID)
}

func (b *Bot) cmdCancel(ctx context.Context, m *kit.Message) {
	if !b.sessions.Remove(m.FromID) {
		b.reply(ctx, m.ChatID, textNoSession)
		return
	}
	b.reply(ctx, m.ChatID, textCanceled)
}

func (b *Bot) sendTargetPrompt(ctx context.Context, chatID int64) {
	kb := tgui.NewInline().
		Row(
			tgui.Btn("Direct messages", tgui.Data(cbScope, "target", string(domain.TargetDirect))),
			tgui.Btn("Channel", tgui.Data(cbScope, "target", string(domain.TargetChannel))),
		).
		Row(tgui.Btn("Cancel", tgui.Data(cbScope, "cancel", "")))
	b.send(ctx, chatID, textAskTarget, kb.Markup())
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup any) {
	opt := &kit.SendOptions{ReplyMarkupAdapter: markup}
	if _, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, opt); err != nil {
		b.log.Warn("send failed", logx.Int64("chat", chatID), logx.Err(err))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *kit.Callback) {
	if !b.allowed(cb.FromID) {
		b.answer(ctx, cb.ID, textNotAllowed)
		return
	}
	scope, action, payload := tgui.Split(cb.Data)
	if scope != cbScope {
		b.answer(ctx, cb.ID, "")
		return
	}

	if action == "cancel" {
		b.sessions.Remove(cb.FromID)
		b.answer(ctx, cb.ID, textCanceled)
		b.reply(ctx, cb.ChatID, textCanceled)
		return
	}

	s, ok := b.sessions.Get(cb.FromID)
	if !ok {
		b.answer(ctx, cb.ID, textNoSession)
		return
	}

	switch action {
	case "target":
		b.cbTarget(ctx, cb, s, payload)
	case "day":
		b.cbDay(ctx, cb, s, payload)
	case "done":
		b.cbDaysDone(ctx, cb, s)
	default:
		b.answer(ctx, cb.ID, "")
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if err := b.adapter.AnswerCallback(ctx, callbackID, text); err != nil {
		b.log.Warn("answer callback failed", logx.Err(err))
	}
}

func (b *Bot) cbTarget(ctx context.Context, cb *kit.Callback, s *session.Session, payload string) {
	if s.Step != session.StepTarget {
		b.answer(ctx, cb.ID, "")
		return
	}
	kind, err := domain.ParseTargetKind(payload)
	if err != nil {
		b.answer(ctx, cb.ID, "")
		return
	}
	s.Target = kind
	s.Step = session.StepRecipients
	b.answer(ctx, cb.ID, "")
	if kind == domain.TargetChannel {
		b.reply(ctx, cb.ChatID, textAskRecipientChannel)
		return
	}
	b.reply(ctx, cb.ChatID, textAskRecipientsDirect)
}

func (b *Bot) cbDay(ctx context.Context, cb *kit.Callback, s *session.Session, code string) {
	if s.Step != session.StepDays || !domain.IsWeekday(code) {
		b.answer(ctx, cb.ID, "")
		return
	}
	s.ToggleDay(code)
	b.answer(ctx, cb.ID, daysToast(s.Days))
	// Redraw checkmarks on the prompt we were clicked from.
	ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	opt := &kit.SendOptions{ReplyMarkupAdapter: dayKeyboard(s)}
	if err := b.adapter.EditText(ctx, ref, textAskDays, opt); err != nil {
		b.log.Warn("day keyboard redraw failed", logx.Err(err))
	}
}

func (b *Bot) cbDaysDone(ctx context.Context, cb *kit.Callback, s *session.Session) {
	if s.Step != session.StepDays {
		b.answer(ctx, cb.ID, "")
		return
	}
	s.Step = session.StepTime
	b.answer(ctx, cb.ID, "")
	b.reply(ctx, cb.ChatID, textAskTime)
}

func daysToast(days []string) string {
	if len(days) == 0 {
		return "No days selected"
	}
	return "Days: " + domain.JoinList(days)
}

var dayLabels = map[string]string{
	"MON": "Mon", "TUE": "Tue", "WED": "Wed", "THU": "Thu",
	"FRI": "Fri", "SAT": "Sat", "SUN": "Sun",
}

func dayKeyboard(s *session.Session) any {
	kb := tgui.NewInline()
	for i := 0; i+1 < len(domain.Weekdays); i += 2 {
		kb.Row(dayButton(s, domain.Weekdays[i]), dayButton(s, domain.Weekdays[i+1]))
	}
	kb.Row(dayButton(s, domain.Weekdays[len(domain.Weekdays)-1]))
	kb.Row(
		tgui.Btn("Done", tgui.Data(cbScope, "done", "")),
		tgui.Btn("Cancel", tgui.Data(cbScope, "cancel", "")),
	)
	return kb.Markup()
}

func dayButton(s *session.Session, code string) tele.Btn {
	label := dayLabels[code]
	if s.HasDay(code) {
		label = "✓ " + label
	}
	return tgui.Btn(label, tgui.Data(cbScope, "day", code))
}

// handleStepInput routes free text to the step waiting for it.
func (b *Bot) handleStepInput(ctx context.Context, chatID int64, s *session.Session, text string) {
	switch s.Step {
	case session.StepRecipients:
		b.stepRecipients(ctx, chatID, s, text)
	case session.StepMessage:
		b.stepMessage(ctx, chatID, s, text)
	case session.StepTime:
		b.stepTime(ctx, chatID, s, text)
	case session.StepEditForm:
		b.stepEditForm(ctx, chatID, s, text)
	default:
		// StepTarget and StepDays advance via callbacks only.
	}
}

func (b *Bot) stepRecipients(ctx context.Context, chatID int64, s *session.Session, text string) {
	ids := splitRecipients(text)
	if len(ids) == 0 {
		b.reply(ctx, chatID, textBadRecipients)
		return
	}
	for _, id := range ids {
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			b.reply(ctx, chatID, textBadRecipients)
			return
		}
	}
	if s.Target == domain.TargetChannel && len(ids) != 1 {
		b.reply(ctx, chatID, textAskRecipientChannel)
		return
	}
	s.Recipients = ids
	s.Step = session.StepMessage
	b.reply(ctx, chatID, textAskMessage)
}

func splitRecipients(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

func (b *Bot) stepMessage(ctx context.Context, chatID int64, s *session.Session, text string) {
	if text == "" {
		b.reply(ctx, chatID, textAskMessage)
		return
	}
	s.Message = text
	s.Step = session.StepDays
	b.send(ctx, chatID, textAskDays, dayKeyboard(s))
}

func (b *Bot) stepTime(ctx context.Context, chatID int64, s *session.Session, text string) {
	if err := domain.ValidateTime(text); err != nil {
		// Stay on this step; the next message is tried again.
		b.reply(ctx, chatID, textBadTime)
		return
	}
	draft := s.Schedule(text)
	id, err := b.store.CreateSchedule(ctx, draft)
	if err != nil {
		b.sessions.Remove(s.UserID)
		b.reply(ctx, chatID, "Could not save the schedule: "+err.Error()+"\nStart again with /create.")
		return
	}
	b.sessions.Remove(s.UserID)
	b.audit(ctx, s.UserID, "create", id)
	b.reply(ctx, chatID, fmt.Sprintf("Schedule #%d created. It fires on %s at %s.",
		id, domain.JoinList(draft.Days), draft.Time))
}
