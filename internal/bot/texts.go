package bot

const (
	textHelp = "Recurring message scheduler.\n\n" +
		"/create - set up a new schedule\n" +
		"/list - show stored schedules\n" +
		"/edit <id> - change message, days or time\n" +
		"/delete <id> - remove a schedule\n" +
		"/cancel - abort the current setup\n" +
		"/ping - check the bot is alive"

	textPong           = "pong"
	textNotAllowed     = "You are not allowed to use this bot."
	textUnknownCommand = "Unknown command. Try /help."

	textAskTarget = "Where should this message go?"

	textAskRecipientsDirect = "Send the user ids to message, separated by spaces or commas."
	textAskRecipientChannel = "Send the channel id."

	textAskMessage = "Send the message text."

	textAskDays = "Pick the days this message fires on, then press Done."

	textAskTime = "Send the time of day as HH:MM (24h)."

	textBadRecipients = "Recipient ids must be numbers. Try again."
	textBadTime       = "That does not look like HH:MM (24h). Try again."

	textNoSession = "No setup in progress. Start one with /create."
	textCanceled  = "Setup canceled."

	textNoSchedules = "No schedules stored yet."

	textAskEditForm = "Send three lines: message, days, time.\n" +
		"Use a single - to keep the current value.\n\n" +
		"Current:\n%s"
)
