package scheduling

const (
	stillWorkingMessage = "I'm still working on that booking. One moment please."
	unparsedTimeMessage = "I couldn't quite catch the date and time. Could you tell me the day and time you'd like, for example Monday at 2 PM?"
	fallbackMessage     = "I'm sorry, something went wrong on our end. Could you try that again?"
)
