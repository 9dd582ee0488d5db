package preloader

// defaultPhraseBank holds the built-in seed phrases for each priority
// bucket. Operators with real usage telemetry are expected
// to enqueue their own tasks; nothing enqueues the usage-driven priority
// 4-5 bucket, since RecordRequest only counts requests and does not turn
// them into tasks. This bank just gives a freshly started server something
// to warm before any traffic has arrived.
var defaultPhraseBank = []struct {
	priority int
	phrases  []string
}{
	{priority: 1, phrases: []string{
		"Yes.", "No.", "Okay.", "Sure.", "Got it.", "One moment.",
	}},
	{priority: 2, phrases: []string{
		"Thank you for calling.", "How can I help you today?",
		"Could you please repeat that?", "I'm sorry, I didn't catch that.",
	}},
	{priority: 3, phrases: []string{
		"Hello! How are you?", "Welcome back.", "Is there anything else I can help with?",
		"Your request is being processed.", "An error occurred. Please try again.",
		"Session expired. Please sign in again.",
	}},
}

// SeedDefaultPhrases enqueues the built-in phrase bank across voices,
// cross-producting each phrase with every voice in voices. Pass the
// configured primary voice set; an empty slice enqueues nothing.
func (p *Preloader) SeedDefaultPhrases(voices []string) {
	for _, voice := range voices {
		for _, bucket := range defaultPhraseBank {
			for _, phrase := range bucket.phrases {
				p.Enqueue(Task{Text: phrase, Voice: voice, Priority: bucket.priority})
			}
		}
	}
}
