package bot

// Fixed user-facing copy. Exported strings are also sent by the worker.
const (
	ReplyOnboarding = "Welcome! I'm your evidence-based AI Coach for all things fitness, nutrition, and habit-building. May I know your first name?"

	// ReplyUseStart corrects a chat message that arrived before onboarding
	// completed.
	ReplyUseStart = "Welcome! Please use the /start command to set up your profile first."

	ReplyCancelled = "Process cancelled. Let me know if you need anything else!"

	ReplyPlanIntro = "Awesome! I can create a personalized plan for you. To get started, what are you looking for?\n\n" +
		"You can choose: **Diet Plan**, **Workout Plan**, or **Both**."
)

func replyWelcomeBack(name string) string {
	return "Hey " + name + ", welcome back! What's on your mind today?"
}

func replyNiceToMeet(name string) string {
	return "Nice to meet you, " + name + "! How can I help you today?"
}
