package bot

// DialogState is the transient state-machine position for one user during a
// multi-step dialog. It lives in redis with a TTL, never in the user record;
// absence means no active dialog (the active-chat precondition).
type DialogState string

const (
	// StateNone: no dialog in progress; plain text goes to the chat cycle.
	StateNone DialogState = ""
	// StateAwaitingName: onboarding started, the next text is the name.
	StateAwaitingName DialogState = "awaiting_name"
	// StateAwaitingPlanType: plan wizard entry point. No outgoing
	// transitions are implemented; any text re-sends the intro.
	StateAwaitingPlanType DialogState = "awaiting_plan_type"
)
