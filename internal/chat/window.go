package chat

// DefaultWindowSize bounds how many persisted turns are sent per request.
const DefaultWindowSize = 12

// Window returns the last min(len(history), n) turns, oldest first, order
// preserved. The window is taken over the persisted history before the new
// user turn is appended, so a request carries up to n+1 conversation turns.
func Window(history []Turn, n int) []Turn {
	if n <= 0 {
		n = DefaultWindowSize
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
