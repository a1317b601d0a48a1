package session

import "log/slog"

// Notifier is the sink for user-facing messages: rejections, level-up
// announcements, week summaries, and termination notices. The host decides
// how to render them.
type Notifier interface {
	Notify(userID, message string)
}

// SlogNotifier routes notifications to the default structured logger.
type SlogNotifier struct{}

// Notify logs the message with the owning user attached.
func (SlogNotifier) Notify(userID, message string) {
	slog.Info("session notice", "user", userID, "message", message)
}
