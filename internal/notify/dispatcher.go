package notify

import "log/slog"

// Dispatcher delivers one notification event to a set of receivers. The
// ping engine calls through this interface so completion and sweep logic
// does not depend on any particular delivery channel.
type Dispatcher interface {
	Dispatch(notifType string, senderID int64, receiverIDs []int64, payload map[string]string) error
}

// LogDispatcher records notifications to the log and delivers nothing. It
// stands in when VAPID keys are not configured, so a development install
// works without a push service.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(notifType string, senderID int64, receiverIDs []int64, payload map[string]string) error {
	d.logger.Info("notification (log only)",
		"type", notifType,
		"sender_id", senderID,
		"receivers", len(receiverIDs),
	)
	return nil
}
