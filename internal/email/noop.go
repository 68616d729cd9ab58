package email

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes mail to the log instead of delivering it. Used in
// development and in tests, where a real mailbox would hide the code.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(_ context.Context, to, subject, body string) error {
	l.logger.Info("email not sent (log sender)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
