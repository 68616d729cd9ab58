package email

import (
	"context"
	"fmt"
)

// Sender delivers transactional mail. The wiring picks SMTP when
// configured and falls back to the logging sender otherwise.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SendLoginCode delivers a one-time sign-in code. The code is the only
// secret in the message; the surrounding text is fixed so templates
// stay out of the delivery path.
func SendLoginCode(ctx context.Context, s Sender, to, code string, minutes int) error {
	subject := "Your sign-in code"
	body := fmt.Sprintf(
		"Your sign-in code is %s.\n\nIt expires in %d minutes. If you did not request it, ignore this message.\n",
		code, minutes,
	)
	if err := s.Send(ctx, to, subject, body); err != nil {
		return fmt.Errorf("send login code: %w", err)
	}
	return nil
}
