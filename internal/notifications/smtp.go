package notifications

import (
	"context"
	"fmt"

	mail "gopkg.in/mail.v2"
)

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	FromEmail string
}

// SMTPNotifier sends the notification mails through a plain SMTP relay.
type SMTPNotifier struct {
	dialer *mail.Dialer
	cfg    SMTPConfig
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{
		dialer: mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		cfg:    cfg,
	}
}

func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, in PasswordResetInput) error {
	body := fmt.Sprintf(
		`<p>Dear %s,</p>
<p>Your password reset request has been processed.</p>
<p>Your new password is: <b>%s</b></p>
<p>Please log in and keep it somewhere safe.</p>
<p>Regards,<br/>%s</p>`,
		in.FullName, in.NewPassword, n.cfg.FromName,
	)
	return n.send(ctx, in.Email, "Your password has been reset", body)
}

func (n *SMTPNotifier) SendPasswordNotRecoverable(ctx context.Context, in PasswordNotRecoverableInput) error {
	body := fmt.Sprintf(
		`<p>Dear %s,</p>
<p>You asked to be reminded of your current password. Stored passwords are
not recoverable for security reasons.</p>
<p>Please submit a password reset request instead and a new password will
be issued to you.</p>
<p>Regards,<br/>%s</p>`,
		in.FullName, n.cfg.FromName,
	)
	return n.send(ctx, in.Email, "About your password request", body)
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject, htmlBody string) error {
	m := mail.NewMessage()
	m.SetAddressHeader("From", n.cfg.FromEmail, n.cfg.FromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	// mail.v2 has no ctx-aware send; run it in a goroutine so a hung
	// relay can't outlive the caller's deadline.
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.dialer.DialAndSend(m)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
