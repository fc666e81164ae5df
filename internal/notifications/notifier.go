package notifications

import "context"

type PasswordResetInput struct {
	Email       string
	FullName    string
	Username    string
	NewPassword string
}

type PasswordNotRecoverableInput struct {
	Email    string
	FullName string
	Username string
}

// Notifier delivers the two mails an admin's resolution can trigger.
type Notifier interface {
	SendPasswordReset(ctx context.Context, input PasswordResetInput) error
	SendPasswordNotRecoverable(ctx context.Context, input PasswordNotRecoverableInput) error
}
