package jobs

// Outbox job types. Both are emitted by the password-request resolve
// transaction and delivered by the mail worker.
const (
	TypePasswordResetEmail          = "password.reset_email"
	TypePasswordNotRecoverableEmail = "password.not_recoverable_email"
)

func IsValidType(t string) bool {
	switch t {
	case TypePasswordResetEmail, TypePasswordNotRecoverableEmail:
		return true
	default:
		return false
	}
}
