package jobs

import (
	"encoding/json"
	"time"
)

// PasswordResetEmailPayload carries everything the worker needs to mail the
// freshly generated password, so no DB read is needed at delivery time.
type PasswordResetEmailPayload struct {
	RequestID   int64     `json:"requestId"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	NewPassword string    `json:"newPassword"`
	RequestedAt time.Time `json:"requestedAt"`
}

func (p PasswordResetEmailPayload) JSON() (json.RawMessage, error) {
	b, err := json.Marshal(p)

	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

// PasswordNotRecoverableEmailPayload is sent when the admin resolves a
// request with KnowOldPassword: the stored digest cannot be reversed.
type PasswordNotRecoverableEmailPayload struct {
	RequestID   int64     `json:"requestId"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	RequestedAt time.Time `json:"requestedAt"`
}

func (p PasswordNotRecoverableEmailPayload) JSON() (json.RawMessage, error) {
	b, err := json.Marshal(p)

	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
