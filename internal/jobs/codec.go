package jobs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/helloworldit/portal/internal/domain/job"
)

// DecodePayload unmarshals j.Payload into the typed payload struct for its
// job type and validates the fields the worker depends on.
func DecodePayload(j job.Job) (any, error) {
	if !IsValidType(j.Type) {
		return nil, ErrInvalidJobType
	}
	if len(j.Payload) == 0 {
		return nil, ErrInvalidJobPayload
	}

	switch j.Type {
	case TypePasswordResetEmail:
		var p PasswordResetEmailPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		if err := validateResetEmail(p); err != nil {
			return nil, err
		}
		return p, nil

	case TypePasswordNotRecoverableEmail:
		var p PasswordNotRecoverableEmailPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		if err := validateNotRecoverableEmail(p); err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, ErrInvalidJobType
	}
}

func validateResetEmail(p PasswordResetEmailPayload) error {
	if p.RequestID <= 0 {
		return ErrInvalidJobPayload
	}
	if blank(p.Username) || blank(p.Email) || blank(p.NewPassword) {
		return ErrInvalidJobPayload
	}
	return nil
}

func validateNotRecoverableEmail(p PasswordNotRecoverableEmailPayload) error {
	if p.RequestID <= 0 {
		return ErrInvalidJobPayload
	}
	if blank(p.Username) || blank(p.Email) {
		return ErrInvalidJobPayload
	}
	return nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
