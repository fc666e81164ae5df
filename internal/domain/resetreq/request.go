package resetreq

import (
	"errors"
	"time"
)

// Two-state lifecycle: a request is created Pending and completed exactly
// once by an admin action.
const (
	StatusPending   = "Pending"
	StatusCompleted = "Completed"
)

// Admin resolve actions.
const (
	ActionResetPassword   = "ResetPassword"
	ActionKnowOldPassword = "KnowOldPassword"
)

var (
	ErrNotFound         = errors.New("password reset request not found")
	ErrAlreadyCompleted = errors.New("password reset request already completed")
)

// Request rows reference users by username only, not by foreign key: the
// user may be renamed or deactivated after the request was filed.
type Request struct {
	ID            int64      `json:"id"`
	Username      string     `json:"username"`
	RequestType   string     `json:"requestType"`
	Status        string     `json:"status"`
	RequestDate   time.Time  `json:"requestDate"`
	CompletedDate *time.Time `json:"completedDate,omitempty"`
	NewPassword   *string    `json:"newPassword,omitempty"`
	AdminRemarks  *string    `json:"adminRemarks,omitempty"`
}
