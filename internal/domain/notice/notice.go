package notice

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("notice not found")

type Notice struct {
	ID          int64      `json:"id"`
	Subject     string     `json:"subject"`
	Description string     `json:"description"`
	EntryDate   time.Time  `json:"entryDate"`
	ExpireDate  *time.Time `json:"expireDate,omitempty"`
	IsActive    bool       `json:"isActive"`
}

type CreateParams struct {
	Subject     string
	Description string
	EntryDate   time.Time
	ExpireDate  *time.Time
}

type UpdateParams struct {
	Subject     string
	Description string
	EntryDate   time.Time
	ExpireDate  *time.Time
	IsActive    bool
}

// Visible reports whether the notice should be shown to students at time t:
// active and either never expiring or expiring after t.
func (n Notice) Visible(t time.Time) bool {
	if !n.IsActive {
		return false
	}
	return n.ExpireDate == nil || n.ExpireDate.After(t)
}
