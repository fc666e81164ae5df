package broadcast

import (
	"context"
	"time"
)

// TopicPasswordRequests carries password-request lifecycle events to
// connected admin screens.
const TopicPasswordRequests = "password-requests"

type Event struct {
	RequestID   int64      `json:"requestId"`
	Username    string     `json:"username"`
	RequestType string     `json:"requestType"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, topic string, ev Event) error
}

type Subscriber interface {
	// Subscribe delivers events until ctx is cancelled; the channel is
	// closed afterwards.
	Subscribe(ctx context.Context, topic string) (<-chan Event, error)
}
