package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// LogNotifier is the dev/test stand-in: it logs instead of sending.
// NOTIFIER_SLEEP_MS and NOTIFIER_FAIL simulate a slow or down relay.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, in PasswordResetInput) error {
	if err := simulateProvider(ctx); err != nil {
		return err
	}
	n.logger.InfoContext(ctx, "notification.password_reset",
		"email", in.Email, "username", in.Username)
	return nil
}

func (n *LogNotifier) SendPasswordNotRecoverable(ctx context.Context, in PasswordNotRecoverableInput) error {
	if err := simulateProvider(ctx); err != nil {
		return err
	}
	n.logger.InfoContext(ctx, "notification.password_not_recoverable",
		"email", in.Email, "username", in.Username)
	return nil
}

func simulateProvider(ctx context.Context) error {
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if os.Getenv("NOTIFIER_FAIL") == "1" {
		return fmt.Errorf("provider down (simulated)")
	}
	return nil
}
