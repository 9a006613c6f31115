package publisher

import (
	"context"
	"log/slog"

	"github.com/iconidentify/xreply/internal/domain"
)

// Noop drops every message. It is used when no broker is configured.
type Noop struct {
	logger *slog.Logger
}

func NewNoop(logger *slog.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) Publish(ctx context.Context, msg domain.ResultMessage) error {
	n.logger.Debug("publishing disabled, dropping result", "kind", msg.Kind, "user_id", msg.UserID)
	return nil
}

func (n *Noop) Close() error {
	return nil
}
