package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"joinflow/pkg/requestcontext"
)

// LogNotifier writes messages to the log instead of delivering them.
// It backs local runs and the in-memory setup.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) (*DeliveryResult, error) {
	result := &DeliveryResult{
		MessageID:   uuid.NewString(),
		Transport:   "log",
		DeliveredAt: requestcontext.Now(ctx),
	}
	n.logger.InfoContext(ctx, "notification sent",
		"template", msg.Template,
		"recipient", msg.Recipient.Email,
		"message_id", result.MessageID,
		"params", len(msg.Params),
	)
	return result, nil
}
