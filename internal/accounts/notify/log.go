package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// LogDispatcher is the development transport. It logs every message and, when
// Out is set, writes the rendered body there so codes and links can be read
// off the console.
type LogDispatcher struct {
	Logger *slog.Logger
	Out    io.Writer

	mu sync.Mutex
}

func (d *LogDispatcher) Send(ctx context.Context, msg Message) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email dispatched to log",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)

	if d.Out == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := fmt.Fprintf(d.Out, "To: %s\nSubject: %s\n\n%s\n", msg.To, msg.Subject, msg.HTML); err != nil {
		return fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	return nil
}
