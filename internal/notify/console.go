package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// ConsoleNotifier prints notifications to a writer, usually stdout.
type ConsoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleNotifier creates a notifier writing to out.
func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

// RequestPermission always grants; a terminal has no consent prompt.
func (c *ConsoleNotifier) RequestPermission(ctx context.Context) (Permission, error) {
	return PermissionGranted, nil
}

// Show writes the notification as two lines: title and body, then the link.
func (c *ConsoleNotifier) Show(ctx context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := fmt.Fprintf(c.out, "[%s] %s\n", n.Title, n.Body); err != nil {
		return err
	}
	if n.Link != "" {
		if _, err := fmt.Fprintf(c.out, "  %s\n", n.Link); err != nil {
			return err
		}
	}
	return nil
}
