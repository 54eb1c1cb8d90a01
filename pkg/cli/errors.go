package cli

import (
	"errors"
	"fmt"

	"github.com/getmockd/embedhttpd/pkg/control"
	"github.com/getmockd/embedhttpd/pkg/control/client"
)

// ErrServerNotRunning is returned when the management API cannot be reached.
var ErrServerNotRunning = errors.New("bridge not running - start with: embedhttpd serve")

// formatAPIError turns a management API failure into a user-facing error.
func formatAPIError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, client.ErrUnreachable) {
		return fmt.Errorf("%w\n\nSuggestions:\n  • Check the URL with --control-url or $%s\n  • Start a bridge: embedhttpd serve", ErrServerNotRunning, EnvControlURL)
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case control.CodeInstanceNotFound:
			return fmt.Errorf("%w\n\nSuggestions:\n  • List instances with: embedhttpd instance list", err)
		case control.CodeInstanceBusy:
			return fmt.Errorf("%w\n\nSuggestions:\n  • Retry with --force to fail pending requests", err)
		}
	}
	return err
}
