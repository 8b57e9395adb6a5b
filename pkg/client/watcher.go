package client

import (
	"context"

	"github.com/pranavgnn/moodmeter/pkg/availability"
)

// NewUsernameWatcher returns a debouncer that checks username availability
// through c while the user types.
func NewUsernameWatcher(c *Client, opts ...availability.DebouncerOption) *availability.Debouncer {
	return newWatcher(c, availability.FieldUsername, opts...)
}

// NewEmailWatcher is NewUsernameWatcher for the email field.
func NewEmailWatcher(c *Client, opts ...availability.DebouncerOption) *availability.Debouncer {
	return newWatcher(c, availability.FieldEmail, opts...)
}

func newWatcher(c *Client, field availability.Field, opts ...availability.DebouncerOption) *availability.Debouncer {
	return availability.NewDebouncer(func(ctx context.Context, value string) availability.Availability {
		return c.CheckAvailability(ctx, field, value)
	}, opts...)
}
