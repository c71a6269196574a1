package notify

import "context"

// Notifier delivers a report payload to a channel.
type Notifier interface {
	Post(ctx context.Context, channel string, payload string) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, channel string, payload string) error

func (f NotifierFunc) Post(ctx context.Context, channel string, payload string) error {
	return f(ctx, channel, payload)
}
