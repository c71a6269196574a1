package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/slack-go/slack"
)

// permanentSlackErrors are slack error codes that won't change on retry.
var permanentSlackErrors = map[string]bool{
	"invalid_auth":      true,
	"not_authed":        true,
	"account_inactive":  true,
	"token_revoked":     true,
	"token_expired":     true,
	"missing_scope":     true,
	"channel_not_found": true,
	"is_archived":       true,
	"not_in_channel":    true,
	"msg_too_long":      true,
	"no_text":           true,
	"invalid_arguments": true,
	"restricted_action": true,
	"ekm_access_denied": true,
}

// RetryNotifier retries failed posts with exponential backoff.
type RetryNotifier struct {
	next            Notifier
	maxRetries      uint64
	initialInterval time.Duration
	maxElapsedTime  time.Duration
	log             *slog.Logger
}

// NewRetryNotifier wraps next with at most maxRetries retries.
func NewRetryNotifier(next Notifier, maxRetries uint64, logger *slog.Logger) *RetryNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryNotifier{
		next:            next,
		maxRetries:      maxRetries,
		initialInterval: time.Second,
		maxElapsedTime:  time.Minute,
		log:             logger,
	}
}

// Post implements Notifier.
func (n *RetryNotifier) Post(ctx context.Context, channel string, payload string) error {
	operation := func() error {
		err := n.next.Post(ctx, channel, payload)
		if err == nil {
			return nil
		}
		if IsPermanent(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		var rateLimited *slack.RateLimitedError
		if errors.As(err, &rateLimited) && rateLimited.RetryAfter > n.maxElapsedTime {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = n.initialInterval
	policy.MaxElapsedTime = n.maxElapsedTime

	notifyFunc := func(err error, wait time.Duration) {
		n.log.Warn("Retrying notification", slog.String("error", err.Error()), slog.Duration("wait", wait))
	}

	return backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, n.maxRetries), ctx), notifyFunc)
}

// IsPermanent reports whether err is an authentication or channel error that retrying won't fix.
// A missing channel is permanent.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrNoChannel) {
		return true
	}
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		return permanentSlackErrors[slackErr.Err]
	}
	var slackErrPtr *slack.SlackErrorResponse
	if errors.As(err, &slackErrPtr) {
		return permanentSlackErrors[slackErrPtr.Err]
	}
	return false
}
