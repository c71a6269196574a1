package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/siherrmann/askpdf/helper"
	"github.com/slack-go/slack"
)

// ErrNoChannel is returned when a message is posted without a channel.
var ErrNoChannel = errors.New("channel must be set")

// SlackNotifier posts payloads as Slack messages.
type SlackNotifier struct {
	client *slack.Client
	log    *slog.Logger
}

// NewSlackNotifier creates a notifier for the given bot token.
// An empty apiURL uses the public Slack API.
func NewSlackNotifier(token string, apiURL string, logger *slog.Logger) (*SlackNotifier, error) {
	if token == "" {
		return nil, helper.NewError("slack notifier", fmt.Errorf("slack token must be set"))
	}
	if logger == nil {
		logger = slog.Default()
	}

	options := []slack.Option{}
	if apiURL != "" {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		options = append(options, slack.OptionAPIURL(apiURL))
	}

	return &SlackNotifier{
		client: slack.New(token, options...),
		log:    logger,
	}, nil
}

// Post implements Notifier.
func (n *SlackNotifier) Post(ctx context.Context, channel string, payload string) error {
	if channel == "" {
		return helper.NewError("slack post", ErrNoChannel)
	}

	channelID, timestamp, err := n.client.PostMessageContext(ctx, channel, slack.MsgOptionText(payload, false))
	if err != nil {
		return helper.NewError("slack post", err)
	}

	n.log.Info("Posted message to slack", slog.String("channel", channelID), slog.String("timestamp", timestamp))
	return nil
}
