package escalation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	perrors "github.com/p-blackswan/project-health/internal/errors"
)

// SlackAPI is the subset of the Slack client used here.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts escalations to a channel as Block Kit messages.
type SlackNotifier struct {
	api     SlackAPI
	channel string
	logger  zerolog.Logger
}

// NewSlackNotifier creates a notifier posting to channel.
func NewSlackNotifier(api SlackAPI, channel string, logger zerolog.Logger) *SlackNotifier {
	return &SlackNotifier{
		api:     api,
		channel: channel,
		logger:  logger.With().Str("component", "escalation.slack").Logger(),
	}
}

// NewSlackNotifierFromToken builds the Slack client from a bot token.
func NewSlackNotifierFromToken(token, channel string, logger zerolog.Logger) *SlackNotifier {
	return NewSlackNotifier(slack.New(token), channel, logger)
}

// Notify posts e. Slack rate limiting and 5xx responses come back as
// retryable API errors.
func (n *SlackNotifier) Notify(ctx context.Context, e Escalation) error {
	_, ts, err := n.api.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(fallbackText(e), false),
		slack.MsgOptionBlocks(BuildBlocks(e)...),
	)
	if err != nil {
		return classifySlackError(err)
	}
	n.logger.Info().
		Str("severity", string(e.Severity)).
		Str("project", e.Project).
		Str("channel", n.channel).
		Str("ts", ts).
		Msg("escalation sent")
	return nil
}

// BuildBlocks renders an escalation as header, body, actions and context.
func BuildBlocks(e Escalation) []slack.Block {
	header := fmt.Sprintf("%s %s", severityEmoji(e.Severity), e.Title)
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, truncate(header, 150), true, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, truncate(e.Message, 3000), false, false), nil, nil),
	}

	if len(e.Actions) > 0 {
		var b strings.Builder
		b.WriteString("*Suggested actions*")
		for _, a := range e.Actions {
			b.WriteString("\n• ")
			b.WriteString(a)
		}
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, truncate(b.String(), 3000), false, false), nil, nil))
	}

	if e.Error != nil {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "```"+truncate(e.Error.Error(), 2900)+"```", false, false), nil, nil))
	}

	var ctxParts []string
	ctxParts = append(ctxParts, "Severity: *"+string(e.Severity)+"*")
	if e.Project != "" {
		ctxParts = append(ctxParts, "Project: *"+e.Project+"*")
	}
	if e.Source != "" {
		ctxParts = append(ctxParts, "Source: `"+e.Source+"`")
	}
	blocks = append(blocks, slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType, strings.Join(ctxParts, "  |  "), false, false)))
	return blocks
}

func fallbackText(e Escalation) string {
	if e.Project == "" {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Title)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Project, e.Title)
}

func classifySlackError(err error) error {
	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return &perrors.APIError{Service: "slack", StatusCode: http.StatusTooManyRequests, Message: "rate limited", RetryAfter: rl.RetryAfter, Err: err}
	}
	var sc slack.StatusCodeError
	if errors.As(err, &sc) {
		return &perrors.APIError{Service: "slack", StatusCode: sc.Code, Message: sc.Status, Err: err}
	}
	return fmt.Errorf("slack post: %w", err)
}
