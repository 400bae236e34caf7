package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
	"github.com/secmon-lab/riskmatrix/pkg/service/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds CLI flags for risk notifications
type Slack struct {
	botToken  string
	channelID string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token (for risk notifications)",
			Category:    "Slack",
			Destination: &x.botToken,
			Sources:     cli.EnvVars("RISKMATRIX_SLACK_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-channel-id",
			Usage:       "Slack channel to notify (overrides [notify] channel in the config file)",
			Category:    "Slack",
			Destination: &x.channelID,
			Sources:     cli.EnvVars("RISKMATRIX_SLACK_CHANNEL_ID"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("bot-token.len", len(x.botToken)),
		slog.String("channel-id", x.channelID),
	)
}

// IsConfigured reports whether a bot token was given
func (x *Slack) IsConfigured() bool {
	return x.botToken != ""
}

// Configure builds the risk notifier. It returns nil when no bot token is set.
func (x *Slack) Configure(notify Notify, opts ...slack.Option) (*slack.Notifier, error) {
	if !x.IsConfigured() {
		return nil, nil
	}

	channelID := x.channelID
	if channelID == "" {
		channelID = notify.Channel
	}
	if channelID == "" {
		return nil, goerr.New("Slack channel is required when slack-bot-token is set")
	}

	svc, err := slack.New(x.botToken, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize slack service")
	}

	levels, err := notify.RiskLevels()
	if err != nil {
		return nil, err
	}

	var notifierOpts []slack.NotifierOption
	if len(levels) > 0 {
		notifierOpts = append(notifierOpts, slack.WithLevels(levels...))
	}
	return slack.NewNotifier(svc, channelID, notifierOpts...)
}

// RiskLevels parses the configured levels; nil means the notifier default
func (n Notify) RiskLevels() ([]types.RiskLevel, error) {
	if len(n.Levels) == 0 {
		return nil, nil
	}
	levels := make([]types.RiskLevel, 0, len(n.Levels))
	for _, s := range n.Levels {
		level, err := types.ParseRiskLevel(s)
		if err != nil {
			return nil, goerr.Wrap(ErrInvalidConfig, "invalid notify level", goerr.V("level", s))
		}
		levels = append(levels, level)
	}
	return levels, nil
}
