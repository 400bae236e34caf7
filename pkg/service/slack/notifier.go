package slack

import (
	"context"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/interfaces"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
	"github.com/secmon-lab/riskmatrix/pkg/utils/async"
	"github.com/slack-go/slack"
)

// maxFieldBytes keeps a section field well under Slack's 2000 character limit
const maxFieldBytes = 1900

// Notifier posts newly assessed risks of selected levels to a channel
type Notifier struct {
	svc       Service
	channelID string
	levels    []types.RiskLevel
	dispatch  func(ctx context.Context, handler func(ctx context.Context) error)
}

var _ interfaces.RiskListener = &Notifier{}

// NotifierOption configures Notifier
type NotifierOption func(*Notifier)

// WithLevels restricts notifications to the given levels. Default is High and Critical.
func WithLevels(levels ...types.RiskLevel) NotifierOption {
	return func(n *Notifier) {
		n.levels = levels
	}
}

// WithSyncDispatch posts messages on the caller's goroutine
func WithSyncDispatch() NotifierOption {
	return func(n *Notifier) {
		n.dispatch = func(ctx context.Context, handler func(ctx context.Context) error) {
			_ = handler(ctx)
		}
	}
}

// NewNotifier creates a notifier posting to channelID
func NewNotifier(svc Service, channelID string, opts ...NotifierOption) (*Notifier, error) {
	if svc == nil {
		return nil, goerr.New("Slack service is required")
	}
	if channelID == "" {
		return nil, goerr.New("Slack channel is required")
	}

	n := &Notifier{
		svc:       svc,
		channelID: channelID,
		levels:    []types.RiskLevel{types.RiskLevelHigh, types.RiskLevelCritical},
		dispatch:  async.Dispatch,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// OnRiskAssessed posts the risk without blocking the assessment
func (n *Notifier) OnRiskAssessed(ctx context.Context, risk *model.Risk) {
	if risk == nil || !slices.Contains(n.levels, risk.Level) {
		return
	}

	n.dispatch(ctx, func(ctx context.Context) error {
		blocks, text := BuildRiskMessage(risk)
		if _, err := n.svc.PostMessage(ctx, n.channelID, blocks, text); err != nil {
			return goerr.Wrap(err, "failed to notify risk", goerr.V(model.RiskIDKey, risk.ID))
		}
		return nil
	})
}

// BuildRiskMessage renders a risk as Block Kit blocks plus a plain text fallback
func BuildRiskMessage(risk *model.Risk) ([]slack.Block, string) {
	text := fmt.Sprintf("%s risk #%d: %s / %s (score %d)",
		risk.Level, risk.ID, risk.Asset, risk.Threat, risk.Score)

	header := slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType, fmt.Sprintf("%s risk assessed", risk.Level), false, false),
	)

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, "*Asset*\n"+truncateToMaxBytes(risk.Asset, maxFieldBytes), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Threat*\n"+truncateToMaxBytes(risk.Threat, maxFieldBytes), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Likelihood x Impact*\n%d x %d", risk.Likelihood, risk.Impact), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Score*\n%d (%s)", risk.Score, risk.Level), false, false),
	}
	section := slack.NewSectionBlock(nil, fields, nil)

	blocks := []slack.Block{header, section}
	if hint := model.MitigationHint(risk.Level); hint != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, ":shield: "+hint, false, false),
		))
	}

	return blocks, text
}

// truncateToMaxBytes cuts s to at most maxBytes without splitting a UTF-8 sequence
func truncateToMaxBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
