package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/service/riskapi"
	"github.com/secmon-lab/riskmatrix/pkg/usecase"
	"github.com/secmon-lab/riskmatrix/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdAssess() *cli.Command {
	var apiURL string
	var input model.RiskInput
	var likelihood, impact int64
	var dryRun bool

	return &cli.Command{
		Name:    "assess",
		Aliases: []string{"a"},
		Usage:   "Score a risk locally and submit it to the server",
		Flags: []cli.Flag{
			apiURLFlag(&apiURL),
			&cli.StringFlag{
				Name:        "asset",
				Usage:       "Asset at risk",
				Required:    true,
				Destination: &input.Asset,
			},
			&cli.StringFlag{
				Name:        "threat",
				Usage:       "Threat to the asset",
				Required:    true,
				Destination: &input.Threat,
			},
			&cli.Int64Flag{
				Name:        "likelihood",
				Usage:       "Likelihood rating (1-5)",
				Required:    true,
				Destination: &likelihood,
			},
			&cli.Int64Flag{
				Name:        "impact",
				Usage:       "Impact rating (1-5)",
				Required:    true,
				Destination: &impact,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Only show the local preview",
				Destination: &dryRun,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			input.Likelihood = int(likelihood)
			input.Impact = int(impact)

			client, err := riskapi.New(apiURL)
			if err != nil {
				return err
			}

			_, err = assess(ctx, c.Root().Writer, client, input, dryRun)
			return err
		},
	}
}

type riskAssessor interface {
	AssessRisk(ctx context.Context, input model.RiskInput) (*model.Risk, error)
}

// assess previews input with the local scorer, submits it unless dryRun, and checks
// the stored score and level against the preview.
func assess(ctx context.Context, w io.Writer, client riskAssessor, input model.RiskInput, dryRun bool) (*model.Risk, error) {
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	preview, err := usecase.PreviewAssessment(input.Likelihood, input.Impact)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "Preview: score %d, level %s\n", preview.Score, levelColor(preview.Level).Sprint(preview.Level))
	fmt.Fprintf(w, "Mitigation: %s\n", preview.MitigationHint)

	if dryRun {
		return nil, nil
	}

	risk, err := client.AssessRisk(ctx, input)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to submit assessment")
	}

	if err := usecase.VerifyAssessment(preview, risk); err != nil {
		return nil, err
	}

	logging.From(ctx).Info("risk assessed", "id", risk.ID, "score", risk.Score, "level", risk.Level)
	fmt.Fprintf(w, "Stored risk #%d (%s)\n", risk.ID, color.New(color.Bold).Sprint(risk.Level))
	return risk, nil
}
