package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/service/riskapi"
	"github.com/secmon-lab/riskmatrix/pkg/service/storage"
	"github.com/secmon-lab/riskmatrix/pkg/usecase"
	"github.com/secmon-lab/riskmatrix/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdExport() *cli.Command {
	var apiURL string
	var output string
	var view viewFlags

	flags := []cli.Flag{
		apiURLFlag(&apiURL),
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Destination: a directory, a file path or gs://bucket[/prefix]",
			Sources:     cli.EnvVars("RISKMATRIX_EXPORT_OUTPUT"),
			Destination: &output,
		},
	}
	flags = append(flags, view.Flags()...)

	return &cli.Command{
		Name:    "export",
		Aliases: []string{"e"},
		Usage:   "Download the register as CSV",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			opts, err := view.ListOptions()
			if err != nil {
				return err
			}

			client, err := riskapi.New(apiURL)
			if err != nil {
				return err
			}

			var saverOpts []storage.Option
			if strings.HasPrefix(output, "gs://") {
				gcs, err := storage.NewGCS(ctx)
				if err != nil {
					return err
				}
				defer func() {
					if err := gcs.Close(); err != nil {
						logging.Default().Error("failed to close Cloud Storage client", "error", err.Error())
					}
				}()
				saverOpts = append(saverOpts, storage.WithObjectWriter(gcs))
			}

			return export(ctx, c.Root().Writer, client, storage.New(saverOpts...), opts, output)
		},
	}
}

type exportClient interface {
	Export(ctx context.Context, opts riskapi.ListOptions) (*usecase.ExportResult, error)
}

// export downloads the register and saves it. An empty register prints a notice and succeeds.
func export(ctx context.Context, w io.Writer, client exportClient, saver *storage.Saver, opts riskapi.ListOptions, output string) error {
	result, err := client.Export(ctx, opts)
	if errors.Is(err, model.ErrEmptyExport) {
		fmt.Fprintln(w, "No risks to export.")
		return nil
	}
	if err != nil {
		return goerr.Wrap(err, "failed to export register")
	}

	loc, err := saver.Save(ctx, output, result.Filename, result.Data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Exported %d risks to %s\n", result.Rows, loc.String())
	return nil
}
