package cli

import (
	"context"

	"github.com/secmon-lab/riskmatrix/pkg/cli/config"
	"github.com/secmon-lab/riskmatrix/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func Run(ctx context.Context, args []string, version string) error {
	var loggerCfg config.Logger
	var sentryCfg config.Sentry
	var closer, flush func()

	var flags []cli.Flag
	flags = append(flags, loggerCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)

	app := &cli.Command{
		Name:    "riskmatrix",
		Usage:   "GRC risk register with a 5x5 likelihood/impact matrix",
		Version: version,
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			f, err := loggerCfg.Configure()
			if err != nil {
				return ctx, err
			}
			closer = f

			fl, err := sentryCfg.Configure(version)
			if err != nil {
				return ctx, err
			}
			flush = fl

			logging.Default().Info("Starting riskmatrix", "logger", loggerCfg, "sentry", sentryCfg)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if flush != nil {
				flush()
			}
			if closer != nil {
				closer()
			}
			return nil
		},
		Commands: []*cli.Command{
			cmdServe(),
			cmdAssess(),
			cmdReport(),
			cmdExport(),
			cmdMigrate(),
			cmdValidate(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		logging.Default().Error("failed to run app", "error", err)
		return err
	}

	return nil
}

// defaultAPIURL is where serve listens by default
const defaultAPIURL = "http://localhost:8000"

func apiURLFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "api-url",
		Usage:       "Base URL of the riskmatrix server",
		Value:       defaultAPIURL,
		Sources:     cli.EnvVars("RISKMATRIX_API_URL"),
		Destination: dst,
	}
}

// viewFlags are the register filter and sort flags shared by report and export
type viewFlags struct {
	level string
	sort  string
	order string
}

func (v *viewFlags) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "level",
			Usage:       "Show only risks of this level [All|Low|Medium|High|Critical]",
			Value:       "All",
			Destination: &v.level,
		},
		&cli.StringFlag{
			Name:        "sort",
			Usage:       "Sort column [id|asset|threat|likelihood|impact|score|level|severity]",
			Destination: &v.sort,
		},
		&cli.StringFlag{
			Name:        "order",
			Usage:       "Sort direction [asc|desc]",
			Value:       "asc",
			Destination: &v.order,
		},
	}
}
