package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskmatrix/pkg/cli"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o600)).Required()
	return path
}

func TestRun_ValidateCommand_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
corrupt_risk_policy = "exclude"
export_prefix = "acme"

[notify]
levels = ["Critical"]
`)

	err := cli.Run(context.Background(), []string{"riskmatrix", "validate", "--config", configPath}, "test")
	gt.NoError(t, err)
}

func TestRun_ValidateCommand_InvalidConfig(t *testing.T) {
	configPath := writeConfig(t, `corrupt_risk_policy = "ignore"`)

	err := cli.Run(context.Background(), []string{"riskmatrix", "validate", "--config", configPath}, "test")
	gt.Value(t, err).NotNil()
}

func TestRun_ValidateCommand_MissingConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nonexistent.toml")

	err := cli.Run(context.Background(), []string{"riskmatrix", "validate", "--config", configPath}, "test")
	gt.Value(t, err).NotNil()
}

func TestRun_ValidateCommand_DBCheckWithSQLite(t *testing.T) {
	configPath := writeConfig(t, "")
	dbPath := filepath.Join(t.TempDir(), "risks.db")

	err := cli.Run(context.Background(), []string{
		"riskmatrix", "validate",
		"--config", configPath,
		"--check-db",
		"--repository-backend", "sqlite",
		"--sqlite-path", dbPath,
	}, "test")
	gt.NoError(t, err)
}
