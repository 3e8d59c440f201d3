package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/robalobadob/wordduel/internal/session"
)

func run(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var got *Config
	cmd := NewCommand("test", func(_ *cobra.Command, cfg *Config) error {
		got = cfg
		return nil
	})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return got, err
}

func TestDefaults(t *testing.T) {
	cfg, err := run(t)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 5175 || cfg.DBDriver != "sqlite3" || cfg.TimeoutPolicy != "pass" || cfg.BotWait != 20*time.Second {
		t.Fatalf("defaults = %+v", cfg)
	}
	sc := cfg.Session()
	if sc.TurnTimeout != session.DefaultTurnTimeout || sc.TimeoutPolicy != session.PolicyPass || sc.IdleTurns != session.DefaultIdleTurns {
		t.Fatalf("session config = %+v", sc)
	}
}

func TestMaxRowsHelpDescribesSharedBoard(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, &Config{})
	if usage := fs.Lookup("max-rows").Usage; !strings.Contains(usage, "shared board") {
		t.Fatalf("max-rows usage = %q", usage)
	}
}

func TestEnvFillsUnsetFlags(t *testing.T) {
	t.Setenv("DUEL_TURN_TIMEOUT", "45s")
	t.Setenv("DUEL_TIMEOUT_POLICY", "forfeit")
	t.Setenv("DUEL_PORT", "9000")

	cfg, err := run(t, "--port", "9100")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TurnTimeout != 45*time.Second || cfg.TimeoutPolicy != "forfeit" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Port != 9100 {
		t.Fatalf("flag should win over env, port = %d", cfg.Port)
	}
}

func TestValidate(t *testing.T) {
	for _, args := range [][]string{
		{"--port", "0"},
		{"--timeout-policy", "sleep"},
		{"--jwt-secret", ""},
		{"--max-rows", "0"},
		{"--idle-turns", "0"},
		{"--bot-wait", "0s"},
	} {
		if _, err := run(t, args...); err == nil {
			t.Errorf("%v accepted", args)
		}
	}
}
