package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/robalobadob/wordduel/internal/config"
	fxmodules "github.com/robalobadob/wordduel/internal/fx"
)

const releaseVersion = "0.4.0"

func main() {
	cmd := config.NewCommand(releaseVersion, func(_ *cobra.Command, cfg *config.Config) error {
		app := fx.New(
			fx.Supply(cfg),
			fxmodules.Module,
			fx.Invoke(fxmodules.RunServer),
		)
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	})

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
