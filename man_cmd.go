package main

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:                   "man",
	Short:                 "Generates manpages",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Hidden:                true,
	Args:                  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		page, err := mcobra.NewManPage(1, rootCmd)
		if err != nil {
			return fmt.Errorf("unable to build man page: %w", err)
		}

		page = page.WithSection("Files", "troupe.yml in $TROUPE_CONFIG_HOME, $XDG_CONFIG_HOME/troupe or the user config directory.\n"+
			"A .env file in the working directory is read for provider API keys.")
		fmt.Println(page.Build(roff.NewDocument()))
		return nil
	},
}
