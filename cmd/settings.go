package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/procureops/sourcing-cli/internal/store"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage stored pipeline overrides",
	Long:  "Stored settings overlay the config file on every run; see the pipeline.* keys.",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		value, err := st.GetSetting(ctx, args[0])
		if err != nil {
			if eris.Is(err, store.ErrSettingNotFound) {
				fmt.Fprintf(os.Stderr, "Setting %q is not set.\n", args[0])
				return nil
			}
			return eris.Wrap(err, "settings get")
		}

		fmt.Println(value)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.SetSetting(ctx, args[0], args[1]); err != nil {
			return eris.Wrap(err, "settings set")
		}

		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored settings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		settings, err := st.ListSettings(ctx)
		if err != nil {
			return eris.Wrap(err, "settings list")
		}

		if len(settings) == 0 {
			fmt.Fprintln(os.Stderr, "No settings stored.")
			return nil
		}

		formatSettingsList(os.Stdout, settings)
		return nil
	},
}

func formatSettingsList(w io.Writer, settings []store.Setting) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE\tUPDATED")
	for _, s := range settings {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Key, s.Value, s.UpdatedAt)
	}
	_ = tw.Flush()
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsListCmd)
	rootCmd.AddCommand(settingsCmd)
}
