package cli

import (
	"fmt"
	"time"

	"github.com/existflow/keepsession/internal/token"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the locally stored session and server health",
	Long: `Report what is stored locally without contacting the server: the
token and its age, both cache tiers, and the observed server latency.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	app, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Fprintf(out, "Server:   %s\n", cfg.ServerURL)

	if age, ok := app.Tokens.Age(); ok && app.Tokens.Get() != "" {
		state := "valid"
		if app.Tokens.IsNearExpiry() {
			state = "refresh due"
		}
		fmt.Fprintf(out, "Token:    %s (age %s, expires in %s)\n",
			state, age.Truncate(time.Minute), (token.TTL - age).Truncate(time.Minute))
	} else {
		fmt.Fprintln(out, "Token:    none")
	}

	if snap, ok := app.Cache.ReadSnapshot(); ok {
		fmt.Fprintf(out, "Snapshot: %s\n", displayName(snap))
	} else {
		fmt.Fprintln(out, "Snapshot: none")
	}

	if entry, ok := app.Cache.ReadExtended(); ok {
		fmt.Fprintf(out, "Extended: valid until %s\n", entry.Expiry().Format(time.Kitchen))
	} else {
		fmt.Fprintln(out, "Extended: none")
	}

	rec := app.Health.Current()
	fmt.Fprintf(out, "Health:   %s (avg %.0fms, request timeout %s)\n",
		rec.HealthScore, rec.AvgResponseTimeMs, app.Health.AdaptiveTimeout(cfg.RequestTimeout))
	return nil
}
