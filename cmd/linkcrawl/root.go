package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for linkcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkcrawl",
		Short: "Depth-bounded concurrent web crawler",
		Long: `linkcrawl fetches a set of seed pages, extracts every <a href> link from
them and follows those links level by level until a maximum depth is reached.

Pages on the same level are fetched concurrently. URLs are not deduplicated:
a page reachable along several paths is fetched once per path. Every crawl
is recorded in a local history database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
