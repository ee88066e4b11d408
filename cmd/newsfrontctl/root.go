package main

import (
	"github.com/spf13/cobra"

	"github.com/keithlinneman/newsfront/internal/log"
	v "github.com/keithlinneman/newsfront/internal/version"
)

var (
	logLevel string
	logJSON  bool
)

func getRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "newsfrontctl",
		Short: "newsfrontctl checks and maintains a newsfront deployment",
		Long: `newsfrontctl runs the same configuration gate and sitemap builder as the
server, without starting any listeners.

Environment Variables:
  The site contract is read from the process environment exactly as the
  server reads it (WPGRAPHQL_ENDPOINT, REVALIDATE_SECRET, SITE_URL, ...).
  Any of them may instead name an SSM parameter via <NAME>_SSM_PARAM.`,
		Version:       v.Get().Version,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "debug|info|warn|error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "JSON logs on stderr")
	rootCmd.Flags().BoolP("version", "V", false, "version for newsfrontctl")

	rootCmd.AddCommand(getCheckEnvCmd())
	rootCmd.AddCommand(getSitemapCmd())
	return rootCmd
}

// newLogger writes to stderr so command output on stdout stays clean.
func newLogger(cmd *cobra.Command) (log.Logger, error) {
	lvl, err := log.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	return log.New(log.Options{
		App:       v.AppName,
		Component: "ctl",
		Version:   v.Get().Version,
		Level:     lvl,
		JSON:      logJSON,
		Writer:    cmd.ErrOrStderr(),
	})
}
