package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func executeCLI() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "wanqing",
		Short: "晚晴 — tarot reading bot with conversational memory",
		Long: strings.TrimSpace(`wanqing runs 晚晴, a tarot-reading chat bot.

Use CLI commands to onboard, run the bot with its Discord and console
channels, and check runtime readiness.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newRunCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newOnboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "onboard",
		Short:   "Initialize ~/.wanqing config and workspace",
		Example: "  wanqing onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return onboard()
		},
	}
}

func newRunCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run the bot: channels, memory pipeline, cron sweep, ops server",
		Example: "  wanqing run --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCmd(debug)
		},
	}
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration and runtime readiness",
		Example: "  wanqing status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return statusCmd()
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  wanqing version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}
