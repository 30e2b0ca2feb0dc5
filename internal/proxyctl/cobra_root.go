package proxyctl

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// buildRootCmd is a convenience for help-only fallbacks.
func buildRootCmd() *cobra.Command { return buildRootCmdWith(defaultConfig()) }

// buildRootCmdWith constructs a Cobra command tree wired to the existing fn* actions.
func buildRootCmdWith(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "proxyctl",
		Short:         "Operator utilities for a running inferproxy gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags -> Config
	root.PersistentFlags().String("base-url", cfg.BaseURL, "Gateway base URL (defaults PROXYCTL_BASE_URL or http://127.0.0.1:8192)")
	root.PersistentFlags().Int("timeout", cfg.TimeoutSeconds, "Request timeout in seconds (defaults PROXYCTL_TIMEOUT or 300)")
	root.PersistentFlags().String("log-level", cfg.LogLvl, "Log level: debug|info|warn|error (defaults PROXYCTL_LOG_LEVEL or info)")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if f := cmd.InheritedFlags().Lookup("base-url"); f != nil {
			if v := f.Value.String(); v != "" {
				cfg.BaseURL = v
			}
		}
		if f := cmd.InheritedFlags().Lookup("timeout"); f != nil {
			var n int
			_, _ = fmt.Sscanf(f.Value.String(), "%d", &n)
			if n != 0 {
				cfg.TimeoutSeconds = n
			}
		}
		if f := cmd.InheritedFlags().Lookup("log-level"); f != nil {
			if v := f.Value.String(); v != "" {
				cfg.LogLvl = v
			}
		}
		SetLogLevel(cfg.LogLvl)
	}

	checkCmd := &cobra.Command{Use: "check", Short: "Probe gateway health and report each backend", Example: "  proxyctl check\n  proxyctl check --wait 60\n  proxyctl --base-url http://gw:8192 check", RunE: func(cmd *cobra.Command, args []string) error { return fnCheck(cfg) }}
	checkCmd.Flags().IntVar(&cfg.WaitSeconds, "wait", 0, "Keep probing for up to N seconds until the gateway is healthy (0 probes once)")

	modelsCmd := &cobra.Command{Use: "models", Short: "List the merged model catalog", Example: "  proxyctl models\n  proxyctl models --backend local", RunE: func(cmd *cobra.Command, args []string) error { return fnModels(cfg) }}
	modelsCmd.Flags().StringVar(&cfg.Backend, "backend", "", "Filter by origin backend: local|cloud")

	chatCmd := &cobra.Command{Use: "chat <prompt>", Short: "Send one chat completion and print the reply", Example: "  proxyctl chat --model llama3 \"why is the sky blue\"\n  proxyctl chat --model gpt-4o --backend cloud --stream \"tell me a story\"", Args: cobra.MinimumNArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		return fnChat(cfg, strings.Join(args, " "))
	}}
	chatCmd.Flags().StringVar(&cfg.Model, "model", "", "Model id to request (required)")
	chatCmd.Flags().StringVar(&cfg.Backend, "backend", "", "Routing hint: local|cloud|auto")
	chatCmd.Flags().BoolVar(&cfg.Stream, "stream", false, "Request a streamed (SSE) response")

	usageCmd := &cobra.Command{Use: "usage", Short: "Show cloud key usage and limits", Example: "  proxyctl usage", RunE: func(cmd *cobra.Command, args []string) error { return fnUsage(cfg) }}

	root.AddCommand(checkCmd, modelsCmd, chatCmd, usageCmd)

	// completion command
	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(os.Stdout, true) }})
	completionCmd.AddCommand(&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenPowerShellCompletionWithDesc(os.Stdout) }})
	root.AddCommand(completionCmd)

	return root
}
