package cli

import (
	"os"
	"strings"

	"github.com/guiyumin/vscribe/internal/core/config"
	"github.com/guiyumin/vscribe/internal/core/media"
	"github.com/guiyumin/vscribe/internal/core/transcriber"
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for vscribe.

Bash:
  # Add to ~/.bashrc:
  source <(vscribe completion bash)

Zsh:
  # Add to ~/.zshrc:
  source <(vscribe completion zsh)

  # Or install to fpath:
  vscribe completion zsh > "${fpath[1]}/_vscribe"

Fish:
  vscribe completion fish > ~/.config/fish/completions/vscribe.fish

PowerShell:
  vscribe completion powershell >> $PROFILE
`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return cmd.Help()
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// registerRunCompletions must run after addRunFlags.
func registerRunCompletions(cmd *cobra.Command) {
	cmd.ValidArgsFunction = completeAudioFiles
	_ = cmd.RegisterFlagCompletionFunc("provider", fixedCompletion(transcriber.Providers...))
	_ = cmd.RegisterFlagCompletionFunc("device", fixedCompletion("auto", "cpu", "cuda", "metal"))
	_ = cmd.RegisterFlagCompletionFunc("on-failure", fixedCompletion("omit", "placeholder"))
	if cmd.Flags().Lookup("substrate") != nil {
		_ = cmd.RegisterFlagCompletionFunc("substrate", fixedCompletion(config.SubstrateThreads, config.SubstrateProcesses))
	}
}

// completeAudioFiles offers files with an accepted extension.
func completeAudioFiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	exts := make([]string, len(media.DefaultExtensions))
	for i, e := range media.DefaultExtensions {
		exts[i] = strings.TrimPrefix(e, ".")
	}
	return exts, cobra.ShellCompDirectiveFilterFileExt
}

func fixedCompletion(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var out []string
		for _, v := range values {
			if strings.HasPrefix(v, toComplete) {
				out = append(out, v)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}
}
