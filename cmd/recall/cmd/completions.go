package cmd

import (
	"github.com/spf13/cobra"

	recallerrors "github.com/recall-db/recall/internal/errors"
)

func newCompletionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completions <shell>",
		Short:     "Generate a shell completion script",
		Args:      cobra.ExactValidArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			default:
				return recallerrors.InvalidArgument("unsupported shell: " + args[0])
			}
		},
	}
}
