package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for kitbash.

Bash:
  $ source <(kitbash completion bash)

Zsh:
  $ kitbash completion zsh > "${fpath[1]}/_kitbash"

Fish:
  $ kitbash completion fish | source

PowerShell:
  PS> kitbash completion powershell | Out-String | Invoke-Expression

Layer arguments complete to the names of the layers in the project.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}
}

// completeLayers completes layer arguments with the project's layer names.
// Completion runs before PersistentPreRunE, so the project flag is read
// from the command line directly.
func (c *CLI) completeLayers(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if path, err := cmd.Flags().GetString("project"); err == nil && path != "" {
		c.projectPath = path
	}
	p, err := c.openProject()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, v := range p.Session.Store.Snapshot() {
		if strings.HasPrefix(v.Name, toComplete) {
			out = append(out, v.Name+"\t"+shortID(v.ID))
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
