package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentd-ai/agentd/internal/config"
	"github.com/agentd-ai/agentd/internal/execpolicy"
)

var policyDirFlag string

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect the command policy",
}

var policyCheckCmd = &cobra.Command{
	Use:   "check [command...]",
	Short: "Classify a command against the loaded rules",
	Long: `Load the policy rule files and print the decision for the given
command, for example:

  agentd policy check git push origin main`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPolicyCheck,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show how many rules are loaded",
	RunE:  runPolicyList,
}

func init() {
	policyCmd.PersistentFlags().StringVar(&policyDirFlag, "policy-dir", "", "Policy rule directory")
	policyCmd.AddCommand(policyCheckCmd)
	policyCmd.AddCommand(policyListCmd)
}

func loadPolicy() (*execpolicy.Policy, error) {
	dir := policyDirFlag
	if dir == "" {
		workDir, err := GetWorkDir("")
		if err != nil {
			return nil, err
		}
		cfg, err := config.Load(workDir)
		if err != nil {
			return nil, err
		}
		dir = cfg.PolicyDir
		if dir == "" {
			dir = config.GetPaths().PolicyPath()
		}
	}
	return execpolicy.LoadDir(dir)
}

func runPolicyCheck(cmd *cobra.Command, args []string) error {
	policy, err := loadPolicy()
	if err != nil {
		return err
	}

	commands, ok := execpolicy.SplitShellInvocation(args)
	if !ok {
		commands = [][]string{args}
	}

	eval := policy.CheckAll(commands)
	if !eval.Match {
		fmt.Println("no_match")
		return nil
	}
	fmt.Println(eval.Decision.String())
	return nil
}

func runPolicyList(cmd *cobra.Command, args []string) error {
	policy, err := loadPolicy()
	if err != nil {
		return err
	}
	fmt.Printf("%d rules loaded\n", policy.Rules())
	return nil
}
