package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentd-ai/agentd/internal/exec"
	"github.com/agentd-ai/agentd/internal/execpolicy"
	"github.com/agentd-ai/agentd/pkg/types"
)

var (
	execTimeout   time.Duration
	execFull      bool
	execPolicyDir string
)

var execCmd = &cobra.Command{
	Use:   "exec [command...]",
	Short: "Run one command under the policy and sandbox envelope",
	Long: `Classify the command against the loaded rules and run it locally.
Forbidden commands are refused; prompt-classified commands print a
warning before running. Useful for trying out rule files.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().DurationVar(&execTimeout, "timeout", 2*time.Minute, "Command timeout")
	execCmd.Flags().BoolVar(&execFull, "full-access", false, "Run without the sandbox envelope")
	execCmd.Flags().StringVar(&execPolicyDir, "policy-dir", "", "Policy rule directory")
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	policyDirFlag = execPolicyDir
	policy, err := loadPolicy()
	if err != nil {
		return err
	}

	commands, ok := execpolicy.SplitShellInvocation(args)
	if !ok {
		commands = [][]string{args}
	}
	eval := policy.CheckAll(commands)
	if eval.Match {
		switch eval.Decision {
		case execpolicy.DecisionForbidden:
			return fmt.Errorf("command is forbidden by policy")
		case execpolicy.DecisionPrompt:
			fmt.Fprintln(os.Stderr, "warning: policy would require approval for this command")
		}
	}

	sandbox := types.WorkspaceWritePolicy()
	if execFull {
		sandbox = types.FullAccessPolicy()
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	runner := exec.NewLocalRunner()
	outcome, err := runner.Run(context.Background(), exec.Spec{
		Command: args,
		Cwd:     cwd,
		Timeout: execTimeout,
	}, sandbox)
	if err != nil {
		return err
	}

	fmt.Print(outcome.AggregatedOutput)
	if outcome.Status != exec.StatusExited {
		return fmt.Errorf("command %s", outcome.Status)
	}
	if outcome.ExitCode != 0 {
		os.Exit(outcome.ExitCode)
	}
	return nil
}
