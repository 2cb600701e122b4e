package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/covid-report/internal/policyconfig"
)

// policyCmd groups policy file commands
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Policy file tools",
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a policy file and print its hash",
	Long: `Parses the policy YAML (unknown fields are errors), validates it and
prints the hash logged with every run.

Example:
  go run ./cmd/report policy validate
  go run ./cmd/report policy validate config/policy.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: validatePolicy,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyValidateCmd)
}

func validatePolicy(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, err := loadConfig()
		if err != nil {
			PrintError(err.Error())
			return err
		}
		path = cfg.PolicyFile
	}

	policy, err := loadPolicy(path)
	if err != nil {
		PrintError(err.Error())
		return err
	}
	hash, err := policyconfig.Hash(policy)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	fixes := 0
	for _, set := range policy.Corrections {
		fixes += len(set.Fixes)
	}

	PrintSuccess(fmt.Sprintf("%s is valid", path))
	PrintKeyValue("Policy", fmt.Sprintf("%s v%s", policy.Meta.PolicyID, policy.Meta.Version), 12)
	PrintKeyValue("Hash", hash, 12)
	PrintKeyValue("Window", fmt.Sprintf("%d days, %d provisional", policy.Smoothing.Window, policy.Smoothing.ProvisionalDays), 12)
	PrintKeyValue("Weights", fmt.Sprintf("%v", policy.Scoring.Weights.AsMap()), 12)
	PrintKeyValue("Corrections", fmt.Sprintf("%d fix(es) over %d source(s)", fixes, len(policy.Corrections)), 12)
	return nil
}
