package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "acnedetect",
	Short:         "AI acne detection and skincare consultation",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if os.Getenv("NO_COLOR") != "" {
			noColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, checkCmd)
	rootCmd.AddCommand(signupCmd, recoverCmd, profileCmd, contactCmd)
	rootCmd.AddCommand(analyzeCmd, chatCmd, interactionsCmd, feedbackCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%s", errorMessage(err))
		os.Exit(1)
	}
}

// errorMessage prefixes domain errors with their code.
func errorMessage(err error) string {
	if code := apperr.GetCode(err); code != apperr.CodeUnknown {
		return fmt.Sprintf("%s: %v", code, err)
	}
	return err.Error()
}
