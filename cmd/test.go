// nubs test [path]
package cmd

import (
	"github.com/qobs-build/nubs/internal/builder"
	"github.com/qobs-build/nubs/internal/msg"
	"github.com/spf13/cobra"
)

func doTest(cmd *cobra.Command, args []string) {
	b, err := builder.NewBuilderInDirectory(targetPath(args), buildOptions())
	if err != nil {
		msg.Fatal("%v", err)
	}
	results, err := b.Test()
	if err != nil {
		msg.Fatal("%v", err)
	}
	msg.Step("Finished", "test results in %s", results)
}

var testCmd = &cobra.Command{
	Use:   "test [target path]",
	Short: "Build the project and run its unit tests",
	Long: `Build the project and run its unit test executable. The googletest XML report is
written next to the executable. If no target path is given, uses "."`,
	Args: cobra.MaximumNArgs(1),
	Run:  doTest,
}

func init() {
	// nubs test subcommand
	rootCmd.AddCommand(testCmd)
}
