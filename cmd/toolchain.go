// nubs toolchain, nubs name <universal name>
package cmd

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/qobs-build/nubs/internal/builder"
	"github.com/qobs-build/nubs/internal/msg"
	"github.com/qobs-build/nubs/internal/toolchain"
	"github.com/spf13/cobra"
)

var toolchainCmd = &cobra.Command{
	Use:   "toolchain",
	Short: "Show the C/C++ compiler that would be used and its build directory name",
	Long: `Locates the C and C++ compilers (honouring CC and CXX), queries the C++ compiler's
version and prints the build directory name derived from it.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		opts := buildOptions()
		locator := toolchain.NewLocator()

		cc, err := locator.FindCompiler(false)
		if err != nil {
			msg.Fatal("%v", err)
		}
		cxx, err := locator.FindCompiler(true)
		if err != nil {
			msg.Fatal("%v", err)
		}
		desc := toolchain.Describe(toolchain.ExecRunner, cxx)

		fmt.Printf("%s %s\n", color.HiCyanString("C compiler:  "), cc)
		fmt.Printf("%s %s\n", color.HiCyanString("C++ compiler:"), cxx)
		fmt.Printf("%s %s %s\n", color.HiCyanString("Toolchain:   "), desc.Name, desc.VersionString())
		fmt.Printf("%s %s\n", color.HiCyanString("Build dir:   "), builder.KeyFor(desc, opts.Arch, opts.Mode))
	},
}

var flagNameOS string

var nameCmd = &cobra.Command{
	Use:   "name <universal name>",
	Short: "Print the platform specific file names of a universal name",
	Long: `Prints the shared library, static library and executable names a universal name
such as My.Awesome.Library maps to on the target OS.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, kind := range []builder.ArtifactKind{builder.SharedLibrary, builder.StaticLibrary, builder.Executable} {
			fmt.Printf("%-15s %s\n", kind.String()+":", builder.PlatformName(args[0], kind, flagNameOS))
		}
	},
}

func init() {
	// nubs toolchain subcommand
	rootCmd.AddCommand(toolchainCmd)

	// nubs name subcommand
	rootCmd.AddCommand(nameCmd)
	nameCmd.Flags().StringVar(&flagNameOS, "os", runtime.GOOS, "Target operating system (GOOS spelling)")
}
