// nubs msbuild <project>
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/qobs-build/nubs/internal/builder"
	"github.com/qobs-build/nubs/internal/msg"
	"github.com/qobs-build/nubs/internal/msproj"
	"github.com/qobs-build/nubs/internal/toolchain"
	"github.com/spf13/cobra"
)

// msbuildPlatform maps an architecture to the MSBuild platform of .NET projects
func msbuildPlatform(arch builder.Arch) string {
	switch arch {
	case builder.ArchX86:
		return "x86"
	case builder.ArchX64:
		return "x64"
	case builder.ArchARM, builder.ArchARMHF:
		return "ARM"
	case builder.ArchARM64:
		return "ARM64"
	}
	return "AnyCPU"
}

var flagListInputs bool

var msbuildCmd = &cobra.Command{
	Use:   "msbuild <project file>",
	Short: "Build a .NET or Visual C++ project with MSBuild",
	Long: `Locates MSBuild (version from MSBUILD_VERSION, default "system") and builds the
project with the configuration, platform and output path of the build options.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if flagListInputs {
			inputs, err := msproj.Inputs(args[0])
			if err != nil {
				msg.Fatal("%v", err)
			}
			for _, input := range inputs {
				fmt.Println(input)
			}
			return
		}

		opts := buildOptions()
		env := projectEnv(filepath.Dir(args[0]), opts)
		b := msproj.NewBuilder(envOr(env, "MSBUILD_VERSION", toolchain.VersionSystem))
		b.Locator.Getenv = env.Getenv
		inv := msproj.Invocation{
			Project:       args[0],
			Configuration: opts.Mode.Title(),
			Platform:      msbuildPlatform(opts.Arch),
			OutputPath:    opts.ArtifactDir,
		}
		if err := b.Build(inv); err != nil {
			msg.Fatal("%v", err)
		}
	},
}

func init() {
	// nubs msbuild subcommand
	rootCmd.AddCommand(msbuildCmd)
	msbuildCmd.Flags().BoolVar(&flagListInputs, "inputs", false, "List the source files of the project instead of building it")
}
