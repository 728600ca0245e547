// nubs [path], nubs build [path]
package cmd

import (
	"fmt"
	"os"

	"github.com/qobs-build/nubs/internal/builder"
	"github.com/qobs-build/nubs/internal/builder/gen"
	"github.com/qobs-build/nubs/internal/msg"
	"github.com/spf13/cobra"
)

var (
	flagArch            EnumValue = NewEnumValue(string(builder.HostArch()), builder.Arches)
	flagMode            EnumValue = NewEnumValue(string(builder.ModeDebug), builder.Modes)
	flagGenerator       EnumValue = NewEnumValue(gen.EngineNative, gen.Engines)
	flagIntermediateDir string
	flagArtifactDir     string
)

// projectEnv is the process environment overlaid with the .env file of dir
func projectEnv(dir string, opts builder.Options) builder.ConfigEnv {
	env, err := builder.NewConfigEnv(dir, opts.Arch, opts.Mode)
	if err != nil {
		msg.Fatal("%v", err)
	}
	return env
}

// envOr returns the variable key of env, or def if it is unset
func envOr(env builder.ConfigEnv, key, def string) string {
	if v := env.Getenv(key); v != "" {
		return v
	}
	return def
}

// buildOptions collects the build-tool options shared by all commands
func buildOptions() builder.Options {
	// values were validated by EnumValue.Set
	arch, _ := builder.ParseArch(flagArch.Value())
	mode, _ := builder.ParseMode(flagMode.Value())
	return builder.Options{
		Arch:            arch,
		Mode:            mode,
		IntermediateDir: flagIntermediateDir,
		ArtifactDir:     flagArtifactDir,
		Engine:          flagGenerator.Value(),
	}
}

func targetPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func doBuild(cmd *cobra.Command, args []string) {
	b, err := builder.NewBuilderInDirectory(targetPath(args), buildOptions())
	if err != nil {
		msg.Fatal("%v", err)
	}
	artifacts, err := b.Build()
	if err != nil {
		msg.Fatal("%v", err)
	}
	msg.Step("Finished", "%s", artifacts.Primary)
	if artifacts.Tests != "" {
		msg.Step("Finished", "%s", artifacts.Tests)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nubs [target path]",
	Short: "Build environment resolver for C/C++, .NET and Godot projects",
	Long: `Locates compilers, MSBuild, Godot and Blender, derives platform specific names
and build directories, wires packages and builds the targets of a Nubs.toml project.`,
	Args: cobra.MaximumNArgs(1),
	Run:  doBuild,
}

var buildCmd = &cobra.Command{
	Use:   "build [target path]",
	Short: "Build the project",
	Long:  `Build the project. If no target path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

func init() {
	addBuildFlags(rootCmd)

	// nubs build subcommand
	rootCmd.AddCommand(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.VarP(&flagArch, "arch", "a", "Target architecture, one of "+flagArch.HelpString())
	flags.VarP(&flagMode, "mode", "m", "Build mode, one of "+flagMode.HelpString())
	flags.StringVar(&flagIntermediateDir, "intermediate-dir", builder.DefaultIntermediateDir, "Directory for object files and other intermediate files")
	flags.StringVar(&flagArtifactDir, "artifact-dir", builder.DefaultArtifactDir, "Directory the final build outputs are placed in")
	flags.VarP(&flagGenerator, "gen", "g", "Generator to build with, one of "+flagGenerator.HelpString())
	cmd.RegisterFlagCompletionFunc("arch", flagArch.CompletionFunc())
	cmd.RegisterFlagCompletionFunc("mode", flagMode.CompletionFunc())
	cmd.RegisterFlagCompletionFunc("gen", flagGenerator.CompletionFunc())
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
