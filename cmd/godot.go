// nubs godot assets [path], nubs godot export <preset> <output> [path]
package cmd

import (
	"fmt"

	"github.com/qobs-build/nubs/internal/godot"
	"github.com/qobs-build/nubs/internal/msg"
	"github.com/qobs-build/nubs/internal/toolchain"
	"github.com/spf13/cobra"
)

var (
	flagVariantDir string
	flagIgnored    []string
	flagGDNative   bool
)

var godotCmd = &cobra.Command{
	Use:   "godot",
	Short: "Godot project helpers",
}

var godotAssetsCmd = &cobra.Command{
	Use:   "assets [project path]",
	Short: "List the assets (or GDNative sources) of a Godot project",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		p := &godot.Project{Dir: targetPath(args), Ignored: flagIgnored}

		list := p.Assets
		if flagGDNative {
			list = p.GDNativeSources
		}
		files, err := list(flagVariantDir)
		if err != nil {
			msg.Fatal("%v", err)
		}
		for _, file := range files {
			fmt.Println(file)
		}
	},
}

var godotExportCmd = &cobra.Command{
	Use:   "export <preset> <output> [project path]",
	Short: "Export a Godot project with one of its export presets",
	Long: `Locates Godot (version from GODOT_VERSION, default "` + toolchain.DefaultGodotVersion + `") and
exports the project with a preset from its export_presets.cfg.`,
	Args: cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		dir := targetPath(args[2:])
		env := projectEnv(dir, buildOptions())
		locator := toolchain.NewLocator()
		locator.Getenv = env.Getenv

		e, err := godot.NewExporter(locator, envOr(env, "GODOT_VERSION", toolchain.DefaultGodotVersion))
		if err != nil {
			msg.Fatal("%v", err)
		}
		if err := e.Export(dir, args[0], args[1]); err != nil {
			msg.Fatal("%v", err)
		}
	},
}

func init() {
	// nubs godot subcommands
	rootCmd.AddCommand(godotCmd)
	godotCmd.AddCommand(godotAssetsCmd, godotExportCmd)

	godotAssetsCmd.Flags().StringVar(&flagVariantDir, "variant-dir", "", "Rewrite paths into this directory")
	godotAssetsCmd.Flags().StringSliceVar(&flagIgnored, "ignore", godot.DefaultIgnored, "Subdirectories to skip")
	godotAssetsCmd.Flags().BoolVar(&flagGDNative, "gdnative", false, "List GDNative C/C++ sources instead of assets")
}
