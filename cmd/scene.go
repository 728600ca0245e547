// nubs scene export <blend file> <output> [masks...]
package cmd

import (
	"os"
	"path/filepath"

	"github.com/qobs-build/nubs/internal/msg"
	"github.com/qobs-build/nubs/internal/sceneexport"
	"github.com/qobs-build/nubs/internal/toolchain"
	"github.com/spf13/cobra"
)

var flagDryRun bool

var sceneCmd = &cobra.Command{
	Use:   "scene",
	Short: "3D scene helpers",
}

var sceneExportCmd = &cobra.Command{
	Use:   "export <blend file> <output> [masks...]",
	Short: "Export the meshes matching the masks from a .blend file",
	Long: `Exports the meshes and armatures of a .blend file whose names match any of the
wildcard masks (*, ?, [seq], [!seq]) to an .fbx or .dae file. All layers are made
visible first and every modifier except armature modifiers is applied. Objects with
interaction turned off are skipped.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		blend, output, masks := args[0], args[1], args[2:]
		if _, err := sceneexport.FormatFor(output); err != nil {
			msg.Fatal("%v", err)
		}
		output, err := filepath.Abs(output)
		if err != nil {
			msg.Fatal("%v", err)
		}

		blender, err := toolchain.NewLocator().FindBlender()
		if err != nil {
			msg.Fatal("%v", err)
		}

		out := &msg.IndentWriter{Indent: "    ", W: os.Stdout}
		host := sceneexport.NewBlender(blender, blend, out)
		if err := sceneexport.Run(host, append([]string{output}, masks...)); err != nil {
			msg.Fatal("%v", err)
		}

		if flagDryRun {
			os.Stdout.WriteString(host.Script() + "\n")
			return
		}
		if err := host.Execute(out); err != nil {
			msg.Fatal("scene export failed: %v", err)
		}
	},
}

func init() {
	// nubs scene subcommands
	rootCmd.AddCommand(sceneCmd)
	sceneCmd.AddCommand(sceneExportCmd)

	sceneExportCmd.Flags().BoolVarP(&flagDryRun, "dry-run", "n", false, "Print the Blender script instead of running it")
}
