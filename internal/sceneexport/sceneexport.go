// Package sceneexport drives the export of selected meshes out of a 3D content-creation
// tool. The tool itself is reached through the Host interface; this package decides what
// to select, which modifiers to apply and which exporter to call.
package sceneexport

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/qobs-build/nubs/internal/msg"
)

var ErrUnsupportedFormat = errors.New("only FBX and Collada (.dae) are supported")

// Format is an export file format
type Format int

const (
	FBX Format = iota
	Collada
)

func (f Format) String() string {
	switch f {
	case FBX:
		return "FBX"
	case Collada:
		return "Collada"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// FormatFor picks the export format from the extension of path, ignoring case
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fbx":
		return FBX, nil
	case ".dae":
		return Collada, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Object types that can be exported
const (
	TypeMesh     = "MESH"
	TypeArmature = "ARMATURE"
)

// Object is a scene object as reported by the host
type Object struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	HideSelect bool     `json:"hide_select"` // interaction turned off in the outliner
	Modifiers  []string `json:"modifiers"`
}

// Args are the arguments passed to the export macro
type Args struct {
	Output string
	Masks  []string
}

// ParseArgs reads the macro arguments, which follow the first "--" in argv.
// If there is no separator all of argv is used.
func ParseArgs(argv []string) (Args, error) {
	if i := slices.Index(argv, "--"); i >= 0 {
		argv = argv[i+1:]
	}
	if len(argv) == 0 || argv[0] == "" {
		return Args{}, errors.New("missing output path")
	}
	return Args{Output: argv[0], Masks: argv[1:]}, nil
}

// Select returns the meshes and armatures whose name matches any of the wildcard masks.
// Objects with interaction turned off are never selected.
func Select(objects []Object, masks []string) ([]Object, error) {
	compiled := make([]*Mask, 0, len(masks))
	for _, mask := range masks {
		m, err := CompileMask(mask)
		if err != nil {
			return nil, fmt.Errorf("bad mask %q: %w", mask, err)
		}
		compiled = append(compiled, m)
	}

	var selected []Object
	for _, obj := range objects {
		if obj.Type != TypeMesh && obj.Type != TypeArmature {
			continue
		}
		if obj.HideSelect {
			continue
		}
		for _, m := range compiled {
			if m.Match(obj.Name) {
				selected = append(selected, obj)
				break
			}
		}
	}
	return selected, nil
}

// AppliedModifiers lists the modifiers of obj that are baked before export.
// Armature modifiers stay live so the mesh keeps its skinning.
func AppliedModifiers(obj Object) []string {
	var applied []string
	for _, modifier := range obj.Modifiers {
		if !strings.Contains(strings.ToLower(modifier), "armature") {
			applied = append(applied, modifier)
		}
	}
	return applied
}

// Host is the scripting surface of the content-creation tool
type Host interface {
	EnableAddons(names ...string) error
	ShowAllLayers() error
	Objects() ([]Object, error)
	DeselectAll() error
	Select(names ...string) error
	ApplyModifier(object, modifier string) error
	ExportFBX(path string) error
	ExportCollada(path string) error
	Quit() error
}

// RequiredAddons are enabled before the scene is touched
var RequiredAddons = []string{"rigify", "io_scene_fbx", "io_scene_dae"}

// Run exports the objects matching the masks in argv to the output file named in argv.
// The host is told to quit once the export has finished or failed.
func Run(host Host, argv []string) (err error) {
	args, err := ParseArgs(argv)
	if err != nil {
		return err
	}
	format, err := FormatFor(args.Output)
	if err != nil {
		return err
	}

	defer func() {
		if qerr := host.Quit(); err == nil {
			err = qerr
		}
	}()

	if err := host.EnableAddons(RequiredAddons...); err != nil {
		return fmt.Errorf("failed to enable add-ons: %w", err)
	}

	// meshes might be on hidden layers
	if err := host.ShowAllLayers(); err != nil {
		return err
	}
	objects, err := host.Objects()
	if err != nil {
		return err
	}
	selected, err := Select(objects, args.Masks)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		msg.Warn("no meshes match any of the masks %q", args.Masks)
	}

	names := make([]string, len(selected))
	for i, obj := range selected {
		names[i] = obj.Name
	}
	if err := host.DeselectAll(); err != nil {
		return err
	}
	if err := host.Select(names...); err != nil {
		return err
	}

	for _, obj := range selected {
		for _, modifier := range AppliedModifiers(obj) {
			msg.Step("Applying", "%s on %s", modifier, obj.Name)
			if err := host.ApplyModifier(obj.Name, modifier); err != nil {
				return fmt.Errorf("failed to apply %s on %s: %w", modifier, obj.Name, err)
			}
		}
	}

	msg.Step("Exporting", "%d objects to %s (%s)", len(selected), args.Output, format)
	switch format {
	case FBX:
		return host.ExportFBX(args.Output)
	default:
		return host.ExportCollada(args.Output)
	}
}
