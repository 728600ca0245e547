// Package godot enumerates the inputs of a Godot project and exports it with the Godot editor.
package godot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/magefile/mage/sh"
	"github.com/qobs-build/nubs/internal/msg"
	"github.com/qobs-build/nubs/internal/srcset"
	"github.com/qobs-build/nubs/internal/toolchain"
)

// DefaultIgnored are the project subdirectories holding build output
var DefaultIgnored = []string{"bin", "obj"}

// Project is a Godot project directory
type Project struct {
	Dir     string
	Ignored []string // subdirectory names skipped during enumeration, exact match
}

func NewProject(dir string) *Project {
	return &Project{Dir: dir, Ignored: DefaultIgnored}
}

// Assets lists the asset files in the direct subdirectories of the project.
// If variantDir is not empty, paths are rewritten to variantDir/<subdirectory>/...
func (p *Project) Assets(variantDir string) ([]string, error) {
	return p.enumerate(srcset.GodotAssets, variantDir)
}

// GDNativeSources lists the C and C++ sources of GDNative modules in the project
func (p *Project) GDNativeSources(variantDir string) ([]string, error) {
	return p.enumerate(srcset.GDNativeSources, variantDir)
}

func (p *Project) enumerate(exts srcset.Extensions, variantDir string) ([]string, error) {
	subdirs, err := srcset.Subdirectories(p.Dir, p.Ignored)
	if err != nil {
		return nil, fmt.Errorf("failed to list Godot project %s: %w", p.Dir, err)
	}

	var files []string
	for _, sub := range subdirs {
		variant := ""
		if variantDir != "" {
			variant = filepath.Join(variantDir, sub)
		}
		found, err := srcset.Collect(srcset.Enumerate(filepath.Join(p.Dir, sub), exts, variant))
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

// Exporter runs Godot export presets
type Exporter struct {
	Godot string // path to the Godot executable
	Run   func(cmd string, args ...string) error
}

// NewExporter locates the Godot executable of the given version ("3.0", "3.1" or "git")
func NewExporter(locator *toolchain.Locator, version string) (*Exporter, error) {
	if version == "" {
		version = toolchain.DefaultGodotVersion
	}
	godot, err := locator.FindGodot(version)
	if err != nil {
		return nil, err
	}
	return &Exporter{Godot: godot, Run: sh.RunV}, nil
}

// Export exports the project in projectDir using a preset from its export_presets.cfg.
// An existing file at output is removed first.
func (e *Exporter) Export(projectDir, preset, output string) error {
	if preset == "" {
		return errors.New("no export preset given")
	}

	msg.Step("Exporting", "%s to %s (preset %q)", projectDir, output, preset)

	if err := os.Remove(output); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove stale export %s: %w", output, err)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return err
	}

	return e.Run(e.Godot, "--verbose", "--path", projectDir, "--export", preset, output)
}
