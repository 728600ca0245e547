// Package msproj reads the inputs of MSBuild projects and builds them with MSBuild.
package msproj

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/magefile/mage/sh"
	"github.com/qobs-build/nubs/internal/msg"
	"github.com/qobs-build/nubs/internal/srcset"
	"github.com/qobs-build/nubs/internal/toolchain"
)

// Namespace of classic (non-SDK) MSBuild projects
const Namespace = "http://schemas.microsoft.com/developer/msbuild/2003"

// Project is the part of an MSBuild project that names its inputs.
// Elements match with or without the MSBuild namespace.
type Project struct {
	XMLName    xml.Name    `xml:"Project"`
	SDK        string      `xml:"Sdk,attr"`
	ItemGroups []ItemGroup `xml:"ItemGroup"`
}

type ItemGroup struct {
	Compile           []Item `xml:"Compile"`
	ClCompile         []Item `xml:"ClCompile"`
	ProjectReferences []Item `xml:"ProjectReference"`
}

type Item struct {
	Include string `xml:"Include,attr"`
	Remove  string `xml:"Remove,attr"`
}

// Parse decodes a project file
func Parse(r io.Reader) (*Project, error) {
	var p Project
	if err := xml.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse MSBuild project: %w", err)
	}
	if p.XMLName.Space != "" && p.XMLName.Space != Namespace {
		return nil, fmt.Errorf("unexpected MSBuild project namespace %q", p.XMLName.Space)
	}
	return &p, nil
}

// Includes lists the Compile and ClCompile includes in document order, as written
func (p *Project) Includes() []string {
	var includes []string
	for _, group := range p.ItemGroups {
		for _, item := range slices.Concat(group.Compile, group.ClCompile) {
			if item.Include != "" {
				includes = append(includes, item.Include)
			}
		}
	}
	return includes
}

// References lists the ProjectReference includes, as written
func (p *Project) References() []string {
	var refs []string
	for _, group := range p.ItemGroups {
		for _, item := range group.ProjectReferences {
			if item.Include != "" {
				refs = append(refs, item.Include)
			}
		}
	}
	return refs
}

func (p *Project) removed() []string {
	var removed []string
	for _, group := range p.ItemGroups {
		for _, item := range group.Compile {
			if item.Remove != "" {
				removed = append(removed, msbuildPattern(item.Remove))
			}
		}
	}
	return removed
}

// msbuildPattern turns an MSBuild include into a slash separated glob
func msbuildPattern(include string) string {
	return strings.ReplaceAll(include, `\`, "/")
}

// Inputs returns the absolute paths of the source files a project compiles, so a caller
// can tell whether it needs to be rebuilt. Wildcard includes are expanded. SDK style
// projects also compile every C# or VB file below the project directory except bin and obj.
func Inputs(projectPath string) ([]string, error) {
	f, err := os.Open(projectPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", projectPath, err)
	}

	dir := filepath.Dir(projectPath)
	fsys := os.DirFS(dir)
	seen := make(map[string]bool)
	var inputs []string
	add := func(rel string) {
		for _, pattern := range p.removed() {
			if ok, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); ok {
				return
			}
		}
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if !seen[path] {
			seen[path] = true
			inputs = append(inputs, path)
		}
	}

	if p.SDK != "" {
		for path, err := range srcset.Enumerate(dir, srcset.CSharpSources, "") {
			if err != nil {
				return nil, err
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return nil, err
			}
			top := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
			if top == "bin" || top == "obj" {
				continue
			}
			add(rel)
		}
	}

	for _, include := range p.Includes() {
		pattern := msbuildPattern(include)
		if !strings.ContainsAny(pattern, "*?[") {
			add(pattern)
			continue
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad include %q in %s: %w", include, projectPath, err)
		}
		for _, match := range matches {
			add(match)
		}
	}

	return inputs, nil
}

// Invocation describes one MSBuild run
type Invocation struct {
	Project       string
	Configuration string // Debug or Release
	Platform      string // e.g. AnyCPU, x86, x64
	OutputPath    string
	Properties    map[string]string
}

// Args renders the MSBuild command line arguments
func (inv Invocation) Args() []string {
	args := []string{inv.Project}
	if inv.Configuration != "" {
		args = append(args, "/p:Configuration="+inv.Configuration)
	}
	if inv.Platform != "" {
		args = append(args, "/p:Platform="+inv.Platform)
	}
	if inv.OutputPath != "" {
		out := inv.OutputPath
		// MSBuild requires the trailing separator
		if !strings.HasSuffix(out, "/") && !strings.HasSuffix(out, `\`) {
			out += string(filepath.Separator)
		}
		args = append(args, "/p:OutputPath="+out)
	}
	for _, k := range slices.Sorted(maps.Keys(inv.Properties)) {
		args = append(args, "/p:"+k+"="+inv.Properties[k])
	}
	return args
}

// Builder runs MSBuild
type Builder struct {
	Locator *toolchain.Locator
	Version string // MSBuild version tag, e.g. latest, system or 4.0
	Run     func(cmd string, args ...string) error
}

func NewBuilder(version string) *Builder {
	if version == "" {
		version = toolchain.VersionSystem
	}
	return &Builder{Locator: toolchain.NewLocator(), Version: version, Run: sh.RunV}
}

// ErrNoProject is returned when the project file does not exist
var ErrNoProject = errors.New("MSBuild project not found")

// Build locates MSBuild and builds the project
func (b *Builder) Build(inv Invocation) error {
	if _, err := os.Stat(inv.Project); err != nil {
		return fmt.Errorf("%w: %s", ErrNoProject, inv.Project)
	}

	msbuild, err := b.Locator.FindMSBuild(b.Version, inv.Platform == "x86")
	if err != nil {
		return err
	}

	if inputs, err := Inputs(inv.Project); err != nil {
		msg.Warn("could not scan %s: %v", inv.Project, err)
	} else {
		msg.Step("Building", "%s (%d inputs) with %s", inv.Project, len(inputs), msbuild)
	}
	return b.Run(msbuild, inv.Args()...)
}
