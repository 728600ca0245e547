// Package gen hands resolved build targets to a build engine, either by building them
// directly or by writing a build file for an external tool.
package gen

import (
	"fmt"

	"github.com/qobs-build/nubs/internal/toolchain"
)

// Kind is the type of artifact a target produces
type Kind int

const (
	StaticLibrary Kind = iota
	SharedLibrary
	Executable
)

func (k Kind) String() string {
	switch k {
	case StaticLibrary:
		return "static library"
	case SharedLibrary:
		return "shared library"
	case Executable:
		return "executable"
	default:
		return "unknown"
	}
}

// Target is a fully resolved build definition
type Target struct {
	Name       string // unique within an engine
	Kind       Kind
	Output     string // absolute artifact path
	ObjectDir  string // object files go here, mirroring SourceRoot
	SourceRoot string

	Sources []string
	Headers []string // changing any of these recompiles every source

	// Deps names other targets of the same engine that are linked into this one.
	// They are always built first.
	Deps []string
	// WholeArchive links every object of static Deps, not only the referenced ones
	WholeArchive bool

	IncludeDirs []string
	LibraryDirs []string
	Libraries   []string
	Defines     []string // NAME or NAME=VALUE

	Cflags   []string
	Cxxflags []string
	Ldflags  []string
}

// Engine builds targets
type Engine interface {
	SetCompiler(cc, cxx string)
	AddTarget(t Target)
	// Generate returns the contents of the build file, or "" if the engine needs none.
	// It may write auxiliary files into buildDir.
	Generate(buildDir string) (string, error)
	BuildFile() string
	Invoke(buildDir string) error
}

const (
	EngineNative = "native"
	EngineNinja  = "ninja"
	EngineVS2022 = "vs2022"
)

var Engines = map[string]string{
	EngineNative: "build directly with parallel jobs",
	EngineNinja:  "generate build.ninja and run ninja",
	EngineVS2022: "generate a Visual Studio 2022 solution and run msbuild",
}

// Settings holds what engines need to know about the configuration being built
type Settings struct {
	Configuration  string // Debug or Release
	Platform       string // MSBuild platform name, e.g. x64 or Win32
	MSBuildVersion string
	GOOS           string
	// Locator finds MSBuild; nil means toolchain.NewLocator()
	Locator *toolchain.Locator
}

// New creates the named engine
func New(name string, s Settings) (Engine, error) {
	switch name {
	case EngineNative, "":
		return NewNativeBuilder(s.GOOS), nil
	case EngineNinja:
		return NewNinjaGen(s.GOOS), nil
	case EngineVS2022:
		return NewVS2022Gen(s), nil
	default:
		return nil, fmt.Errorf("unknown build engine %q", name)
	}
}
