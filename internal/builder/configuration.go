package builder

import (
	"path/filepath"
	"runtime"
	"slices"

	"github.com/qobs-build/nubs/internal/toolchain"
)

const (
	DefaultSourceDir       = "Source"
	DefaultHeaderDir       = "Include"
	DefaultTestDir         = "Tests"
	DefaultReferencesDir   = "../References"
	DefaultIntermediateDir = "obj"
	DefaultArtifactDir     = "bin"
)

// Configuration is the mutable state of one build invocation. Target builders clone it
// before adding anything target specific, so sibling targets never see each other's flags.
type Configuration struct {
	GOOS      string
	Arch      Arch
	Mode      Mode
	Toolchain toolchain.Descriptor
	CC, CXX   string

	// ProjectDir is absolute; every other directory is relative to it unless absolute itself
	ProjectDir      string
	SourceDir       string
	HeaderDir       string
	TestDir         string
	ReferencesDir   string
	IntermediateDir string
	ArtifactDir     string

	IncludeDirs []string
	LibraryDirs []string
	Libraries   []string
	Defines     []string

	Cflags   []string
	Cxxflags []string
	Ldflags  []string
}

// NewConfiguration returns a configuration for the host with the default layout
func NewConfiguration(projectDir string) *Configuration {
	c := &Configuration{
		GOOS:       runtime.GOOS,
		Arch:       HostArch(),
		Mode:       ModeDebug,
		ProjectDir: projectDir,
	}
	c.applyDefaults()
	return c
}

func (c *Configuration) applyDefaults() {
	if c.SourceDir == "" {
		c.SourceDir = DefaultSourceDir
	}
	if c.HeaderDir == "" {
		c.HeaderDir = DefaultHeaderDir
	}
	if c.TestDir == "" {
		c.TestDir = DefaultTestDir
	}
	if c.ReferencesDir == "" {
		c.ReferencesDir = DefaultReferencesDir
	}
	if c.IntermediateDir == "" {
		c.IntermediateDir = DefaultIntermediateDir
	}
	if c.ArtifactDir == "" {
		c.ArtifactDir = DefaultArtifactDir
	}
	if c.Mode == "" {
		c.Mode = ModeDebug
	}
	if c.Arch == "" {
		c.Arch = HostArch()
	}
}

// Clone returns a deep copy
func (c *Configuration) Clone() *Configuration {
	clone := *c
	clone.Toolchain.Version = slices.Clone(c.Toolchain.Version)
	clone.IncludeDirs = slices.Clone(c.IncludeDirs)
	clone.LibraryDirs = slices.Clone(c.LibraryDirs)
	clone.Libraries = slices.Clone(c.Libraries)
	clone.Defines = slices.Clone(c.Defines)
	clone.Cflags = slices.Clone(c.Cflags)
	clone.Cxxflags = slices.Clone(c.Cxxflags)
	clone.Ldflags = slices.Clone(c.Ldflags)
	return &clone
}

// Key identifies the toolchain, architecture and mode of this configuration
func (c *Configuration) Key() BuildDirKey {
	return KeyFor(c.Toolchain, c.Arch, c.Mode)
}

// Path resolves a directory of the configuration against the project directory
func (c *Configuration) Path(dir string, elem ...string) string {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.ProjectDir, dir)
	}
	return filepath.Join(append([]string{dir}, elem...)...)
}

// IntermediatePath is below the intermediate directory, namespaced by Key
func (c *Configuration) IntermediatePath(elem ...string) string {
	return c.Path(c.IntermediateDir, append([]string{c.Key().String()}, elem...)...)
}

// ArtifactPath is below the artifact directory, namespaced by Key
func (c *Configuration) ArtifactPath(elem ...string) string {
	return c.Path(c.ArtifactDir, append([]string{c.Key().String()}, elem...)...)
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		if !slices.Contains(list, item) {
			list = append(list, item)
		}
	}
	return list
}

func (c *Configuration) AddIncludeDir(dirs ...string) {
	c.IncludeDirs = appendUnique(c.IncludeDirs, dirs...)
}
func (c *Configuration) AddLibraryDir(dirs ...string) {
	c.LibraryDirs = appendUnique(c.LibraryDirs, dirs...)
}
func (c *Configuration) AddLibrary(libs ...string) { c.Libraries = appendUnique(c.Libraries, libs...) }
func (c *Configuration) AddDefine(defs ...string)  { c.Defines = appendUnique(c.Defines, defs...) }
