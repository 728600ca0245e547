package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/magefile/mage/sh"
	"github.com/qobs-build/nubs/internal/builder/gen"
	"github.com/qobs-build/nubs/internal/msg"
	"github.com/qobs-build/nubs/internal/srcset"
)

// TestResultsFile is written next to the unit test executable
const TestResultsFile = "googletest-results.xml"

// DefaultTestPackages are linked into unit test executables
var DefaultTestPackages = []PackageReference{
	{Name: "gtest", Libraries: []string{"gtest", "gtest_main"}},
}

// TargetBuilder turns a configuration into targets for a build engine
type TargetBuilder struct {
	cfg    *Configuration
	engine gen.Engine
	added  []string

	// Run executes unit tests
	Run func(cmd string, args ...string) error
}

func NewTargetBuilder(cfg *Configuration, engine gen.Engine) *TargetBuilder {
	cfg.applyDefaults()
	return &TargetBuilder{cfg: cfg, engine: engine, Run: sh.RunV}
}

// Configuration returns the configuration targets are cloned from
func (b *TargetBuilder) Configuration() *Configuration { return b.cfg }

// LibraryArtifacts are the outputs of LibraryWithTests
type LibraryArtifacts struct {
	Static string
	Shared string
	Tests  string
}

// scan enumerates the compilable sources and the headers below dir.
// Inline and include fragments count as headers.
func scan(dir string) (sources, headers []string, err error) {
	for path, err := range srcset.Enumerate(dir, srcset.CxxSources, "") {
		if err != nil {
			return nil, nil, err
		}
		if srcset.CxxHeaders.Matches(path) {
			headers = append(headers, path)
		} else {
			sources = append(sources, path)
		}
	}
	h, err := srcset.Collect(srcset.Enumerate(dir, srcset.CxxHeaders, ""))
	if err != nil {
		return nil, nil, err
	}
	return sources, appendUnique(headers, h...), nil
}

// prepare clones the configuration, puts the header directory on the include path and
// fills in the sources. overrides replaces the walk of sourceDir when not nil.
func (b *TargetBuilder) prepare(name string, kind gen.Kind, sourceDir string, overrides []string) (*Configuration, gen.Target, error) {
	cfg := b.cfg.Clone()
	headerDir := cfg.Path(cfg.HeaderDir)
	cfg.AddIncludeDir(headerDir)

	t := gen.Target{
		Name:       name,
		Kind:       kind,
		SourceRoot: cfg.Path(sourceDir),
		ObjectDir:  cfg.IntermediatePath(name),
	}

	var err error
	var sourceHeaders []string
	if overrides != nil {
		t.Sources = slices.Clone(overrides)
	} else if t.Sources, sourceHeaders, err = scan(t.SourceRoot); err != nil {
		return nil, gen.Target{}, fmt.Errorf("failed to enumerate sources of %s: %w", name, err)
	}

	_, headers, err := scan(headerDir)
	if err != nil {
		return nil, gen.Target{}, fmt.Errorf("failed to enumerate headers of %s: %w", name, err)
	}
	t.Headers = appendUnique(headers, sourceHeaders...)

	return cfg, t, nil
}

// finish applies the platform flags and the accumulated configuration, then hands the
// target to the engine
func (b *TargetBuilder) finish(cfg *Configuration, t gen.Target, kind ArtifactKind, tests bool) gen.Target {
	fs := cfg.platformFlags(kind, tests)

	t.IncludeDirs = slices.Clone(cfg.IncludeDirs)
	t.LibraryDirs = slices.Clone(cfg.LibraryDirs)
	t.Libraries = slices.Clone(cfg.Libraries)
	t.Defines = append(fs.defines, cfg.Defines...)
	t.Cflags = append(fs.cflags, cfg.Cflags...)
	t.Cxxflags = append(fs.cxxflags, cfg.Cxxflags...)
	t.Ldflags = append(fs.ldflags, cfg.Ldflags...)

	b.engine.AddTarget(t)
	b.added = append(b.added, t.Name)
	return t
}

// SharedLibrary builds the sources of the project into a shared library in the artifact directory
func (b *TargetBuilder) SharedLibrary(universal string, sources []string) (string, error) {
	cfg, t, err := b.prepare(universal, gen.SharedLibrary, b.cfg.SourceDir, sources)
	if err != nil {
		return "", err
	}
	t.Output = cfg.ArtifactPath(PlatformName(universal, SharedLibrary, cfg.GOOS))
	return b.finish(cfg, t, SharedLibrary, false).Output, nil
}

// StaticLibrary builds the sources of the project into a static library in the artifact directory
func (b *TargetBuilder) StaticLibrary(universal string, sources []string) (string, error) {
	cfg, t, err := b.prepare(universal, gen.StaticLibrary, b.cfg.SourceDir, sources)
	if err != nil {
		return "", err
	}
	t.Output = cfg.ArtifactPath(PlatformName(universal, StaticLibrary, cfg.GOOS))
	return b.finish(cfg, t, StaticLibrary, false).Output, nil
}

// Executable builds the sources of the project into an executable in the artifact directory
func (b *TargetBuilder) Executable(universal string, sources []string) (string, error) {
	cfg, t, err := b.prepare(universal, gen.Executable, b.cfg.SourceDir, sources)
	if err != nil {
		return "", err
	}
	t.Output = cfg.ArtifactPath(PlatformName(universal, Executable, cfg.GOOS))
	return b.finish(cfg, t, Executable, false).Output, nil
}

// LibraryWithTests compiles the project sources once into a static library in the
// intermediate directory, then links both a shared library and the unit test executable
// from it. The test executable also compiles the sources of the test directory and links
// testPackages (DefaultTestPackages if none are given).
func (b *TargetBuilder) LibraryWithTests(universal, testUniversal string, testPackages ...PackageReference) (LibraryArtifacts, error) {
	var artifacts LibraryArtifacts
	staticName := universal + ".static"

	cfg, static, err := b.prepare(staticName, gen.StaticLibrary, b.cfg.SourceDir, nil)
	if err != nil {
		return artifacts, err
	}
	static.Output = cfg.IntermediatePath(PlatformName(universal, StaticLibrary, cfg.GOOS))
	artifacts.Static = b.finish(cfg, static, StaticLibrary, false).Output

	cfg, shared, err := b.prepare(universal, gen.SharedLibrary, b.cfg.SourceDir, []string{})
	if err != nil {
		return artifacts, err
	}
	shared.Output = cfg.ArtifactPath(PlatformName(universal, SharedLibrary, cfg.GOOS))
	shared.Deps = []string{staticName}
	shared.WholeArchive = true
	artifacts.Shared = b.finish(cfg, shared, SharedLibrary, false).Output

	if testUniversal == "" {
		testUniversal = universal + ".Tests"
	}
	cfg, tests, err := b.prepare(testUniversal, gen.Executable, b.cfg.TestDir, nil)
	if err != nil {
		return artifacts, err
	}
	if len(testPackages) == 0 {
		testPackages = DefaultTestPackages
	}
	for _, ref := range testPackages {
		if _, err := cfg.AddPackage(ref); err != nil {
			return artifacts, err
		}
	}
	tests.Output = cfg.ArtifactPath(PlatformName(testUniversal, Executable, cfg.GOOS))
	tests.Deps = []string{staticName}
	artifacts.Tests = b.finish(cfg, tests, Executable, true).Output

	return artifacts, nil
}

// Targets lists the names of all targets handed to the engine so far
func (b *TargetBuilder) Targets() []string { return slices.Clone(b.added) }

// Build writes the engine's build file into the intermediate directory and runs the engine
func (b *TargetBuilder) Build() error {
	buildDir := b.cfg.IntermediatePath()
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return err
	}

	b.engine.SetCompiler(b.cfg.CC, b.cfg.CXX)
	out, err := b.engine.Generate(buildDir)
	if err != nil {
		return err
	}
	if out != "" {
		if err := os.WriteFile(filepath.Join(buildDir, b.engine.BuildFile()), []byte(out), 0644); err != nil {
			return err
		}
	}

	return b.engine.Invoke(buildDir)
}

// RunTests runs a unit test executable, writing its XML report next to it
func (b *TargetBuilder) RunTests(testExecutable string) (string, error) {
	results := filepath.Join(filepath.Dir(testExecutable), TestResultsFile)
	msg.Step("Testing", "%s", testExecutable)
	if err := b.Run(testExecutable, "--gtest_output=xml:"+results); err != nil {
		return results, fmt.Errorf("unit tests failed: %w", err)
	}
	return results, nil
}
