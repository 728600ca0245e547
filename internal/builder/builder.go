// Package builder resolves a project's build configuration: toolchain, naming, packages
// and flags, and turns it into targets for a build engine.
package builder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/qobs-build/nubs/internal/builder/gen"
	"github.com/qobs-build/nubs/internal/msg"
	"github.com/qobs-build/nubs/internal/toolchain"
)

var errNoTests = errors.New("project has no unit tests (project.tests is false)")

// Options are the build-tool options of a build invocation
type Options struct {
	Arch            Arch
	Mode            Mode
	IntermediateDir string
	ArtifactDir     string
	Engine          string
	MSBuildVersion  string
}

// Artifacts are the files a build produced
type Artifacts struct {
	Primary string // the shared library, static library or executable
	Tests   string // unit test executable, if any
}

type Builder struct {
	project *ProjectFile
	basedir string
	env     ConfigEnv
	opts    Options

	Locator  *toolchain.Locator
	Describe toolchain.Runner
	// NewEngine creates the build engine; replaced in tests
	NewEngine func(name string, s gen.Settings) (gen.Engine, error)
}

func NewBuilderInDirectory(path string, opts Options) (*Builder, error) {
	var err error
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	if opts.Arch == "" {
		opts.Arch = HostArch()
	}
	if opts.Mode == "" {
		opts.Mode = ModeDebug
	}

	env, err := NewConfigEnv(path, opts.Arch, opts.Mode)
	if err != nil {
		return nil, err
	}
	project, err := ParseProjectFileFromFile(filepath.Join(path, ProjectFileName), env)
	if err != nil {
		return nil, err
	}

	locator := toolchain.NewLocator()
	locator.Getenv = env.Getenv

	return &Builder{
		project:   project,
		basedir:   path,
		env:       env,
		opts:      opts,
		Locator:   locator,
		Describe:  toolchain.ExecRunner,
		NewEngine: gen.New,
	}, nil
}

// Project returns the parsed project file
func (b *Builder) Project() *ProjectFile { return b.project }

// Configure locates the toolchain and builds the configuration described by the project file
func (b *Builder) Configure() (*Configuration, error) {
	cfg := &Configuration{
		GOOS:            b.env.TargetOS,
		Arch:            b.opts.Arch,
		Mode:            b.opts.Mode,
		ProjectDir:      b.basedir,
		SourceDir:       b.project.Layout.Source,
		HeaderDir:       b.project.Layout.Include,
		TestDir:         b.project.Layout.Tests,
		ReferencesDir:   b.project.Layout.References,
		IntermediateDir: b.opts.IntermediateDir,
		ArtifactDir:     b.opts.ArtifactDir,
	}
	cfg.applyDefaults()

	if b.opts.Engine == gen.EngineVS2022 {
		cfg.Toolchain = toolchain.Descriptor{Name: "msvc", Version: []int{17}}
	} else {
		cc, err := b.Locator.FindCompiler(false)
		if err != nil {
			return nil, err
		}
		cxx, err := b.Locator.FindCompiler(true)
		if err != nil {
			return nil, err
		}
		cfg.CC, cfg.CXX = cc, cxx
		cfg.Toolchain = toolchain.Describe(b.Describe, cxx)
		if !cfg.Toolchain.Known() {
			msg.Warn("could not determine the version of %s", cxx)
		}
	}

	target := b.project.Target
	cfg.Cflags = append(cfg.Cflags, target.Cflags...)
	cfg.Cxxflags = append(cfg.Cxxflags, target.Cxxflags...)
	cfg.Ldflags = append(cfg.Ldflags, target.Ldflags...)
	cfg.AddDefine(defines(target.Defines)...)
	cfg.AddLibrary(target.Links...)

	if profile, ok := b.project.Profile[string(cfg.Mode)]; ok {
		cfg.Cflags = append(cfg.Cflags, profile.Cflags...)
		cfg.Cxxflags = append(cfg.Cxxflags, profile.Cxxflags...)
		cfg.Ldflags = append(cfg.Ldflags, profile.Ldflags...)
		cfg.AddDefine(defines(profile.Defines)...)
	}

	if b.project.Project.StampRevision {
		hash, ok, err := Revision(b.basedir)
		if err != nil {
			return nil, err
		}
		if ok {
			cfg.AddDefine(RevisionDefine + `="` + hash + `"`)
		} else {
			msg.Warn("%s is not in a git repository with commits, %s is not defined", b.basedir, RevisionDefine)
		}
	}

	for _, ref := range b.project.References(false) {
		if _, err := cfg.AddPackage(ref); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// defines renders a defines table as NAME or NAME=VALUE, sorted by name
func defines(table map[string]string) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		if v := table[name]; v != "" {
			out = append(out, name+"="+v)
		} else {
			out = append(out, name)
		}
	}
	return out
}

// sourceOverrides expands the target.sources patterns, or returns nil if there are none
func (b *Builder) sourceOverrides() ([]string, error) {
	patterns := b.project.Target.Sources
	if len(patterns) == 0 {
		return nil, nil
	}

	files := []string{}
	fsys := os.DirFS(b.basedir)
	for _, pat := range patterns {
		if filepath.IsAbs(pat) {
			files = appendUnique(files, filepath.Clean(pat))
			continue
		}
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(pat), doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad source pattern %q: %w", pat, err)
		}
		for _, match := range matches {
			files = appendUnique(files, filepath.Join(b.basedir, filepath.FromSlash(match)))
		}
	}
	return files, nil
}

func (b *Builder) engineSettings(cfg *Configuration) gen.Settings {
	platform := "x64"
	switch cfg.Arch {
	case ArchX86:
		platform = "Win32"
	case ArchARM, ArchARMHF:
		platform = "ARM"
	case ArchARM64:
		platform = "ARM64"
	}
	version := b.opts.MSBuildVersion
	if version == "" {
		version = b.env.Getenv("MSBUILD_VERSION")
	}
	return gen.Settings{
		Configuration:  cfg.Mode.Title(),
		Platform:       platform,
		MSBuildVersion: version,
		GOOS:           cfg.GOOS,
		Locator:        b.Locator,
	}
}

// Targets configures the project and hands its targets to a new engine without building
func (b *Builder) Targets() (*TargetBuilder, Artifacts, error) {
	var artifacts Artifacts

	cfg, err := b.Configure()
	if err != nil {
		return nil, artifacts, err
	}
	if err := b.project.RunBuildScript(b.env); err != nil {
		return nil, artifacts, err
	}

	engine, err := b.NewEngine(b.opts.Engine, b.engineSettings(cfg))
	if err != nil {
		return nil, artifacts, err
	}
	tb := NewTargetBuilder(cfg, engine)

	sources, err := b.sourceOverrides()
	if err != nil {
		return nil, artifacts, err
	}

	name := b.project.Project.Name
	switch {
	case b.project.Project.Kind == KindLibrary && b.project.Project.Tests:
		if sources != nil {
			msg.Warn("target.sources is ignored for libraries with tests")
		}
		testPackages := b.project.References(true)
		libs, err := tb.LibraryWithTests(name, b.project.Project.TestName, testPackages...)
		if err != nil {
			return nil, artifacts, err
		}
		artifacts.Primary, artifacts.Tests = libs.Shared, libs.Tests
	case b.project.Project.Kind == KindLibrary:
		artifacts.Primary, err = tb.SharedLibrary(name, sources)
	case b.project.Project.Kind == KindStaticLibrary:
		artifacts.Primary, err = tb.StaticLibrary(name, sources)
	default:
		artifacts.Primary, err = tb.Executable(name, sources)
	}
	if err != nil {
		return nil, artifacts, err
	}

	return tb, artifacts, nil
}

// Build configures the project and builds all of its targets
func (b *Builder) Build() (Artifacts, error) {
	tb, artifacts, err := b.Targets()
	if err != nil {
		return artifacts, err
	}
	msg.Step("Building", "%s (%s)", b.project.Project.Name, tb.Configuration().Key())
	if err := tb.Build(); err != nil {
		return artifacts, err
	}
	return artifacts, nil
}

// Test builds the project and runs its unit tests, returning the path of the XML report
func (b *Builder) Test() (string, error) {
	if !b.project.Project.Tests || b.project.Project.Kind != KindLibrary {
		return "", errNoTests
	}

	tb, artifacts, err := b.Targets()
	if err != nil {
		return "", err
	}
	if err := tb.Build(); err != nil {
		return "", err
	}
	return tb.RunTests(artifacts.Tests)
}
