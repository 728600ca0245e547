package builder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/qobs-build/nubs/internal/builder/gen"
	"github.com/qobs-build/nubs/internal/toolchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gccVersion(cmd string, args ...string) (string, error) {
	return "g++ (Ubuntu 11.4.0-1ubuntu1~22.04) 11.4.0\nCopyright (C) 2021 Free Software Foundation, Inc.\n", nil
}

// newTestBuilder writes a project file and a .env selecting the compilers,
// and returns a builder whose engine is fake
func newTestBuilder(t *testing.T, project string, opts Options) (*Builder, *fakeEngine) {
	t.Helper()
	dir := t.TempDir()
	touch(t, dir, "Source/Demo.cpp", "Include/Demo.h", "Tests/DemoTests.cpp")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectFileName), []byte(project), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DotEnvFile), []byte("CC=gcc-11\nCXX=g++-11\n"), 0644))

	b, err := NewBuilderInDirectory(dir, opts)
	require.NoError(t, err)

	engine := &fakeEngine{}
	b.Describe = gccVersion
	b.NewEngine = func(name string, s gen.Settings) (gen.Engine, error) {
		return engine, nil
	}
	return b, engine
}

func TestBuilderConfigure(t *testing.T) {
	b, _ := newTestBuilder(t, `
[project]
name = "Demo"

[target]
defines = { B = "2", A = "" }
links = ["m"]

[profile.release]
cflags = ["-flto"]
`, Options{Arch: ArchX64, Mode: ModeRelease})

	cfg, err := b.Configure()
	require.NoError(t, err)

	assert.Equal(t, "gcc-11", cfg.CC)
	assert.Equal(t, "g++-11", cfg.CXX)
	assert.Equal(t, "gcc", cfg.Toolchain.Name)
	assert.Equal(t, []int{11, 4, 0}, cfg.Toolchain.Version)
	assert.Equal(t, "gcc-11-x64-release", cfg.Key().String())
	assert.Equal(t, []string{"A", "B=2"}, cfg.Defines)
	assert.Equal(t, []string{"m"}, cfg.Libraries)
	assert.Equal(t, []string{"-flto"}, cfg.Cflags)
}

func TestBuilderConfigureMissingPackage(t *testing.T) {
	b, _ := newTestBuilder(t, `
[project]
name = "Demo"

[packages.zlib]
`, Options{})

	_, err := b.Configure()
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
}

func TestBuilderConfigureUnknownCompilerVersion(t *testing.T) {
	b, _ := newTestBuilder(t, "[project]\nname = \"Demo\"\n", Options{Arch: ArchARM64})
	b.Describe = func(string, ...string) (string, error) { return "", os.ErrNotExist }

	cfg, err := b.Configure()
	require.NoError(t, err)
	assert.Equal(t, "gcc-unknown-arm64-debug", cfg.Key().String())
}

func TestBuilderBuildExecutable(t *testing.T) {
	b, engine := newTestBuilder(t, `
[project]
name = "Demo.Tool"
kind = "executable"

[target]
sources = ["Source/**/*.cpp"]
`, Options{Arch: ArchX64, IntermediateDir: "build/tmp", ArtifactDir: "build/out"})

	artifacts, err := b.Build()
	require.NoError(t, err)

	want := filepath.Join(b.basedir, "build", "out", "gcc-11-x64-debug", "DemoTool")
	if b.env.TargetOS == "windows" {
		want = filepath.Join(b.basedir, "build", "out", "gcc-11-x64-debug", "Demo.Tool.exe")
	}
	assert.Equal(t, want, artifacts.Primary)
	assert.Empty(t, artifacts.Tests)

	require.Len(t, engine.targets, 1)
	assert.Equal(t, []string{filepath.Join(b.basedir, "Source", "Demo.cpp")}, engine.targets[0].Sources)
	assert.Equal(t, filepath.Join(b.basedir, "build", "tmp", "gcc-11-x64-debug"), engine.buildDir)
}

func TestBuilderTest(t *testing.T) {
	b, engine := newTestBuilder(t, `
[project]
name = "Demo"
tests = true

[packages.gtest]
tests-only = true
libs = ["gtest", "gtest_main"]
path = "gtest"
`, Options{Arch: ArchX64})
	mkdirs(t, b.basedir, "gtest/include", "gtest/lib")

	tb, artifacts, err := b.Targets()
	require.NoError(t, err)
	var ran string
	tb.Run = func(cmd string, args ...string) error {
		ran = cmd
		return nil
	}
	require.NoError(t, tb.Build())
	results, err := tb.RunTests(artifacts.Tests)
	require.NoError(t, err)

	assert.Equal(t, artifacts.Tests, ran)
	assert.Equal(t, filepath.Join(filepath.Dir(artifacts.Tests), TestResultsFile), results)
	assert.Len(t, engine.targets, 3)
	assert.Equal(t, []string{"gtest", "gtest_main"}, engine.target(t, "Demo.Tests").Libraries)
	assert.Empty(t, engine.target(t, "Demo").Libraries)
}

func TestBuilderTestWithoutTests(t *testing.T) {
	b, _ := newTestBuilder(t, "[project]\nname = \"Demo\"\n", Options{})
	_, err := b.Test()
	assert.ErrorIs(t, err, errNoTests)
}

func TestBuilderNoCompiler(t *testing.T) {
	b, _ := newTestBuilder(t, "[project]\nname = \"Demo\"\n", Options{})
	b.Locator = &toolchain.Locator{
		GOOS:     "linux",
		Getenv:   func(string) string { return "" },
		LookPath: func(string) (string, error) { return "", os.ErrNotExist },
	}
	_, err := b.Configure()
	assert.ErrorIs(t, err, toolchain.ErrNotFound)
}

func TestRevision(t *testing.T) {
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	_, ok, err := Revision(dir)
	require.NoError(t, err)
	assert.False(t, ok, "no commits yet")

	touch(t, dir, "Source/a.cpp")
	w, err := repo.Worktree()
	require.NoError(t, err)
	_, err = w.Add("Source/a.cpp")
	require.NoError(t, err)
	commit, err := w.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Nubs", Email: "nubs@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	hash, ok, err := Revision(filepath.Join(dir, "Source"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, commit.String(), hash)
}

func TestBuilderStampsRevision(t *testing.T) {
	b, _ := newTestBuilder(t, "[project]\nname = \"Demo\"\nstamp-revision = true\n", Options{})

	repo, err := git.PlainInit(b.basedir, false)
	require.NoError(t, err)
	w, err := repo.Worktree()
	require.NoError(t, err)
	_, err = w.Add(ProjectFileName)
	require.NoError(t, err)
	commit, err := w.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Nubs", Email: "nubs@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	cfg, err := b.Configure()
	require.NoError(t, err)
	require.Len(t, cfg.Defines, 1)
	assert.True(t, strings.HasPrefix(cfg.Defines[0], RevisionDefine+`="`))
	assert.Contains(t, cfg.Defines[0], commit.String())
}

func TestBuilderEngineSettingsUseProjectEnvironment(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "Source/Demo.cpp")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectFileName), []byte("[project]\nname = \"Demo\"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DotEnvFile), []byte("MSBUILD_VERSION=4.0\nWinDir=C:\\Windows\n"), 0644))

	b, err := NewBuilderInDirectory(dir, Options{Arch: ArchX86, Mode: ModeRelease, Engine: gen.EngineVS2022})
	require.NoError(t, err)

	var settings gen.Settings
	b.NewEngine = func(name string, s gen.Settings) (gen.Engine, error) {
		settings = s
		return &fakeEngine{}, nil
	}
	_, _, err = b.Targets()
	require.NoError(t, err)

	assert.Equal(t, "4.0", settings.MSBuildVersion)
	assert.Equal(t, "Win32", settings.Platform)
	assert.Equal(t, "Release", settings.Configuration)
	require.Same(t, b.Locator, settings.Locator)
	assert.Equal(t, `C:\Windows`, settings.Locator.Getenv("WinDir"))
}
