package gen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qobs-build/nubs/internal/toolchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for name := range Engines {
		g, err := New(name, Settings{GOOS: "linux"})
		require.NoError(t, err, name)
		assert.NotEmpty(t, g.BuildFile())
	}

	_, err := New("make", Settings{})
	assert.Error(t, err)
}

func TestNinjaGenerate(t *testing.T) {
	dir := newProject(t)
	g := NewNinjaGen("linux")
	g.SetCompiler("gcc", "g++")
	libraryWithTests(g, dir)

	out, err := g.Generate(filepath.Join(dir, "obj"))
	require.NoError(t, err)

	archive := quote(filepath.Join(dir, "obj", "libDemo.a"))
	assert.Contains(t, out, "cxx = g++\n")
	assert.Contains(t, out, "build "+archive+": ar ")
	assert.Contains(t, out, "build "+quote(filepath.Join(dir, "bin", "libDemo.so"))+": link | "+archive+"\n")
	assert.Contains(t, out, "  deps = -Wl,--whole-archive "+archive+" -Wl,--no-whole-archive\n")
	assert.Contains(t, out, ": cc "+quote(filepath.Join(dir, "Source", "sub", "b.c"))+" | ")
	assert.Contains(t, out, "  ld = $cxx\n")
}

func TestNinjaQuoting(t *testing.T) {
	assert.Equal(t, "C$:/Program$ Files/x.c", quote("C:/Program Files/x.c"))
	assert.Equal(t, `-DNAME=a$$b "-DMSG=\"hi there\""`, quoteFlags([]string{`-DNAME=a$b`, `-DMSG="hi there"`}))
}

func TestVS2022Generate(t *testing.T) {
	dir := newProject(t)
	buildDir := filepath.Join(dir, "obj")
	g := NewVS2022Gen(Settings{Configuration: "Release", Platform: "Win32"})
	libraryWithTests(g, dir)

	sln, err := g.Generate(buildDir)
	require.NoError(t, err)

	assert.Equal(t, "Demo.Tests.sln", g.BuildFile())
	assert.Contains(t, sln, "Release|Win32 = Release|Win32")
	assert.NotContains(t, sln, "Debug|")
	assert.Equal(t, 3, strings.Count(sln, "EndProject"))

	data, err := os.ReadFile(filepath.Join(buildDir, "Demo", "Demo.vcxproj"))
	require.NoError(t, err)
	proj := string(data)
	assert.Contains(t, proj, "<ConfigurationType>DynamicLibrary</ConfigurationType>")
	assert.Contains(t, proj, "/WHOLEARCHIVE:libDemo.a")
	assert.Contains(t, proj, "<TargetExt>.so</TargetExt>")
	assert.Contains(t, proj, "<Optimization>MaxSpeed</Optimization>")

	data, err = os.ReadFile(filepath.Join(buildDir, "Demo.Tests", "Demo.Tests.vcxproj"))
	require.NoError(t, err)
	proj = string(data)
	assert.Contains(t, proj, "<ConfigurationType>Application</ConfigurationType>")
	assert.Contains(t, proj, "gtest.lib;gtest_main.lib;%(AdditionalDependencies)")
	assert.Contains(t, proj, "<Name>Demo.static</Name>")

	assert.FileExists(t, filepath.Join(buildDir, "Demo.static", "Demo.static.vcxproj.filters"))
}

func TestVS2022InvokeUsesSettingsLocator(t *testing.T) {
	dir := newProject(t)
	locator := &toolchain.Locator{
		GOOS:   "linux",
		Getenv: func(string) string { return "" },
		LookPath: func(name string) (string, error) {
			if name == "msbuild" {
				return "/opt/dotnet/msbuild", nil
			}
			return "", toolchain.ErrNotFound
		},
	}
	g := NewVS2022Gen(Settings{Configuration: "Debug", Platform: "x64", Locator: locator})
	libraryWithTests(g, dir)

	var ran []string
	g.Run = func(cmd string, args ...string) error {
		ran = append([]string{cmd}, args...)
		return nil
	}

	buildDir := filepath.Join(dir, "obj")
	require.NoError(t, g.Invoke(buildDir))
	assert.Equal(t, []string{
		"/opt/dotnet/msbuild",
		filepath.Join(buildDir, "Demo.Tests.sln"),
		"/p:Configuration=Debug",
		"/p:Platform=x64",
	}, ran)
}

func TestObjectPath(t *testing.T) {
	tg := Target{SourceRoot: "/p/Source", ObjectDir: "/p/obj/x"}
	assert.Equal(t, filepath.FromSlash("/p/obj/x/sub/a.cpp.o"), objectPath(tg, filepath.FromSlash("/p/Source/sub/a.cpp"), ".o"))
	assert.Equal(t, filepath.FromSlash("/p/obj/x/gen.c.o"), objectPath(tg, filepath.FromSlash("/elsewhere/gen.c"), ".o"))
}
