package builder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qobs-build/nubs/internal/toolchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, dir := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir)), 0755))
	}
}

var gcc11 = toolchain.Descriptor{Name: "gcc", Path: "/usr/bin/g++", Version: []int{11, 4, 0}}

func testConfiguration(t *testing.T) *Configuration {
	t.Helper()
	cfg := NewConfiguration(t.TempDir())
	cfg.GOOS = "linux"
	cfg.Arch = ArchX64
	cfg.Mode = ModeDebug
	cfg.Toolchain = gcc11
	cfg.CC, cfg.CXX = "gcc", "g++"
	return cfg
}

func TestResolvePackageExactBuildDirectory(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "include", "gcc-11-x64-debug", "lib")

	key := KeyFor(gcc11, ArchX64, ModeDebug)
	pkg, err := ResolvePackage(PackageReference{Name: "zlib", Dir: root}, key)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "include"), pkg.IncludeDir)
	assert.Equal(t, filepath.Join(root, "gcc-11-x64-debug"), pkg.LibraryDir)
	assert.Equal(t, []string{"zlib"}, pkg.Libraries)
}

func TestResolvePackageIncludeCandidates(t *testing.T) {
	key := KeyFor(gcc11, ArchX64, ModeDebug)

	root := t.TempDir()
	mkdirs(t, root, "Include", "boost", "lib")
	pkg, err := ResolvePackage(PackageReference{Name: "boost", Dir: root}, key)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Include"), pkg.IncludeDir)

	root = t.TempDir()
	mkdirs(t, root, "boost", "lib")
	pkg, err = ResolvePackage(PackageReference{Name: "boost", Dir: root}, key)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "boost"), pkg.IncludeDir)
}

func TestResolvePackageOlderMajorVersion(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "include", "gcc-9-x64-debug", "gcc-10-x64-release", "lib")

	pkg, err := ResolvePackage(PackageReference{Name: "fmt", Dir: root}, KeyFor(gcc11, ArchX64, ModeDebug))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "gcc-9-x64-debug"), pkg.LibraryDir)
}

func TestResolvePackageFallsBackToLib(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "include", "lib", "clang-11-x64-debug", "gcc-11-x86-debug")

	pkg, err := ResolvePackage(PackageReference{Name: "fmt", Dir: root, Libraries: []string{"fmt", "fmt-extra"}}, KeyFor(gcc11, ArchX64, ModeDebug))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "lib"), pkg.LibraryDir)
	assert.Equal(t, []string{"fmt", "fmt-extra"}, pkg.Libraries)

	// unknown compiler versions go straight to lib
	pkg, err = ResolvePackage(PackageReference{Name: "fmt", Dir: root}, KeyFor(toolchain.Descriptor{Name: "gcc"}, ArchX64, ModeDebug))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "lib"), pkg.LibraryDir)
}

func TestLibraryCandidates(t *testing.T) {
	got := LibraryCandidates("/r", BuildDirKey{Toolchain: "gcc", Major: 3, Arch: ArchARM, Mode: ModeRelease})
	want := []string{"gcc-3-arm-release", "gcc-2-arm-release", "gcc-1-arm-release", "lib"}
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, filepath.Join("/r", want[i]), got[i])
	}
}

func TestResolvePackageNotFound(t *testing.T) {
	key := KeyFor(gcc11, ArchX64, ModeDebug)

	root := t.TempDir()
	mkdirs(t, root, "docs", "gcc-11-x86-debug")
	_, err := ResolvePackage(PackageReference{Name: "zlib", Dir: root}, key)
	require.ErrorIs(t, err, ErrDirectoryNotFound)
	var perr *PackageError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "zlib", perr.Package)
	assert.Contains(t, perr.Candidates, filepath.Join(root, "include"))
	assert.Contains(t, perr.Candidates, filepath.Join(root, "lib"))
	assert.Contains(t, perr.Error(), "gcc-11-x64-debug")
}

func TestResolvePackageIncludeOnly(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "include")

	pkg, err := ResolvePackage(PackageReference{Name: "zlib", Dir: root}, KeyFor(gcc11, ArchX64, ModeDebug))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "include"), pkg.IncludeDir)
	assert.Empty(t, pkg.LibraryDir)
	assert.Equal(t, []string{"zlib"}, pkg.Libraries)
}

func TestResolvePackageLibraryOnly(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "gcc-11-x64-debug")

	pkg, err := ResolvePackage(PackageReference{Name: "zlib", Dir: root}, KeyFor(gcc11, ArchX64, ModeDebug))
	require.NoError(t, err)
	assert.Empty(t, pkg.IncludeDir)
	assert.Equal(t, filepath.Join(root, "gcc-11-x64-debug"), pkg.LibraryDir)
	assert.Equal(t, []string{"zlib"}, pkg.Libraries)
}

func TestResolvePackageHeaderOnly(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "include")

	pkg, err := ResolvePackage(PackageReference{Name: "glm", Dir: root, HeaderOnly: true}, KeyFor(gcc11, ArchX64, ModeDebug))
	require.NoError(t, err)
	assert.Empty(t, pkg.LibraryDir)
	assert.Empty(t, pkg.Libraries)

	_, err = ResolvePackage(PackageReference{Name: "glm", Dir: t.TempDir(), HeaderOnly: true}, KeyFor(gcc11, ArchX64, ModeDebug))
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
}

func TestAddPackageLeavesConfigurationUntouchedOnFailure(t *testing.T) {
	cfg := testConfiguration(t)
	refs := cfg.Path(cfg.ReferencesDir)
	mkdirs(t, refs, "zlib/include", "zlib/gcc-11-x64-debug", "broken/docs", "prebuilt/lib")

	_, err := cfg.AddPackage(PackageReference{Name: "zlib"})
	require.NoError(t, err)

	before := cfg.Clone()
	_, err = cfg.AddPackage(PackageReference{Name: "broken"})
	require.ErrorIs(t, err, ErrDirectoryNotFound)
	assert.Equal(t, before, cfg)

	assert.Equal(t, []string{filepath.Join(refs, "zlib", "include")}, cfg.IncludeDirs)
	assert.Equal(t, []string{filepath.Join(refs, "zlib", "gcc-11-x64-debug")}, cfg.LibraryDirs)
	assert.Equal(t, []string{"zlib"}, cfg.Libraries)

	// a package with only libraries adds no include directory
	_, err = cfg.AddPackage(PackageReference{Name: "prebuilt"})
	require.NoError(t, err)
	assert.Len(t, cfg.IncludeDirs, 1)
	assert.Equal(t, filepath.Join(refs, "prebuilt", "lib"), cfg.LibraryDirs[1])
	assert.Equal(t, []string{"zlib", "prebuilt"}, cfg.Libraries)

	// registering twice does not duplicate anything
	_, err = cfg.AddPackage(PackageReference{Name: "zlib"})
	require.NoError(t, err)
	assert.Len(t, cfg.IncludeDirs, 1)
	assert.Len(t, cfg.Libraries, 2)
}

func TestAddPackageExplicitDirectory(t *testing.T) {
	cfg := testConfiguration(t)
	mkdirs(t, cfg.ProjectDir, "third_party/json/include")

	pkg, err := cfg.AddPackage(PackageReference{Name: "json", Dir: "third_party/json", HeaderOnly: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.ProjectDir, "third_party", "json", "include"), pkg.IncludeDir)
	assert.Empty(t, cfg.LibraryDirs)
}
