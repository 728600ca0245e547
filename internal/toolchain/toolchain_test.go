package toolchain

import (
	"errors"
	"io/fs"
	"os/exec"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapFS serves absolute slash paths out of an in-memory filesystem
type mapFS struct{ fsys fstest.MapFS }

func (m mapFS) Stat(name string) (fs.FileInfo, error) {
	return m.fsys.Stat(strings.TrimPrefix(name, "/"))
}

func (m mapFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return m.fsys.ReadDir(strings.TrimPrefix(name, "/"))
}

func fakeLocator(goos string, env map[string]string, onPath map[string]string, files ...string) *Locator {
	fsys := fstest.MapFS{}
	for _, f := range files {
		fsys[strings.TrimPrefix(f, "/")] = &fstest.MapFile{Data: []byte("exe")}
	}
	return &Locator{
		GOOS:   goos,
		Getenv: func(k string) string { return env[k] },
		LookPath: func(name string) (string, error) {
			if p, ok := onPath[name]; ok {
				return p, nil
			}
			return "", exec.ErrNotFound
		},
		FS:      mapFS{fsys},
		MSBuild: DefaultMSBuildTable,
		Godot:   DefaultGodotTable,
	}
}

var windowsEnv = map[string]string{
	"WinDir":            `C:\Windows`,
	"ProgramFiles":      `C:\Program Files`,
	"ProgramFiles(x86)": `C:\Program Files (x86)`,
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in   string
		want []int
		ok   bool
	}{
		{"gcc (Ubuntu 11.4.0-1ubuntu1~22.04) 11.4.0", []int{11, 4, 0}, true},
		{"Ubuntu clang version 14.0.0-1ubuntu1.1", []int{14, 0, 0}, true},
		{"Microsoft (R) C/C++ Optimizing Compiler Version 19.36.32532 for x64", []int{19, 36, 32532}, true},
		{"tcc version 0.9.27 (x86_64 Linux)", []int{0, 9, 27}, true},
		{"some tool 7", []int{7}, true},
		{"no digits here", nil, false},
		{"", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseVersion(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescribe(t *testing.T) {
	var gotArgs []string
	run := func(cmd string, args ...string) (string, error) {
		gotArgs = args
		return "g++ (GCC) 13.2.1 20230801\n", nil
	}
	d := Describe(run, "/usr/bin/g++")
	assert.Equal(t, "gcc", d.Name)
	assert.Equal(t, []string{"--version"}, gotArgs)
	assert.Equal(t, "13.2.1", d.VersionString())
	major, ok := d.Major()
	assert.True(t, ok)
	assert.Equal(t, 13, major)
}

func TestDescribeUnknownVersion(t *testing.T) {
	failing := func(cmd string, args ...string) (string, error) {
		return "", errors.New("exec: not started")
	}
	d := Describe(failing, "clang++")
	assert.Equal(t, "clang", d.Name)
	assert.False(t, d.Known())
	assert.Equal(t, UnknownVersion, d.VersionString())

	garbage := func(cmd string, args ...string) (string, error) { return "hello", nil }
	assert.False(t, Describe(garbage, "cc").Known())
}

func TestFamily(t *testing.T) {
	for exe, want := range map[string]string{
		"/usr/bin/g++":              "gcc",
		"gcc-12":                    "gcc",
		"x86_64-w64-mingw32-g++":    "gcc",
		"/usr/bin/clang++":          "clang",
		`C:/LLVM/bin/clang-cl.exe`:  "msvc",
		"cl.exe":                    "msvc",
		"icpx":                      "icx",
		"/opt/intel/bin/icpc":       "icc",
		"/usr/local/bin/exotic-cxx": "exotic-cxx",
	} {
		assert.Equal(t, want, Family(exe), exe)
	}
}

func TestFindCompiler(t *testing.T) {
	l := fakeLocator("linux", map[string]string{"CXX": "/opt/cxx"}, nil)
	cxx, err := l.FindCompiler(true)
	require.NoError(t, err)
	assert.Equal(t, "/opt/cxx", cxx)

	// CXX is used for C too when CC is unset
	cc, err := l.FindCompiler(false)
	require.NoError(t, err)
	assert.Equal(t, "/opt/cxx", cc)

	l = fakeLocator("linux", nil, map[string]string{"g++": "/usr/bin/g++", "gcc": "/usr/bin/gcc"})
	cxx, err = l.FindCompiler(true)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/g++", cxx)

	l = fakeLocator("linux", nil, nil)
	_, err = l.FindCompiler(true)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindMSBuildFromTable(t *testing.T) {
	l := fakeLocator("windows", windowsEnv, nil,
		"C:/Windows/Microsoft.NET/Framework64/v4.0.30319/MSBuild.exe",
		"C:/Windows/Microsoft.NET/Framework/v4.0.30319/MSBuild.exe",
	)

	p, err := l.FindMSBuild("4.0", false)
	require.NoError(t, err)
	assert.Equal(t, "C:/Windows/Microsoft.NET/Framework64/v4.0.30319/MSBuild.exe", p)

	p, err = l.FindMSBuild("4.0", true)
	require.NoError(t, err)
	assert.Equal(t, "C:/Windows/Microsoft.NET/Framework/v4.0.30319/MSBuild.exe", p)

	_, err = l.FindMSBuild("3.5", false)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindMSBuildScansVisualStudio(t *testing.T) {
	vs2019 := "C:/Program Files (x86)/Microsoft Visual Studio/2019/Community/msbuild/Current/Bin/amd64/MSBuild.exe"
	l := fakeLocator("windows", windowsEnv, nil, vs2019)

	p, err := l.FindMSBuild(VersionLatest, false)
	require.NoError(t, err)
	assert.Equal(t, vs2019, p)

	// an explicit version never triggers the scan
	_, err = l.FindMSBuild("4.0", false)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindMSBuildStandaloneDirectory(t *testing.T) {
	standalone := "C:/Program Files/MSBuild/12.0/Bin/MSBuild.exe"
	l := fakeLocator("windows", windowsEnv, nil, standalone)

	p, err := l.FindMSBuild(VersionSystem, true)
	require.NoError(t, err)
	assert.Equal(t, standalone, p)
}

func TestFindMSBuildFromSetupInstances(t *testing.T) {
	exe := "D:/VS/2022/BuildTools/MSBuild/Current/Bin/amd64/MSBuild.exe"
	l := fakeLocator("windows", windowsEnv, nil, exe)
	l.VisualStudioInstances = func() []string { return []string{"D:/VS/2022/BuildTools"} }

	p, err := l.FindMSBuild(VersionLatest, false)
	require.NoError(t, err)
	assert.Equal(t, exe, p)
}

func TestFindMSBuildPrefersPath(t *testing.T) {
	l := fakeLocator("linux", nil, map[string]string{"xbuild": "/usr/local/bin/xbuild", "msbuild": "/usr/local/bin/msbuild"}, "/usr/bin/msbuild")
	p, err := l.FindMSBuild(VersionSystem, false)
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/msbuild", p)
}

func TestFindMSBuildUnixFallback(t *testing.T) {
	l := fakeLocator("linux", nil, nil, "/usr/bin/xbuild")
	p, err := l.FindMSBuild(VersionLatest, false)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/xbuild", p)

	l = fakeLocator("linux", nil, nil)
	_, err = l.FindMSBuild(VersionLatest, false)
	require.ErrorIs(t, err, ErrNotFound)
	var locErr *LocateError
	require.ErrorAs(t, err, &locErr)
	assert.Equal(t, "msbuild", locErr.Tool)
}

func TestFindGodot(t *testing.T) {
	l := fakeLocator("linux", nil, nil,
		"/opt/Godot-3.1/bin/Godot_v3.1-stable_x11.64",
		"/opt/godot-3.0/Godot_v3.0.6-stable_linux_headless.64",
		"/opt/other/godot_headless.x11.opt.tools.64",
	)

	p, err := l.FindGodot("3.1")
	require.NoError(t, err)
	assert.Equal(t, "/opt/Godot-3.1/bin/Godot_v3.1-stable_x11.64", p)

	p, err = l.FindGodot("3.0")
	require.NoError(t, err)
	assert.Equal(t, "/opt/godot-3.0/Godot_v3.0.6-stable_linux_headless.64", p)

	// "other" does not contain "godot"
	_, err = l.FindGodot("git")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = l.FindGodot("4.0")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindGodotWindows(t *testing.T) {
	exe := "C:/Program Files/Godot/Godot_v3.1-stable_win64.exe"
	l := fakeLocator("windows", windowsEnv, nil, exe)
	p, err := l.FindGodot("3.1")
	require.NoError(t, err)
	assert.Equal(t, exe, p)
}

func TestFindBlender(t *testing.T) {
	l := fakeLocator("linux", nil, nil, "/opt/blender-2.79/blender")
	p, err := l.FindBlender()
	require.NoError(t, err)
	assert.Equal(t, "/opt/blender-2.79/blender", p)

	l = fakeLocator("windows", windowsEnv, nil, "C:/Program Files/Blender Foundation/Blender 2.79/blender.exe")
	p, err = l.FindBlender()
	require.NoError(t, err)
	assert.Equal(t, "C:/Program Files/Blender Foundation/Blender 2.79/blender.exe", p)

	l = fakeLocator("linux", nil, nil)
	_, err = l.FindBlender()
	require.ErrorIs(t, err, ErrNotFound)
}
