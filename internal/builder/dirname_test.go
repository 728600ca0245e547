package builder

import (
	"testing"

	"github.com/qobs-build/nubs/internal/toolchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDirKeyString(t *testing.T) {
	key := KeyFor(toolchain.Descriptor{Name: "gcc", Version: []int{11, 4, 0}}, ArchX64, ModeDebug)
	assert.Equal(t, "gcc-11-x64-debug", key.String())

	key = KeyFor(toolchain.Descriptor{Name: "clang"}, ArchARMHF, ModeRelease)
	assert.Equal(t, "clang-unknown-armhf-release", key.String())
}

func TestBuildDirNameIsInjective(t *testing.T) {
	var keys []BuildDirKey
	for _, tc := range []string{"gcc", "clang", "x86_64-w64-mingw32-gcc", "gcc-x64", "msvc"} {
		for _, major := range []int{-1, 0, 1, 11, 111} {
			for arch := range Arches {
				if arch == "amd64" {
					continue
				}
				for _, mode := range []Mode{ModeDebug, ModeRelease} {
					keys = append(keys, BuildDirKey{Toolchain: tc, Major: major, Arch: Arch(arch), Mode: mode})
				}
			}
		}
	}

	seen := make(map[string]BuildDirKey, len(keys))
	for _, key := range keys {
		name := key.String()
		if other, dup := seen[name]; dup {
			t.Fatalf("%+v and %+v both map to %q", other, key, name)
		}
		seen[name] = key

		parsed, err := ParseBuildDirName(name)
		require.NoError(t, err, name)
		assert.Equal(t, key, parsed)
	}
}

func TestParseBuildDirNameErrors(t *testing.T) {
	for _, name := range []string{"", "gcc", "gcc-11-x64", "gcc-11-x64-fast", "gcc-11-sparc-debug", "gcc-eleven-x64-debug", "-11-x64-debug"} {
		_, err := ParseBuildDirName(name)
		assert.Error(t, err, name)
	}

	_, err := ParseBuildDirName("gcc-11-x64-fast")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestParseBuildDirNameRejectsAliases(t *testing.T) {
	_, err := ParseBuildDirName("gcc-11-amd64-debug")
	assert.ErrorIs(t, err, ErrUnknownArch)
	_, err = ParseBuildDirName("gcc-11-aarch64-debug")
	assert.ErrorIs(t, err, ErrUnknownArch)
	_, err = ParseBuildDirName("gcc-11-x64-Debug")
	assert.ErrorIs(t, err, ErrUnknownMode)

	key, err := ParseBuildDirName("gcc-11-x64-debug")
	require.NoError(t, err)
	assert.Equal(t, KeyFor(gcc11, ArchX64, ModeDebug), key)
}

func TestParseArch(t *testing.T) {
	for in, want := range map[string]Arch{
		"x86": ArchX86, "386": ArchX86, "i686": ArchX86,
		"x64": ArchX64, "amd64": ArchX64, "X86_64": ArchX64,
		"arm": ArchARM, "armhf": ArchARMHF, "aarch64": ArchARM64, "any": ArchAny,
	} {
		got, err := ParseArch(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseArch("sparc")
	assert.ErrorIs(t, err, ErrUnknownArch)

	_, err = ParseMode("fast")
	assert.ErrorIs(t, err, ErrUnknownMode)
	assert.Equal(t, "Release", ModeRelease.Title())
}
