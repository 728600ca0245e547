package builder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qobs-build/nubs/internal/toolchain"
)

const buildDirSeparator = "-"

// BuildDirKey identifies one toolchain/architecture/mode combination
type BuildDirKey struct {
	Toolchain string
	Major     int // negative if the toolchain version is unknown
	Arch      Arch
	Mode      Mode
}

// KeyFor builds the key of a toolchain descriptor
func KeyFor(tc toolchain.Descriptor, arch Arch, mode Mode) BuildDirKey {
	major, ok := tc.Major()
	if !ok {
		major = -1
	}
	return BuildDirKey{Toolchain: tc.Name, Major: major, Arch: arch, Mode: mode}
}

func (k BuildDirKey) major() string {
	if k.Major < 0 {
		return toolchain.UnknownVersion
	}
	return strconv.Itoa(k.Major)
}

// String joins the key into a directory name such as gcc-11-x64-debug.
//
// Only the toolchain name may contain the separator. The three trailing fields never do,
// so splitting from the right always recovers the key and distinct keys never share a name.
func (k BuildDirKey) String() string {
	return strings.Join([]string{k.Toolchain, k.major(), string(k.Arch), string(k.Mode)}, buildDirSeparator)
}

// WithMajor returns a copy of the key for another major version of the same toolchain
func (k BuildDirKey) WithMajor(major int) BuildDirKey {
	k.Major = major
	return k
}

// ParseBuildDirName is the inverse of BuildDirKey.String
func ParseBuildDirName(name string) (BuildDirKey, error) {
	parts := strings.Split(name, buildDirSeparator)
	if len(parts) < 4 {
		return BuildDirKey{}, fmt.Errorf("malformed build directory name %q", name)
	}
	n := len(parts)

	// only the spellings String produces are accepted, aliases would not round-trip
	mode, err := ParseMode(parts[n-1])
	if err != nil {
		return BuildDirKey{}, err
	}
	if string(mode) != parts[n-1] {
		return BuildDirKey{}, fmt.Errorf("%w %q in %q, expected %q", ErrUnknownMode, parts[n-1], name, mode)
	}
	arch, err := ParseArch(parts[n-2])
	if err != nil {
		return BuildDirKey{}, err
	}
	if string(arch) != parts[n-2] {
		return BuildDirKey{}, fmt.Errorf("%w %q in %q, expected %q", ErrUnknownArch, parts[n-2], name, arch)
	}
	major := -1
	if parts[n-3] != toolchain.UnknownVersion {
		major, err = strconv.Atoi(parts[n-3])
		if err != nil || major < 0 {
			return BuildDirKey{}, fmt.Errorf("malformed major version %q in %q", parts[n-3], name)
		}
	}

	tc := strings.Join(parts[:n-3], buildDirSeparator)
	if tc == "" {
		return BuildDirKey{}, fmt.Errorf("missing toolchain name in %q", name)
	}

	return BuildDirKey{
		Toolchain: tc,
		Major:     major,
		Arch:      arch,
		Mode:      mode,
	}, nil
}
