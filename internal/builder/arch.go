package builder

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

var (
	ErrUnknownArch = errors.New("unknown architecture")
	ErrUnknownMode = errors.New("unknown build mode")
)

// Arch is the target architecture of a build
type Arch string

const (
	ArchX86   Arch = "x86"
	ArchX64   Arch = "x64"
	ArchARM   Arch = "arm"
	ArchARMHF Arch = "armhf"
	ArchARM64 Arch = "arm64"
	ArchAny   Arch = "any"
)

// Arches lists every accepted architecture name, aliases included
var Arches = map[string]string{
	"x86":   "Intel x86, 32 bits",
	"x64":   "AMD64 / x86_64, 64 bits",
	"amd64": "alias of x64",
	"arm":   "ARM 32 bits, soft float",
	"armhf": "ARM 32 bits, hard float",
	"arm64": "ARM 64 bits",
	"any":   "no architecture specific flags",
}

// ParseArch accepts the architecture names above plus the usual GOARCH/uname spellings
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(s) {
	case "x86", "386", "i386", "i686", "win32":
		return ArchX86, nil
	case "x64", "amd64", "x86_64":
		return ArchX64, nil
	case "arm", "armel":
		return ArchARM, nil
	case "armhf":
		return ArchARMHF, nil
	case "arm64", "aarch64":
		return ArchARM64, nil
	case "any", "anycpu":
		return ArchAny, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownArch, s)
}

// HostArch is the architecture of the running machine, or ArchAny if it has no name here
func HostArch() Arch {
	if arch, err := ParseArch(runtime.GOARCH); err == nil {
		return arch
	}
	return ArchAny
}

// Is32Bit reports whether the architecture uses 32 bit pointers
func (a Arch) Is32Bit() bool {
	return a == ArchX86 || a == ArchARM || a == ArchARMHF
}

// Mode is the optimization mode of a build
type Mode string

const (
	ModeDebug   Mode = "debug"
	ModeRelease Mode = "release"
)

var Modes = map[string]string{
	"debug":   "unoptimized, with debugging information",
	"release": "optimized",
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "debug":
		return ModeDebug, nil
	case "release":
		return ModeRelease, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownMode, s)
}

// Title returns the capitalized mode as used by MSBuild configurations
func (m Mode) Title() string {
	if m == ModeRelease {
		return "Release"
	}
	return "Debug"
}
