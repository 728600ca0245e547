package builder

import "strings"

// ArtifactKind selects the file naming convention of a build output
type ArtifactKind int

const (
	SharedLibrary ArtifactKind = iota
	Executable
	StaticLibrary
)

func (k ArtifactKind) String() string {
	switch k {
	case SharedLibrary:
		return "shared library"
	case Executable:
		return "executable"
	case StaticLibrary:
		return "static library"
	default:
		return "unknown"
	}
}

// universalSeparator separates the words of a universal name, e.g. My.Awesome.Library
const universalSeparator = "."

// PlatformName turns a universal name into the file name used on the given OS.
//
//	                 windows                  linux (and other unix)     darwin
//	shared library   My.Awesome.Library.dll   libMyAwesomeLibrary.so     libMyAwesomeLibrary.dylib
//	executable       My.Awesome.Library.exe   MyAwesomeLibrary           MyAwesomeLibrary
//	static library   My.Awesome.Library.lib   libMyAwesomeLibrary.a      libMyAwesomeLibrary.a
func PlatformName(universal string, kind ArtifactKind, goos string) string {
	if goos == "windows" {
		switch kind {
		case Executable:
			return universal + ".exe"
		case StaticLibrary:
			return universal + ".lib"
		default:
			return universal + ".dll"
		}
	}

	stripped := strings.ReplaceAll(universal, universalSeparator, "")
	switch kind {
	case Executable:
		return stripped
	case StaticLibrary:
		return "lib" + stripped + ".a"
	default:
		if goos == "darwin" {
			return "lib" + stripped + ".dylib"
		}
		return "lib" + stripped + ".so"
	}
}
