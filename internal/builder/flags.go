package builder

// flagSet is what the platform contributes to a target on top of the configuration
type flagSet struct {
	cflags   []string
	cxxflags []string
	ldflags  []string
	defines  []string
}

func (c *Configuration) isMSVC() bool {
	return c.Toolchain.Name == "msvc"
}

// platformFlags is the fixed OS, toolchain and mode dependent part of the compiler and
// linker command lines. Optimization for MSVC is set by the solution configuration.
func (c *Configuration) platformFlags(kind ArtifactKind, tests bool) flagSet {
	var fs flagSet

	if c.isMSVC() {
		fs.cxxflags = []string{"/std:c++14", "/EHsc"}
		if c.Mode == ModeRelease {
			fs.defines = []string{"NDEBUG"}
		} else {
			fs.defines = []string{"_DEBUG"}
		}
		return fs
	}

	fs.cxxflags = []string{"-std=c++14", "-fvisibility=hidden"}

	if c.Mode == ModeRelease {
		fs.cflags = append(fs.cflags, "-O3")
		fs.defines = append(fs.defines, "NDEBUG")
	} else {
		fs.cflags = append(fs.cflags, "-g", "-O0")
		fs.defines = append(fs.defines, "_DEBUG")
	}

	switch c.Arch {
	case ArchX86:
		fs.cflags = append(fs.cflags, "-m32")
		fs.ldflags = append(fs.ldflags, "-m32")
	case ArchX64:
		fs.cflags = append(fs.cflags, "-m64")
		fs.ldflags = append(fs.ldflags, "-m64")
	case ArchARMHF:
		fs.cflags = append(fs.cflags, "-mfloat-abi=hard")
	}

	// static libraries end up inside shared libraries
	if c.GOOS != "windows" && kind != Executable {
		fs.cflags = append(fs.cflags, "-fPIC")
	}

	if tests && c.GOOS == "linux" {
		fs.cflags = append(fs.cflags, "-pthread")
		fs.ldflags = append(fs.ldflags, "-pthread")
	}

	return fs
}
