package gen

import (
	"path/filepath"
	"strings"
)

func write(sb *strings.Builder, s ...string) {
	for _, str := range s {
		sb.WriteString(str)
	}
}

func writeln(sb *strings.Builder, s ...string) {
	for _, str := range s {
		sb.WriteString(str)
	}
	sb.WriteByte('\n')
}

// isCxx reports whether a source file is compiled as C++. Only .c is plain C.
func isCxx(path string) bool {
	return filepath.Ext(path) != ".c"
}

func hasCxx(sources []string) bool {
	for _, src := range sources {
		if isCxx(src) {
			return true
		}
	}
	return false
}

// objectPath mirrors a source below the target's object directory
func objectPath(t Target, src, ext string) string {
	rel, err := filepath.Rel(t.SourceRoot, src)
	if err != nil || t.SourceRoot == "" || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(src)
	}
	return filepath.Join(t.ObjectDir, rel+ext)
}

// compileFlags renders the include directories, defines and flags of a target in gcc syntax
func compileFlags(t Target, cxx bool) []string {
	flags := make([]string, 0, len(t.IncludeDirs)+len(t.Defines)+len(t.Cflags)+len(t.Cxxflags))
	flags = append(flags, t.Cflags...)
	if cxx {
		flags = append(flags, t.Cxxflags...)
	}
	for _, dir := range t.IncludeDirs {
		flags = append(flags, "-I"+dir)
	}
	for _, def := range t.Defines {
		flags = append(flags, "-D"+def)
	}
	return flags
}

// linkInputs renders the dependency archives of a target in gcc syntax
func linkInputs(goos string, deps []string, wholeArchive bool) []string {
	if !wholeArchive || len(deps) == 0 {
		return deps
	}
	if goos == "darwin" {
		args := make([]string, 0, len(deps))
		for _, dep := range deps {
			args = append(args, "-Wl,-force_load,"+dep)
		}
		return args
	}
	args := []string{"-Wl,--whole-archive"}
	args = append(args, deps...)
	return append(args, "-Wl,--no-whole-archive")
}

// linkFlags renders the library search path and libraries of a target in gcc syntax
func linkFlags(t Target) []string {
	flags := make([]string, 0, len(t.LibraryDirs)+len(t.Libraries)+len(t.Ldflags)+1)
	if t.Kind == SharedLibrary {
		flags = append(flags, "-shared")
	}
	for _, dir := range t.LibraryDirs {
		flags = append(flags, "-L"+dir)
	}
	for _, lib := range t.Libraries {
		flags = append(flags, "-l"+lib)
	}
	return append(flags, t.Ldflags...)
}
