package builder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrDirectoryNotFound = errors.New("directory not found")

// PackageReference names a prebuilt third-party package
type PackageReference struct {
	Name       string
	Libraries  []string // defaults to Name
	HeaderOnly bool     // has no library directory and links nothing
	Dir        string   // defaults to <references>/<name>
}

// ResolvedPackage is a package whose directories were found on disk
type ResolvedPackage struct {
	Name       string
	IncludeDir string // empty if the package ships only libraries
	LibraryDir string // empty for header-only packages or if none was found
	Libraries  []string
}

// PackageError reports a package directory that could not be located
type PackageError struct {
	Package    string
	Dir        string // what was being looked for, e.g. "include"
	Candidates []string
	Err        error
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("package %s: %s %v (tried %s)", e.Package, e.Dir, e.Err, strings.Join(e.Candidates, ", "))
}

func (e *PackageError) Unwrap() error { return e.Err }

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func firstDir(candidates []string) (string, bool) {
	for _, c := range candidates {
		if isDir(c) {
			return c, true
		}
	}
	return "", false
}

// IncludeCandidates lists the include directories searched for a package, in order
func IncludeCandidates(root, name string) []string {
	return []string{
		filepath.Join(root, "include"),
		filepath.Join(root, "Include"),
		filepath.Join(root, name),
	}
}

// LibraryCandidates lists the library directories searched for a package, in order:
// the exact build directory name, the same toolchain with older major versions, then lib.
func LibraryCandidates(root string, key BuildDirKey) []string {
	candidates := []string{filepath.Join(root, key.String())}
	for major := key.Major - 1; major >= 1; major-- {
		candidates = append(candidates, filepath.Join(root, key.WithMajor(major).String()))
	}
	return append(candidates, filepath.Join(root, "lib"))
}

// ResolvePackage locates the include and library directories of a package.
// Whichever of the two exists is returned; it fails only if neither is found.
// Header-only packages have no library directory and link nothing.
func ResolvePackage(ref PackageReference, key BuildDirKey) (ResolvedPackage, error) {
	resolved := ResolvedPackage{Name: ref.Name}

	includes := IncludeCandidates(ref.Dir, ref.Name)
	resolved.IncludeDir, _ = firstDir(includes)

	if ref.HeaderOnly {
		if resolved.IncludeDir == "" {
			return ResolvedPackage{}, &PackageError{Package: ref.Name, Dir: "include", Candidates: includes, Err: ErrDirectoryNotFound}
		}
		return resolved, nil
	}

	libs := LibraryCandidates(ref.Dir, key)
	resolved.LibraryDir, _ = firstDir(libs)
	if resolved.IncludeDir == "" && resolved.LibraryDir == "" {
		return ResolvedPackage{}, &PackageError{
			Package:    ref.Name,
			Dir:        "include or library",
			Candidates: append(includes, libs...),
			Err:        ErrDirectoryNotFound,
		}
	}

	resolved.Libraries = ref.Libraries
	if len(resolved.Libraries) == 0 {
		resolved.Libraries = []string{ref.Name}
	}
	return resolved, nil
}

// AddPackage resolves a package and registers its directories and libraries.
// On failure the configuration is left untouched.
func (c *Configuration) AddPackage(ref PackageReference) (ResolvedPackage, error) {
	if ref.Dir == "" {
		ref.Dir = c.Path(c.ReferencesDir, ref.Name)
	} else {
		ref.Dir = c.Path(ref.Dir)
	}

	resolved, err := ResolvePackage(ref, c.Key())
	if err != nil {
		return ResolvedPackage{}, err
	}

	if resolved.IncludeDir != "" {
		c.AddIncludeDir(resolved.IncludeDir)
	}
	if resolved.LibraryDir != "" {
		c.AddLibraryDir(resolved.LibraryDir)
	}
	c.AddLibrary(resolved.Libraries...)
	return resolved, nil
}
