// Package srcset enumerates source, header and asset files below a directory.
package srcset

import (
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// Extensions is an allow-list of file extensions including the leading dot.
// Matching is exact and case-sensitive, so `.C` and `.c` are distinct entries.
type Extensions []string

var (
	CxxSources = Extensions{".c", ".C", ".cpp", ".cc", ".cxx", ".inl", ".inc"}
	CxxHeaders = Extensions{".h", ".H", ".hpp", ".hh", ".hxx", ".inl", ".inc"}

	CSharpSources = Extensions{".cs", ".vb"}

	GodotAssets = Extensions{
		".tscn", ".escn", ".scn", ".tres", ".res", ".dae", ".obj", ".wav",
		".ogg", ".png", ".tga", ".tif", ".jpg", ".ttf", ".font", ".import",
	}
	GDNativeSources = Extensions{".c", ".C", ".cpp", ".cc"}
)

// Contains reports whether ext is in the allow-list
func (e Extensions) Contains(ext string) bool {
	return ext != "" && slices.Contains(e, ext)
}

// Matches reports whether the file name has an allowed extension
func (e Extensions) Matches(name string) bool {
	return e.Contains(filepath.Ext(name))
}

var errStop = errors.New("stop")

// Enumerate walks root recursively and yields every file whose extension is in exts.
// If variantDir is not empty, yielded paths have their root prefix replaced by variantDir.
//
// The sequence is lazy and can be ranged over any number of times; each pass walks
// the filesystem again. A missing or empty root yields nothing.
func Enumerate(root string, exts Extensions, variantDir string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
			return
		}

		err := doublestar.GlobWalk(os.DirFS(root), "**", func(rel string, d fs.DirEntry) error {
			if !exts.Matches(d.Name()) {
				return nil
			}
			base := root
			if variantDir != "" {
				base = variantDir
			}
			if !yield(filepath.Join(base, filepath.FromSlash(rel)), nil) {
				return errStop
			}
			return nil
		}, doublestar.WithFilesOnly())

		if err != nil && !errors.Is(err, errStop) {
			yield("", err)
		}
	}
}

// Collect drains a sequence produced by Enumerate into a slice
func Collect(seq iter.Seq2[string, error]) ([]string, error) {
	var files []string
	for path, err := range seq {
		if err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}

// Rewrite maps a path below root to the same relative location below variantDir
func Rewrite(path, root, variantDir string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	return filepath.Join(variantDir, rel), nil
}

// Subdirectories lists the direct subdirectories of root, skipping any whose name is in ignored
func Subdirectories(root string, ignored []string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && !slices.Contains(ignored, entry.Name()) {
			dirs = append(dirs, entry.Name())
		}
	}
	return dirs, nil
}
