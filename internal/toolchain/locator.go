package toolchain

import (
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// StatFS is the read-only view of the filesystem used while searching for executables.
// Names are slash-separated and may be absolute (including Windows drive letters).
type StatFS interface {
	Stat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
}

type osFS struct{}

func (osFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(filepath.FromSlash(name)) }
func (osFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(filepath.FromSlash(name))
}

// Locator searches the system for toolchains. All system access goes through its fields so
// that tests can substitute a fake filesystem and environment.
type Locator struct {
	GOOS     string
	Getenv   func(string) string
	LookPath func(string) (string, error)
	FS       StatFS

	MSBuild MSBuildTable
	Godot   GodotTable

	// VisualStudioInstances lists Visual Studio install directories known to the
	// setup configuration API (Windows only, may be nil)
	VisualStudioInstances func() []string
}

// NewLocator returns a Locator for the running system with the built-in install tables
func NewLocator() *Locator {
	return &Locator{
		GOOS:                  runtime.GOOS,
		Getenv:                os.Getenv,
		LookPath:              exec.LookPath,
		FS:                    osFS{},
		MSBuild:               DefaultMSBuildTable,
		Godot:                 DefaultGodotTable,
		VisualStudioInstances: visualStudioInstances,
	}
}

func (l *Locator) isWindows() bool { return l.GOOS == "windows" }

func (l *Locator) isFile(name string) bool {
	info, err := l.FS.Stat(name)
	return err == nil && !info.IsDir()
}

func (l *Locator) isDir(name string) bool {
	info, err := l.FS.Stat(name)
	return err == nil && info.IsDir()
}

func (l *Locator) lookPath(name string) string {
	if l.LookPath == nil {
		return ""
	}
	p, err := l.LookPath(name)
	if err != nil {
		return ""
	}
	return p
}

// subdirs lists the directories in dir whose name satisfies keep. Unreadable directories are empty.
func (l *Locator) subdirs(dir string, keep func(name string) bool) []string {
	entries, err := l.FS.ReadDir(dir)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, entry := range entries {
		if !keep(entry.Name()) {
			continue
		}
		full := path.Join(dir, entry.Name())
		if entry.IsDir() || l.isDir(full) {
			dirs = append(dirs, full)
		}
	}
	return dirs
}

func anyName(string) bool { return true }

func nameContains(needle string) func(string) bool {
	return func(name string) bool { return strings.Contains(strings.ToLower(name), needle) }
}

func nameIs(want string) func(string) bool {
	return func(name string) bool { return strings.EqualFold(name, want) }
}

// slashed converts Windows separators on any host OS
func slashed(p string) string { return strings.ReplaceAll(p, `\`, "/") }

// envDir returns an environment variable holding a directory as a slash path
func (l *Locator) envDir(name string) string {
	return slashed(l.Getenv(name))
}

var windowsEnvRegex = regexp.MustCompile(`%([^%]+)%`)

// expand replaces %VAR% references. ok is false if a referenced variable is unset.
func (l *Locator) expand(s string) (expanded string, ok bool) {
	ok = true
	expanded = windowsEnvRegex.ReplaceAllStringFunc(s, func(m string) string {
		v := l.Getenv(m[1 : len(m)-1])
		if v == "" {
			ok = false
		}
		return slashed(v)
	})
	return
}

var (
	commonCCompilers   = []string{"clang", "gcc", "icx", "icc", "tcc", "cl"}
	commonCxxCompilers = []string{"clang++", "g++", "clang", "gcc", "icpx", "icx", "icpc", "icc", "cl"}
)

// FindCompiler finds a C or C++ compiler, honouring CC and CXX first
func (l *Locator) FindCompiler(needCxx bool) (string, error) {
	cc := l.Getenv("CC")
	cxx := l.Getenv("CXX")

	if needCxx && cxx != "" {
		return cxx, nil
	}
	if !needCxx && cc != "" {
		return cc, nil
	}
	if cxx != "" {
		return cxx, nil
	}
	if cc != "" {
		return cc, nil
	}

	compilersToTry := commonCCompilers
	if needCxx {
		compilersToTry = commonCxxCompilers
	}
	for _, compiler := range compilersToTry {
		if p := l.lookPath(compiler); p != "" {
			return p, nil
		}
	}

	if needCxx {
		return "", &LocateError{Tool: "C++ compiler", Err: ErrNotFound}
	}
	return "", &LocateError{Tool: "C compiler", Err: ErrNotFound}
}

// LocateError reports which tool (and which requested version of it) could not be found
type LocateError struct {
	Tool    string
	Version string
	Err     error
}

func (e *LocateError) Error() string {
	if e.Version != "" {
		return e.Tool + " " + e.Version + ": " + e.Err.Error()
	}
	return e.Tool + ": " + e.Err.Error()
}

func (e *LocateError) Unwrap() error { return e.Err }
