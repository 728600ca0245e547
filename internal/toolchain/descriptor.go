// Package toolchain locates compilers and external build tools and works out their versions.
package toolchain

import (
	"bytes"
	"errors"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/magefile/mage/sh"
)

// ErrNotFound is returned when no suitable executable could be located
var ErrNotFound = errors.New("not found")

const UnknownVersion = "unknown"

// Descriptor identifies a toolchain for naming purposes
type Descriptor struct {
	Name    string // normalized family name, e.g. "gcc", "clang", "msvc"
	Path    string // executable path
	Version []int  // major, minor, revision; nil when unknown
}

// Known reports whether the version could be determined
func (d Descriptor) Known() bool { return len(d.Version) > 0 }

// Major returns the major version, if known
func (d Descriptor) Major() (int, bool) {
	if !d.Known() {
		return 0, false
	}
	return d.Version[0], true
}

func (d Descriptor) VersionString() string {
	if !d.Known() {
		return UnknownVersion
	}
	parts := make([]string, len(d.Version))
	for i, v := range d.Version {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ".")
}

func (d Descriptor) String() string {
	return d.Name + " " + d.VersionString()
}

var (
	dottedVersionRegex = regexp.MustCompile(`\d+(?:\.\d+)+`)
	plainVersionRegex  = regexp.MustCompile(`\d+`)
)

// ParseVersion extracts the first dotted run of digits from s (falling back to the first
// plain run of digits) and splits it into numeric components.
func ParseVersion(s string) ([]int, bool) {
	match := dottedVersionRegex.FindString(s)
	if match == "" {
		match = plainVersionRegex.FindString(s)
	}
	if match == "" {
		return nil, false
	}

	var version []int
	for _, part := range strings.Split(match, ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, false // overflow
		}
		version = append(version, n)
	}
	return version, true
}

// Runner runs an executable and returns whatever it printed.
// err is only relevant if nothing useful was printed.
type Runner func(cmd string, args ...string) (string, error)

// ExecRunner runs the command and captures stdout and stderr together.
// MSVC prints its banner to stderr, everybody else to stdout.
func ExecRunner(cmd string, args ...string) (string, error) {
	var out bytes.Buffer
	_, err := sh.Exec(nil, &out, &out, cmd, args...)
	return out.String(), err
}

// Family maps a compiler executable to the name used in build directory names
func Family(exe string) string {
	base := strings.ToLower(filepath.Base(exe))
	base = strings.TrimSuffix(base, ".exe")

	switch {
	case base == "cl" || base == "clang-cl":
		return "msvc"
	case strings.Contains(base, "clang"):
		return "clang"
	case strings.HasPrefix(base, "icpx") || strings.HasPrefix(base, "icx"):
		return "icx"
	case strings.HasPrefix(base, "icpc") || strings.HasPrefix(base, "icc"):
		return "icc"
	case strings.HasPrefix(base, "tcc"):
		return "tcc"
	case strings.Contains(base, "g++") || strings.Contains(base, "gcc") || base == "c++" || base == "cc":
		return "gcc"
	default:
		return base
	}
}

func versionArgs(family string) []string {
	switch family {
	case "msvc":
		return nil // the banner is printed on every invocation
	case "tcc":
		return []string{"-v"}
	default:
		return []string{"--version"}
	}
}

// Describe works out the family and version of a compiler executable.
// A compiler that cannot be started or prints no version yields an unknown version.
func Describe(run Runner, exe string) Descriptor {
	d := Descriptor{Name: Family(exe), Path: exe}
	out, _ := run(exe, versionArgs(d.Name)...)
	if version, ok := ParseVersion(out); ok {
		d.Version = version
	}
	return d
}
