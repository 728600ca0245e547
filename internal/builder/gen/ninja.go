package gen

import (
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/magefile/mage/sh"
)

type NinjaGen struct {
	cc, cxx string
	goos    string
	targets map[string]Target
}

func NewNinjaGen(goos string) *NinjaGen {
	if goos == "" {
		goos = runtime.GOOS
	}
	return &NinjaGen{goos: goos, targets: make(map[string]Target)}
}

func (g *NinjaGen) SetCompiler(cc, cxx string) {
	g.cc, g.cxx = cc, cxx
}

func (g *NinjaGen) BuildFile() string { return "build.ninja" }

var ninjaPathEscaper = strings.NewReplacer("$", "$$", ":", "$:", " ", "$ ")

func quote(s string) string { return ninjaPathEscaper.Replace(filepath.ToSlash(s)) }

// quoteFlags joins flags for a ninja variable, quoting the ones a shell would split
func quoteFlags(flags []string) string {
	quoted := make([]string, len(flags))
	for i, flag := range flags {
		flag = strings.ReplaceAll(flag, "$", "$$")
		if strings.ContainsAny(flag, " \t\"") {
			flag = `"` + strings.ReplaceAll(flag, `"`, `\"`) + `"`
		}
		quoted[i] = flag
	}
	return strings.Join(quoted, " ")
}

func (g *NinjaGen) AddTarget(t Target) {
	g.targets[t.Name] = t
}

func (g *NinjaGen) sortedTargets() []Target {
	names := make([]string, 0, len(g.targets))
	for name := range g.targets {
		names = append(names, name)
	}
	slices.Sort(names)

	targets := make([]Target, len(names))
	for i, name := range names {
		targets[i] = g.targets[name]
	}
	return targets
}

func (g *NinjaGen) Generate(string) (string, error) {
	var sb strings.Builder

	writeln(&sb, "ninja_required_version = 1.1")
	writeln(&sb, "cc = ", g.cc)
	writeln(&sb, "cxx = ", g.cxx)
	writeln(&sb)

	// gen rules
	write(&sb,
		`rule cc
  command = $cc $cflags -c $in -o $out
  description = CC $out
`)
	write(&sb,
		`rule cxx
  command = $cxx $cflags -c $in -o $out
  description = CXX $out
`)
	write(&sb,
		`rule link
  command = $ld -o $out $in $deps $ldflags
  description = LINK $out
`)
	write(&sb,
		`rule ar
  command = rm -f $out && ar rcs $out $in
  description = AR $out
`)
	writeln(&sb)

	for _, target := range g.sortedTargets() {
		// build object files
		objects := make([]string, len(target.Sources))
		for i, src := range target.Sources {
			objects[i] = quote(objectPath(target, src, ".o"))
			rule := "cc"
			if isCxx(src) {
				rule = "cxx"
			}
			write(&sb, "build ", objects[i], ": ", rule, " ", quote(src))
			if len(target.Headers) > 0 {
				write(&sb, " |")
				for _, header := range target.Headers {
					write(&sb, " ", quote(header))
				}
			}
			writeln(&sb)
			writeln(&sb, "  cflags = ", quoteFlags(compileFlags(target, isCxx(src))))
		}

		// ar/link
		write(&sb, "build ", quote(target.Output), ": ")
		if target.Kind == StaticLibrary {
			write(&sb, "ar")
		} else {
			write(&sb, "link")
		}
		for _, obj := range objects {
			write(&sb, " ", obj)
		}

		var deps []string
		if len(target.Deps) > 0 {
			write(&sb, " |")
			for _, depName := range target.Deps {
				dep := g.targets[depName].Output
				deps = append(deps, dep)
				write(&sb, " ", quote(dep))
			}
		}
		writeln(&sb)

		if target.Kind != StaticLibrary {
			ld := "$cc"
			if hasCxx(target.Sources) || g.depsHaveCxx(target) {
				ld = "$cxx"
			}
			writeln(&sb, "  ld = ", ld)
			writeln(&sb, "  deps = ", quoteFlags(linkInputs(g.goos, deps, target.WholeArchive)))
			writeln(&sb, "  ldflags = ", quoteFlags(linkFlags(target)))
		}
		writeln(&sb)
	}

	return sb.String(), nil
}

func (g *NinjaGen) depsHaveCxx(target Target) bool {
	for _, depName := range target.Deps {
		dep := g.targets[depName]
		if hasCxx(dep.Sources) || g.depsHaveCxx(dep) {
			return true
		}
	}
	return false
}

func (g *NinjaGen) Invoke(buildDir string) error {
	return sh.RunV("ninja", "-C", buildDir)
}
