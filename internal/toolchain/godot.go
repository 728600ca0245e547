package toolchain

import "path"

// GodotTable lists the executable names of each Godot version (official builds and git builds)
type GodotTable map[string][]string

const DefaultGodotVersion = "3.1"

var DefaultGodotTable = GodotTable{
	"3.0": {
		"Godot_v3.0.6-stable_linux_headless.64",
		"Godot_v3.0.6-stable_x11.64",
		"Godot_v3.0.6-stable_win64.exe",
	},
	"3.1": {
		"Godot_v3.1-stable_linux_headless.64",
		"Godot_v3.1-stable_x11.64",
		"Godot_v3.1-stable_win64.exe",
	},
	"git": {
		"godot_headless.x11.opt.tools.64",
	},
}

// FindGodot locates a Godot executable of the given version inside any directory whose
// name contains "godot" (Program Files on Windows, /opt elsewhere). The bin/ subdirectory
// of a candidate is checked before the candidate itself.
func (l *Locator) FindGodot(version string) (string, error) {
	names, ok := l.Godot[version]
	if !ok {
		return "", &LocateError{Tool: "godot", Version: version, Err: ErrNotFound}
	}

	var candidates []string
	if l.isWindows() {
		for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)"} {
			if base := l.envDir(env); base != "" {
				candidates = append(candidates, l.subdirs(base, nameContains("godot"))...)
			}
		}
	} else {
		candidates = l.subdirs("/opt", nameContains("godot"))
	}

	for _, dir := range candidates {
		for _, searchDir := range []string{path.Join(dir, "bin"), dir} {
			for _, name := range names {
				if p := path.Join(searchDir, name); l.isFile(p) {
					return p, nil
				}
			}
		}
	}

	return "", &LocateError{Tool: "godot", Version: version, Err: ErrNotFound}
}
