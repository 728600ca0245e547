package toolchain

import "path"

// FindBlender locates the Blender executable: PATH first, then the Blender Foundation
// directory on Windows or /opt/blender* and /usr/bin elsewhere.
func (l *Locator) FindBlender() (string, error) {
	if p := l.lookPath("blender"); p != "" {
		return p, nil
	}

	if l.isWindows() {
		if programFiles := l.envDir("ProgramFiles"); programFiles != "" {
			for _, dir := range l.subdirs(path.Join(programFiles, "Blender Foundation"), nameContains("blender")) {
				if p := path.Join(dir, "blender.exe"); l.isFile(p) {
					return p, nil
				}
			}
		}
	} else {
		for _, dir := range l.subdirs("/opt", nameContains("blender")) {
			if p := path.Join(dir, "blender"); l.isFile(p) {
				return p, nil
			}
		}
		if l.isFile("/usr/bin/blender") {
			return "/usr/bin/blender", nil
		}
	}

	return "", &LocateError{Tool: "blender", Err: ErrNotFound}
}
