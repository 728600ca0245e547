package toolchain

import "path"

// Version tags that allow searching beyond the well-known install table
const (
	VersionLatest = "latest"
	VersionSystem = "system"
)

// MSBuildTable lists well-known MSBuild install locations per version tag.
// Entries may reference environment variables as %VAR%.
type MSBuildTable struct {
	X86   map[string][]string
	AMD64 map[string][]string
}

var DefaultMSBuildTable = MSBuildTable{
	X86: map[string][]string{
		"2.0": {`%WinDir%/Microsoft.NET/Framework/v2.0.50727/MSBuild.exe`},
		"3.5": {`%WinDir%/Microsoft.NET/Framework/v3.5/MSBuild.exe`},
		"4.0": {`%WinDir%/Microsoft.NET/Framework/v4.0.30319/MSBuild.exe`},
		VersionLatest: {
			`%ProgramFiles(x86)%/Microsoft Visual Studio/2017/Community/MSBuild/15.0/Bin/MSBuild.exe`,
			`%ProgramFiles(x86)%/Microsoft Visual Studio/2017/Professional/MSBuild/15.0/Bin/MSBuild.exe`,
			`%ProgramFiles(x86)%/Microsoft Visual Studio/2017/Enterprise/MSBuild/15.0/Bin/MSBuild.exe`,
			`C:/Program Files (x86)/MSBuild/14.0/Bin/MSBuild.exe`,
		},
	},
	AMD64: map[string][]string{
		"2.0": {`%WinDir%/Microsoft.NET/Framework64/v2.0.50727/MSBuild.exe`},
		"3.5": {`%WinDir%/Microsoft.NET/Framework64/v3.5/MSBuild.exe`},
		"4.0": {`%WinDir%/Microsoft.NET/Framework64/v4.0.30319/MSBuild.exe`},
		VersionLatest: {
			`%ProgramFiles(x86)%/Microsoft Visual Studio/2017/Community/MSBuild/15.0/Bin/amd64/MSBuild.exe`,
			`%ProgramFiles(x86)%/Microsoft Visual Studio/2017/Professional/MSBuild/15.0/Bin/amd64/MSBuild.exe`,
			`%ProgramFiles(x86)%/Microsoft Visual Studio/2017/Enterprise/MSBuild/15.0/Bin/amd64/MSBuild.exe`,
			`C:/Program Files (x86)/MSBuild/14.0/Bin/amd64/MSBuild.exe`,
		},
	},
}

// unix locations checked when msbuild is not on the PATH
var unixMSBuildPaths = []string{"/usr/bin/msbuild", "/usr/bin/xbuild"}

// FindMSBuild locates an MSBuild executable for the requested version tag
// ("2.0", "3.5", "4.0", "latest" or "system"). Set x86 to prefer the 32 bit build.
//
// Candidates are tried in a fixed order: the well-known install table, then (for
// latest/system only) the PATH and a scan of the Visual Studio install directories,
// and finally the standard unix locations.
func (l *Locator) FindMSBuild(version string, x86 bool) (string, error) {
	scan := version == VersionLatest || version == VersionSystem

	if l.isWindows() {
		table := l.MSBuild.AMD64
		if x86 {
			table = l.MSBuild.X86
		}
		key := version
		if version == VersionSystem {
			key = VersionLatest
		}
		for _, candidate := range table[key] {
			if p, ok := l.expand(candidate); ok && l.isFile(p) {
				return p, nil
			}
		}
	}

	if scan {
		// msbuild superseded mono's xbuild, so prefer it
		if p := l.lookPath("msbuild"); p != "" {
			return p, nil
		}
		if p := l.lookPath("xbuild"); p != "" {
			return p, nil
		}

		if l.isWindows() {
			for _, dir := range l.msbuildDirectories() {
				if p := l.msbuildIn(dir, x86); p != "" {
					return p, nil
				}
			}
		}
	}

	if !l.isWindows() {
		for _, p := range unixMSBuildPaths {
			if l.isFile(p) {
				return p, nil
			}
		}
	}

	return "", &LocateError{Tool: "msbuild", Version: version, Err: ErrNotFound}
}

// msbuildIn checks the version folders of an MSBuild directory for an executable
func (l *Locator) msbuildIn(msbuildDir string, x86 bool) string {
	candidates := []string{"Bin/amd64/MSBuild.exe", "amd64/MSBuild.exe", "Bin/MSBuild.exe", "MSBuild.exe"}
	if x86 {
		candidates = []string{"Bin/MSBuild.exe", "MSBuild.exe"}
	}
	for _, versionDir := range l.subdirs(msbuildDir, anyName) {
		for _, candidate := range candidates {
			p := path.Join(versionDir, candidate)
			if l.isFile(p) {
				return p
			}
		}
	}
	return ""
}

// msbuildDirectories finds all directories named MSBuild (case-insensitive) in the
// usual places. Inside a Visual Studio directory the search goes at most three levels
// deep: product version, edition, tool folder.
func (l *Locator) msbuildDirectories() []string {
	var msbuildDirs, vsDirs []string

	// Visual Studio is still installed as an x86 application
	if programFilesX86 := l.envDir("ProgramFiles(x86)"); programFilesX86 != "" {
		vsDirs = append(vsDirs, l.subdirs(programFilesX86, nameContains("visual studio"))...)
		msbuildDirs = append(msbuildDirs, l.subdirs(programFilesX86, nameIs("msbuild"))...)
	}
	// up until Visual Studio 2015, MSBuild had its own directory
	if programFiles := l.envDir("ProgramFiles"); programFiles != "" {
		msbuildDirs = append(msbuildDirs, l.subdirs(programFiles, nameIs("msbuild"))...)
	}

	for _, vsDir := range vsDirs {
		for _, versionDir := range l.subdirs(vsDir, anyName) {
			if nameIs("msbuild")(path.Base(versionDir)) {
				msbuildDirs = append(msbuildDirs, versionDir)
				continue
			}
			for _, editionDir := range l.subdirs(versionDir, anyName) {
				if nameIs("msbuild")(path.Base(editionDir)) {
					msbuildDirs = append(msbuildDirs, editionDir)
					continue
				}
				msbuildDirs = append(msbuildDirs, l.subdirs(editionDir, nameIs("msbuild"))...)
			}
		}
	}

	// instances registered with the setup API may live outside Program Files
	if l.VisualStudioInstances != nil {
		for _, instance := range l.VisualStudioInstances() {
			msbuildDirs = append(msbuildDirs, l.subdirs(instance, nameIs("msbuild"))...)
		}
	}

	return msbuildDirs
}
