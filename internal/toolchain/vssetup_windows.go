//go:build windows

package toolchain

import (
	"path/filepath"

	"github.com/heaths/go-vssetup"
)

func visualStudioInstances() []string {
	instances, err := vssetup.Instances(false)
	if err != nil {
		return nil
	}
	var paths []string
	for _, instance := range instances {
		installPath, err := instance.InstallationPath()
		if err != nil || installPath == "" {
			continue
		}
		paths = append(paths, filepath.ToSlash(installPath))
	}
	return paths
}
