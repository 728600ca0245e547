//go:build !windows

package toolchain

func visualStudioInstances() []string { return nil }
