// nubs init [name], nubs new [path]
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/qobs-build/nubs/internal/builder"
	"github.com/qobs-build/nubs/internal/msg"
	"github.com/spf13/cobra"
)

func writefile(content string, elem ...string) {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err = os.WriteFile(path, []byte(content), 0o644); err != nil {
			msg.Fatal("create file %s: %v", path, err)
		}
		fmt.Printf("%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	}
}

func mkdir(elem ...string) {
	path := filepath.Join(elem...)
	if err := os.MkdirAll(path, 0o755); err != nil {
		msg.Fatal("mkdir %s: %v", path, err)
	}
}

// headerGuard turns My.Awesome.Library into MY_AWESOME_LIBRARY_H
func headerGuard(name string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(name)) + "_H"
}

// initIn initializes a project in an existing specified directory
func initIn(dir, name string, lib bool) {
	kind := builder.KindExecutable
	tests := "false"
	if lib {
		kind = builder.KindLibrary
		tests = "true"
	}

	// Nubs.toml
	writefile(`[project]
name = "`+name+`"
description = "This is where I make a project."
kind = "`+kind+`"
tests = `+tests+`

[layout]
source = "`+builder.DefaultSourceDir+`"
include = "`+builder.DefaultHeaderDir+`"
tests = "`+builder.DefaultTestDir+`"
references = "`+builder.DefaultReferencesDir+`"

[target]
links = []

[packages]
`, dir, builder.ProjectFileName)

	mkdir(dir, builder.DefaultSourceDir)
	mkdir(dir, builder.DefaultHeaderDir)

	if lib {
		mkdir(dir, builder.DefaultTestDir)
		guard := headerGuard(name)

		// Include/hello_world.h
		writefile(`#ifndef `+guard+`
#define `+guard+`

void hello_world();

#endif
`, dir, builder.DefaultHeaderDir, "hello_world.h")

		// Source/hello_world.cpp
		writefile(`#include <cstdio>
#include "hello_world.h"

void hello_world() {
    std::puts("Hello, World!");
}
`, dir, builder.DefaultSourceDir, "hello_world.cpp")

		// Tests/hello_world.test.cpp
		writefile(`#include <gtest/gtest.h>
#include "hello_world.h"

TEST(HelloWorldTest, DoesNotCrash) {
    hello_world();
}
`, dir, builder.DefaultTestDir, "hello_world.test.cpp")
	} else {
		// Source/main.cpp
		writefile(`#include <cstdio>

int main() {
    std::puts("Hello, World!");
    return 0;
}
`, dir, builder.DefaultSourceDir, "main.cpp")
	}

	// .gitignore
	writefile(builder.DefaultIntermediateDir+"/\n"+builder.DefaultArtifactDir+"/\n.env\n", dir, ".gitignore")

	programName := getProgramName()
	if lib {
		fmt.Printf("You can now do %s to build, or %s to build and run the unit tests.\n",
			color.HiCyanString(programName+" "+dir), color.HiCyanString(programName+" test "+dir))
	} else {
		fmt.Printf("You can now do %s to build.\n", color.HiCyanString(programName+" "+dir))
	}
}

var library bool

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a new project in the current directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initIn(".", args[0], library)
	},
}

var newCmd = &cobra.Command{
	Use:   "new [path]",
	Short: "Create a new project in a new directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mkdir(args[0])
		initIn(args[0], filepath.Base(args[0]), library)
	},
}

func init() {
	// nubs init subcommand
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&library, "lib", "l", false, "Create a library with unit tests")

	// nubs new subcommand
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().BoolVarP(&library, "lib", "l", false, "Create a library with unit tests")
}
