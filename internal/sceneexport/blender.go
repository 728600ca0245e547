package sceneexport

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/magefile/mage/sh"
)

//go:embed blender.py
var blenderHelpers string

const objectMarker = "NUBS_OBJECT "

// Blender is a Host backed by a Blender executable. Objects are read by running Blender
// once in the background; every other call is recorded as a line of Python that Execute
// runs in a second Blender process.
type Blender struct {
	Exe       string
	BlendFile string
	// Run starts Blender, sending its standard output to stdout
	Run func(stdout io.Writer, cmd string, args ...string) error

	calls []string
}

func NewBlender(exe, blendFile string, output io.Writer) *Blender {
	return &Blender{
		Exe:       exe,
		BlendFile: blendFile,
		Run: func(stdout io.Writer, cmd string, args ...string) error {
			ran, err := sh.Exec(nil, stdout, output, cmd, args...)
			if !ran && err != nil {
				return fmt.Errorf("could not run %s: %w", cmd, err)
			}
			return err
		},
	}
}

// pyArgs renders Go values as Python literals; JSON strings and lists are valid Python
func pyArgs(args ...any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		if list, ok := arg.([]string); ok && list == nil {
			arg = []string{}
		}
		b, err := json.Marshal(arg)
		if err != nil {
			panic(err) // only strings and string slices are passed
		}
		parts[i] = string(b)
	}
	return strings.Join(parts, ", ")
}

func (b *Blender) call(fn string, args ...any) error {
	b.calls = append(b.calls, fn+"("+pyArgs(args...)+")")
	return nil
}

// runScript writes the helpers plus body to a temporary file and runs it against the blend file
func (b *Blender) runScript(stdout io.Writer, body string) error {
	f, err := os.CreateTemp("", "nubs-blender-*.py")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if _, err := io.WriteString(f, blenderHelpers+"\n"+body+"\n"); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return b.Run(stdout, b.Exe, b.BlendFile,
		"--background", "--enable-autoexec", "--python-exit-code", "1", "--python", f.Name())
}

func (b *Blender) EnableAddons(names ...string) error { return b.call("enable_addons", names) }
func (b *Blender) ShowAllLayers() error               { return b.call("show_all_layers") }
func (b *Blender) DeselectAll() error                 { return b.call("deselect_all") }
func (b *Blender) Select(names ...string) error       { return b.call("select_objects", names) }
func (b *Blender) ApplyModifier(object, modifier string) error {
	return b.call("apply_modifier", object, modifier)
}
func (b *Blender) ExportFBX(path string) error     { return b.call("export_fbx", path) }
func (b *Blender) ExportCollada(path string) error { return b.call("export_collada", path) }
func (b *Blender) Quit() error                     { return b.call("quit") }

// Objects lists the objects of the blend file
func (b *Blender) Objects() ([]Object, error) {
	var out bytes.Buffer
	if err := b.runScript(&out, "list_objects()"); err != nil {
		return nil, fmt.Errorf("failed to list objects of %s: %w", b.BlendFile, err)
	}

	var objects []Object
	sc := bufio.NewScanner(&out)
	sc.Buffer(nil, 1<<20)
	for sc.Scan() {
		line, ok := strings.CutPrefix(sc.Text(), objectMarker)
		if !ok {
			continue
		}
		var obj Object
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			return nil, fmt.Errorf("bad object listing %q: %w", line, err)
		}
		objects = append(objects, obj)
	}
	return objects, sc.Err()
}

// Script is the Python recorded so far, without the helpers
func (b *Blender) Script() string {
	return strings.Join(b.calls, "\n")
}

// Execute runs the recorded calls in Blender, passing Blender's output to stdout
func (b *Blender) Execute(stdout io.Writer) error {
	if len(b.calls) == 0 {
		return nil
	}
	return b.runScript(stdout, b.Script())
}
