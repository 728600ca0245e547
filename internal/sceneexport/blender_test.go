package sceneexport

import (
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBlender answers object listings with a canned scene and keeps every script it was given
type fakeBlender struct {
	listing string
	scripts []string
	args    [][]string
}

func (f *fakeBlender) run(stdout io.Writer, cmd string, args ...string) error {
	f.args = append(f.args, append([]string{cmd}, args...))
	script, err := os.ReadFile(args[len(args)-1])
	if err != nil {
		return err
	}
	f.scripts = append(f.scripts, string(script))
	if strings.HasSuffix(strings.TrimSpace(string(script)), "list_objects()") {
		fmt.Fprint(stdout, f.listing)
	}
	return nil
}

const heroListing = `Blender 2.79 (sub 0)
Read blend: /work/hero.blend
NUBS_OBJECT {"name": "Hero_Body", "type": "MESH", "hide_select": false, "modifiers": ["Subdivision", "Armature"]}
NUBS_OBJECT {"name": "Hero_MetaRig", "type": "ARMATURE", "hide_select": true, "modifiers": []}
NUBS_OBJECT {"name": "Cape \"long\"", "type": "MESH", "hide_select": false, "modifiers": ["Cloth"]}
NUBS_OBJECT {"name": "Lamp", "type": "LAMP", "hide_select": false, "modifiers": []}
Blender quit
`

func TestBlenderObjects(t *testing.T) {
	fake := &fakeBlender{listing: heroListing}
	b := &Blender{Exe: "/usr/bin/blender", BlendFile: "hero.blend", Run: fake.run}

	objects, err := b.Objects()
	require.NoError(t, err)
	assert.Equal(t, []Object{
		{Name: "Hero_Body", Type: TypeMesh, Modifiers: []string{"Subdivision", "Armature"}},
		{Name: "Hero_MetaRig", Type: TypeArmature, HideSelect: true, Modifiers: []string{}},
		{Name: `Cape "long"`, Type: TypeMesh, Modifiers: []string{"Cloth"}},
		{Name: "Lamp", Type: "LAMP", Modifiers: []string{}},
	}, objects)

	require.Len(t, fake.args, 1)
	assert.Equal(t, []string{"/usr/bin/blender", "hero.blend", "--background", "--enable-autoexec", "--python-exit-code", "1", "--python"}, fake.args[0][:7])
	assert.Contains(t, fake.scripts[0], "def list_objects():")
	_, err = os.Stat(fake.args[0][7])
	assert.True(t, os.IsNotExist(err), "temporary script should be removed")
}

func TestBlenderRunsExport(t *testing.T) {
	fake := &fakeBlender{listing: heroListing}
	b := &Blender{Exe: "blender", BlendFile: "hero.blend", Run: fake.run}

	require.NoError(t, Run(b, []string{"/out/hero.fbx", "Hero_*", "Cape*"}))
	assert.Equal(t, strings.Join([]string{
		`enable_addons(["rigify","io_scene_fbx","io_scene_dae"])`,
		`show_all_layers()`,
		`deselect_all()`,
		`select_objects(["Hero_Body","Cape \"long\""])`,
		`apply_modifier("Hero_Body", "Subdivision")`,
		`apply_modifier("Cape \"long\"", "Cloth")`,
		`export_fbx("/out/hero.fbx")`,
		`quit()`,
	}, "\n"), b.Script())

	require.NoError(t, b.Execute(io.Discard))
	require.Len(t, fake.scripts, 2)
	assert.Contains(t, fake.scripts[1], "def export_fbx(path):")
	assert.True(t, strings.HasSuffix(fake.scripts[1], b.Script()+"\n"))
}

func TestBlenderNoMatches(t *testing.T) {
	fake := &fakeBlender{listing: heroListing}
	b := &Blender{Exe: "blender", BlendFile: "hero.blend", Run: fake.run}

	require.NoError(t, Run(b, []string{"hero.dae"}))
	assert.Contains(t, b.Script(), "select_objects([])")
	assert.Contains(t, b.Script(), `export_collada("hero.dae")`)
}

func TestBlenderUnsupportedFormatRunsNothing(t *testing.T) {
	fake := &fakeBlender{listing: heroListing}
	b := &Blender{Exe: "blender", BlendFile: "hero.blend", Run: fake.run}

	assert.ErrorIs(t, Run(b, []string{"hero.obj", "*"}), ErrUnsupportedFormat)
	assert.Empty(t, fake.args)
	assert.Empty(t, b.Script())
	require.NoError(t, b.Execute(io.Discard))
	assert.Empty(t, fake.args)
}
