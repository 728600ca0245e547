package builder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// ProjectFileName is the name of the project file in a project directory
const ProjectFileName = "Nubs.toml"

const (
	KindLibrary       = "library"
	KindStaticLibrary = "static-library"
	KindExecutable    = "executable"
)

type ProjectFile struct {
	Project  ProjectSection            `toml:"project"`
	Layout   LayoutSection             `toml:"layout"`
	Target   TargetSection             `toml:"target"`
	Profile  map[string]ProfileSection `toml:"profile"`
	Packages map[string]PackageSection `toml:"packages"`
}

// ProjectSection defines the [project] section
type ProjectSection struct {
	Name          string `toml:"name"` // universal name, e.g. My.Awesome.Library
	Description   string `toml:"description"`
	Kind          string `toml:"kind"`
	Tests         bool   `toml:"tests"`
	TestName      string `toml:"test-name"`
	Build         string `toml:"build"`
	StampRevision bool   `toml:"stamp-revision"`
}

// LayoutSection defines the [layout] section
type LayoutSection struct {
	Source     string `toml:"source"`
	Include    string `toml:"include"`
	Tests      string `toml:"tests"`
	References string `toml:"references"`
}

// TargetSection defines the [target(.*)] section
type TargetSection struct {
	Sources  []string          `toml:"sources"` // glob patterns replacing the walk of the source directory
	Defines  map[string]string `toml:"defines"`
	Links    []string          `toml:"links"`
	Cflags   []string          `toml:"cflags"`
	Cxxflags []string          `toml:"cxxflags"`
	Ldflags  []string          `toml:"ldflags"`
}

// ProfileSection defines the [profile.debug] and [profile.release] sections
type ProfileSection struct {
	Defines  map[string]string `toml:"defines"`
	Cflags   []string          `toml:"cflags"`
	Cxxflags []string          `toml:"cxxflags"`
	Ldflags  []string          `toml:"ldflags"`
}

// PackageSection defines a [packages.<name>] section
type PackageSection struct {
	Libs       []string `toml:"libs"`
	HeaderOnly bool     `toml:"header-only"`
	TestsOnly  bool     `toml:"tests-only"`
	Path       string   `toml:"path"`
}

// References turns the [packages] sections into package references, sorted by name
func (p ProjectFile) References(tests bool) []PackageReference {
	names := make([]string, 0, len(p.Packages))
	for name := range p.Packages {
		names = append(names, name)
	}
	slices.Sort(names)

	var refs []PackageReference
	for _, name := range names {
		pkg := p.Packages[name]
		if pkg.TestsOnly != tests {
			continue
		}
		refs = append(refs, PackageReference{
			Name:       name,
			Libraries:  pkg.Libs,
			HeaderOnly: pkg.HeaderOnly,
			Dir:        pkg.Path,
		})
	}
	return refs
}

// mergeValues merges src into dst: slices are appended, maps are merged key by key
// (recursively for struct values), booleans are ORed and other non-zero values replace.
func mergeValues(dst, src reflect.Value) {
	switch dst.Kind() {
	case reflect.Struct:
		for i := range src.NumField() {
			if dst.Field(i).CanSet() {
				mergeValues(dst.Field(i), src.Field(i))
			}
		}
	case reflect.Slice:
		if !src.IsNil() {
			dst.Set(reflect.AppendSlice(dst, src))
		}
	case reflect.Map:
		if src.IsNil() {
			return
		}
		if dst.IsNil() {
			dst.Set(reflect.MakeMap(dst.Type()))
		}
		for _, key := range src.MapKeys() {
			existing := dst.MapIndex(key)
			if !existing.IsValid() || src.MapIndex(key).Kind() != reflect.Struct {
				dst.SetMapIndex(key, src.MapIndex(key))
				continue
			}
			merged := reflect.New(existing.Type()).Elem()
			merged.Set(existing)
			mergeValues(merged, src.MapIndex(key))
			dst.SetMapIndex(key, merged)
		}
	case reflect.Bool:
		dst.SetBool(dst.Bool() || src.Bool())
	default:
		if !src.IsZero() {
			dst.Set(src)
		}
	}
}

// mergeInto merges src into *dst, both of the same struct or map type
func mergeInto(dst, src any) error {
	dstVal := reflect.ValueOf(dst)
	if dstVal.Kind() != reflect.Pointer {
		return fmt.Errorf("dst must be a pointer")
	}
	srcVal := reflect.ValueOf(src)
	if srcVal.Kind() == reflect.Pointer {
		srcVal = srcVal.Elem()
	}
	if dstVal.Elem().Type() != srcVal.Type() {
		return fmt.Errorf("dst and src must be of the same type")
	}
	mergeValues(dstVal.Elem(), srcVal)
	return nil
}

func remarshal(data any, dst any) error {
	b, err := toml.Marshal(data)
	if err != nil {
		return err
	}
	return toml.Unmarshal(b, dst)
}

// unmarshalSection is a helper to parse sections without conditional logic
func unmarshalSection(rawCfg map[string]any, name string, dst any) error {
	if data, ok := rawCfg[name]; ok {
		if err := remarshal(data, dst); err != nil {
			return fmt.Errorf("failed to parse [%s] section: %w", name, err)
		}
	}
	return nil
}

// isCondition reports whether a table key is a boolean expression rather than a field or entry name
func isCondition(key string, env ConfigEnv) bool {
	_, err := expr.Compile(key, expr.Env(env), expr.AsBool())
	return err == nil
}

// unmarshalConditionalSection parses a section and merges in every sub-table whose key
// is a boolean expression that evaluates to true, in key order
func unmarshalConditionalSection[T any](rawCfg map[string]any, name string, dst *T, env ConfigEnv) error {
	sectionData, ok := rawCfg[name]
	if !ok {
		return nil
	}

	sectionMap, ok := sectionData.(map[string]any)
	if !ok {
		return fmt.Errorf("invalid [%s] section format: expected a table", name)
	}

	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range sectionMap {
		if subMap, ok := val.(map[string]any); ok && isCondition(key, env) {
			conditionalFields[key] = subMap
		} else {
			baseFields[key] = val
		}
	}

	if len(baseFields) > 0 {
		var base T
		if err := remarshal(baseFields, &base); err != nil {
			return fmt.Errorf("failed to parse base [%s] section: %w", name, err)
		}
		if err := mergeInto(dst, base); err != nil {
			return fmt.Errorf("failed to merge base [%s] section: %w", name, err)
		}
	}

	expressions := make([]string, 0, len(conditionalFields))
	for expression := range conditionalFields {
		expressions = append(expressions, expression)
	}
	slices.Sort(expressions)

	for _, expression := range expressions {
		program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
		if err != nil {
			return fmt.Errorf("failed to compile expression for [%s.%q]: %w", name, expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return fmt.Errorf("failed to run expression for [%s.%q]: %w", name, expression, err)
		}

		// merge sections if the result is true
		if matched, ok := result.(bool); !ok || !matched {
			continue
		}

		var condSection T
		if err := remarshal(conditionalFields[expression], &condSection); err != nil {
			return fmt.Errorf("failed to parse conditional section [%s.%q]: %w", name, expression, err)
		}
		if err := mergeInto(dst, condSection); err != nil {
			return fmt.Errorf("failed to merge conditional section [%s.%q]: %w", name, expression, err)
		}
	}

	return nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func evaluateString(s string, env ConfigEnv) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var builder strings.Builder
	lastIndex := 0

	for _, matchIndexes := range matches {
		fullMatchStart := matchIndexes[0]
		fullMatchEnd := matchIndexes[1]
		expressionStart := matchIndexes[2]
		expressionEnd := matchIndexes[3]

		builder.WriteString(s[lastIndex:fullMatchStart])

		expression := strings.TrimSpace(s[expressionStart:expressionEnd])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}

		fmt.Fprintf(&builder, "%v", result)
		lastIndex = fullMatchEnd
	}

	builder.WriteString(s[lastIndex:])

	return builder.String(), nil
}

// processExpressions recursively walks the parsed TOML data and evaluates expressions in strings.
// Keys are left alone since conditional table keys are expressions themselves.
func processExpressions(data any, env ConfigEnv) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			if key == "build" {
				continue // build scripts are expressions, not templates
			}
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processedVal
		}
		return v, nil
	case []any:
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processedItem
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

func ParseProjectFile(rdr io.Reader, env ConfigEnv) (*ProjectFile, error) {
	var rawConfig map[string]any
	dec := toml.NewDecoder(rdr)
	if err := dec.Decode(&rawConfig); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}

	processedConfig, err := processExpressions(rawConfig, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in project file: %w", err)
	}
	rawConfig = processedConfig.(map[string]any)

	cfg := new(ProjectFile)

	if err := unmarshalSection(rawConfig, "project", &cfg.Project); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "layout", &cfg.Layout); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "target", &cfg.Target, env); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "profile", &cfg.Profile, env); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "packages", &cfg.Packages, env); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *ProjectFile) validate() error {
	if p.Project.Name == "" {
		return errors.New("project.name is required")
	}
	switch p.Project.Kind {
	case "":
		p.Project.Kind = KindLibrary
	case KindLibrary, KindStaticLibrary, KindExecutable:
	default:
		return fmt.Errorf("unknown project.kind %q, expected %s, %s or %s", p.Project.Kind, KindLibrary, KindStaticLibrary, KindExecutable)
	}
	if p.Project.TestName == "" {
		p.Project.TestName = p.Project.Name + ".Tests"
	}
	return nil
}

// ParseProjectFileFromFile parses and validates a project file from a filepath
func ParseProjectFileFromFile(path string, env ConfigEnv) (*ProjectFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseProjectFile(bufio.NewReader(f), env)
}

//
// expr-lang helpers
//

func (p ProjectFile) RunBuildScript(env ConfigEnv) error {
	if p.Project.Build == "" {
		return nil
	}

	program, err := expr.Compile(p.Project.Build, expr.Env(env), expr.AsBool())
	if err != nil {
		return fmt.Errorf("failed to compile build script for project %q: %w", p.Project.Name, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return fmt.Errorf("failed to run build script for project %q: %w", p.Project.Name, err)
	}

	if result, ok := result.(bool); !ok || !result {
		return fmt.Errorf("build script for project %q returned false\n%s", p.Project.Name, p.Project.Build)
	}

	return nil
}

// ConfigEnv is the environment project file expressions are evaluated in
type ConfigEnv struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Mode       string            `expr:"mode"`
	Environ    map[string]string `expr:"environ"`
	basedir    string
}

// DotEnvFile is overlaid on the process environment when present in the project directory
const DotEnvFile = ".env"

// NewConfigEnv returns the environment for the given project directory, architecture and mode.
// Environ holds the process environment overlaid with the project's .env file.
func NewConfigEnv(basedir string, arch Arch, mode Mode) (ConfigEnv, error) {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.Index(e, "="); i >= 0 {
			environ[e[:i]] = e[i+1:]
		}
	}

	dotenv := filepath.Join(basedir, DotEnvFile)
	if _, err := os.Stat(dotenv); err == nil {
		overlay, err := godotenv.Read(dotenv)
		if err != nil {
			return ConfigEnv{}, fmt.Errorf("failed to read %s: %w", dotenv, err)
		}
		for k, v := range overlay {
			environ[k] = v
		}
	}

	return ConfigEnv{
		TargetOS:   runtime.GOOS,
		TargetArch: string(arch),
		Mode:       string(mode),
		Environ:    environ,
		basedir:    basedir,
	}, nil
}

// Getenv looks a variable up in Environ
func (env ConfigEnv) Getenv(key string) string {
	return env.Environ[key]
}

// resolve joins path to the project directory and rejects anything outside of it
func (env ConfigEnv) resolve(path string) (string, error) {
	fullPath := filepath.Join(env.basedir, path)
	rel, err := filepath.Rel(env.basedir, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside of project directory %q", path, env.basedir)
	}
	return fullPath, nil
}

// Patch applies a diff-match-patch patch to a file of the project.
// It reports whether any hunk applied.
func (env ConfigEnv) Patch(path, patchText string) (bool, error) {
	fullPath, err := env.resolve(path)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return false, err
	}

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patchText)
	if err != nil {
		return false, err
	}
	patchedText, results := dmp.PatchApply(patches, string(data))
	if !slices.Contains(results, true) {
		return false, nil // nothing was applied, nothing to write
	}

	if err := os.WriteFile(fullPath, []byte(patchedText), 0644); err != nil {
		return false, err
	}
	return true, nil
}

// ReadFile returns the contents of a file of the project
func (env ConfigEnv) ReadFile(path string) (string, error) {
	fullPath, err := env.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
