package gen

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"github.com/magefile/mage/sh"
	"github.com/qobs-build/nubs/internal/msg"
	"golang.org/x/sync/errgroup"
)

// BuildState represents the state of a build target for incremental builds
type BuildState struct {
	Sources      map[string]string `json:"sources,omitempty"`      // source file -> hash
	Headers      map[string]string `json:"headers,omitempty"`      // header file -> hash
	Dependencies map[string]string `json:"dependencies,omitempty"` // dependency output -> hash
	Flags        []string          `json:"flags,omitempty"`        // every compile and link flag
}

type compileJob struct {
	src    string
	obj    string
	cflags []string
	cc     string
}

type linkJob struct {
	name  string
	kind  Kind
	objs  []string
	deps  []string
	out   string
	flags []string
	cc    string
	level int // jobs of one level only depend on jobs of lower levels
}

// CommandRunner runs a tool to completion, streaming its output
type CommandRunner func(cmd string, args ...string) error

func execCommand(cmd string, args ...string) error {
	_, err := sh.Exec(nil, os.Stdout, os.Stderr, cmd, args...)
	return err
}

// NativeBuilder compiles and links targets itself, running independent jobs in parallel
// and skipping work whose inputs did not change since the last build.
type NativeBuilder struct {
	cc, cxx    string
	goos       string
	targets    map[string]Target
	buildDir   string
	stateFile  string
	buildState map[string]*BuildState
	jobs       int
	hashCache  map[string]string
	hashMu     sync.Mutex

	// Run executes compilers and archivers; replaced in tests
	Run CommandRunner
	// Archiver creates static libraries
	Archiver string
}

func NewNativeBuilder(goos string) *NativeBuilder {
	if goos == "" {
		goos = runtime.GOOS
	}
	return &NativeBuilder{
		goos:       goos,
		targets:    make(map[string]Target),
		buildState: make(map[string]*BuildState),
		jobs:       runtime.NumCPU(),
		hashCache:  make(map[string]string),
		Run:        execCommand,
		Archiver:   "ar",
	}
}

func (g *NativeBuilder) SetCompiler(cc, cxx string) {
	g.cc, g.cxx = cc, cxx
}

func (g *NativeBuilder) BuildFile() string {
	return "nubs_build_state.json"
}

func (g *NativeBuilder) AddTarget(t Target) {
	g.targets[t.Name] = t
}

func (g *NativeBuilder) Generate(string) (string, error) {
	return "", nil // no build file needed
}

// Invoke performs the actual build
func (g *NativeBuilder) Invoke(buildDir string) error {
	g.buildDir = buildDir
	g.stateFile = filepath.Join(buildDir, g.BuildFile())

	if err := g.loadBuildState(); err != nil {
		msg.Warn("failed to load build state: %v", err)
	}

	sortedTargetNames, err := g.topologicalSortTargets()
	if err != nil {
		return err
	}

	compileJobs, linkJobs, err := g.planBuild(sortedTargetNames)
	if err != nil {
		return fmt.Errorf("build planning failed: %w", err)
	}

	if len(compileJobs) == 0 && len(linkJobs) == 0 {
		msg.Info("no work to do")
		return nil
	}

	if err := g.executeBuild(compileJobs, linkJobs); err != nil {
		return err
	}

	if err := g.saveBuildState(); err != nil {
		msg.Warn("failed to save build state: %v", err)
	}

	return nil
}

func (g *NativeBuilder) targetFlags(t Target) []string {
	flags := compileFlags(t, true)
	return append(flags, linkFlags(t)...)
}

// planBuild determines which compile and link jobs are necessary
func (g *NativeBuilder) planBuild(sortedTargetNames []string) (allCompileJobs []compileJob, allLinkJobs []linkJob, err error) {
	rebuiltTargets := make(map[string]bool)
	levels := make(map[string]int)

	for _, targetName := range sortedTargetNames {
		target := g.targets[targetName]
		oldState := g.buildState[targetName]
		needsRelink := false

		level := 0
		for _, depName := range target.Deps {
			level = max(level, levels[depName]+1)
		}
		levels[targetName] = level

		// reason 1 for relink: output file is missing
		if _, err := os.Stat(target.Output); os.IsNotExist(err) {
			needsRelink = true
		}

		// reason 2 for relink: flags have changed
		if oldState != nil && !slices.Equal(oldState.Flags, g.targetFlags(target)) {
			needsRelink = true
		}

		// reason 3 for relink: a dependency was rebuilt
		for _, depName := range target.Deps {
			if rebuiltTargets[depName] {
				needsRelink = true
				break
			}
			depPath := g.targets[depName].Output
			hash, err := g.fileHash(depPath)
			if err != nil {
				if os.IsNotExist(err) {
					needsRelink = true
					break
				}
				return nil, nil, fmt.Errorf("failed to hash dependency %s: %w", depName, err)
			}
			if oldState == nil || oldState.Dependencies[depPath] != hash {
				needsRelink = true
				break
			}
		}

		headersChanged, err := g.headersChanged(target, oldState)
		if err != nil {
			return nil, nil, err
		}

		// determine which source files in this target are dirty
		var targetCompileJobs []compileJob
		for _, src := range target.Sources {
			objPath := objectPath(target, src, ".o")

			isDirty := headersChanged
			if !isDirty {
				isDirty, err = g.isSourceFileDirty(src, objPath, oldState)
				if err != nil {
					return nil, nil, fmt.Errorf("could not check status of %s: %w", src, err)
				}
			}
			if isDirty {
				compiler := g.cc
				if isCxx(src) {
					compiler = g.cxx
				}
				targetCompileJobs = append(targetCompileJobs, compileJob{
					src:    src,
					obj:    objPath,
					cflags: compileFlags(target, isCxx(src)),
					cc:     compiler,
				})
			}
		}

		// reason 4 for relink: one or more of its source files were recompiled
		if len(targetCompileJobs) > 0 {
			allCompileJobs = append(allCompileJobs, targetCompileJobs...)
			needsRelink = true
		}

		if needsRelink {
			rebuiltTargets[target.Name] = true
			job := g.createLinkJob(target)
			job.level = level
			allLinkJobs = append(allLinkJobs, job)
		}
	}

	return allCompileJobs, allLinkJobs, nil
}

// executeBuild runs the planned compile and link jobs and updates the build state.
// Link jobs run level by level so a target is only linked after everything it depends on.
func (g *NativeBuilder) executeBuild(compileJobs []compileJob, linkJobs []linkJob) error {
	if err := runJobs(compileJobs, g.runCompileJob, g.jobs); err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}

	for level := 0; len(linkJobs) > 0; level++ {
		var wave, rest []linkJob
		for _, job := range linkJobs {
			if job.level == level {
				wave = append(wave, job)
			} else {
				rest = append(rest, job)
			}
		}
		if err := runJobs(wave, g.runLinkJob, g.jobs); err != nil {
			return fmt.Errorf("linking failed: %w", err)
		}
		for _, job := range wave {
			if err := g.updateBuildState(g.targets[job.name]); err != nil {
				msg.Warn("failed to update build state for target %s: %v", job.name, err)
			}
		}
		linkJobs = rest
	}

	return nil
}

// headersChanged reports whether any header of the target differs from the last build
func (g *NativeBuilder) headersChanged(target Target, state *BuildState) (bool, error) {
	if state == nil {
		return len(target.Headers) > 0, nil
	}
	if len(state.Headers) != len(target.Headers) {
		return true, nil
	}
	for _, header := range target.Headers {
		hash, err := g.fileHash(header)
		if err != nil {
			if os.IsNotExist(err) {
				return true, nil
			}
			return true, fmt.Errorf("failed to hash header %s: %w", header, err)
		}
		if state.Headers[header] != hash {
			return true, nil
		}
	}
	return false, nil
}

// isSourceFileDirty checks if a single source file needs to be recompiled
func (g *NativeBuilder) isSourceFileDirty(src, objPath string, state *BuildState) (bool, error) {
	if _, err := os.Stat(objPath); os.IsNotExist(err) {
		return true, nil
	}

	if state == nil {
		return true, nil
	}

	hash, err := g.fileHash(src)
	if err != nil {
		if os.IsNotExist(err) {
			return true, fmt.Errorf("source file %s not found", src)
		}
		return true, err
	}
	if prevHash, exists := state.Sources[src]; !exists || prevHash != hash {
		return true, nil
	}

	return false, nil
}

// createLinkJob constructs a linkJob for a given target
func (g *NativeBuilder) createLinkJob(target Target) linkJob {
	objects := make([]string, len(target.Sources))
	for i, src := range target.Sources {
		objects[i] = objectPath(target, src, ".o")
	}

	dependencies := make([]string, len(target.Deps))
	for i, dep := range target.Deps {
		dependencies[i] = g.targets[dep].Output
	}

	linker := g.cc
	if g.hasCxxInTarget(target) {
		linker = g.cxx
	}

	return linkJob{
		name:  target.Name,
		kind:  target.Kind,
		objs:  objects,
		deps:  linkInputs(g.goos, dependencies, target.WholeArchive),
		out:   target.Output,
		flags: linkFlags(target),
		cc:    linker,
	}
}

func (g *NativeBuilder) topologicalSortTargets() ([]string, error) {
	graph := make(map[string][]string) // target -> targets that depend on it
	inDegree := make(map[string]int)   // target -> dependency count

	for name := range g.targets {
		graph[name] = []string{}
		inDegree[name] = 0
	}

	// build graph
	for name, target := range g.targets {
		for _, depName := range target.Deps {
			if _, ok := g.targets[depName]; !ok {
				return nil, fmt.Errorf("target `%s` lists a non-existent dependency: `%s`", name, depName)
			}

			graph[depName] = append(graph[depName], name)
			inDegree[name]++
		}
	}

	// queue of targets with indegree of 0
	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	slices.Sort(queue)

	var sortedOrder []string

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		sortedOrder = append(sortedOrder, u)

		slices.Sort(graph[u])

		// for each target v that depends on u
		for _, v := range graph[u] {
			inDegree[v]--
			// if v no longer has any unmet dependencies, add it to the queue
			if inDegree[v] == 0 {
				queue = append(queue, v)
			}
		}
	}

	// check cycles
	if len(sortedOrder) != len(g.targets) {
		var cycleNodes []string
		for name, degree := range inDegree {
			if degree > 0 {
				cycleNodes = append(cycleNodes, name)
			}
		}
		slices.Sort(cycleNodes)
		return nil, fmt.Errorf("dependency cycle detected involving targets: %v", cycleNodes)
	}

	return sortedOrder, nil
}

// loadBuildState loads the previous build state from disk
func (g *NativeBuilder) loadBuildState() error {
	f, err := os.Open(g.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no previous state, that's fine
		}
		return err
	}
	defer f.Close()
	return json.NewDecoder(bufio.NewReader(f)).Decode(&g.buildState)
}

// saveBuildState saves the current build state to disk
func (g *NativeBuilder) saveBuildState() error {
	data, err := json.MarshalIndent(g.buildState, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(g.stateFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(g.stateFile, data, 0644)
}

// fileHash computes the SHA256 hash of a file with an in-memory cache
func (g *NativeBuilder) fileHash(path string) (string, error) {
	g.hashMu.Lock()
	hash, ok := g.hashCache[path]
	g.hashMu.Unlock()
	if ok {
		return hash, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}

	hexHash := hex.EncodeToString(h.Sum(nil))
	g.hashMu.Lock()
	g.hashCache[path] = hexHash
	g.hashMu.Unlock()
	return hexHash, nil
}

// forget drops a cached hash after the file was rewritten
func (g *NativeBuilder) forget(path string) {
	g.hashMu.Lock()
	delete(g.hashCache, path)
	g.hashMu.Unlock()
}

// hasCxxInTarget checks if target or its dependencies have C++ sources
func (g *NativeBuilder) hasCxxInTarget(target Target) bool {
	if hasCxx(target.Sources) {
		return true
	}
	for _, depName := range target.Deps {
		if depTarget, exists := g.targets[depName]; exists {
			if g.hasCxxInTarget(depTarget) {
				return true
			}
		}
	}
	return false
}

// runJobs runs jobs in parallel
func runJobs[T any](jobs []T, jobfunc func(job T) error, limit int) error {
	if len(jobs) == 0 {
		return nil
	}

	eg, _ := errgroup.WithContext(context.Background())
	eg.SetLimit(limit)

	for _, job := range jobs {
		eg.Go(func() error {
			return jobfunc(job)
		})
	}

	return eg.Wait()
}

// runCompileJob runs a single compilation job
func (g *NativeBuilder) runCompileJob(job compileJob) error {
	if err := os.MkdirAll(filepath.Dir(job.obj), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	args := make([]string, 0, len(job.cflags)+4)
	args = append(args, job.cflags...)
	args = append(args, "-c", job.src, "-o", job.obj)

	msg.Step("Compiling", "%s", job.src)
	return g.Run(job.cc, args...)
}

// runLinkJob runs a single linking job
func (g *NativeBuilder) runLinkJob(job linkJob) error {
	if err := os.MkdirAll(filepath.Dir(job.out), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	defer g.forget(job.out)

	if job.kind == StaticLibrary {
		// ar appends to an existing archive
		if err := os.Remove(job.out); err != nil && !os.IsNotExist(err) {
			return err
		}
		args := []string{"rcs", job.out}
		args = append(args, job.objs...)

		msg.Step("Archiving", "%s", job.out)
		return g.Run(g.Archiver, args...)
	}

	args := []string{"-o", job.out}
	args = append(args, job.objs...)
	args = append(args, job.deps...)
	args = append(args, job.flags...)

	msg.Step("Linking", "%s", job.out)
	return g.Run(job.cc, args...)
}

// updateBuildState updates the build state for a target after a successful build
func (g *NativeBuilder) updateBuildState(target Target) error {
	state := &BuildState{
		Sources:      make(map[string]string),
		Headers:      make(map[string]string),
		Dependencies: make(map[string]string),
		Flags:        g.targetFlags(target),
	}

	for _, src := range target.Sources {
		hash, err := g.fileHash(src)
		if err != nil {
			return fmt.Errorf("failed to hash source file %s: %w", src, err)
		}
		state.Sources[src] = hash
	}

	for _, header := range target.Headers {
		hash, err := g.fileHash(header)
		if err != nil {
			return fmt.Errorf("failed to hash header %s: %w", header, err)
		}
		state.Headers[header] = hash
	}

	for _, dep := range target.Deps {
		depPath := g.targets[dep].Output
		hash, err := g.fileHash(depPath)
		if err != nil {
			msg.Warn("could not hash dependency %s for state update: %v", dep, err)
			continue
		}
		state.Dependencies[depPath] = hash
	}

	g.buildState[target.Name] = state
	return nil
}
