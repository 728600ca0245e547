package gen

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/magefile/mage/sh"
	"github.com/qobs-build/nubs/internal/toolchain"
)

//
// structures for .vcxproj
//

type VSProject struct {
	XMLName              xml.Name                `xml:"Project"`
	DefaultTargets       string                  `xml:"DefaultTargets,attr"`
	ToolsVersion         string                  `xml:"ToolsVersion,attr"`
	XMLNS                string                  `xml:"xmlns,attr"`
	PropertyGroups       []VSPropertyGroup       `xml:"PropertyGroup"`
	ItemGroups           []VSItemGroup           `xml:"ItemGroup"`
	ImportGroups         []VSImportGroup         `xml:"ImportGroup"`
	ItemDefinitionGroups []VSItemDefinitionGroup `xml:"ItemDefinitionGroup"`
	Imports              []VSImport              `xml:"Import"`
}

type VSItemGroup struct {
	Label                 string                   `xml:"Label,attr,omitempty"`
	ProjectConfigurations []VSProjectConfiguration `xml:"ProjectConfiguration,omitempty"`
	ClCompiles            []VSClCompile            `xml:"ClCompile,omitempty"`
	ProjectReferences     []VSProjectReference     `xml:"ProjectReference,omitempty"`
}

type VSProjectConfiguration struct {
	Include       string `xml:"Include,attr"`
	Configuration string `xml:"Configuration"`
	Platform      string `xml:"Platform"`
}

type VSClCompile struct {
	Include string `xml:"Include,attr"`
}

type VSProjectReference struct {
	Include                 string `xml:"Include,attr"`
	Project                 string `xml:"Project"`
	Name                    string `xml:"Name"`
	LinkLibraryDependencies bool   `xml:"LinkLibraryDependencies"`
}

type VSPropertyGroup struct {
	Label                        string `xml:"Label,attr,omitempty"`
	Condition                    string `xml:"Condition,attr,omitempty"`
	PreferredToolArchitecture    string `xml:"PreferredToolArchitecture,omitempty"`
	ProjectGuid                  string `xml:"ProjectGuid,omitempty"`
	Keyword                      string `xml:"Keyword,omitempty"`
	WindowsTargetPlatformVersion string `xml:"WindowsTargetPlatformVersion,omitempty"`
	ProjectName                  string `xml:"ProjectName,omitempty"`
	ConfigurationType            string `xml:"ConfigurationType,omitempty"`
	PlatformToolset              string `xml:"PlatformToolset,omitempty"`
	CharacterSet                 string `xml:"CharacterSet,omitempty"`
	OutDir                       string `xml:"OutDir,omitempty"`
	IntDir                       string `xml:"IntDir,omitempty"`
	TargetName                   string `xml:"TargetName,omitempty"`
	TargetExt                    string `xml:"TargetExt,omitempty"`
	LinkIncremental              *bool  `xml:"LinkIncremental,omitempty"`
	GenerateManifest             bool   `xml:"GenerateManifest,omitempty"`
	UseDebugLibraries            *bool  `xml:"UseDebugLibraries,omitempty"`
	WholeProgramOptimization     *bool  `xml:"WholeProgramOptimization,omitempty"`
}

type VSImportGroup struct {
	Label   string     `xml:"Label,attr,omitempty"`
	Imports []VSImport `xml:"Import"`
}

type VSImport struct {
	Project   string `xml:"Project,attr"`
	Condition string `xml:"Condition,attr,omitempty"`
	Label     string `xml:"Label,attr,omitempty"`
}

type VSItemDefinitionGroup struct {
	Condition string          `xml:"Condition,attr"`
	ClCompile VSCppCompileDef `xml:"ClCompile"`
	Link      VSLinkDef       `xml:"Link"`
}

type VSCppCompileDef struct {
	WarningLevel                 string `xml:"WarningLevel"`
	SDLCheck                     bool   `xml:"SDLCheck"`
	AdditionalIncludeDirectories string `xml:"AdditionalIncludeDirectories"`
	PreprocessorDefinitions      string `xml:"PreprocessorDefinitions"`
	ConformanceMode              bool   `xml:"ConformanceMode"`
	Optimization                 string `xml:"Optimization,omitempty"`
	BasicRuntimeChecks           string `xml:"BasicRuntimeChecks,omitempty"`
	DebugInformationFormat       string `xml:"DebugInformationFormat,omitempty"`
	RuntimeLibrary               string `xml:"RuntimeLibrary,omitempty"`
	FunctionLevelLinking         *bool  `xml:"FunctionLevelLinking,omitempty"`
	IntrinsicFunctions           *bool  `xml:"IntrinsicFunctions,omitempty"`
	AdditionalOptions            string `xml:"AdditionalOptions,omitempty"`
}

type VSLinkDef struct {
	SubSystem                    string `xml:"SubSystem"`
	GenerateDebugInformation     *bool  `xml:"GenerateDebugInformation,omitempty"`
	AdditionalDependencies       string `xml:"AdditionalDependencies"`
	AdditionalLibraryDirectories string `xml:"AdditionalLibraryDirectories,omitempty"`
	ProgramDataBaseFile          string `xml:"ProgramDataBaseFile,omitempty"`
	ImportLibrary                string `xml:"ImportLibrary,omitempty"`
	AdditionalOptions            string `xml:"AdditionalOptions,omitempty"`
	EnableCOMDATFolding          *bool  `xml:"EnableCOMDATFolding,omitempty"`
	OptimizeReferences           *bool  `xml:"OptimizeReferences,omitempty"`
}

type VSFiltersProject struct {
	XMLName      xml.Name             `xml:"Project"`
	ToolsVersion string               `xml:"ToolsVersion,attr"`
	XMLNS        string               `xml:"xmlns,attr"`
	ItemGroups   []VSFiltersItemGroup `xml:"ItemGroup"`
}

type VSFiltersItemGroup struct {
	ClCompiles []VSFiltersClCompile `xml:"ClCompile,omitempty"`
	Filters    []VSFiltersFilter    `xml:"Filter,omitempty"`
}

type VSFiltersClCompile struct {
	Include string `xml:"Include,attr"`
	Filter  string `xml:"Filter"`
}

type VSFiltersFilter struct {
	Include          string `xml:"Include,attr"`
	UniqueIdentifier string `xml:"UniqueIdentifier"`
	Extensions       string `xml:"Extensions"`
}

//
// generator
//

// VS2022Gen writes one .vcxproj per target and a solution tying them together.
// Only the configuration/platform pair of its Settings is generated; other modes
// and architectures go to their own build directories.
type VS2022Gen struct {
	settings Settings
	targets  map[string]Target
	guids    map[string]string

	// Run invokes MSBuild; sh.RunV unless replaced
	Run func(cmd string, args ...string) error
}

func NewVS2022Gen(s Settings) *VS2022Gen {
	if s.Configuration == "" {
		s.Configuration = "Debug"
	}
	if s.Platform == "" {
		s.Platform = "x64"
	}
	return &VS2022Gen{
		settings: s,
		targets:  make(map[string]Target),
		guids:    make(map[string]string),
		Run:      sh.RunV,
	}
}

func (g *VS2022Gen) SetCompiler(cc, cxx string) {}

func (g *VS2022Gen) configPlatform() string {
	return g.settings.Configuration + "|" + g.settings.Platform
}

func (g *VS2022Gen) condition() string {
	return "'$(Configuration)|$(Platform)'=='" + g.configPlatform() + "'"
}

func (g *VS2022Gen) isDebug() bool {
	return g.settings.Configuration == "Debug"
}

func (g *VS2022Gen) sortedNames() []string {
	names := make([]string, 0, len(g.targets))
	for name := range g.targets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// BuildFile names the solution after the first executable target, or the first target
func (g *VS2022Gen) BuildFile() string {
	names := g.sortedNames()
	for _, name := range names {
		if g.targets[name].Kind == Executable {
			return name + ".sln"
		}
	}
	if len(names) > 0 {
		return names[0] + ".sln"
	}
	return "nubs.sln"
}

func (g *VS2022Gen) AddTarget(t Target) {
	g.targets[t.Name] = t
}

func (g *VS2022Gen) Generate(buildDir string) (string, error) {
	for _, name := range g.sortedNames() {
		if _, ok := g.guids[name]; !ok {
			g.guids[name] = strings.ToUpper(uuid.New().String())
		}
	}

	for _, name := range g.sortedNames() {
		target := g.targets[name]
		projectDir := filepath.Join(buildDir, name)
		if err := os.MkdirAll(projectDir, 0755); err != nil {
			return "", err
		}
		if err := g.generateProjectFile(projectDir, target); err != nil {
			return "", fmt.Errorf("failed to write project for %s: %w", name, err)
		}
		if err := g.generateFiltersFile(projectDir, target); err != nil {
			return "", fmt.Errorf("failed to write filters for %s: %w", name, err)
		}
	}

	return g.generateSolutionFile(), nil
}

func (g *VS2022Gen) generateSolutionFile() string {
	solutionGuid := strings.ToUpper(uuid.New().String())
	cp := g.configPlatform()
	var sb strings.Builder

	writeln(&sb, "Microsoft Visual Studio Solution File, Format Version 12.00")
	writeln(&sb, "# Visual Studio Version 17")
	for _, name := range g.sortedNames() {
		// Windows (Visual C++) https://github.com/VISTALL/visual-studio-project-type-guids
		writeln(&sb,
			`Project("{8BC9CEB8-8B4A-11D0-8D11-00A0C91BC942}") = "`, name, `", "`, name, `\`, name, `.vcxproj", "{`, g.guids[name], `}"`,
		)
		writeln(&sb, "EndProject")
	}
	writeln(&sb, "Global")
	writeln(&sb, "\tGlobalSection(SolutionConfigurationPlatforms) = preSolution")
	writeln(&sb, "\t\t", cp, " = ", cp)
	writeln(&sb, "\tEndGlobalSection")
	writeln(&sb, "\tGlobalSection(ProjectConfigurationPlatforms) = postSolution")
	for _, name := range g.sortedNames() {
		guid := g.guids[name]
		writeln(&sb, "\t\t{", guid, "}.", cp, ".ActiveCfg = ", cp)
		writeln(&sb, "\t\t{", guid, "}.", cp, ".Build.0 = ", cp)
	}
	writeln(&sb, "\tEndGlobalSection")
	writeln(&sb, "\tGlobalSection(SolutionProperties) = preSolution")
	writeln(&sb, "\t\tHideSolutionNode = FALSE")
	writeln(&sb, "\tEndGlobalSection")
	writeln(&sb, "\tGlobalSection(ExtensibilityGlobals) = postSolution")
	writeln(&sb, "\t\tSolutionGuid = {", solutionGuid, "}")
	writeln(&sb, "\tEndGlobalSection")
	writeln(&sb, "EndGlobal")

	return sb.String()
}

func (g *VS2022Gen) generateProjectFile(projectDir string, target Target) error {
	clCompiles := make([]VSClCompile, 0, len(target.Sources))
	for _, source := range target.Sources {
		relPath, err := filepath.Rel(projectDir, source)
		if err != nil {
			relPath = source
		}
		clCompiles = append(clCompiles, VSClCompile{Include: relPath})
	}

	projectRefs := make([]VSProjectReference, 0, len(target.Deps))
	for _, depName := range target.Deps {
		projectRefs = append(projectRefs, VSProjectReference{
			Include:                 fmt.Sprintf(`..\%s\%s.vcxproj`, depName, depName),
			Project:                 "{" + g.guids[depName] + "}",
			Name:                    depName,
			LinkLibraryDependencies: true,
		})
	}

	allPropertyGroups := []VSPropertyGroup{
		{PreferredToolArchitecture: "x64"},
		{
			Label:                        "Globals",
			ProjectGuid:                  "{" + g.guids[target.Name] + "}",
			Keyword:                      "Win32Proj",
			WindowsTargetPlatformVersion: "10.0",
			ProjectName:                  target.Name,
		},
	}
	allPropertyGroups = append(allPropertyGroups, g.createConfigurationPropertyGroups(target)...)

	allItemGroups := []VSItemGroup{
		{
			Label: "ProjectConfigurations",
			ProjectConfigurations: []VSProjectConfiguration{
				{Include: g.configPlatform(), Configuration: g.settings.Configuration, Platform: g.settings.Platform},
			},
		},
		{ClCompiles: clCompiles},
		{ProjectReferences: projectRefs},
	}

	allImports := []VSImport{
		{Project: `$(VCTargetsPath)\Microsoft.Cpp.Default.props`},
		{Project: `$(VCTargetsPath)\Microsoft.Cpp.props`},
		{Project: `$(UserRootDir)\Microsoft.Cpp.$(Platform).user.props`, Condition: `exists('$(UserRootDir)\Microsoft.Cpp.$(Platform).user.props')`, Label: "LocalAppDataPlatform"},
		{Project: `$(VCTargetsPath)\Microsoft.Cpp.targets`},
	}

	project := VSProject{
		DefaultTargets:       "Build",
		ToolsVersion:         "17.0",
		XMLNS:                "http://schemas.microsoft.com/developer/msbuild/2003",
		PropertyGroups:       allPropertyGroups,
		ItemGroups:           allItemGroups,
		ItemDefinitionGroups: []VSItemDefinitionGroup{g.createItemDefinitionGroup(target)},
		Imports:              allImports,
		ImportGroups:         []VSImportGroup{{Label: "ExtensionTargets"}},
	}

	output, err := xml.MarshalIndent(project, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(projectDir, target.Name+".vcxproj"), []byte(xml.Header+string(output)), 0644)
}

func (g *VS2022Gen) createConfigurationPropertyGroups(target Target) []VSPropertyGroup {
	debug := g.isDebug()
	release := !debug
	ext := filepath.Ext(target.Output)

	return []VSPropertyGroup{
		{
			Condition:                g.condition(),
			Label:                    "Configuration",
			ConfigurationType:        configurationType(target.Kind),
			PlatformToolset:          "v143",
			CharacterSet:             "Unicode",
			UseDebugLibraries:        &debug,
			WholeProgramOptimization: &release,
		},
		{
			Condition:        g.condition(),
			OutDir:           filepath.Dir(target.Output) + `\`,
			IntDir:           target.ObjectDir + `\`,
			TargetName:       strings.TrimSuffix(filepath.Base(target.Output), ext),
			TargetExt:        ext,
			LinkIncremental:  &debug,
			GenerateManifest: true,
		},
	}
}

func (g *VS2022Gen) createItemDefinitionGroup(target Target) VSItemDefinitionGroup {
	trueVal := true
	debug := g.isDebug()

	compile := VSCppCompileDef{
		WarningLevel:                 "Level3",
		SDLCheck:                     true,
		AdditionalIncludeDirectories: joinItems(target.IncludeDirs, "AdditionalIncludeDirectories"),
		PreprocessorDefinitions:      joinItems(append([]string{"WIN32", "_WINDOWS"}, target.Defines...), "PreprocessorDefinitions"),
		ConformanceMode:              true,
		AdditionalOptions:            joinOptions(append(slices.Clone(target.Cflags), target.Cxxflags...)),
	}
	link := VSLinkDef{
		SubSystem:                    "Console",
		GenerateDebugInformation:     &debug,
		AdditionalDependencies:       joinItems(libraryFiles(target), "AdditionalDependencies"),
		AdditionalLibraryDirectories: joinItems(target.LibraryDirs, "AdditionalLibraryDirectories"),
		ProgramDataBaseFile:          `$(OutDir)$(TargetName).pdb`,
		AdditionalOptions:            joinOptions(append(g.wholeArchiveOptions(target), target.Ldflags...)),
	}

	if debug {
		compile.Optimization = "Disabled"
		compile.BasicRuntimeChecks = "EnableFastChecks"
		compile.DebugInformationFormat = "ProgramDatabase"
		compile.RuntimeLibrary = "MultiThreadedDebugDLL"
	} else {
		compile.Optimization = "MaxSpeed"
		compile.RuntimeLibrary = "MultiThreadedDLL"
		compile.FunctionLevelLinking = &trueVal
		compile.IntrinsicFunctions = &trueVal
		link.EnableCOMDATFolding = &trueVal
		link.OptimizeReferences = &trueVal
	}

	return VSItemDefinitionGroup{Condition: g.condition(), ClCompile: compile, Link: link}
}

func (g *VS2022Gen) wholeArchiveOptions(target Target) []string {
	if !target.WholeArchive {
		return nil
	}
	var opts []string
	for _, dep := range target.Deps {
		if d, ok := g.targets[dep]; ok && d.Kind == StaticLibrary {
			opts = append(opts, "/WHOLEARCHIVE:"+filepath.Base(d.Output))
		}
	}
	return opts
}

func (g *VS2022Gen) generateFiltersFile(projectDir string, target Target) error {
	clCompiles := make([]VSFiltersClCompile, 0, len(target.Sources))
	for _, source := range target.Sources {
		relPath, err := filepath.Rel(projectDir, source)
		if err != nil {
			relPath = source
		}
		clCompiles = append(clCompiles, VSFiltersClCompile{Include: relPath, Filter: "Source Files"})
	}
	filters := VSFiltersProject{
		ToolsVersion: "17.0",
		XMLNS:        "http://schemas.microsoft.com/developer/msbuild/2003",
		ItemGroups: []VSFiltersItemGroup{
			{ClCompiles: clCompiles},
			{Filters: []VSFiltersFilter{{Include: "Source Files", UniqueIdentifier: "{" + strings.ToUpper(uuid.New().String()) + "}", Extensions: "cpp;c;cc;cxx;c++;cppm;ixx;def;odl;idl;hpj;bat;asm;asmx"}}},
		},
	}
	output, err := xml.MarshalIndent(filters, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(projectDir, target.Name+".vcxproj.filters"), []byte(xml.Header+string(output)), 0644)
}

func (g *VS2022Gen) Invoke(buildDir string) error {
	version := g.settings.MSBuildVersion
	if version == "" {
		version = toolchain.VersionSystem
	}
	locator := g.settings.Locator
	if locator == nil {
		locator = toolchain.NewLocator()
	}
	msbuild, err := locator.FindMSBuild(version, g.settings.Platform == "Win32")
	if err != nil {
		return err
	}

	return g.Run(msbuild,
		filepath.Join(buildDir, g.BuildFile()),
		"/p:Configuration="+g.settings.Configuration,
		"/p:Platform="+g.settings.Platform,
	)
}

func configurationType(kind Kind) string {
	switch kind {
	case StaticLibrary:
		return "StaticLibrary"
	case SharedLibrary:
		return "DynamicLibrary"
	default:
		return "Application"
	}
}

func joinItems(items []string, inherit string) string {
	return strings.Join(append(slices.Clone(items), "%("+inherit+")"), ";")
}

func joinOptions(opts []string) string {
	return strings.Join(append(slices.Clone(opts), "%(AdditionalOptions)"), " ")
}

// libraryFiles turns library names into the .lib files the MSVC linker expects
func libraryFiles(target Target) []string {
	libs := make([]string, 0, len(target.Libraries))
	for _, lib := range target.Libraries {
		if !strings.HasSuffix(strings.ToLower(lib), ".lib") {
			lib += ".lib"
		}
		libs = append(libs, lib)
	}
	return libs
}
