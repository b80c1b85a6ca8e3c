package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is one parsed scenario file.
type File struct {
	Path      string            `yaml:"-"`
	Name      string            `yaml:"name"`
	Platform  string            `yaml:"platform"`
	Tags      []string          `yaml:"tags"`
	Variables map[string]string `yaml:"variables"`
	Scenarios []*Scenario       `yaml:"scenarios"`
}

// Scenario is one logical test case. Its Name is the test identity used
// for retries, artifacts and reports.
type Scenario struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Platform    string   `yaml:"platform"`
	Skip        string   `yaml:"skip"`
	Only        bool     `yaml:"only"`
	Steps       []Step   `yaml:"steps"`
	// Before and After are shell commands run around the scenario. A leading
	// "-" ignores the command's failure.
	Before []string `yaml:"before"`
	After  []string `yaml:"after"`

	File string `yaml:"-"`
	Line int    `yaml:"-"`
	// Variables holds the file's variables
	Variables map[string]string `yaml:"-"`
}

// ID returns the test identity.
func (s *Scenario) ID() string {
	return s.Name
}

// Dir is the directory hooks run in.
func (s *Scenario) Dir() string {
	if s.File == "" {
		return "."
	}
	return filepath.Dir(s.File)
}

// ParseError is a problem in a scenario file.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// Extensions lists the file extensions LoadPaths picks up from directories.
var Extensions = []string{".yaml", ".yml"}

// ParseFile reads and parses a scenario file.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse parses scenario file content and validates it.
func Parse(data []byte, path string) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var root yaml.Node
	if err := dec.Decode(&root); err != nil {
		return nil, &ParseError{Path: path, Msg: err.Error()}
	}

	f := &File{}
	if err := decodeStrict(&root, f); err != nil {
		return nil, &ParseError{Path: path, Msg: err.Error()}
	}
	f.Path = path

	scenarioLines := scenarioLineNumbers(&root)
	for i, s := range f.Scenarios {
		if s == nil {
			continue
		}
		s.File = path
		if i < len(scenarioLines) {
			s.Line = scenarioLines[i]
		}
		if s.Platform == "" {
			s.Platform = f.Platform
		}
		s.Tags = mergeTags(f.Tags, s.Tags)
		s.Variables = f.Variables
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func decodeStrict(root *yaml.Node, f *File) error {
	if len(root.Content) == 0 {
		return errors.New("empty scenario file")
	}
	return root.Content[0].Decode(f)
}

func scenarioLineNumbers(root *yaml.Node) []int {
	if len(root.Content) == 0 {
		return nil
	}
	doc := root.Content[0]
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != "scenarios" {
			continue
		}
		var lines []int
		for _, item := range doc.Content[i+1].Content {
			lines = append(lines, item.Line)
		}
		return lines
	}
	return nil
}

func mergeTags(fileTags, own []string) []string {
	if len(fileTags) == 0 {
		return own
	}
	seen := make(map[string]bool, len(fileTags)+len(own))
	var out []string
	for _, t := range append(append([]string{}, fileTags...), own...) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Validate checks every scenario and step in f.
func (f *File) Validate() error {
	if len(f.Scenarios) == 0 {
		return &ParseError{Path: f.Path, Msg: "no scenarios"}
	}

	names := make(map[string]int)
	for i, s := range f.Scenarios {
		if s == nil {
			return &ParseError{Path: f.Path, Msg: fmt.Sprintf("scenario %d is empty", i+1)}
		}
		if strings.TrimSpace(s.Name) == "" {
			return &ParseError{Path: f.Path, Line: s.Line, Msg: "scenario without a name"}
		}
		if prev, dup := names[s.Name]; dup {
			return &ParseError{Path: f.Path, Line: s.Line, Msg: fmt.Sprintf("duplicate scenario %q (first at line %d)", s.Name, prev)}
		}
		names[s.Name] = s.Line

		if len(s.Steps) == 0 && s.Skip == "" {
			return &ParseError{Path: f.Path, Line: s.Line, Msg: fmt.Sprintf("scenario %q has no steps", s.Name)}
		}
		for _, st := range s.Steps {
			if err := st.Validate(); err != nil {
				return &ParseError{Path: f.Path, Line: st.Line, Msg: fmt.Sprintf("%s: %v", s.Name, err)}
			}
		}
	}
	return nil
}

// LoadPaths parses every file named, walking directories for scenario
// files. Scenario names must be unique across all files.
func LoadPaths(paths []string) ([]*File, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if hasScenarioExt(path) && !isConfigFile(d.Name()) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)

	var parsed []*File
	seen := make(map[string]string)
	for _, path := range files {
		f, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		for _, s := range f.Scenarios {
			if other, dup := seen[s.Name]; dup {
				return nil, &ParseError{Path: path, Line: s.Line, Msg: fmt.Sprintf("scenario %q also defined in %s", s.Name, other)}
			}
			seen[s.Name] = path
		}
		parsed = append(parsed, f)
	}
	return parsed, nil
}

// isConfigFile reports whether a directory walk should pass over name
// because it is a bankspec config file living next to the scenarios.
func isConfigFile(name string) bool {
	stem := strings.TrimSuffix(strings.ToLower(name), filepath.Ext(name))
	return stem == "bankspec" || stem == ".bankspec"
}

func hasScenarioExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
