package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Scenarios []ScenarioResult `json:"scenarios"`
}

// ScenarioResult records the outcome of one scenario file.
type ScenarioResult struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated", or "" when not compared
	Errors []string `json:"errors,omitempty"`
}

// OK reports whether every scenario passed.
func (r *SuiteResult) OK() bool {
	return r.Failed == 0
}

// Failures returns the scenarios that did not pass, in run order.
func (r *SuiteResult) Failures() []ScenarioResult {
	var out []ScenarioResult
	for _, s := range r.Scenarios {
		if !s.Pass {
			out = append(out, s)
		}
	}
	return out
}

// SuiteOption configures RunDir.
type SuiteOption func(*suiteConfig)

type suiteConfig struct {
	filter    string
	goldenDir string
	update    bool
}

// WithFilter runs only scenarios whose file name, without extension,
// matches the glob pattern.
func WithFilter(pattern string) SuiteOption {
	return func(c *suiteConfig) { c.filter = pattern }
}

// WithGoldenDir compares each trace against dir/{name}.golden. Scenarios
// without a golden file are judged on their assertions alone. With update
// set, golden files are rewritten instead of compared.
func WithGoldenDir(dir string, update bool) SuiteOption {
	return func(c *suiteConfig) {
		c.goldenDir = dir
		c.update = update
	}
}

// FindScenarioFiles returns the .yaml and .yml files directly under dir,
// sorted by name.
func FindScenarioFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scenario directory: %w", err)
	}
	if !info.IsDir() {
		return []string{dir}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scenario directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func filterFiles(files []string, pattern string) ([]string, error) {
	if pattern == "" {
		return files, nil
	}
	var out []string
	for _, f := range files {
		base := filepath.Base(f)
		matched, err := filepath.Match(pattern, strings.TrimSuffix(base, filepath.Ext(base)))
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if matched {
			out = append(out, f)
		}
	}
	return out, nil
}

// RunDir loads and runs every scenario under path, which may also be a
// single scenario file. Load and execution errors count as failures; the
// returned error is reserved for an unreadable path, a bad filter, or an
// empty selection.
func RunDir(ctx context.Context, path string, opts ...SuiteOption) (*SuiteResult, error) {
	cfg := &suiteConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	files, err := FindScenarioFiles(path)
	if err != nil {
		return nil, err
	}
	if files, err = filterFiles(files, cfg.filter); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", path)
	}

	suite := &SuiteResult{Scenarios: make([]ScenarioResult, 0, len(files))}
	for _, file := range files {
		sr := runFile(ctx, file, cfg)
		suite.Total++
		if sr.Pass {
			suite.Passed++
		} else {
			suite.Failed++
		}
		suite.Scenarios = append(suite.Scenarios, sr)
	}
	return suite, nil
}

func runFile(ctx context.Context, file string, cfg *suiteConfig) ScenarioResult {
	sr := ScenarioResult{Path: file}

	scenario, err := LoadScenario(file)
	if err != nil {
		sr.Errors = []string{err.Error()}
		return sr
	}
	sr.Name = scenario.Name

	result, err := Run(ctx, scenario)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
		return sr
	}
	sr.Errors = result.Errors

	if cfg.goldenDir != "" {
		status, err := checkGolden(cfg, scenario.Name, result)
		if err != nil {
			sr.Errors = append(sr.Errors, err.Error())
			return sr
		}
		sr.Golden = status
	}

	sr.Pass = result.Pass
	return sr
}

// checkGolden compares or rewrites dir/{name}.golden.
func checkGolden(cfg *suiteConfig, name string, result *Result) (string, error) {
	data, err := MarshalTrace(name, result)
	if err != nil {
		return "", fmt.Errorf("marshal trace: %w", err)
	}
	path := filepath.Join(cfg.goldenDir, name+".golden")

	if cfg.update {
		if err := os.MkdirAll(cfg.goldenDir, 0o755); err != nil {
			return "", fmt.Errorf("create golden directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("write golden file: %w", err)
		}
		return "updated", nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(want, data) {
		return "", fmt.Errorf("trace does not match golden file %s (run with --update to regenerate)", path)
	}
	return "match", nil
}
