package harness

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarises a batch of scenario runs.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure records one scenario that could not be loaded, could not
// run, or failed its checks.
type ScenarioFailure struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path"`
	Errors   []string `json:"errors"`
}

// FindScenarios returns the scenario files under path in lexical order. A
// file path is returned as is; a directory is walked for .yaml and .yml
// files.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var paths []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".yaml", ".yml":
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", path, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario under path.
//
// For each file:
// 1. Load and validate the scenario
// 2. Run it via Run
// 3. Collect failures
//
// The returned error is reserved for a path that cannot be read at all.
func RunSuite(path string, opts ...Option) (*SuiteResult, error) {
	paths, err := FindScenarios(path)
	if err != nil {
		return nil, err
	}

	suite := &SuiteResult{}
	for _, p := range paths {
		suite.TotalScenarios++

		scenario, err := LoadScenario(p)
		if err != nil {
			suite.fail(filepath.Base(p), p, fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}
		result, err := Run(scenario, opts...)
		if err != nil {
			suite.fail(scenario.Name, p, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}
		if !result.Pass {
			suite.fail(scenario.Name, p, result.Errors...)
			continue
		}
		suite.Passed++
	}
	return suite, nil
}

func (s *SuiteResult) fail(name, path string, errs ...string) {
	s.Failed++
	s.Failures = append(s.Failures, ScenarioFailure{Scenario: name, Path: path, Errors: errs})
}
