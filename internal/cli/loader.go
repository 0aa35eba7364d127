package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/shade/internal/harness"
)

// Error codes for scenario loading.
const (
	ErrCodeGeneric  = "E001" // Generic/unknown error
	ErrCodeScan     = "E002" // Directory scan error
	ErrCodeNoFiles  = "E003" // No scenario files found
	ErrCodeNotFound = "E005" // Path not found
	ErrCodeWrite    = "E007" // File write error
	ErrCodeSchema   = "E101" // Scenario does not match the schema
	ErrCodeScenario = "E102" // Scenario is well-formed but inconsistent
	ErrCodeDatabase = "E201" // Database cannot be opened or read
	ErrCodeDigest   = "E202" // Recorded exchange does not match its digest
	ErrCodeHex      = "E301" // Argument is not hex
)

// LoadError represents an error that occurred while loading a scenario.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // schema position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadScenarioFile loads one scenario and classifies failures.
func LoadScenarioFile(path string) (*harness.Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scenario not found: %s", path)}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a file: %s", path)}
	}

	scenario, err := harness.LoadScenario(path)
	if err == nil {
		return scenario, nil
	}
	var se *harness.SchemaError
	if errors.As(err, &se) {
		return nil, &LoadError{Code: ErrCodeSchema, Message: se.Message, Pos: se.Pos}
	}
	return nil, &LoadError{Code: ErrCodeScenario, Message: err.Error()}
}

// FindScenarioFiles returns the .yaml and .yml files under dir, sorted.
// filter, if set, is a glob matched against file names without extension.
func FindScenarioFiles(dir, filter string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scenarios directory not found: %s", dir)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// golden files sit next to scenarios
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScan, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	sort.Strings(files)
	return files, nil
}

// loadErrorCode returns the code of a LoadError, or ErrCodeGeneric.
func loadErrorCode(err error) (string, string) {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code, le.Message
	}
	return ErrCodeGeneric, err.Error()
}
