// Package appfile reads and writes the output_<tier>.json artifacts that
// hand extracted applications from the extractor to the list manager.
package appfile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/haukened/risklists/internal/risk/domain"
)

//go:embed schema.json
var schemaJSON []byte

var (
	compiledSchema *gojsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

func getSchema() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return compiledSchema, compileErr
}

// File is a decoded artifact.
type File struct {
	Path    string
	Tier    domain.RiskTier
	Records []domain.ApplicationRecord
}

// Write encodes records as an indented JSON array and atomically replaces
// dir/output_<tier>.json. It returns the written path. A nil slice is
// written as an empty array.
func Write(dir string, tier domain.RiskTier, records []domain.ApplicationRecord) (string, error) {
	if !tier.Valid() {
		return "", fmt.Errorf("%w: invalid risk tier %d", domain.ErrInvalidArgument, tier)
	}
	if records == nil {
		records = []domain.ApplicationRecord{}
	}
	// refuse to write what Read would reject
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return "", fmt.Errorf("%w: record %d: %v", domain.ErrInvalidArgument, i, err)
		}
		if rec.RiskTier != tier {
			return "", fmt.Errorf("%w: record %d: risk tier %s does not match %s", domain.ErrInvalidArgument, i, rec.RiskTier, tier)
		}
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode records: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, tier.OutputFileName())
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// writeAtomic writes to a temp file in the target directory and renames it
// over path, so readers never observe a partial file.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Read loads and validates an artifact. The tier comes from the file name;
// every record must carry the same tier. All failures wrap ErrInvalidInput.
func Read(path string) (File, error) {
	tier, err := domain.ParseOutputFileName(path)
	if err != nil {
		return File{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return decode(path, tier, data)
}

func decode(path string, tier domain.RiskTier, data []byte) (File, error) {
	if !json.Valid(data) {
		return File{}, fmt.Errorf("%w: %s is not valid JSON", domain.ErrInvalidInput, path)
	}
	schema, err := getSchema()
	if err != nil {
		return File{}, fmt.Errorf("compiling record schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return File{}, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, path, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return File{}, fmt.Errorf("%w: %s: %s", domain.ErrInvalidInput, path, strings.Join(msgs, "; "))
	}

	var records []domain.ApplicationRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&records); err != nil {
		return File{}, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, path, err)
	}
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return File{}, fmt.Errorf("%w: %s record %d: %v", domain.ErrInvalidInput, path, i, err)
		}
		if r.RiskTier != tier {
			return File{}, fmt.Errorf("%w: %s record %d is %q, file is %q", domain.ErrInvalidInput, path, i, r.RiskTier, tier)
		}
	}
	if records == nil {
		records = []domain.ApplicationRecord{}
	}
	return File{Path: path, Tier: tier, Records: records}, nil
}

// Store binds Write and Read to an output directory for the services.
type Store struct {
	Dir string
}

// Write writes records for tier into s.Dir.
func (s Store) Write(tier domain.RiskTier, records []domain.ApplicationRecord) (string, error) {
	return Write(s.Dir, tier, records)
}

// Read reads the artifact at path. Relative paths are taken as given, not
// joined with s.Dir.
func (s Store) Read(path string) (domain.RiskTier, []domain.ApplicationRecord, error) {
	f, err := Read(path)
	if err != nil {
		return 0, nil, err
	}
	return f.Tier, f.Records, nil
}
