package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

// File names written by FileSink.
const (
	JSONFileName = "products.json"
	CSVFileName  = "products.csv"
)

// FileSink writes the result as indented JSON plus a CSV projection.
type FileSink struct {
	dir string
}

// NewFileSink creates a FileSink rooted at dir. The directory is created on
// first save.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Dir returns the output directory.
func (f *FileSink) Dir() string {
	return f.dir
}

// Save writes both files. Each file is replaced atomically so readers never
// observe a half-written snapshot.
func (f *FileSink) Save(_ context.Context, result *domain.ExtractionResult) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	if err := writeAtomic(filepath.Join(f.dir, JSONFileName), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}); err != nil {
		return fmt.Errorf("writing %s: %w", JSONFileName, err)
	}

	if err := writeAtomic(filepath.Join(f.dir, CSVFileName), func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(domain.ProductRowHeader); err != nil {
			return err
		}
		if err := cw.WriteAll(result.Rows()); err != nil {
			return err
		}
		return cw.Error()
	}); err != nil {
		return fmt.Errorf("writing %s: %w", CSVFileName, err)
	}

	return nil
}

// Latest reads back the JSON snapshot.
func (f *FileSink) Latest(_ context.Context) (*domain.ExtractionResult, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, JSONFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoResult
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", JSONFileName, err)
	}

	var result domain.ExtractionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", JSONFileName, err)
	}
	return &result, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
