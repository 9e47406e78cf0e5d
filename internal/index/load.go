package index

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Load reads the index artifacts from dir. A missing id_map or vector blob
// yields an error wrapping fs.ErrNotExist. The manifest is optional; without
// it the width is inferred from the blob size.
func Load(dir string) (*Artifacts, error) {
	var m Manifest
	b, err := os.ReadFile(filepath.Join(dir, manifestFile))
	switch {
	case err == nil:
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("invalid manifest JSON in %s: %w", dir, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("cannot read manifest in %s: %w", dir, err)
	}
	if m.VectorFile == "" {
		m.VectorFile = vectorFile
	}
	if m.IDMapFile == "" {
		m.IDMapFile = idMapFile
	}

	ids, err := loadIDMap(filepath.Join(dir, m.IDMapFile))
	if err != nil {
		return nil, err
	}
	vectors, dim, err := loadVectors(filepath.Join(dir, m.VectorFile), len(ids), m.Dim)
	if err != nil {
		return nil, err
	}
	m.Dim = dim
	m.Count = len(ids)
	return &Artifacts{Manifest: m, IDMap: ids, Vectors: vectors}, nil
}

func loadIDMap(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read id map %s: %w", path, err)
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, fmt.Errorf("invalid id map JSON %s: %w", path, err)
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("id map %s lists %q twice", path, id)
		}
		seen[id] = struct{}{}
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func loadVectors(path string, nRows, dim int) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("cannot open vector file %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("cannot stat vector file %s: %w", path, err)
	}
	size := st.Size()
	if size%4 != 0 {
		return nil, 0, fmt.Errorf("vector file size is not multiple of 4 bytes: %d", size)
	}
	if nRows == 0 {
		if size != 0 {
			return nil, 0, fmt.Errorf("vector file %s has %d bytes but id map is empty", path, size)
		}
		return []float32{}, dim, nil
	}
	if dim <= 0 {
		floats := size / 4
		if floats%int64(nRows) != 0 {
			return nil, 0, fmt.Errorf("vector file size %d does not divide into %d rows", size, nRows)
		}
		dim = int(floats / int64(nRows))
	}

	expected := int64(nRows) * int64(dim) * 4
	if expected != size {
		return nil, 0, fmt.Errorf("vector file size mismatch: got %d want %d (rows=%d dim=%d)", size, expected, nRows, dim)
	}

	out := make([]float32, nRows*dim)
	if err := binary.Read(io.LimitReader(f, expected), binary.LittleEndian, out); err != nil {
		return nil, 0, fmt.Errorf("cannot read vectors from %s: %w", path, err)
	}
	return out, dim, nil
}
