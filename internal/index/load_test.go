package index

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, dir string, m *Manifest, ids []string, vectors []float32) {
	t.Helper()
	if m != nil {
		mb, _ := json.Marshal(m)
		if err := os.WriteFile(filepath.Join(dir, "index_manifest.json"), mb, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	ib, _ := json.Marshal(ids)
	if err := os.WriteFile(filepath.Join(dir, "id_map.json"), ib, 0o644); err != nil {
		t.Fatal(err)
	}
	vecFile, err := os.Create(filepath.Join(dir, "vectors.f32"))
	if err != nil {
		t.Fatal(err)
	}
	if err := binary.Write(vecFile, binary.LittleEndian, vectors); err != nil {
		_ = vecFile.Close()
		t.Fatal(err)
	}
	_ = vecFile.Close()
}

func TestLoad_IndexHappyPath(t *testing.T) {
	dir := t.TempDir()
	m := &Manifest{
		IndexVersion: 1,
		CreatedAt:    "2026-01-01T00:00:00Z",
		ModelID:      "hash:test",
		Dim:          2,
		Normalize:    true,
		Tombstones:   []string{"b"},
	}
	writeFixture(t, dir, m, []string{"a", "b"}, []float32{1, 0, 0, 1})

	a, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Manifest.Dim != 2 || a.Manifest.Count != 2 {
		t.Fatalf("manifest mismatch: %+v", a.Manifest)
	}
	if len(a.IDMap) != 2 || len(a.Vectors) != 4 {
		t.Fatalf("rows mismatch: ids=%d floats=%d", len(a.IDMap), len(a.Vectors))
	}
	if len(a.Manifest.Tombstones) != 1 {
		t.Fatalf("tombstones lost")
	}
}

func TestLoad_InfersDimWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, nil, []string{"a", "b"}, []float32{1, 0, 0, 0, 1, 0})

	a, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Manifest.Dim != 3 {
		t.Fatalf("expected inferred dim 3, got %d", a.Manifest.Dim)
	}
}

func TestLoad_MissingArtifacts(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}

	ib, _ := json.Marshal([]string{"a"})
	if err := os.WriteFile(filepath.Join(dir, "id_map.json"), ib, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error with vectors missing, got %v", err)
	}
}

func TestLoad_RejectsSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, &Manifest{Dim: 2}, []string{"a", "b"}, []float32{1, 0, 0})
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected size mismatch error")
	}
}

func TestLoad_RejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, &Manifest{Dim: 1}, []string{"a", "a"}, []float32{1, 1})
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestWriteLoad_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	in := &Artifacts{
		Manifest: Manifest{IndexVersion: 1, ModelID: "m", Dim: 2},
		IDMap:    []string{"x", "y"},
		Vectors:  []float32{0.6, 0.8, 1, 0},
	}
	if err := Write(dir, in); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Manifest.ModelID != "m" || out.Manifest.Count != 2 {
		t.Fatalf("manifest mismatch: %+v", out.Manifest)
	}
	for i := range in.Vectors {
		if in.Vectors[i] != out.Vectors[i] {
			t.Fatalf("vector %d: got %v want %v", i, out.Vectors[i], in.Vectors[i])
		}
	}

	if err := Write(dir, &Artifacts{Manifest: Manifest{Dim: 2}, IDMap: []string{"x"}, Vectors: []float32{1}}); !errors.Is(err, ErrVectorLengthMismatch) {
		t.Fatalf("expected length mismatch, got %v", err)
	}
}

func TestWrite_EmptyIndex(t *testing.T) {
	dir := t.TempDir()
	if err := Write(dir, &Artifacts{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	a, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(a.IDMap) != 0 || len(a.Vectors) != 0 {
		t.Fatalf("expected empty index")
	}
}

func TestAtomicSwap(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "index")
	src := filepath.Join(root, "new")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, "old"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "new"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := AtomicSwap(src, dest); err != nil {
		t.Fatalf("AtomicSwap: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "new")); err != nil {
		t.Fatalf("new content missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "old")); !os.IsNotExist(err) {
		t.Fatalf("old content still present")
	}
	if _, err := os.Stat(dest + ".bak"); !os.IsNotExist(err) {
		t.Fatalf("backup left behind")
	}
}

func TestVectorHelpers(t *testing.T) {
	v := NormalizeL2([]float32{3, 4})
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Fatalf("unexpected normalisation: %v", v)
	}
	z := NormalizeL2([]float32{0, 0})
	if z[0] != 0 || z[1] != 0 {
		t.Fatalf("zero vector changed: %v", z)
	}
	if d := Dot(v, v); math.Abs(d-1) > 1e-6 {
		t.Fatalf("unit vector dot itself = %v, want 1", d)
	}
	if d := Dot(v, NormalizeL2([]float32{-4, 3})); math.Abs(d) > 1e-6 {
		t.Fatalf("orthogonal dot = %v, want 0", d)
	}
	inf := NormalizeL2([]float32{float32(math.Inf(1)), 1})
	if inf[0] != 0 || inf[1] != 0 {
		t.Fatalf("non-finite vector should normalise to zero: %v", inf)
	}
}
