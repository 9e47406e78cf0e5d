package index

const (
	manifestFile = "index_manifest.json"
	vectorFile   = "vectors.f32"
	idMapFile    = "id_map.json"
)

// Manifest describes a persisted index and how to interpret it.
type Manifest struct {
	IndexVersion int      `json:"index_version"`
	CreatedAt    string   `json:"created_at"`
	ModelID      string   `json:"model_id"`
	Dim          int      `json:"dim"`
	Normalize    bool     `json:"normalize"`
	Count        int      `json:"count"`
	VectorFile   string   `json:"vector_file"`
	IDMapFile    string   `json:"id_map_file"`
	Tombstones   []string `json:"tombstones,omitempty"`
}

// Artifacts is the on-disk form of an index: row i of Vectors belongs to IDMap[i].
type Artifacts struct {
	Manifest Manifest
	IDMap    []string
	Vectors  []float32
}
