package domain

// IndexingResult reports the outcome of indexing one file.
type IndexingResult struct {
	Success       bool   `json:"success"`
	DocumentID    string `json:"document_id,omitempty"`
	FilePath      string `json:"file_path"`
	TotalChunks   int    `json:"total_chunks"`
	IndexedChunks int    `json:"indexed_chunks"`
	Error         string `json:"error,omitempty"`
	ElapsedMS     int64  `json:"elapsed_ms"`
}

// IndexOptions carries the access metadata attached to an ingested file.
type IndexOptions struct {
	// AccessLevel defaults to Public when zero.
	AccessLevel AccessLevel

	// Department owns the document. Required for levels above Public.
	Department string

	// Title overrides the parsed title.
	Title string

	// Source overrides the origin recorded for the document (defaults to the path).
	Source string
}

// Normalise applies defaults.
func (o IndexOptions) Normalise() IndexOptions {
	if o.AccessLevel == 0 {
		o.AccessLevel = AccessPublic
	}
	return o
}
