package domain

import "context"

// Format tags how a document was loaded.
type Format string

const (
	FormatPlain     Format = "plain"
	FormatPaginated Format = "paginated"
)

// PageSeparator joins page texts in Document.Content.
const PageSeparator = "\n\n"

// Page is the extracted text of one page of a paginated document.
type Page struct {
	Number int
	Text   string
}

// Document represents a single uploaded file loaded into the system.
// Content holds the full text; Pages is only set for paginated documents.
type Document struct {
	ID      string
	Path    string
	Format  Format
	Pages   []Page
	Content string
}

// Span locates a chunk inside its source document.
type Span struct {
	StartPage int
	EndPage   int
	Offset    int
}

// Chunk is a contiguous piece of a document used for indexing.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
	Span       *Span
}

// EmbeddedChunk pairs a chunk with the vector produced for it by the embedder.
type EmbeddedChunk struct {
	Chunk  Chunk
	Vector []float64
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Loader reads a file from disk into a Document.
type Loader interface {
	Load(ctx context.Context, path string) (Document, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(ctx context.Context, corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// VectorStore holds the embedded chunks of one session and supports similarity search.
// Build replaces whatever the store held before.
type VectorStore interface {
	Build(ctx context.Context, chunks []EmbeddedChunk) error
	Search(ctx context.Context, vector []float64, topK int) ([]SearchResult, error)
	Len() int
	Drop(ctx context.Context) error
}

// Translator converts text between two ISO language codes.
type Translator interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// Generator produces text for a prompt with deterministic sampling.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Synthesizer answers a question using only the supplied context chunks.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, chunks []Chunk) (string, error)
}
