// Package index implements the persisted retrieval index: a YAML-backed
// document store with embedding vectors and cosine-similarity queries.
// The on-disk file is append-only shared state between builds; every
// add/query cycle holds the index flock so concurrent build processes
// never lose updates.
package index

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/rljarm/AIServer/internal/lock"
	"github.com/rljarm/AIServer/internal/model"
	atomicyaml "github.com/rljarm/AIServer/internal/yaml"
)

// Embedder produces one vector per input text. Satisfied by llm.Client.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type storeFile struct {
	SchemaVersion int        `yaml:"schema_version"`
	FileType      string     `yaml:"file_type"`
	Documents     []document `yaml:"documents"`
}

type document struct {
	ID     string    `yaml:"id"`
	Text   string    `yaml:"text"`
	Vector []float32 `yaml:"vector,flow"`
}

type Store struct {
	appDir   string
	path     string
	lockPath string
	embedder Embedder
	logger   *log.Logger

	mu sync.Mutex // serializes goroutines within this process; flock covers other processes
}

func NewStore(appDir string, embedder Embedder, logger *log.Logger) *Store {
	return &Store{
		appDir:   appDir,
		path:     filepath.Join(appDir, "index", "store.yaml"),
		lockPath: filepath.Join(appDir, "locks", "index.lock"),
		embedder: embedder,
		logger:   logger,
	}
}

// Add embeds and appends documents not already present. Duplicate texts are
// skipped, which makes re-indexing query results across builds idempotent.
func (s *Store) Add(ctx context.Context, docs []string) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fl, err := s.acquireFileLock()
	if err != nil {
		return err
	}
	defer fl.Unlock()

	sf, err := s.load()
	if err != nil {
		return err
	}

	existing := make(map[string]bool, len(sf.Documents))
	for _, d := range sf.Documents {
		existing[d.Text] = true
	}

	var fresh []string
	for _, text := range docs {
		if text == "" || existing[text] {
			continue
		}
		existing[text] = true
		fresh = append(fresh, text)
	}
	if len(fresh) == 0 {
		return nil
	}

	vectors, err := s.embedder.Embed(ctx, fresh)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(fresh) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(fresh))
	}

	for i, text := range fresh {
		id, err := model.GenerateID(model.IDTypeDocument)
		if err != nil {
			return fmt.Errorf("generate document ID: %w", err)
		}
		sf.Documents = append(sf.Documents, document{
			ID:     id,
			Text:   text,
			Vector: vectors[i],
		})
	}

	if err := atomicyaml.AtomicWrite(s.path, sf); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}

	if s.logger != nil {
		s.logger.Printf("[INFO] index_documents_added count=%d total=%d", len(fresh), len(sf.Documents))
	}
	return nil
}

// Query returns up to topK stored documents ranked by cosine similarity to
// text. An empty index yields no results and no error.
func (s *Store) Query(ctx context.Context, text string, topK int) ([]string, error) {
	if topK < 1 {
		topK = model.DefaultTopK
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fl, err := s.acquireFileLock()
	if err != nil {
		return nil, err
	}
	defer fl.Unlock()

	sf, err := s.load()
	if err != nil {
		return nil, err
	}
	if len(sf.Documents) == 0 {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for query", len(vectors))
	}
	query := vectors[0]

	type scored struct {
		text  string
		score float64
	}
	ranked := make([]scored, 0, len(sf.Documents))
	for _, d := range sf.Documents {
		ranked = append(ranked, scored{text: d.Text, score: cosine(query, d.Vector)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if topK > len(ranked) {
		topK = len(ranked)
	}
	results := make([]string, topK)
	for i := 0; i < topK; i++ {
		results[i] = ranked[i].text
	}
	return results, nil
}

// load reads the store file, creating an empty store when absent and
// quarantining a corrupt one before starting fresh.
func (s *Store) load() (*storeFile, error) {
	content, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s.emptyStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	var sf storeFile
	if err := yamlv3.Unmarshal(content, &sf); err != nil {
		return s.recover(fmt.Errorf("parse index: %w", err))
	}
	if err := atomicyaml.ValidateSchemaHeaderFromBytes(content, model.FileTypeIndex); err != nil {
		return s.recover(fmt.Errorf("index header: %w", err))
	}
	return &sf, nil
}

func (s *Store) recover(cause error) (*storeFile, error) {
	if s.logger != nil {
		s.logger.Printf("[WARN] index_corrupt error=%v", cause)
	}
	if err := atomicyaml.RecoverCorruptedFile(s.appDir, s.path); err != nil {
		return nil, fmt.Errorf("recover index: %w (cause: %v)", err, cause)
	}

	// A restored backup may be usable; anything else starts empty.
	content, err := os.ReadFile(s.path)
	if err != nil {
		return s.emptyStore(), nil
	}
	var sf storeFile
	if err := yamlv3.Unmarshal(content, &sf); err != nil {
		return s.emptyStore(), nil
	}
	if err := atomicyaml.ValidateSchemaHeaderFromBytes(content, model.FileTypeIndex); err != nil {
		return s.emptyStore(), nil
	}
	return &sf, nil
}

func (s *Store) emptyStore() *storeFile {
	return &storeFile{
		SchemaVersion: model.CurrentSchemaVersion,
		FileType:      model.FileTypeIndex,
	}
}

func (s *Store) acquireFileLock() (*lock.FileLock, error) {
	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	fl := lock.NewFileLock(s.lockPath)
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("lock index: %w", err)
	}
	return fl, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
