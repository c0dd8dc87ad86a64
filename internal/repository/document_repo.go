package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/liliang-cn/studydesk/internal/domain"
	"github.com/liliang-cn/studydesk/internal/vectorindex"
)

// DocumentRecord is a fully rehydrated document: catalog row, sidecar
// texts, and the vector index rebuilt from disk.
type DocumentRecord struct {
	Doc   *domain.Document
	Index *vectorindex.Flat
}

// DocumentRepository persists documents as a catalog row plus three
// sidecar files, with a write-through in-memory cache keyed by id.
type DocumentRepository struct {
	db *DB

	mu    sync.RWMutex
	cache map[string]*DocumentRecord
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *DB) *DocumentRepository {
	return &DocumentRepository{db: db, cache: make(map[string]*DocumentRecord)}
}

func (r *DocumentRepository) sidecarPaths(id string) (index, chunks, pages string) {
	dir := r.db.IndexDir()
	return filepath.Join(dir, id+".index"),
		filepath.Join(dir, id+"_chunks.json"),
		filepath.Join(dir, id+"_pages.json")
}

// Save writes the three sidecar files and upserts the catalog row.
// Saving the same id twice overwrites in place.
func (r *DocumentRepository) Save(doc *domain.Document, index *vectorindex.Flat) error {
	indexPath, chunksPath, pagesPath := r.sidecarPaths(doc.ID)

	if err := index.Save(indexPath); err != nil {
		return fmt.Errorf("%w: write index: %v", domain.ErrPersistenceFailed, err)
	}
	if err := writeJSON(chunksPath, doc.Chunks); err != nil {
		return fmt.Errorf("%w: write chunks: %v", domain.ErrPersistenceFailed, err)
	}
	if err := writeJSON(pagesPath, doc.Pages); err != nil {
		return fmt.Errorf("%w: write pages: %v", domain.ErrPersistenceFailed, err)
	}

	_, err := r.db.Exec(`
		INSERT INTO documents (id, filename, index_path, chunks_path, pages_path)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			index_path = excluded.index_path,
			chunks_path = excluded.chunks_path,
			pages_path = excluded.pages_path
	`, doc.ID, doc.Filename, indexPath, chunksPath, pagesPath)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}

	r.mu.Lock()
	r.cache[doc.ID] = &DocumentRecord{Doc: doc, Index: index}
	r.mu.Unlock()
	return nil
}

// Load returns the full record for id, rehydrating from disk on a cache
// miss. A missing document returns (nil, nil).
func (r *DocumentRepository) Load(id string) (*DocumentRecord, error) {
	r.mu.RLock()
	if rec, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return rec, nil
	}
	r.mu.RUnlock()

	var filename, indexPath, chunksPath, pagesPath string
	err := r.db.QueryRow(`
		SELECT filename, index_path, chunks_path, pages_path
		FROM documents WHERE id = ?
	`, id).Scan(&filename, &indexPath, &chunksPath, &pagesPath)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	doc := &domain.Document{ID: id, Filename: filename}
	if err := readJSON(chunksPath, &doc.Chunks); err != nil {
		return nil, fmt.Errorf("read chunks for %s: %w", id, err)
	}
	if err := readJSON(pagesPath, &doc.Pages); err != nil {
		return nil, fmt.Errorf("read pages for %s: %w", id, err)
	}
	index, err := vectorindex.Load(indexPath)
	if err != nil {
		return nil, fmt.Errorf("load index for %s: %w", id, err)
	}

	rec := &DocumentRecord{Doc: doc, Index: index}
	r.mu.Lock()
	r.cache[id] = rec
	r.mu.Unlock()
	return rec, nil
}

// FindByFilename returns the id of the document stored under filename,
// or "" when none exists. Uploads dedupe on filename.
func (r *DocumentRepository) FindByFilename(filename string) (string, error) {
	var id string
	err := r.db.QueryRow(`SELECT id FROM documents WHERE filename = ?`, filename).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

// List returns all documents sorted by filename ascending.
func (r *DocumentRepository) List() ([]domain.DocumentInfo, error) {
	rows, err := r.db.Query(`SELECT id, filename FROM documents ORDER BY filename ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.DocumentInfo
	for rows.Next() {
		var d domain.DocumentInfo
		if err := rows.Scan(&d.ID, &d.Filename); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Delete removes the catalog row, the sidecar files and the cache entry.
func (r *DocumentRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return domain.ErrNotFound
	}

	indexPath, chunksPath, pagesPath := r.sidecarPaths(id)
	for _, p := range []string{indexPath, chunksPath, pagesPath} {
		_ = os.Remove(p)
	}

	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
