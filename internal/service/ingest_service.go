package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liliang-cn/studydesk/internal/chunker"
	"github.com/liliang-cn/studydesk/internal/domain"
	"github.com/liliang-cn/studydesk/internal/embedding"
	"github.com/liliang-cn/studydesk/internal/extract"
	"github.com/liliang-cn/studydesk/internal/vectorindex"
)

// IngestService runs the upload pipeline: extract pages, filter noise,
// chunk, embed, index, persist. One upload builds one document; the
// single-writer contract means nothing else touches a document's
// artifacts during the build.
type IngestService struct {
	svc *Services
}

// NewIngestService creates a new ingest service
func NewIngestService(svc *Services) *IngestService {
	return &IngestService{svc: svc}
}

// Upload ingests a multipart file. Re-uploading a filename that already
// exists returns the existing document id without duplicating rows.
func (s *IngestService) Upload(ctx context.Context, file *multipart.FileHeader) (*domain.UploadResponse, error) {
	if !extract.Supported(file.Filename) {
		return nil, fmt.Errorf("%w: unsupported file type %q", domain.ErrBadInput, filepath.Ext(file.Filename))
	}

	if existing, err := s.svc.Documents.FindByFilename(file.Filename); err != nil {
		return nil, err
	} else if existing != "" {
		return &domain.UploadResponse{
			DocumentID: existing,
			Message:    "document already uploaded",
		}, nil
	}

	tmpPath, err := s.saveTemp(file)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpPath)

	doc, index, err := s.ingest(ctx, tmpPath, file.Filename)
	if err != nil {
		return nil, err
	}

	if err := s.svc.Documents.Save(doc, index); err != nil {
		return nil, err
	}

	s.svc.Logger.Info("document ingested",
		zap.String("document_id", doc.ID),
		zap.String("filename", doc.Filename),
		zap.Int("pages", len(doc.Pages)),
		zap.Int("chunks", len(doc.Chunks)))

	return &domain.UploadResponse{DocumentID: doc.ID, Message: "document processed successfully"}, nil
}

func (s *IngestService) saveTemp(file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open upload: %v", domain.ErrBadInput, err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "studydesk-upload-*"+filepath.Ext(file.Filename))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

// ingest builds a document record and its index from the file at path.
func (s *IngestService) ingest(ctx context.Context, path, filename string) (*domain.Document, *vectorindex.Flat, error) {
	pages, err := extract.Pages(path)
	if err != nil {
		return nil, nil, err
	}

	if s.svc.Cfg.Study.NoiseFilter {
		pages = extract.FilterPages(pages)
	}

	ck := chunker.New(s.svc.Cfg.Study.ChunkSize, s.svc.Cfg.Study.ChunkOverlap)
	chunks := ck.Split(pages)
	if len(chunks) == 0 {
		return nil, nil, fmt.Errorf("%w: document produced no chunks", domain.ErrExtractionFailed)
	}

	vectors, err := s.svc.Embedder.Embed(ctx, chunks, embedding.ModeDocument)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}

	index := vectorindex.NewFlat()
	if err := index.Add(vectors); err != nil {
		return nil, nil, err
	}
	if index.Size() != len(chunks) {
		return nil, nil, fmt.Errorf("index size %d does not match %d chunks", index.Size(), len(chunks))
	}

	return &domain.Document{
		ID:       uuid.New().String(),
		Filename: filename,
		Pages:    pages,
		Chunks:   chunks,
	}, index, nil
}

// List returns all documents sorted by filename.
func (s *IngestService) List() ([]domain.DocumentInfo, error) {
	return s.svc.Documents.List()
}

// Delete removes a document's catalog entry and sidecar files.
func (s *IngestService) Delete(id string) error {
	return s.svc.Documents.Delete(id)
}
