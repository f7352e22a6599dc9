package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// ErrInvalidMonth is returned for a month not given as YYYY-MM.
var ErrInvalidMonth = errors.New("archive month must be YYYY-MM")

// maxArchiveSize bounds how much of an archive object is read into memory.
const maxArchiveSize = 64 << 20

// ArchiveReader loads archives written by Archiver.
type ArchiveReader struct {
	blobs domain.BlobReader
}

// NewArchiveReader creates an ArchiveReader over blobs.
func NewArchiveReader(blobs domain.BlobReader) *ArchiveReader {
	return &ArchiveReader{blobs: blobs}
}

// Load returns the archive of competition c. A competition that has not
// been archived yields domain.ErrNotFound.
func (r *ArchiveReader) Load(ctx context.Context, c domain.Competition) (Archive, error) {
	body, err := r.blobs.Get(ctx, ArchivePath(c))
	if err != nil {
		return Archive{}, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxArchiveSize+1))
	if err != nil {
		return Archive{}, fmt.Errorf("s3blob: read archive %s: %w", c.ID, err)
	}
	if len(data) > maxArchiveSize {
		return Archive{}, fmt.Errorf("s3blob: archive %s exceeds %d bytes", c.ID, maxArchiveSize)
	}
	return DecodeArchive(data)
}

// ArchivedCompetition is one archive object in a monthly listing.
type ArchivedCompetition struct {
	CompetitionID string    `json:"competition_id"`
	Path          string    `json:"path"`
	Size          int64     `json:"size"`
	ArchivedAt    time.Time `json:"archived_at"`
}

// ListMonth lists archives of competitions that ended in month, given as
// YYYY-MM.
func (r *ArchiveReader) ListMonth(ctx context.Context, month string) ([]ArchivedCompetition, error) {
	if _, err := time.Parse("2006-01", month); err != nil {
		return nil, fmt.Errorf("s3blob: archive month %q: %w", month, ErrInvalidMonth)
	}
	prefix := "archive/competitions/" + month + "/"
	infos, err := r.blobs.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make([]ArchivedCompetition, 0, len(infos))
	for _, info := range infos {
		name := strings.TrimPrefix(info.Path, prefix)
		if !strings.HasSuffix(name, ".jsonl") || strings.Contains(name, "/") {
			continue
		}
		out = append(out, ArchivedCompetition{
			CompetitionID: strings.TrimSuffix(name, ".jsonl"),
			Path:          info.Path,
			Size:          info.Size,
			ArchivedAt:    info.LastModified,
		})
	}
	return out, nil
}
