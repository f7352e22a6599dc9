package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"

	// archivePageSize bounds each competition and bet page read from the
	// store.
	archivePageSize = 200

	// DefaultMultipartThreshold switches uploads to multipart above 8 MiB.
	DefaultMultipartThreshold int64 = 8 << 20
)

// ExistsChecker reports whether an object is already stored.
type ExistsChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// archiveLine is one JSONL row. The first row of a file carries the
// competition; every following row carries one bet.
type archiveLine struct {
	Kind        string              `json:"kind"`
	Competition *domain.Competition `json:"competition,omitempty"`
	Bet         *domain.Bet         `json:"bet,omitempty"`
}

// Archive is a decoded competition archive.
type Archive struct {
	Competition domain.Competition `json:"competition"`
	Bets        []domain.Bet       `json:"bets"`
}

// Archiver implements domain.Archiver. It writes each settled competition
// with all of its bets to archive/competitions/YYYY-MM/{id}.jsonl, keyed by
// the month the competition ended. Objects already present are skipped, so
// a pass can be repeated safely. Rows in the primary store are left alone.
type Archiver struct {
	writer    domain.BlobWriter
	exists    ExistsChecker
	store     domain.Transactor
	audit     domain.AuditStore
	threshold int64
	logger    *slog.Logger
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, exists ExistsChecker, store domain.Transactor, audit domain.AuditStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    writer,
		exists:    exists,
		store:     store,
		audit:     audit,
		threshold: DefaultMultipartThreshold,
		logger:    logger.With(slog.String("component", "s3_archiver")),
	}
}

// WithMultipartThreshold sets the payload size above which PutMultipart is
// used.
func (a *Archiver) WithMultipartThreshold(n int64) *Archiver {
	if n > 0 {
		a.threshold = n
	}
	return a
}

// ArchiveSettled uploads every resolved or cancelled competition that ended
// before endedBefore and is not archived yet. It returns the number of
// competitions uploaded by this call.
func (a *Archiver) ArchiveSettled(ctx context.Context, endedBefore time.Time) (int64, error) {
	filter := domain.CompetitionFilter{
		Statuses:    []domain.CompetitionStatus{domain.CompetitionStatusResolved, domain.CompetitionStatusCancelled},
		EndedBefore: &endedBefore,
	}

	var archived int64
	for offset := 0; ; offset += archivePageSize {
		var page []domain.Competition
		err := a.store.View(ctx, func(ctx context.Context, tx domain.Tx) error {
			list, err := tx.Competitions().List(ctx, filter, domain.ListOpts{Limit: archivePageSize, Offset: offset})
			page = list
			return err
		})
		if err != nil {
			return archived, fmt.Errorf("s3blob: list settled competitions: %w", err)
		}

		for _, c := range page {
			uploaded, err := a.archiveOne(ctx, c)
			if err != nil {
				return archived, err
			}
			if uploaded {
				archived++
			}
		}
		if len(page) < archivePageSize {
			break
		}
	}

	if archived > 0 && a.audit != nil {
		if err := a.audit.Log(ctx, "archive.competitions", map[string]any{
			"count":        archived,
			"ended_before": endedBefore.UTC().Format(time.RFC3339),
		}); err != nil {
			return archived, fmt.Errorf("s3blob: archive audit log: %w", err)
		}
	}
	return archived, nil
}

func (a *Archiver) archiveOne(ctx context.Context, c domain.Competition) (bool, error) {
	path := ArchivePath(c)
	ok, err := a.exists.Exists(ctx, path)
	if err != nil {
		return false, fmt.Errorf("s3blob: check archive %s: %w", path, err)
	}
	if ok {
		return false, nil
	}

	bets, err := a.loadBets(ctx, c.ID)
	if err != nil {
		return false, err
	}

	buf, err := encodeArchive(c, bets)
	if err != nil {
		return false, fmt.Errorf("s3blob: encode archive %s: %w", c.ID, err)
	}

	if int64(len(buf)) > a.threshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return false, fmt.Errorf("s3blob: upload archive %s: %w", path, err)
	}

	a.logger.InfoContext(ctx, "competition archived",
		slog.String("competition_id", c.ID),
		slog.String("path", path),
		slog.Int("bets", len(bets)),
		slog.Int("bytes", len(buf)),
	)
	return true, nil
}

func (a *Archiver) loadBets(ctx context.Context, competitionID string) ([]domain.Bet, error) {
	var bets []domain.Bet
	err := a.store.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		for offset := 0; ; offset += archivePageSize {
			page, err := tx.Bets().ListByCompetition(ctx, competitionID, domain.ListOpts{Limit: archivePageSize, Offset: offset})
			if err != nil {
				return err
			}
			bets = append(bets, page...)
			if len(page) < archivePageSize {
				return nil
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("s3blob: list bets %s: %w", competitionID, err)
	}
	return bets, nil
}

// ArchivePath returns the object key of a competition archive:
//
//	archive/competitions/2026-01/btc-eth-w1.jsonl
func ArchivePath(c domain.Competition) string {
	return fmt.Sprintf("archive/competitions/%s/%s.jsonl", c.EndTime.UTC().Format("2006-01"), c.ID)
}

func encodeArchive(c domain.Competition, bets []domain.Bet) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(archiveLine{Kind: "competition", Competition: &c}); err != nil {
		return nil, fmt.Errorf("jsonl encode competition: %w", err)
	}
	for i := range bets {
		if err := enc.Encode(archiveLine{Kind: "bet", Bet: &bets[i]}); err != nil {
			return nil, fmt.Errorf("jsonl encode bet %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeArchive parses a JSONL archive written by Archiver.
func DecodeArchive(data []byte) (Archive, error) {
	var out Archive
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	seen := false
	for n := 1; sc.Scan(); n++ {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var line archiveLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			return Archive{}, fmt.Errorf("s3blob: archive line %d: %w", n, err)
		}
		switch {
		case line.Kind == "competition" && line.Competition != nil:
			out.Competition = *line.Competition
			seen = true
		case line.Kind == "bet" && line.Bet != nil:
			out.Bets = append(out.Bets, *line.Bet)
		default:
			return Archive{}, fmt.Errorf("s3blob: archive line %d: unknown kind %q", n, line.Kind)
		}
	}
	if err := sc.Err(); err != nil {
		return Archive{}, fmt.Errorf("s3blob: scan archive: %w", err)
	}
	if !seen {
		return Archive{}, fmt.Errorf("s3blob: archive has no competition row")
	}
	return out, nil
}

var _ domain.Archiver = (*Archiver)(nil)
