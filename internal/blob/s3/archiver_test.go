package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbet/internal/domain"
	"github.com/alanyoungcy/tokenbet/internal/store/memory"
)

// memBlobs is an in-memory BlobWriter and BlobReader.
type memBlobs struct {
	mu         sync.Mutex
	objects    map[string][]byte
	multiparts int
	failPut    error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (m *memBlobs) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if m.failPut != nil {
		return m.failPut
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = b
	return nil
}

func (m *memBlobs) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	m.mu.Lock()
	m.multiparts++
	m.mu.Unlock()
	return m.Put(ctx, path, data, jsonlContentType)
}

func (m *memBlobs) Exists(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok, nil
}

func (m *memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlobs) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BlobInfo
	for path, b := range m.objects {
		if strings.HasPrefix(path, prefix) {
			out = append(out, domain.BlobInfo{Path: path, Size: int64(len(b))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func seed(t *testing.T, store *memory.Store, comps []domain.Competition, bets []domain.Bet) {
	t.Helper()
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		for _, c := range comps {
			if err := tx.Competitions().Create(ctx, c); err != nil {
				return err
			}
		}
		for _, b := range bets {
			if err := tx.Bets().Create(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func competition(id string, status domain.CompetitionStatus, end time.Time) domain.Competition {
	return domain.Competition{
		ID:        id,
		AssetA:    "BTC",
		AssetB:    "ETH",
		StartTime: end.Add(-24 * time.Hour),
		EndTime:   end,
		Status:    status,
		CreatedAt: end.Add(-48 * time.Hour),
	}
}

func TestArchivePath(t *testing.T) {
	c := competition("btc-eth-w1", domain.CompetitionStatusResolved, time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, "archive/competitions/2026-01/btc-eth-w1.jsonl", ArchivePath(c))
}

func TestArchiver_ArchiveSettled(t *testing.T) {
	ctx := context.Background()
	end := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	store := memory.New()
	seed(t, store,
		[]domain.Competition{
			competition("resolved", domain.CompetitionStatusResolved, end),
			competition("cancelled", domain.CompetitionStatusCancelled, end),
			competition("closed", domain.CompetitionStatusClosed, end),
			competition("recent", domain.CompetitionStatusResolved, end.Add(30*24*time.Hour)),
		},
		[]domain.Bet{
			{CompetitionID: "resolved", Participant: "0x01", ChosenAsset: "BTC", Amount: 100, Timestamp: end.Add(-time.Hour)},
			{CompetitionID: "resolved", Participant: "0x02", ChosenAsset: "ETH", Amount: 100, Timestamp: end.Add(-time.Minute)},
		},
	)

	blobs := newMemBlobs()
	audit := memory.NewAuditStore()
	a := NewArchiver(blobs, blobs, store, audit, testLogger)

	n, err := a.ArchiveSettled(ctx, end.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Len(t, blobs.objects, 2)

	raw := blobs.objects["archive/competitions/2026-02/resolved.jsonl"]
	require.NotEmpty(t, raw)
	got, err := DecodeArchive(raw)
	require.NoError(t, err)
	assert.Equal(t, "resolved", got.Competition.ID)
	assert.Len(t, got.Bets, 2)

	entries, err := audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "archive.competitions", entries[0].Event)

	// A second pass finds everything archived already.
	n, err = a.ArchiveSettled(ctx, end.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
	entries, err = audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestArchiver_Multipart(t *testing.T) {
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := memory.New()
	seed(t, store, []domain.Competition{competition("big", domain.CompetitionStatusResolved, end)}, nil)

	blobs := newMemBlobs()
	a := NewArchiver(blobs, blobs, store, nil, testLogger).WithMultipartThreshold(10)

	n, err := a.ArchiveSettled(context.Background(), end.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, blobs.multiparts)
}

func TestArchiver_UploadFailure(t *testing.T) {
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := memory.New()
	seed(t, store, []domain.Competition{competition("c1", domain.CompetitionStatusResolved, end)}, nil)

	blobs := newMemBlobs()
	blobs.failPut = errors.New("bucket unavailable")
	a := NewArchiver(blobs, blobs, store, nil, testLogger)

	n, err := a.ArchiveSettled(context.Background(), end.Add(time.Hour))
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Contains(t, err.Error(), "bucket unavailable")
}

func TestDecodeArchive_Errors(t *testing.T) {
	_, err := DecodeArchive([]byte(`{"kind":"bet","bet":{"competition_id":"x"}}` + "\n"))
	assert.Error(t, err, "missing competition row")

	_, err = DecodeArchive([]byte(`{"kind":"trade"}` + "\n"))
	assert.Error(t, err)

	_, err = DecodeArchive([]byte("not json\n"))
	assert.Error(t, err)
}

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "a/b.jsonl", joinKey("", "/a/b.jsonl"))
	assert.Equal(t, "prod/a/b.jsonl", joinKey("prod", "a/b.jsonl"))
	assert.Equal(t, "prod/", joinKey("prod", ""))
}

func TestWithScheme(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", withScheme("s3.example.com", true))
	assert.Equal(t, "http://minio.local", withScheme("minio.local", false))
	assert.Equal(t, "http://localhost:9000", withScheme("http://localhost:9000", true))
	assert.Equal(t, "http://localhost:9000", withScheme("localhost:9000", false))
}

func TestArchiveReader(t *testing.T) {
	ctx := context.Background()
	end := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	store := memory.New()
	c := competition("sol-avax", domain.CompetitionStatusResolved, end)
	c.Winner = "SOL"
	seed(t, store, []domain.Competition{c}, []domain.Bet{
		{CompetitionID: "sol-avax", Participant: "0xaa", ChosenAsset: "SOL", Amount: 100, Timestamp: end.Add(-time.Hour)},
	})

	blobs := newMemBlobs()
	_, err := NewArchiver(blobs, blobs, store, nil, testLogger).ArchiveSettled(ctx, end.Add(time.Hour))
	require.NoError(t, err)

	reader := NewArchiveReader(blobs)

	arch, err := reader.Load(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "SOL", arch.Competition.Winner)
	require.Len(t, arch.Bets, 1)
	assert.Equal(t, "0xaa", arch.Bets[0].Participant)

	list, err := reader.ListMonth(ctx, "2026-03")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "sol-avax", list[0].CompetitionID)

	_, err = reader.Load(ctx, competition("missing", domain.CompetitionStatusResolved, end))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = reader.ListMonth(ctx, "march")
	assert.ErrorIs(t, err, ErrInvalidMonth)
}
