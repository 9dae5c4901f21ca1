package downloader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anaishowland/oasive-db-sub000/internal/catalog"
	"github.com/anaishowland/oasive-db-sub000/internal/config"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
	"github.com/anaishowland/oasive-db-sub000/internal/remote"
	"github.com/anaishowland/oasive-db-sub000/internal/storage"
)

type fakeRemote struct {
	listing    []remote.FileInfo
	content    map[string][]byte
	failFor    map[string]int // remaining failing attempts per path
	shortFor   map[string]int // remaining truncated transfers per path
	fetches    int
	reconnects int
}

func (f *fakeRemote) List(ctx context.Context, dir string) ([]remote.FileInfo, error) {
	return f.listing, nil
}

func (f *fakeRemote) Fetch(ctx context.Context, remotePath string, w io.Writer) (int64, error) {
	f.fetches++
	if f.failFor[remotePath] > 0 {
		f.failFor[remotePath]--
		return 0, errors.New("connection reset")
	}
	data, ok := f.content[remotePath]
	if !ok {
		return 0, fmt.Errorf("no such file %s", remotePath)
	}
	if f.shortFor[remotePath] > 0 {
		f.shortFor[remotePath]--
		data = data[:len(data)/2]
	}
	n, err := w.Write(data)
	return int64(n), err
}

func (f *fakeRemote) Stat(ctx context.Context, remotePath string) (remote.FileInfo, error) {
	return remote.FileInfo{}, errors.New("not implemented")
}

func (f *fakeRemote) Reconnect() error {
	f.reconnects++
	return nil
}

func (f *fakeRemote) Close() error { return nil }

type fakeSink struct {
	objects map[string][]byte
}

func (f *fakeSink) Put(ctx context.Context, key string, reader io.Reader, metadata storage.ObjectMetadata) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = data
	return nil
}

func (f *fakeSink) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotFound
}

func (f *fakeSink) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeSink) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	return nil, nil
}

type fakeCatalog struct {
	entries    []catalog.Entry
	lostClaims map[int64]bool
	watermarks map[catalog.FileFamily]*time.Time

	filters    []catalog.Filter
	downloaded map[int64]string
	errored    map[int64]string
	requeued   bool
}

func newFakeCatalog(entries ...catalog.Entry) *fakeCatalog {
	return &fakeCatalog{
		entries:    entries,
		lostClaims: map[int64]bool{},
		watermarks: map[catalog.FileFamily]*time.Time{},
		downloaded: map[int64]string{},
		errored:    map[int64]string{},
	}
}

func (f *fakeCatalog) SelectForDownload(ctx context.Context, filter catalog.Filter) ([]catalog.Entry, error) {
	f.filters = append(f.filters, filter)

	var out []catalog.Entry
	for _, e := range f.entries {
		if len(filter.Families) > 0 && !containsFamily(filter.Families, e.FileType) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func containsFamily(families []catalog.FileFamily, family catalog.FileFamily) bool {
	for _, f := range families {
		if f == family {
			return true
		}
	}
	return false
}

func (f *fakeCatalog) Claim(ctx context.Context, id int64, from []catalog.State, to catalog.State) (bool, error) {
	return !f.lostClaims[id], nil
}

func (f *fakeCatalog) MarkDownloaded(ctx context.Context, id int64, sinkLocation string) error {
	f.downloaded[id] = sinkLocation
	return nil
}

func (f *fakeCatalog) MarkError(ctx context.Context, id int64, errMsg string) error {
	f.errored[id] = errMsg
	return nil
}

func (f *fakeCatalog) Watermark(ctx context.Context, family catalog.FileFamily) (*time.Time, error) {
	return f.watermarks[family], nil
}

func (f *fakeCatalog) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.requeued = true
	return 0, nil
}

type fakeReconciler struct {
	result catalog.ReconcileResult
	called bool
}

func (f *fakeReconciler) Reconcile(ctx context.Context, listing []remote.FileInfo) (catalog.ReconcileResult, error) {
	f.called = true
	return f.result, nil
}

func testCfg() config.DownloaderConfig {
	return config.DownloaderConfig{
		BatchSize:          100,
		MaxRetries:         3,
		InitialBackoff:     time.Millisecond,
		MaxBackoff:         5 * time.Millisecond,
		BackoffMultiplier:  2.0,
		LargeFileThreshold: 1 << 20,
		StaleClaimAge:      time.Hour,
	}
}

func testEntry(id int64, path, name string, family catalog.FileFamily, size int64) catalog.Entry {
	return catalog.Entry{
		ID:         id,
		RemotePath: path,
		Filename:   name,
		FileType:   family,
		FileDate:   sql.NullTime{Time: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Valid: true},
		RemoteSize: sql.NullInt64{Int64: size, Valid: true},
		State:      catalog.StatePending,
	}
}

func testService(cat *fakeCatalog, rem *fakeRemote, sink *fakeSink) (*Service, *fakeReconciler) {
	logger := observability.NewStdoutLogger("error", false)
	metrics := observability.NewStdoutMetrics()
	rec := &fakeReconciler{}
	return NewService(cat, rec, rem, sink, "/disclosures", testCfg(), logger, metrics), rec
}

func TestRun_FailedFileDoesNotStopBatch(t *testing.T) {
	good1 := []byte("pool-data-1")
	good2 := []byte("pool-data-22")

	cat := newFakeCatalog(
		testEntry(1, "/disclosures/FNM_IS_20240301.txt", "FNM_IS_20240301.txt", catalog.FamilyIssuance, int64(len(good1))),
		testEntry(2, "/disclosures/FNM_IS_20240302.txt", "FNM_IS_20240302.txt", catalog.FamilyIssuance, 10),
		testEntry(3, "/disclosures/FNM_IS_20240303.txt", "FNM_IS_20240303.txt", catalog.FamilyIssuance, int64(len(good2))),
	)
	rem := &fakeRemote{
		content: map[string][]byte{
			"/disclosures/FNM_IS_20240301.txt": good1,
			"/disclosures/FNM_IS_20240303.txt": good2,
		},
		failFor: map[string]int{"/disclosures/FNM_IS_20240302.txt": 99},
	}
	sink := &fakeSink{}
	svc, rec := testService(cat, rem, sink)

	summary, err := svc.Run(context.Background(), Options{Mode: ModeBackfill})
	require.NoError(t, err)

	assert.True(t, rec.called)
	assert.True(t, cat.requeued)
	assert.Equal(t, 2, summary.Downloaded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, int64(len(good1)+len(good2)), summary.Bytes)

	assert.Contains(t, cat.errored[2], "after 3 attempts")
	assert.Equal(t, "issuance/2024/03/FNM_IS_20240301.txt", cat.downloaded[1])
	assert.Equal(t, good2, sink.objects["issuance/2024/03/FNM_IS_20240303.txt"])
}

func TestRun_LostClaimIsSkipped(t *testing.T) {
	data := []byte("content")
	cat := newFakeCatalog(
		testEntry(1, "/disclosures/a.txt", "a.txt", catalog.FamilyIssuance, int64(len(data))),
		testEntry(2, "/disclosures/b.txt", "b.txt", catalog.FamilyIssuance, int64(len(data))),
	)
	cat.lostClaims[1] = true
	rem := &fakeRemote{content: map[string][]byte{
		"/disclosures/a.txt": data,
		"/disclosures/b.txt": data,
	}}
	svc, _ := testService(cat, rem, &fakeSink{})

	summary, err := svc.Run(context.Background(), Options{Mode: ModeBackfill})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Downloaded)
	assert.NotContains(t, cat.downloaded, int64(1))
}

func TestRun_SizeMismatchIsRetried(t *testing.T) {
	data := []byte("full-file-content")
	path := "/disclosures/FNM_MF_202403.txt"
	cat := newFakeCatalog(testEntry(1, path, "FNM_MF_202403.txt", catalog.FamilyFactor, int64(len(data))))
	rem := &fakeRemote{
		content:  map[string][]byte{path: data},
		shortFor: map[string]int{path: 1},
	}
	sink := &fakeSink{}
	svc, _ := testService(cat, rem, sink)

	summary, err := svc.Run(context.Background(), Options{Mode: ModeBackfill})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Downloaded)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 2, rem.fetches)
	assert.Equal(t, 1, rem.reconnects)
	assert.Equal(t, data, sink.objects["factor/2024/03/FNM_MF_202403.txt"])
}

func TestRun_CatalogModeOnlyReconciles(t *testing.T) {
	cat := newFakeCatalog(testEntry(1, "/disclosures/a.txt", "a.txt", catalog.FamilyIssuance, 5))
	rem := &fakeRemote{listing: []remote.FileInfo{{Path: "/disclosures/a.txt", Name: "a.txt", Size: 5}}}
	svc, rec := testService(cat, rem, &fakeSink{})
	rec.result = catalog.ReconcileResult{New: 1}

	summary, err := svc.Run(context.Background(), Options{Mode: ModeCatalog})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Discovered)
	assert.Equal(t, 1, summary.Cataloged)
	assert.Zero(t, summary.Downloaded)
	assert.Empty(t, cat.filters)
	assert.Zero(t, rem.fetches)
}

func TestRun_IncrementalBoundsEachFamilyByItsWatermark(t *testing.T) {
	issuanceMark := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	cat := newFakeCatalog()
	cat.watermarks[catalog.FamilyIssuance] = &issuanceMark

	rem := &fakeRemote{}
	svc, _ := testService(cat, rem, &fakeSink{})

	_, err := svc.Run(context.Background(), Options{
		Mode:     ModeIncremental,
		Families: []catalog.FileFamily{catalog.FamilyIssuance, catalog.FamilyFactor},
	})
	require.NoError(t, err)

	require.Len(t, cat.filters, 2)
	require.NotNil(t, cat.filters[0].NewerThan)
	assert.Equal(t, issuanceMark, *cat.filters[0].NewerThan)
	assert.Equal(t, []catalog.FileFamily{catalog.FamilyIssuance}, cat.filters[0].Families)
	assert.Nil(t, cat.filters[1].NewerThan)
	assert.Equal(t, []catalog.FileFamily{catalog.FamilyFactor}, cat.filters[1].Families)
	assert.False(t, cat.filters[0].IncludeError)
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"catalog", "incremental", "backfill"} {
		mode, err := ParseMode(valid)
		require.NoError(t, err)
		assert.Equal(t, Mode(valid), mode)
	}

	_, err := ParseMode("full")
	assert.Error(t, err)
}
