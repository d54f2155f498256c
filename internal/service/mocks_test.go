package service

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/lineupstore/internal/domain/model"
	"github.com/bigkaa/lineupstore/internal/repository"
	"github.com/bigkaa/lineupstore/internal/storage/imagenorm"
	"github.com/bigkaa/lineupstore/internal/storage/provider"
)

// --- Mock repositories ---

type mockSubmissionRepo struct {
	createFn               func(ctx context.Context, s *model.Submission) error
	getByIDFn              func(ctx context.Context, id string) (*model.Submission, error)
	listBySubmitterFn      func(ctx context.Context, submitterID string) ([]*model.Submission, error)
	listByStatusFn         func(ctx context.Context, status *model.SubmissionStatus, limit, offset int) ([]*model.Submission, error)
	reviewFn               func(ctx context.Context, id string, review model.SubmissionReview) error
	deleteFn               func(ctx context.Context, id string) error
	deleteByStatusesFn     func(ctx context.Context, submitterID *string, statuses []model.SubmissionStatus) ([]repository.DeletedSubmission, error)
	listPendingPublishedFn func(ctx context.Context, limit int) ([]string, error)
}

func (m *mockSubmissionRepo) Create(ctx context.Context, s *model.Submission) error {
	if m.createFn != nil {
		return m.createFn(ctx, s)
	}
	s.Status = model.SubmissionPending
	return nil
}

func (m *mockSubmissionRepo) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockSubmissionRepo) ListBySubmitter(ctx context.Context, submitterID string) ([]*model.Submission, error) {
	if m.listBySubmitterFn != nil {
		return m.listBySubmitterFn(ctx, submitterID)
	}
	return nil, nil
}

func (m *mockSubmissionRepo) ListByStatus(ctx context.Context, status *model.SubmissionStatus, limit, offset int) ([]*model.Submission, error) {
	if m.listByStatusFn != nil {
		return m.listByStatusFn(ctx, status, limit, offset)
	}
	return nil, nil
}

func (m *mockSubmissionRepo) Review(ctx context.Context, id string, review model.SubmissionReview) error {
	if m.reviewFn != nil {
		return m.reviewFn(ctx, id, review)
	}
	return nil
}

func (m *mockSubmissionRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockSubmissionRepo) DeleteByStatuses(ctx context.Context, submitterID *string, statuses []model.SubmissionStatus) ([]repository.DeletedSubmission, error) {
	if m.deleteByStatusesFn != nil {
		return m.deleteByStatusesFn(ctx, submitterID, statuses)
	}
	return nil, nil
}

func (m *mockSubmissionRepo) ListPendingPublished(ctx context.Context, limit int) ([]string, error) {
	if m.listPendingPublishedFn != nil {
		return m.listPendingPublishedFn(ctx, limit)
	}
	return nil, nil
}

// memPublicRepo — публичное хранилище в памяти с уникальностью source_id.
type memPublicRepo struct {
	mu        sync.Mutex
	bySource  map[string]*model.PublicLineup
	createErr error
	creates   int
}

func newMemPublicRepo() *memPublicRepo {
	return &memPublicRepo{bySource: make(map[string]*model.PublicLineup)}
}

func (m *memPublicRepo) Create(_ context.Context, pl *model.PublicLineup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	if pl.SourceID != nil {
		if _, ok := m.bySource[*pl.SourceID]; ok {
			return repository.ErrConflict
		}
	}
	pl.ID = uuid.NewString()
	cp := *pl
	if pl.SourceID != nil {
		m.bySource[*pl.SourceID] = &cp
	}
	return nil
}

func (m *memPublicRepo) GetBySourceID(_ context.Context, sourceID string) (*model.PublicLineup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pl, ok := m.bySource[sourceID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *pl
	return &cp, nil
}

func (m *memPublicRepo) ExistsBySourceID(_ context.Context, sourceID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bySource[sourceID]
	return ok, nil
}

func (m *memPublicRepo) CountBySourceIDs(_ context.Context, sourceIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range sourceIDs {
		if _, ok := m.bySource[id]; ok {
			n++
		}
	}
	return n, nil
}

func (m *memPublicRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for src, pl := range m.bySource {
		if pl.ID == id {
			delete(m.bySource, src)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memPublicRepo) DeleteMany(_ context.Context, ids []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted []string
	for _, id := range ids {
		for src, pl := range m.bySource {
			if pl.ID == id {
				delete(m.bySource, src)
				deleted = append(deleted, id)
				break
			}
		}
	}
	return deleted, nil
}

func (m *memPublicRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bySource)
}

// memDownloadLogs — журнал скачиваний в памяти.
type memDownloadLogs struct {
	mu        sync.Mutex
	entries   []*model.DownloadLog
	createErr error
}

func (m *memDownloadLogs) Create(_ context.Context, entry *model.DownloadLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	entry.ID = uuid.NewString()
	entry.CreatedAt = testNow
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memDownloadLogs) List(_ context.Context, limit, offset int) ([]*model.DownloadLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.DownloadLog
	for i := len(m.entries) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

type mockLineupRepo struct {
	getByIDFn         func(ctx context.Context, id string) (*model.Lineup, error)
	listPublishableFn func(ctx context.Context, userID string, filter model.SyncFilter) ([]*model.Lineup, error)
	updateImagesFn    func(ctx context.Context, id string, images model.Images) error
}

func (m *mockLineupRepo) GetByID(ctx context.Context, id string) (*model.Lineup, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockLineupRepo) ListPublishable(ctx context.Context, userID string, filter model.SyncFilter) ([]*model.Lineup, error) {
	if m.listPublishableFn != nil {
		return m.listPublishableFn(ctx, userID, filter)
	}
	return nil, nil
}

func (m *mockLineupRepo) UpdateImages(ctx context.Context, id string, images model.Images) error {
	if m.updateImagesFn != nil {
		return m.updateImagesFn(ctx, id, images)
	}
	return nil
}

// memQuotaRepo — счётчики квот в памяти.
type memQuotaRepo struct {
	mu     sync.Mutex
	counts map[string]int
	getErr error
}

func newMemQuotaRepo() *memQuotaRepo {
	return &memQuotaRepo{counts: make(map[string]int)}
}

func quotaKey(userID string, action model.QuotaAction, day time.Time) string {
	return userID + "|" + string(action) + "|" + day.Format(time.DateOnly)
}

func (m *memQuotaRepo) Get(_ context.Context, userID string, action model.QuotaAction, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.counts[quotaKey(userID, action, day)], nil
}

func (m *memQuotaRepo) GetMany(_ context.Context, userIDs []string, action model.QuotaAction, day time.Time) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, id := range userIDs {
		if c, ok := m.counts[quotaKey(id, action, day)]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (m *memQuotaRepo) Increment(_ context.Context, userID string, action model.QuotaAction, day time.Time, n int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := quotaKey(userID, action, day)
	m.counts[k] += n
	return m.counts[k], nil
}

func (m *memQuotaRepo) set(userID string, action model.QuotaAction, day time.Time, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[quotaKey(userID, action, day)] = n
}

type mockSettingsRepo struct {
	getLimitFn func(ctx context.Context, action model.QuotaAction) (int, error)
}

func (m *mockSettingsRepo) GetLimit(ctx context.Context, action model.QuotaAction) (int, error) {
	if m.getLimitFn != nil {
		return m.getLimitFn(ctx, action)
	}
	return 0, repository.ErrNotFound
}

type mockProfileRepo struct {
	getByUserIDFn func(ctx context.Context, userID string) (*model.UserProfile, error)
}

func (m *mockProfileRepo) GetByUserID(ctx context.Context, userID string) (*model.UserProfile, error) {
	if m.getByUserIDFn != nil {
		return m.getByUserIDFn(ctx, userID)
	}
	return nil, repository.ErrNotFound
}

// --- Mock storage ---

type mockNormalizer struct {
	normalizeFn func(data []byte) (*imagenorm.Result, error)
}

func (m *mockNormalizer) Normalize(data []byte) (*imagenorm.Result, error) {
	if m.normalizeFn != nil {
		return m.normalizeFn(data)
	}
	return &imagenorm.Result{Data: data, Ext: "webp", ContentType: "image/webp"}, nil
}

// memTempStorage — временная область в памяти: ключ → содержимое.
type memTempStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleted   []string
	seq       int
}

func newMemTempStorage() *memTempStorage {
	return &memTempStorage{objects: make(map[string][]byte)}
}

const tempBaseURL = "http://media.local/media"

func (m *memTempStorage) Upload(_ context.Context, data []byte, _ provider.Config, opts provider.UploadOptions) (*provider.UploadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	m.seq++
	key := opts.BasePath + "/" + strconv.Itoa(m.seq) + "." + opts.Ext
	m.objects[key] = data
	return &provider.UploadResult{URL: tempBaseURL + "/" + key, ObjectKey: key, Size: int64(len(data))}, nil
}

func (m *memTempStorage) DeletePrefix(_ context.Context, _ provider.Config, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, prefix)
	for k := range m.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(m.objects, k)
		}
	}
	return nil
}

func (m *memTempStorage) ObjectKeyFromURL(_ provider.Config, rawURL string) (string, bool) {
	p := tempBaseURL + "/"
	if len(rawURL) > len(p) && rawURL[:len(p)] == p {
		return rawURL[len(p):], true
	}
	return "", false
}

func (m *memTempStorage) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type mockMigrator struct {
	mu    sync.Mutex
	calls int
	fn    func(images map[model.Slot]string, target provider.Config, opts MigrateOptions) *MigrationResult
}

func (m *mockMigrator) MigrateSlots(_ context.Context, images map[model.Slot]string, target provider.Config, opts MigrateOptions) *MigrationResult {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(images, target, opts)
	}
	res := &MigrationResult{URLs: make(map[model.Slot]string), Errors: make(map[model.Slot]string)}
	for slot := range images {
		res.URLs[slot] = "https://cdn.example.com/" + string(slot) + ".webp"
	}
	return res
}

// fakeAdapter — провайдер с подменяемым Transfer.
type fakeAdapter struct {
	id         provider.ID
	mu         sync.Mutex
	transfers  map[string]int
	transferFn func(sourceURL string) (string, error)
}

func (a *fakeAdapter) ID() provider.ID { return a.id }

func (a *fakeAdapter) Upload(context.Context, []byte, provider.Config, provider.UploadOptions) (*provider.UploadResult, error) {
	return &provider.UploadResult{}, nil
}

func (a *fakeAdapter) Transfer(_ context.Context, sourceURL string, _ provider.Config, _ provider.UploadOptions) (string, error) {
	a.mu.Lock()
	if a.transfers == nil {
		a.transfers = make(map[string]int)
	}
	a.transfers[sourceURL]++
	a.mu.Unlock()
	if a.transferFn != nil {
		return a.transferFn(sourceURL)
	}
	return "https://cdn.example.com/migrated" + sourceURL[len("https://src.example.com"):], nil
}

func (a *fakeAdapter) PublicURL(_ provider.Config, key string) string {
	return "https://cdn.example.com/" + key
}

func (a *fakeAdapter) ObjectKeyFromURL(provider.Config, string) (string, bool) { return "", false }

type fakeResolver struct {
	adapter provider.Adapter
	err     error
}

func (r *fakeResolver) For(provider.Config) (provider.Adapter, error) {
	return r.adapter, r.err
}

type mockFetcher struct {
	fetchFn func(ctx context.Context, sourceURL string) (*provider.Fetched, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, sourceURL string) (*provider.Fetched, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, sourceURL)
	}
	return &provider.Fetched{Data: []byte("img:" + sourceURL), ContentType: "image/webp"}, nil
}

// --- Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestQuota(repo *memQuotaRepo, submissionLimit, downloadLimit int) *QuotaService {
	q := NewQuotaService(repo, &mockSettingsRepo{}, map[model.QuotaAction]int{
		model.QuotaSubmission: submissionLimit,
		model.QuotaDownload:   downloadLimit,
	}, time.UTC, time.Minute, testLogger())
	q.SetClock(func() time.Time { return testNow })
	return q
}

func publicCfg() provider.Config {
	return provider.NewConfig(provider.Aliyun, map[string]string{
		"accessKeyId":     "ak",
		"accessKeySecret": "sk",
		"bucket":          "bucket",
		"region":          "oss-cn-hangzhou",
	})
}

func tempCfg() provider.Config {
	return provider.NewConfig(provider.Local, map[string]string{
		"root":    "/tmp/media",
		"baseURL": tempBaseURL,
	})
}

func ptr[T any](v T) *T { return &v }
