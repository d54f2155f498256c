// Пакет provider — единый контракт загрузки в объектные хранилища.
//
// Каждый вендор реализует objectStore (single PUT + multipart), а общая
// логика адаптера отвечает за валидацию конфигурации, выбор пути по размеру,
// один повтор при временной ошибке, прогресс, ключи объектов и публичные URL.
// Адаптеры выбираются через Registry по идентификатору провайдера.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MultipartThreshold — с этого размера используется multipart-загрузка.
	MultipartThreshold = 4 << 20
	// PartSize — размер части multipart-загрузки.
	PartSize = 512 << 10
	// DefaultAttemptTimeout — таймаут одной попытки загрузки.
	DefaultAttemptTimeout = 60 * time.Second
	// DefaultMaxAttempts — всего попыток (первая + один повтор).
	DefaultMaxAttempts = 2
)

// Метрики загрузок.
var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lm_provider_uploads_total",
			Help: "Количество загрузок в объектные хранилища",
		},
		[]string{"provider", "path", "result"},
	)

	uploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lm_provider_upload_duration_seconds",
			Help:    "Длительность загрузки в объектное хранилище",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "path"},
	)
)

// ProgressFunc получает долю загруженных данных в диапазоне [0, 1].
type ProgressFunc func(fraction float64)

// UploadOptions — параметры одной загрузки.
type UploadOptions struct {
	// BasePath переопределяет basePath из конфигурации.
	BasePath string
	// Ext — расширение ключа объекта (без точки).
	Ext string
	// ContentType — MIME-тип содержимого.
	ContentType string
	// Progress вызывается на multipart-пути после каждой части.
	Progress ProgressFunc
}

// UploadResult — результат загрузки.
type UploadResult struct {
	URL         string
	ObjectKey   string
	ContentType string
	Size        int64
}

// Adapter — контракт провайдера объектного хранилища.
type Adapter interface {
	// ID возвращает идентификатор провайдера.
	ID() ID
	// Upload загружает данные и возвращает публичный URL и ключ объекта.
	Upload(ctx context.Context, data []byte, cfg Config, opts UploadOptions) (*UploadResult, error)
	// Transfer скачивает источник и загружает его через Upload.
	Transfer(ctx context.Context, sourceURL string, cfg Config, opts UploadOptions) (string, error)
	// PublicURL детерминированно строит URL по ключу объекта.
	PublicURL(cfg Config, objectKey string) string
	// ObjectKeyFromURL извлекает ключ объекта из публичного URL этого провайдера.
	ObjectKeyFromURL(cfg Config, rawURL string) (string, bool)
}

// PrefixDeleter — провайдер, умеющий удалять объекты по префиксу ключа.
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, cfg Config, prefix string) error
}

// CompletedPart — загруженная часть multipart-загрузки.
type CompletedPart struct {
	Number int
	ETag   string
}

// objectStore — операции вендорского хранилища для одного бакета.
type objectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	InitiateMultipart(ctx context.Context, key, contentType string) (uploadID string, err error)
	UploadPart(ctx context.Context, key, uploadID string, partNumber int, data []byte) (etag string, err error)
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) error
	AbortMultipart(ctx context.Context, key, uploadID string) error
}

// backend — вендор-специфичная часть адаптера.
type backend interface {
	// openStore создаёт клиент хранилища для валидной конфигурации.
	openStore(cfg Config) (objectStore, error)
	// baseURL возвращает публичный адрес бакета без завершающего слэша.
	baseURL(cfg Config) string
}

// Options — параметры повторов адаптера.
type Options struct {
	AttemptTimeout time.Duration
	MaxAttempts    int
	RetryDelay     time.Duration
}

func (o Options) withDefaults() Options {
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = DefaultAttemptTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 500 * time.Millisecond
	}
	return o
}

// adapter — общая реализация Adapter поверх backend.
type adapter struct {
	id      ID
	backend backend
	fetcher *Fetcher
	opts    Options
	logger  *slog.Logger
}

func newAdapter(id ID, b backend, fetcher *Fetcher, opts Options, logger *slog.Logger) *adapter {
	return &adapter{
		id:      id,
		backend: b,
		fetcher: fetcher,
		opts:    opts.withDefaults(),
		logger:  logger.With(slog.String("component", "provider"), slog.String("provider", string(id))),
	}
}

func (a *adapter) ID() ID { return a.id }

// Upload загружает данные в хранилище.
func (a *adapter) Upload(ctx context.Context, data []byte, cfg Config, opts UploadOptions) (*UploadResult, error) {
	// 1. Валидация конфигурации до любого сетевого вызова
	if cfg.Provider != a.id {
		return nil, fmt.Errorf("%w: конфигурация %q передана адаптеру %q", ErrUnsupportedProvider, cfg.Provider, a.id)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("пустые данные для загрузки")
	}

	store, err := a.backend.openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("инициализация клиента %s: %w", a.id, err)
	}

	// 2. Ключ объекта
	basePath := opts.BasePath
	if basePath == "" {
		basePath = cfg.Get("basePath")
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = ContentTypeForExt(opts.Ext)
	}
	key := BuildObjectKey(basePath, opts.Ext)

	// 3. Выбор пути и загрузка с одним повтором
	path := "single"
	if len(data) > MultipartThreshold {
		path = "multipart"
	}

	start := time.Now()
	err = a.retry(ctx, func(attemptCtx context.Context) error {
		if path == "multipart" {
			return uploadMultipart(attemptCtx, store, key, data, contentType, opts.Progress)
		}
		return store.PutObject(attemptCtx, key, data, contentType)
	})
	uploadDuration.WithLabelValues(string(a.id), path).Observe(time.Since(start).Seconds())
	if err != nil {
		uploadsTotal.WithLabelValues(string(a.id), path, "error").Inc()
		a.logger.Warn("Загрузка не удалась",
			slog.String("key", key),
			slog.String("path", path),
			slog.Any("config", cfg),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	uploadsTotal.WithLabelValues(string(a.id), path, "ok").Inc()

	a.logger.Debug("Объект загружен",
		slog.String("key", key),
		slog.String("path", path),
		slog.Int("size", len(data)),
	)

	return &UploadResult{
		URL:         a.PublicURL(cfg, key),
		ObjectKey:   key,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// Transfer скачивает источник в память, определяет тип и загружает его.
func (a *adapter) Transfer(ctx context.Context, sourceURL string, cfg Config, opts UploadOptions) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if a.fetcher == nil {
		return "", fmt.Errorf("%w: transfer без загрузчика источников", ErrUnsupportedProvider)
	}

	var fetched *Fetched
	err := a.retry(ctx, func(attemptCtx context.Context) error {
		var fetchErr error
		fetched, fetchErr = a.fetcher.Fetch(attemptCtx, sourceURL)
		return fetchErr
	})
	if err != nil {
		return "", err
	}

	ext, contentType := InferType(fetched.ContentType, sourceURL, fetched.Data)
	if opts.Ext == "" {
		opts.Ext = ext
	}
	if opts.ContentType == "" {
		opts.ContentType = contentType
	}

	res, err := a.Upload(ctx, fetched.Data, cfg, opts)
	if err != nil {
		return "", err
	}
	return res.URL, nil
}

// PublicURL строит URL из базового адреса бакета, ключа и суффикса обработки.
func (a *adapter) PublicURL(cfg Config, objectKey string) string {
	return a.backend.baseURL(cfg) + "/" + escapeKey(strings.TrimLeft(objectKey, "/")) + processingSuffix(cfg)
}

// ObjectKeyFromURL — обратная операция к PublicURL.
func (a *adapter) ObjectKeyFromURL(cfg Config, rawURL string) (string, bool) {
	base, err := url.Parse(a.backend.baseURL(cfg) + "/")
	if err != nil {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil || !strings.EqualFold(u.Host, base.Host) {
		return "", false
	}
	if !strings.HasPrefix(u.Path, base.Path) {
		return "", false
	}
	key := strings.TrimPrefix(u.Path, base.Path)
	if key == "" {
		return "", false
	}
	return key, true
}

// retry выполняет fn с таймаутом на попытку и повтором временных ошибок.
// После исчерпания попыток временная ошибка оборачивается в ErrTransientUpload.
func (a *adapter) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(a.opts.RetryDelay), uint64(a.opts.MaxAttempts-1)),
		ctx,
	)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, a.opts.AttemptTimeout)
		defer cancel()

		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !IsTransient(err) {
			return backoff.Permanent(err)
		}
		a.logger.Debug("Временная ошибка, попытка будет повторена",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		return err
	}, policy)
	if err == nil {
		return nil
	}
	if IsTransient(err) && ctx.Err() == nil {
		return fmt.Errorf("%w: %v", ErrTransientUpload, err)
	}
	return err
}

// uploadMultipart загружает данные частями по PartSize.
// При ошибке незавершённая загрузка отменяется.
func uploadMultipart(ctx context.Context, store objectStore, key string, data []byte, contentType string, progress ProgressFunc) error {
	uploadID, err := store.InitiateMultipart(ctx, key, contentType)
	if err != nil {
		return fmt.Errorf("инициализация multipart: %w", err)
	}

	total := len(data)
	parts := make([]CompletedPart, 0, (total+PartSize-1)/PartSize)
	for offset, n := 0, 1; offset < total; offset, n = offset+PartSize, n+1 {
		end := min(offset+PartSize, total)

		etag, err := store.UploadPart(ctx, key, uploadID, n, data[offset:end])
		if err != nil {
			abortMultipart(store, key, uploadID)
			return fmt.Errorf("загрузка части %d: %w", n, err)
		}
		parts = append(parts, CompletedPart{Number: n, ETag: etag})

		if progress != nil {
			progress(float64(end) / float64(total))
		}
	}

	if err := store.CompleteMultipart(ctx, key, uploadID, parts); err != nil {
		abortMultipart(store, key, uploadID)
		return fmt.Errorf("завершение multipart: %w", err)
	}
	return nil
}

// abortMultipart отменяет загрузку в отдельном контексте: контекст попытки
// к этому моменту может быть уже отменён.
func abortMultipart(store objectStore, key, uploadID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = store.AbortMultipart(ctx, key, uploadID)
}
