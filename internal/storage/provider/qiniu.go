package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/qiniu/go-sdk/v7/auth"
	"github.com/qiniu/go-sdk/v7/client"
	"github.com/qiniu/go-sdk/v7/storage"
)

// PutPolicyTTL — срок действия подписанной политики загрузки.
const PutPolicyTTL = time.Hour

// qiniuBackend — Qiniu Kodo через go-sdk: form upload с подписанной
// политикой и resumable upload v2 для больших файлов.
type qiniuBackend struct {
	httpClient *http.Client
}

// NewQiniu создаёт адаптер Qiniu Kodo.
func NewQiniu(httpClient *http.Client, fetcher *Fetcher, opts Options, logger *slog.Logger) Adapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return newAdapter(Qiniu, qiniuBackend{httpClient: httpClient}, fetcher, opts, logger)
}

func (qiniuBackend) baseURL(cfg Config) string {
	return ensureHTTPS(cfg.Get("domain"))
}

// qiniuUpHost — адрес загрузки: upHost из конфигурации или хост региона.
// Регион z0 (Восточный Китай) обслуживается хостом без суффикса региона.
func qiniuUpHost(cfg Config) string {
	if h := cfg.Get("upHost"); h != "" {
		return strings.TrimRight(ensureScheme(h), "/")
	}
	region := cfg.Get("region")
	if region == "" || region == "z0" {
		return "https://up.qiniup.com"
	}
	return "https://up-" + region + ".qiniup.com"
}

// ensureScheme дополняет хост схемой https, явная схема сохраняется.
func ensureScheme(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "https://" + host
}

func (b qiniuBackend) openStore(cfg Config) (objectStore, error) {
	upHost := qiniuUpHost(cfg)
	sdkCfg := &storage.Config{UseHTTPS: strings.HasPrefix(upHost, "https://")}
	sdkClient := &client.Client{Client: b.httpClient}

	return &qiniuStore{
		httpClient: b.httpClient,
		form:       storage.NewFormUploaderEx(sdkCfg, sdkClient),
		resumable:  storage.NewResumeUploaderV2Ex(sdkCfg, sdkClient),
		cred:       auth.New(cfg.Get("accessKey"), cfg.Get("secretKey")),
		bucket:     cfg.Get("bucket"),
		upHost:     upHost,
	}, nil
}

// qiniuStore — objectStore поверх загрузчиков go-sdk.
type qiniuStore struct {
	httpClient *http.Client
	form       *storage.FormUploader
	resumable  *storage.ResumeUploaderV2
	cred       *auth.Credentials
	bucket     string
	upHost     string
}

// uploadToken подписывает политику на конкретный ключ.
// sizeLimit > 0 ограничивает размер загружаемого объекта.
func (s *qiniuStore) uploadToken(key string, sizeLimit int64) string {
	policy := storage.PutPolicy{
		Scope:      s.bucket + ":" + key,
		Expires:    uint64(PutPolicyTTL / time.Second),
		FsizeLimit: sizeLimit,
	}
	return policy.UploadToken(s.cred)
}

// PutObject — form upload. Повторы выполняет адаптер, поэтому
// собственные попытки SDK отключены.
func (s *qiniuStore) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	var ret storage.PutRet
	err := s.form.Put(ctx, &ret, s.uploadToken(key, int64(len(data))), key,
		bytes.NewReader(data), int64(len(data)), &storage.PutExtra{
			UpHost:   s.upHost,
			MimeType: contentType,
			TryTimes: 1,
		})
	return qiniuError("put", err)
}

func (s *qiniuStore) InitiateMultipart(ctx context.Context, key, _ string) (string, error) {
	var ret storage.InitPartsRet
	err := s.resumable.InitParts(ctx, s.uploadToken(key, 0), s.upHost, s.bucket, key, true, &ret)
	if err != nil {
		return "", qiniuError("init parts", err)
	}
	if ret.UploadID == "" {
		return "", fmt.Errorf("qiniu: пустой uploadId")
	}
	return ret.UploadID, nil
}

func (s *qiniuStore) UploadPart(ctx context.Context, key, uploadID string, partNumber int, data []byte) (string, error) {
	var ret storage.UploadPartsRet
	err := s.resumable.UploadParts(ctx, s.uploadToken(key, 0), s.upHost, s.bucket, key, true,
		uploadID, int64(partNumber), "", &ret, bytes.NewReader(data), len(data))
	if err != nil {
		return "", qiniuError("upload part", err)
	}
	return ret.Etag, nil
}

func (s *qiniuStore) CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) error {
	extra := &storage.RputV2Extra{}
	for _, p := range parts {
		extra.Progresses = append(extra.Progresses, storage.UploadPartInfo{
			Etag:       p.ETag,
			PartNumber: int64(p.Number),
		})
	}
	var ret storage.PutRet
	err := s.resumable.CompleteParts(ctx, s.uploadToken(key, 0), s.upHost, &ret, s.bucket, key, true, uploadID, extra)
	return qiniuError("complete parts", err)
}

// AbortMultipart — DELETE /buckets/{bucket}/objects/{key}/uploads/{id}.
// В go-sdk отмены загрузки v2 нет, запрос подписывается тем же токеном.
func (s *qiniuStore) AbortMultipart(ctx context.Context, key, uploadID string) error {
	url := fmt.Sprintf("%s/buckets/%s/objects/%s/uploads/%s",
		s.upHost, s.bucket, base64.URLEncoding.EncodeToString([]byte(key)), uploadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "UpToken "+s.uploadToken(key, 0))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qiniu abort: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// qiniuError приводит ошибку SDK к *StatusError, чтобы IsTransient
// различал 5xx/429 и отказы по политике.
func qiniuError(op string, err error) error {
	if err == nil {
		return nil
	}
	var info *client.ErrorInfo
	if errors.As(err, &info) && info.Code != 0 {
		return fmt.Errorf("qiniu %s: %w", op, &StatusError{StatusCode: info.Code, Message: info.Err})
	}
	return fmt.Errorf("qiniu %s: %w", op, err)
}
