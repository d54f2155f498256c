package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// aliyunBackend — Alibaba Cloud OSS через официальный SDK.
type aliyunBackend struct{}

// NewAliyun создаёт адаптер Alibaba Cloud OSS.
func NewAliyun(fetcher *Fetcher, opts Options, logger *slog.Logger) Adapter {
	return newAdapter(Aliyun, aliyunBackend{}, fetcher, opts, logger)
}

// aliyunEndpoint — адрес API региона: https://{region}.aliyuncs.com.
func aliyunEndpoint(cfg Config) string {
	if ep := cfg.Get("endpoint"); ep != "" {
		return strings.TrimRight(ep, "/")
	}
	return "https://" + cfg.Get("region") + ".aliyuncs.com"
}

func (aliyunBackend) baseURL(cfg Config) string {
	if d := cfg.Get("customDomain"); d != "" {
		return ensureHTTPS(d)
	}
	return fmt.Sprintf("https://%s.%s.aliyuncs.com", cfg.Get("bucket"), cfg.Get("region"))
}

func (aliyunBackend) openStore(cfg Config) (objectStore, error) {
	client, err := oss.New(aliyunEndpoint(cfg), cfg.Get("accessKeyId"), cfg.Get("accessKeySecret"),
		oss.Timeout(10, int64(DefaultAttemptTimeout.Seconds())),
	)
	if err != nil {
		return nil, fmt.Errorf("создание клиента OSS: %w", err)
	}
	bucket, err := client.Bucket(cfg.Get("bucket"))
	if err != nil {
		return nil, fmt.Errorf("открытие бакета OSS: %w", err)
	}
	return &ossStore{bucket: bucket, bucketName: cfg.Get("bucket")}, nil
}

// ossStore — objectStore поверх *oss.Bucket.
type ossStore struct {
	bucket     *oss.Bucket
	bucketName string
}

func (s *ossStore) imur(key, uploadID string) oss.InitiateMultipartUploadResult {
	return oss.InitiateMultipartUploadResult{Bucket: s.bucketName, Key: key, UploadID: uploadID}
}

func (s *ossStore) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	err := s.bucket.PutObject(key, bytes.NewReader(data),
		oss.ContentType(contentType),
		oss.WithContext(ctx),
	)
	return mapOSSError(err)
}

func (s *ossStore) InitiateMultipart(ctx context.Context, key, contentType string) (string, error) {
	res, err := s.bucket.InitiateMultipartUpload(key,
		oss.ContentType(contentType),
		oss.WithContext(ctx),
	)
	if err != nil {
		return "", mapOSSError(err)
	}
	return res.UploadID, nil
}

func (s *ossStore) UploadPart(ctx context.Context, key, uploadID string, partNumber int, data []byte) (string, error) {
	part, err := s.bucket.UploadPart(s.imur(key, uploadID), bytes.NewReader(data), int64(len(data)), partNumber,
		oss.WithContext(ctx),
	)
	if err != nil {
		return "", mapOSSError(err)
	}
	return part.ETag, nil
}

func (s *ossStore) CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) error {
	ossParts := make([]oss.UploadPart, len(parts))
	for i, p := range parts {
		ossParts[i] = oss.UploadPart{PartNumber: p.Number, ETag: p.ETag}
	}
	_, err := s.bucket.CompleteMultipartUpload(s.imur(key, uploadID), ossParts, oss.WithContext(ctx))
	return mapOSSError(err)
}

func (s *ossStore) AbortMultipart(ctx context.Context, key, uploadID string) error {
	return mapOSSError(s.bucket.AbortMultipartUpload(s.imur(key, uploadID), oss.WithContext(ctx)))
}

// mapOSSError приводит ошибку сервиса OSS к *StatusError для классификации повторов.
func mapOSSError(err error) error {
	if err == nil {
		return nil
	}
	var se oss.ServiceError
	if errors.As(err, &se) {
		return &StatusError{StatusCode: se.StatusCode, Message: se.Code + ": " + se.Message}
	}
	return err
}
