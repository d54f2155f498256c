package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	cos "github.com/tencentyun/cos-go-sdk-v5"
)

// tencentBackend — Tencent Cloud COS через официальный SDK.
type tencentBackend struct {
	httpClient *http.Client
}

// NewTencent создаёт адаптер Tencent Cloud COS.
// httpClient используется как базовый транспорт для подписанных запросов.
func NewTencent(httpClient *http.Client, fetcher *Fetcher, opts Options, logger *slog.Logger) Adapter {
	return newAdapter(Tencent, tencentBackend{httpClient: httpClient}, fetcher, opts, logger)
}

// cosBucketName — полное имя бакета {bucket}-{appId}.
func cosBucketName(cfg Config) string {
	bucket, appID := cfg.Get("bucket"), cfg.Get("appId")
	if strings.HasSuffix(bucket, "-"+appID) {
		return bucket
	}
	return bucket + "-" + appID
}

func (tencentBackend) baseURL(cfg Config) string {
	if d := cfg.Get("customDomain"); d != "" {
		return ensureHTTPS(d)
	}
	return fmt.Sprintf("https://%s.cos.%s.myqcloud.com", cosBucketName(cfg), cfg.Get("region"))
}

func (b tencentBackend) openStore(cfg Config) (objectStore, error) {
	var bucketURL *url.URL
	var err error
	if ep := cfg.Get("endpoint"); ep != "" {
		bucketURL, err = url.Parse(strings.TrimRight(ep, "/"))
	} else {
		bucketURL, err = cos.NewBucketURL(cosBucketName(cfg), cfg.Get("region"), true)
	}
	if err != nil {
		return nil, fmt.Errorf("адрес бакета COS: %w", err)
	}

	var base http.RoundTripper
	if b.httpClient != nil {
		base = b.httpClient.Transport
	}
	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.Get("secretId"),
			SecretKey: cfg.Get("secretKey"),
			Transport: base,
		},
	})
	return &cosStore{client: client}, nil
}

// cosStore — objectStore поверх *cos.Client.
type cosStore struct {
	client *cos.Client
}

func (s *cosStore) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.Object.Put(ctx, key, bytes.NewReader(data), &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType:   contentType,
			ContentLength: int64(len(data)),
		},
	})
	return mapCOSError(err)
}

func (s *cosStore) InitiateMultipart(ctx context.Context, key, contentType string) (string, error) {
	res, _, err := s.client.Object.InitiateMultipartUpload(ctx, key, &cos.InitiateMultipartUploadOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: contentType},
	})
	if err != nil {
		return "", mapCOSError(err)
	}
	return res.UploadID, nil
}

func (s *cosStore) UploadPart(ctx context.Context, key, uploadID string, partNumber int, data []byte) (string, error) {
	resp, err := s.client.Object.UploadPart(ctx, key, uploadID, partNumber, bytes.NewReader(data), nil)
	if err != nil {
		return "", mapCOSError(err)
	}
	return resp.Header.Get("ETag"), nil
}

func (s *cosStore) CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) error {
	opt := &cos.CompleteMultipartUploadOptions{}
	for _, p := range parts {
		opt.Parts = append(opt.Parts, cos.Object{PartNumber: p.Number, ETag: p.ETag})
	}
	_, _, err := s.client.Object.CompleteMultipartUpload(ctx, key, uploadID, opt)
	return mapCOSError(err)
}

func (s *cosStore) AbortMultipart(ctx context.Context, key, uploadID string) error {
	_, err := s.client.Object.AbortMultipartUpload(ctx, key, uploadID)
	return mapCOSError(err)
}

// mapCOSError приводит ошибку COS к *StatusError для классификации повторов.
func mapCOSError(err error) error {
	if err == nil {
		return nil
	}
	var er *cos.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return &StatusError{StatusCode: er.Response.StatusCode, Message: er.Code + ": " + er.Message}
	}
	return err
}
