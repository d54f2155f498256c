package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // проверка подписи upload token
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/qiniu/go-sdk/v7/client"
)

// qiniuPolicy — поля политики, которые проверяют тесты.
type qiniuPolicy struct {
	Scope      string `json:"scope"`
	Deadline   int64  `json:"deadline"`
	FsizeLimit int64  `json:"fsizeLimit"`
}

func decodeQiniuToken(t *testing.T, token string) qiniuPolicy {
	t.Helper()
	parts := strings.Split(token, ":")
	if len(parts) != 3 || parts[0] != "ak" {
		t.Fatalf("неверный формат токена: %q", token)
	}

	mac := hmac.New(sha1.New, []byte("sk"))
	mac.Write([]byte(parts[2]))
	if want := base64.URLEncoding.EncodeToString(mac.Sum(nil)); parts[1] != want {
		t.Errorf("подпись = %q, ожидалось %q", parts[1], want)
	}

	raw, err := base64.URLEncoding.DecodeString(parts[2])
	if err != nil {
		t.Fatalf("политика не в base64url: %v", err)
	}
	var policy qiniuPolicy
	if err := json.Unmarshal(raw, &policy); err != nil {
		t.Fatalf("политика не JSON: %v", err)
	}
	return policy
}

func TestQiniu_UploadToken(t *testing.T) {
	st, err := qiniuBackend{httpClient: http.DefaultClient}.openStore(qiniuCfg())
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}

	policy := decodeQiniuToken(t, st.(*qiniuStore).uploadToken("a/b.png", 1024))
	if policy.Scope != "lineups:a/b.png" || policy.FsizeLimit != 1024 {
		t.Errorf("политика = %+v", policy)
	}
	if d := time.Until(time.Unix(policy.Deadline, 0)); d <= 0 || d > PutPolicyTTL+time.Minute {
		t.Errorf("deadline через %v, ожидается около %v", d, PutPolicyTTL)
	}
}

func TestQiniuUpHost(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"z0", qiniuCfg(), "https://up.qiniup.com"},
		{"z1", qiniuCfg().With("region", "z1"), "https://up-z1.qiniup.com"},
		{"na0", qiniuCfg().With("region", "na0"), "https://up-na0.qiniup.com"},
		{"upHost без схемы", qiniuCfg().With("upHost", "up-cn-east-2.qiniup.com/"), "https://up-cn-east-2.qiniup.com"},
		{"upHost со схемой", qiniuCfg().With("upHost", "http://127.0.0.1:9000"), "http://127.0.0.1:9000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := qiniuUpHost(tt.cfg); got != tt.want {
				t.Errorf("qiniuUpHost() = %q, ожидалось %q", got, tt.want)
			}
		})
	}
}

func TestQiniu_FormUpload(t *testing.T) {
	var mu sync.Mutex
	var gotKey, gotToken string
	var gotFile []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotKey = r.FormValue("key")
		gotToken = r.FormValue("token")
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotFile, _ = io.ReadAll(f)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"key":"k","hash":"h"}`))
	}))
	defer srv.Close()

	q := NewQiniu(srv.Client(), nil, fastRetry, testLogger())
	cfg := qiniuCfg().With("upHost", srv.URL)

	res, err := q.Upload(context.Background(), []byte("image-bytes"), cfg, UploadOptions{Ext: "jpg"})
	if err != nil {
		t.Fatalf("Upload() ошибка: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotKey != res.ObjectKey {
		t.Errorf("key формы = %q, ожидалось %q", gotKey, res.ObjectKey)
	}
	if string(gotFile) != "image-bytes" {
		t.Errorf("file формы = %q", gotFile)
	}

	policy := decodeQiniuToken(t, gotToken)
	if policy.Scope != "lineups:"+res.ObjectKey {
		t.Errorf("scope = %q", policy.Scope)
	}
	if policy.FsizeLimit != int64(len("image-bytes")) {
		t.Errorf("fsizeLimit = %d", policy.FsizeLimit)
	}
}

func TestQiniu_ResumableUpload(t *testing.T) {
	var mu sync.Mutex
	var partsSeen int
	var completed bool
	var received int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "UpToken ak:") {
			http.Error(w, `{"error":"bad token"}`, http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/buckets/lineups/objects/") {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		defer mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/uploads"):
			_, _ = w.Write([]byte(`{"uploadId":"up-1","expireAt":0}`))
		case r.Method == http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			received += len(body)
			partsSeen++
			_, _ = w.Write([]byte(`{"etag":"e","md5":"m"}`))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/uploads/up-1"):
			var payload struct {
				Parts []struct {
					PartNumber int `json:"partNumber"`
				} `json:"parts"`
			}
			_ = json.NewDecoder(r.Body).Decode(&payload)
			completed = len(payload.Parts) == partsSeen
			_, _ = w.Write([]byte(`{"key":"k","hash":"h"}`))
		default:
			http.Error(w, "unexpected", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	q := NewQiniu(srv.Client(), nil, fastRetry, testLogger())
	cfg := qiniuCfg().With("upHost", srv.URL)

	data := make([]byte, MultipartThreshold+PartSize)
	if _, err := q.Upload(context.Background(), data, cfg, UploadOptions{Ext: "png"}); err != nil {
		t.Fatalf("Upload() ошибка: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if received != len(data) {
		t.Errorf("получено %d байт, ожидалось %d", received, len(data))
	}
	if !completed {
		t.Error("загрузка не завершена всеми частями")
	}
}

func TestQiniu_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"service unavailable"}`))
	}))
	defer srv.Close()

	single := Options{AttemptTimeout: 5 * time.Second, MaxAttempts: 1, RetryDelay: time.Millisecond}
	q := NewQiniu(srv.Client(), nil, single, testLogger())
	_, err := q.Upload(context.Background(), []byte("x"), qiniuCfg().With("upHost", srv.URL), UploadOptions{Ext: "png"})
	if !errors.Is(err, ErrTransientUpload) {
		t.Fatalf("ожидалась временная ошибка, получено %v", err)
	}
}

func TestQiniuError(t *testing.T) {
	if qiniuError("put", nil) != nil {
		t.Error("nil должен остаться nil")
	}
	err := qiniuError("put", &client.ErrorInfo{Code: http.StatusForbidden, Err: "token out of date"})
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusForbidden || se.Message != "token out of date" {
		t.Fatalf("err = %v", err)
	}
	if IsTransient(err) {
		t.Error("403 не должен повторяться")
	}
	if !IsTransient(qiniuError("put", &client.ErrorInfo{Code: http.StatusTooManyRequests})) {
		t.Error("429 должен повторяться")
	}
}
