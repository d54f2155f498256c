package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// localBackend — файловое хранилище на диске модуля.
// Используется как временная область изображений заявок, файлы раздаются
// маршрутом /media/* по адресу baseURL.
type localBackend struct{}

// LocalAdapter — адаптер локального хранилища с удалением по префиксу.
type LocalAdapter struct {
	*adapter
}

// NewLocal создаёт адаптер локального файлового хранилища.
func NewLocal(fetcher *Fetcher, opts Options, logger *slog.Logger) *LocalAdapter {
	return &LocalAdapter{adapter: newAdapter(Local, localBackend{}, fetcher, opts, logger)}
}

func (localBackend) baseURL(cfg Config) string {
	return strings.TrimRight(cfg.Get("baseURL"), "/")
}

func (localBackend) openStore(cfg Config) (objectStore, error) {
	root := cfg.Get("root")
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", root, err)
	}
	return &fileStore{root: root}, nil
}

// DeletePrefix удаляет все объекты под префиксом ключа.
// Отсутствие префикса ошибкой не считается.
func (l *LocalAdapter) DeletePrefix(_ context.Context, cfg Config, prefix string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return fmt.Errorf("пустой префикс удаления")
	}
	fs := &fileStore{root: cfg.Get("root")}
	full, err := fs.path(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("ошибка удаления %s: %w", prefix, err)
	}
	l.logger.Debug("Объекты удалены по префиксу", slog.String("prefix", prefix))
	return nil
}

// fileStore — objectStore на файловой системе.
// Паттерн записи: temp файл → fsync → atomic rename.
type fileStore struct {
	root string
}

// path возвращает абсолютный путь ключа, не выходящий за пределы root.
func (fs *fileStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if clean == string(filepath.Separator) {
		return "", fmt.Errorf("некорректный ключ объекта: %q", key)
	}
	return filepath.Join(fs.root, clean), nil
}

func (fs *fileStore) PutObject(_ context.Context, key string, data []byte, _ string) error {
	full, err := fs.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("ошибка создания директории: %w", err)
	}

	tmpPath := full + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи данных: %w", err)
	}
	return commitTemp(f, tmpPath, full)
}

func (fs *fileStore) partPath(key, uploadID string) (string, error) {
	full, err := fs.path(key)
	if err != nil {
		return "", err
	}
	return full + "." + uploadID + ".part", nil
}

func (fs *fileStore) InitiateMultipart(_ context.Context, key, _ string) (string, error) {
	uploadID := strings.ReplaceAll(uuid.NewString(), "-", "")
	partPath, err := fs.partPath(key, uploadID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(partPath), 0o750); err != nil {
		return "", fmt.Errorf("ошибка создания директории: %w", err)
	}
	f, err := os.Create(partPath)
	if err != nil {
		return "", fmt.Errorf("ошибка создания файла загрузки: %w", err)
	}
	return uploadID, f.Close()
}

// UploadPart дописывает часть в файл загрузки. Части приходят по порядку.
func (fs *fileStore) UploadPart(_ context.Context, key, uploadID string, _ int, data []byte) (string, error) {
	partPath, err := fs.partPath(key, uploadID)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(partPath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return "", fmt.Errorf("загрузка %s не найдена: %w", uploadID, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("ошибка записи части: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (fs *fileStore) CompleteMultipart(_ context.Context, key, uploadID string, _ []CompletedPart) error {
	partPath, err := fs.partPath(key, uploadID)
	if err != nil {
		return err
	}
	full, _ := fs.path(key)
	f, err := os.OpenFile(partPath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("загрузка %s не найдена: %w", uploadID, err)
	}
	return commitTemp(f, partPath, full)
}

func (fs *fileStore) AbortMultipart(_ context.Context, key, uploadID string) error {
	partPath, err := fs.partPath(key, uploadID)
	if err != nil {
		return err
	}
	if err := os.Remove(partPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// commitTemp выполняет fsync, закрывает файл и атомарно переименовывает его.
func commitTemp(f *os.File, tmpPath, fullPath string) error {
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}
