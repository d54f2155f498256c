package provider

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// defaultExt — расширение, если тип содержимого определить не удалось.
const defaultExt = "png"

// maxURLExtLen — максимальная длина расширения, взятого из URL.
const maxURLExtLen = 5

// extByContentType — расширения для распространённых типов изображений.
var extByContentType = map[string]string{
	"image/jpeg":    "jpg",
	"image/jpg":     "jpg",
	"image/png":     "png",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/bmp":     "bmp",
	"image/avif":    "avif",
	"image/svg+xml": "svg",
}

// contentTypeByExt — обратное отображение для типа по расширению.
var contentTypeByExt = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"avif": "image/avif",
	"svg":  "image/svg+xml",
}

// BuildObjectKey формирует ключ объекта {basePath}/{uuid без дефисов}.{ext}.
// Повторные загрузки никогда не дают одинаковый ключ.
func BuildObjectKey(basePath, ext string) string {
	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = defaultExt
	}
	name += "." + ext

	base := strings.Trim(basePath, "/")
	if base == "" {
		return name
	}
	return base + "/" + name
}

// InferType определяет расширение и Content-Type содержимого.
// Порядок: заголовок Content-Type, сигнатура данных, расширение в URL, png.
func InferType(headerContentType, sourceURL string, data []byte) (ext, contentType string) {
	// 1. Заголовок ответа
	if headerContentType != "" {
		if mt, _, err := mime.ParseMediaType(headerContentType); err == nil {
			if e, ok := extByContentType[mt]; ok {
				return e, mt
			}
		}
	}

	// 2. Сигнатура содержимого
	if len(data) > 0 {
		detected := mimetype.Detect(data)
		if strings.HasPrefix(detected.String(), "image/") {
			mt := detected.String()
			if e, ok := extByContentType[mt]; ok {
				return e, mt
			}
			if e := strings.TrimPrefix(detected.Extension(), "."); e != "" {
				return e, mt
			}
		}
	}

	// 3. Расширение в пути URL
	if u, err := url.Parse(sourceURL); err == nil {
		e := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
		if e != "" && len(e) <= maxURLExtLen {
			if ct, ok := contentTypeByExt[e]; ok {
				return e, ct
			}
			return e, "application/octet-stream"
		}
	}

	return defaultExt, contentTypeByExt[defaultExt]
}

// ContentTypeForExt возвращает Content-Type по расширению файла.
func ContentTypeForExt(ext string) string {
	if ct, ok := contentTypeByExt[strings.TrimPrefix(strings.ToLower(ext), ".")]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ensureHTTPS приводит адрес к схеме https://.
func ensureHTTPS(addr string) string {
	addr = strings.TrimRight(addr, "/")
	switch {
	case strings.HasPrefix(addr, "https://"):
		return addr
	case strings.HasPrefix(addr, "http://"):
		return "https://" + strings.TrimPrefix(addr, "http://")
	default:
		return "https://" + addr
	}
}

// processingSuffix возвращает суффикс параметров обработки изображения.
func processingSuffix(cfg Config) string {
	p := strings.TrimLeft(cfg.Get("processParams"), "?")
	if p == "" {
		return ""
	}
	return "?" + p
}

// escapeKey экранирует сегменты ключа для использования в URL.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
