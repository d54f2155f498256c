package handlers

import (
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/lineupstore/internal/api/errors"
)

// MediaHandler раздаёт файлы временной области заявок из каталога root.
// Ожидается, что префикс маршрута уже снят (http.StripPrefix).
// Листинг каталогов запрещён. Файлы отдаются без аутентификации:
// доступ держится на непредсказуемых UUID заявок в пути.
func MediaHandler(root string) http.Handler {
	files := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			apierrors.NotFound(w, "Файл не найден")
			return
		}
		// Тип определяется по расширению, браузер не угадывает его по содержимому.
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
		w.Header().Set("Cache-Control", "private, max-age=300")
		files.ServeHTTP(w, r)
	})
}
