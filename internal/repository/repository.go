// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM.
//
// Репозитории приватного хранилища (lineups, квоты, профили) и публичного
// (public_lineups, заявки) создаются поверх разных пулов, но используют
// один интерфейс DBTX.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/lineupstore/internal/domain/model"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности или состояния записи.
	ErrConflict = errors.New("конфликт — запись уже существует или изменена")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// fieldColumns — колонки model.LineupFields в порядке fieldArgs/fieldDest.
// Общие для lineups, public_lineups и lineup_submissions.
const fieldColumns = `title, map_name, agent_name, agent_icon, skill_icon, side,
	ability_index, agent_pos, skill_pos, images,
	source_link, author_name, author_avatar, author_uid`

// fieldCount — число колонок fieldColumns.
const fieldCount = 14

// fieldArgs возвращает значения полей для INSERT.
// Изображения хранятся в jsonb, пустой набор сохраняется как {}.
func fieldArgs(f *model.LineupFields) []any {
	images := f.Images
	if images == nil {
		images = model.Images{}
	}
	return []any{
		f.Title, f.MapName, f.AgentName, f.AgentIcon, f.SkillIcon, string(f.Side),
		f.AbilityIndex, f.AgentPos, f.SkillPos, images,
		f.SourceLink, f.AuthorName, f.AuthorAvatar, f.AuthorUID,
	}
}

// fieldDest возвращает указатели для Scan в порядке fieldColumns.
func fieldDest(f *model.LineupFields) []any {
	return []any{
		&f.Title, &f.MapName, &f.AgentName, &f.AgentIcon, &f.SkillIcon, &f.Side,
		&f.AbilityIndex, &f.AgentPos, &f.SkillPos, &f.Images,
		&f.SourceLink, &f.AuthorName, &f.AuthorAvatar, &f.AuthorUID,
	}
}

// concat склеивает списки аргументов Scan/Exec.
func concat(parts ...[]any) []any {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]any, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// placeholders возвращает "$from, $from+1, ..." из n параметров.
func placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ", ")
}
