package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/lineupstore/internal/domain/model"
)

// ProfileRepository — профили пользователей приватного хранилища.
type ProfileRepository interface {
	// GetByUserID возвращает профиль или ErrNotFound.
	GetByUserID(ctx context.Context, userID string) (*model.UserProfile, error)
}

type profileRepo struct {
	db DBTX
}

// NewProfileRepository создаёт репозиторий профилей.
func NewProfileRepository(db DBTX) ProfileRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) GetByUserID(ctx context.Context, userID string) (*model.UserProfile, error) {
	p := &model.UserProfile{}
	err := r.db.QueryRow(ctx,
		`SELECT user_id, custom_id, nickname FROM user_profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.CustomID, &p.Nickname)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения профиля: %w", err)
	}
	return p, nil
}
