package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bigkaa/lineupstore/internal/repository"
)

// displayIDLen — длина короткого идентификатора, выводимого из ID аккаунта.
const displayIDLen = 8

// DisplayIDResolver формирует отображаемый идентификатор автора
// публичной записи: custom_id профиля, иначе никнейм, иначе
// первые 8 символов ID аккаунта без дефисов в верхнем регистре.
type DisplayIDResolver struct {
	profiles repository.ProfileRepository
}

// NewDisplayIDResolver создаёт резолвер отображаемых ID.
func NewDisplayIDResolver(profiles repository.ProfileRepository) *DisplayIDResolver {
	return &DisplayIDResolver{profiles: profiles}
}

// Resolve возвращает отображаемый ID пользователя.
func (r *DisplayIDResolver) Resolve(ctx context.Context, userID string) (string, error) {
	p, err := r.profiles.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("чтение профиля: %w", err)
	}
	if p != nil {
		if p.CustomID != nil && strings.TrimSpace(*p.CustomID) != "" {
			return strings.TrimSpace(*p.CustomID), nil
		}
		if p.Nickname != nil && strings.TrimSpace(*p.Nickname) != "" {
			return strings.TrimSpace(*p.Nickname), nil
		}
	}
	return shortID(userID), nil
}

// shortID — первые 8 символов ID без дефисов в верхнем регистре.
func shortID(userID string) string {
	s := strings.ToUpper(strings.ReplaceAll(userID, "-", ""))
	if len(s) > displayIDLen {
		s = s[:displayIDLen]
	}
	return s
}
