// Пакет model — доменные модели lineup-module.
// Содержит структуры записей приватного и публичного хранилищ,
// заявок на модерацию, квот и результатов синхронизации.
package model

import "time"

// Slot — имя одного из пяти фиксированных слотов изображений.
type Slot string

const (
	// SlotStand — точка стояния.
	SlotStand Slot = "stand"
	// SlotStand2 — дополнительная точка стояния.
	SlotStand2 Slot = "stand2"
	// SlotAim — точка прицеливания.
	SlotAim Slot = "aim"
	// SlotAim2 — дополнительная точка прицеливания.
	SlotAim2 Slot = "aim2"
	// SlotLand — точка приземления способности.
	SlotLand Slot = "land"
)

// AllSlots — слоты в каноническом порядке.
var AllSlots = []Slot{SlotStand, SlotStand2, SlotAim, SlotAim2, SlotLand}

// IsValid проверяет, что слот входит в фиксированный набор.
func (s Slot) IsValid() bool {
	for _, v := range AllSlots {
		if v == s {
			return true
		}
	}
	return false
}

// Side — сторона (атака или защита).
type Side string

const (
	SideAttack  Side = "attack"
	SideDefense Side = "defense"
)

// Point — координата на карте.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ImageSlot — изображение слота и его подпись.
type ImageSlot struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Images — набор изображений по слотам. Отсутствующий ключ — пустой слот.
type Images map[Slot]ImageSlot

// URLs возвращает непустые URL изображений по слотам.
func (im Images) URLs() map[Slot]string {
	out := make(map[Slot]string, len(im))
	for slot, img := range im {
		if img.URL != "" {
			out[slot] = img.URL
		}
	}
	return out
}

// WithURLs возвращает копию набора, в которой URL слотов заменены
// значениями из urls. Подписи сохраняются.
func (im Images) WithURLs(urls map[Slot]string) Images {
	out := make(Images, len(im))
	for slot, img := range im {
		out[slot] = img
	}
	for slot, u := range urls {
		img := out[slot]
		img.URL = u
		out[slot] = img
	}
	return out
}

// LineupFields — общие поля классификации и содержимого lineup.
// Используются приватными записями, публичными записями и заявками.
type LineupFields struct {
	Title        string  `json:"title"`
	MapName      string  `json:"map_name"`
	AgentName    string  `json:"agent_name"`
	AgentIcon    *string `json:"agent_icon,omitempty"`
	SkillIcon    *string `json:"skill_icon,omitempty"`
	Side         Side    `json:"side"`
	AbilityIndex *int    `json:"ability_index,omitempty"`
	AgentPos     *Point  `json:"agent_pos,omitempty"`
	SkillPos     *Point  `json:"skill_pos,omitempty"`
	Images       Images  `json:"images"`
	SourceLink   *string `json:"source_link,omitempty"`
	AuthorName   *string `json:"author_name,omitempty"`
	AuthorAvatar *string `json:"author_avatar,omitempty"`
	AuthorUID    *string `json:"author_uid,omitempty"`
}

// Lineup — запись приватного хранилища пользователя.
type Lineup struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	LineupFields
	// ClonedFrom — ссылка на публичную запись, из которой сделана копия.
	// Запись с ClonedFrom никогда не публикуется повторно.
	ClonedFrom *string   `json:"cloned_from,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsPublishable — может ли запись быть опубликована синхронизацией.
func (l *Lineup) IsPublishable() bool {
	return l.ClonedFrom == nil || *l.ClonedFrom == ""
}

// PublicLineup — запись публичного хранилища.
type PublicLineup struct {
	ID string `json:"id"`
	// UserID — короткий отображаемый идентификатор автора, не ID аккаунта.
	UserID string `json:"user_id"`
	LineupFields
	// SourceID — ID приватной записи или заявки, породившей публичную запись.
	// Уникален в публичном хранилище.
	SourceID  *string   `json:"source_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserProfile — профиль пользователя для формирования отображаемого ID.
type UserProfile struct {
	UserID   string
	CustomID *string
	Nickname *string
}

// DownloadLog — запись журнала скачиваний пакетов.
type DownloadLog struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	LineupID    string `json:"lineup_id"`
	LineupTitle string `json:"lineup_title"`
	MapName     string `json:"map_name"`
	AgentName   string `json:"agent_name"`
	// DownloadCount — число записей в скачанном пакете.
	DownloadCount int       `json:"download_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// BulkDeleteResult — итог массового удаления публичных записей.
type BulkDeleteResult struct {
	Deleted []string `json:"deleted"`
	// Missing — идентификаторы, для которых записи не нашлось.
	Missing []string `json:"missing"`
}
