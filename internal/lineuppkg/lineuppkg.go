// Пакет lineuppkg — формат экспортного пакета lineup.
//
// Пакет — zip-архив с одним JSON-документом метаданных и до пяти
// изображений в каталоге images/. Изображения именуются по локализованному
// имени слота (站位图.webp), при чтении также принимаются имена вида
// {slot}.{ext} и устаревшие ключи {slot}_img.
package lineuppkg

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/bigkaa/lineupstore/internal/domain/model"
)

var (
	// ErrInvalidPackage — архив повреждён или не содержит метаданных.
	ErrInvalidPackage = errors.New("некорректный пакет lineup")
	// ErrPackageTooLarge — распакованное содержимое превышает лимит.
	ErrPackageTooLarge = errors.New("пакет lineup слишком большой")
)

// ImageDir — каталог изображений внутри архива.
const ImageDir = "images"

// localizedNames — имена файлов изображений по слотам.
var localizedNames = map[model.Slot]string{
	model.SlotStand:  "站位图",
	model.SlotStand2: "站位图2",
	model.SlotAim:    "瞄点图",
	model.SlotAim2:   "瞄点图2",
	model.SlotLand:   "技能落点图",
}

// imageExts — допустимые расширения изображений.
var imageExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true,
}

// Metadata — JSON-документ пакета.
type Metadata struct {
	ID           string       `json:"id,omitempty"`
	UserID       *string      `json:"user_id,omitempty"`
	Title        string       `json:"title"`
	MapName      string       `json:"map_name"`
	AgentName    string       `json:"agent_name"`
	AgentIcon    *string      `json:"agent_icon,omitempty"`
	SkillIcon    *string      `json:"skill_icon,omitempty"`
	Side         string       `json:"side"`
	AbilityIndex *int         `json:"ability_index"`
	AgentPos     *model.Point `json:"agent_pos"`
	SkillPos     *model.Point `json:"skill_pos"`
	StandImg     *string      `json:"stand_img,omitempty"`
	StandDesc    *string      `json:"stand_desc,omitempty"`
	Stand2Img    *string      `json:"stand2_img,omitempty"`
	Stand2Desc   *string      `json:"stand2_desc,omitempty"`
	AimImg       *string      `json:"aim_img,omitempty"`
	AimDesc      *string      `json:"aim_desc,omitempty"`
	Aim2Img      *string      `json:"aim2_img,omitempty"`
	Aim2Desc     *string      `json:"aim2_desc,omitempty"`
	LandImg      *string      `json:"land_img,omitempty"`
	LandDesc     *string      `json:"land_desc,omitempty"`
	SourceLink   *string      `json:"source_link,omitempty"`
	ClonedFrom   *string      `json:"cloned_from,omitempty"`
	AuthorName   *string      `json:"author_name,omitempty"`
	AuthorAvatar *string      `json:"author_avatar,omitempty"`
	AuthorUID    *string      `json:"author_uid,omitempty"`
	CreatedAt    *time.Time   `json:"created_at,omitempty"`
	UpdatedAt    *time.Time   `json:"updated_at,omitempty"`
}

// slotRefs возвращает указатели на поля изображения и подписи слота.
func (m *Metadata) slotRefs(slot model.Slot) (img, desc **string) {
	switch slot {
	case model.SlotStand:
		return &m.StandImg, &m.StandDesc
	case model.SlotStand2:
		return &m.Stand2Img, &m.Stand2Desc
	case model.SlotAim:
		return &m.AimImg, &m.AimDesc
	case model.SlotAim2:
		return &m.Aim2Img, &m.Aim2Desc
	case model.SlotLand:
		return &m.LandImg, &m.LandDesc
	}
	return nil, nil
}

// Package — содержимое пакета: метаданные и изображения по слотам.
type Package struct {
	Meta   Metadata
	Images map[model.Slot][]byte
}

// Fields возвращает поля lineup из метаданных. Изображениям, которых нет
// в архиве, остаётся внешний URL из метаданных, если он задан.
func (p *Package) Fields() model.LineupFields {
	m := p.Meta
	f := model.LineupFields{
		Title:        m.Title,
		MapName:      m.MapName,
		AgentName:    m.AgentName,
		AgentIcon:    m.AgentIcon,
		SkillIcon:    m.SkillIcon,
		Side:         model.Side(strings.ToLower(strings.TrimSpace(m.Side))),
		AbilityIndex: m.AbilityIndex,
		AgentPos:     m.AgentPos,
		SkillPos:     m.SkillPos,
		Images:       make(model.Images),
		SourceLink:   m.SourceLink,
		AuthorName:   m.AuthorName,
		AuthorAvatar: m.AuthorAvatar,
		AuthorUID:    m.AuthorUID,
	}
	for _, slot := range model.AllSlots {
		img, desc := p.Meta.slotRefs(slot)
		var is model.ImageSlot
		if *desc != nil {
			is.Description = **desc
		}
		if _, inArchive := p.Images[slot]; !inArchive && *img != nil && isRemote(**img) {
			is.URL = **img
		}
		if is.URL != "" || is.Description != "" {
			f.Images[slot] = is
		}
	}
	return f
}

// FromLineup собирает пакет из записи и загруженных изображений.
func FromLineup(l *model.Lineup, images map[model.Slot][]byte) *Package {
	userID := l.UserID
	createdAt, updatedAt := l.CreatedAt, l.UpdatedAt
	m := Metadata{
		ID:           l.ID,
		UserID:       &userID,
		Title:        l.Title,
		MapName:      l.MapName,
		AgentName:    l.AgentName,
		AgentIcon:    l.AgentIcon,
		SkillIcon:    l.SkillIcon,
		Side:         string(l.Side),
		AbilityIndex: l.AbilityIndex,
		AgentPos:     l.AgentPos,
		SkillPos:     l.SkillPos,
		SourceLink:   l.SourceLink,
		ClonedFrom:   l.ClonedFrom,
		AuthorName:   l.AuthorName,
		AuthorAvatar: l.AuthorAvatar,
		AuthorUID:    l.AuthorUID,
		CreatedAt:    &createdAt,
		UpdatedAt:    &updatedAt,
	}
	for slot, is := range l.Images {
		img, desc := m.slotRefs(slot)
		if img == nil {
			continue
		}
		if is.URL != "" {
			u := is.URL
			*img = &u
		}
		if is.Description != "" {
			d := is.Description
			*desc = &d
		}
	}
	return &Package{Meta: m, Images: images}
}

// Read разбирает архив пакета. maxBytes ограничивает суммарный
// распакованный размер (0 — без ограничения).
func Read(data []byte, maxBytes int64) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}

	var budget *int64
	if maxBytes > 0 {
		budget = &maxBytes
	}

	pkg := &Package{Images: make(map[model.Slot][]byte)}
	var metaFound bool

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Base(f.Name)
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))

		switch {
		case ext == "json":
			if metaFound {
				continue
			}
			raw, err := readEntry(f, budget)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(raw, &pkg.Meta); err != nil {
				return nil, fmt.Errorf("%w: метаданные %s: %v", ErrInvalidPackage, f.Name, err)
			}
			metaFound = true
		case imageExts[ext]:
			slot, ok := slotForName(strings.TrimSuffix(name, path.Ext(name)))
			if !ok {
				continue
			}
			if _, dup := pkg.Images[slot]; dup {
				continue
			}
			raw, err := readEntry(f, budget)
			if err != nil {
				return nil, err
			}
			if len(raw) > 0 {
				pkg.Images[slot] = raw
			}
		}
	}

	if !metaFound {
		return nil, fmt.Errorf("%w: в архиве нет JSON-метаданных", ErrInvalidPackage)
	}
	return pkg, nil
}

// readEntry читает файл архива, уменьшая оставшийся бюджет.
func readEntry(f *zip.File, budget *int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPackage, f.Name, err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if budget != nil {
		r = io.LimitReader(rc, *budget+1)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPackage, f.Name, err)
	}
	if budget != nil {
		if int64(len(raw)) > *budget {
			return nil, ErrPackageTooLarge
		}
		*budget -= int64(len(raw))
	}
	return raw, nil
}

// slotForName сопоставляет имя файла без расширения слоту.
func slotForName(base string) (model.Slot, bool) {
	lower := strings.ToLower(strings.TrimSpace(base))
	for _, slot := range model.AllSlots {
		if lower == string(slot) || lower == string(slot)+"_img" || base == localizedNames[slot] {
			return slot, true
		}
	}
	return "", false
}

// Write записывает пакет в w. Изображения получают локализованные имена,
// а поля *_img метаданных — путь к файлу внутри архива.
func Write(w io.Writer, p *Package) error {
	meta := p.Meta
	zw := zip.NewWriter(w)

	for _, slot := range model.AllSlots {
		data := p.Images[slot]
		if len(data) == 0 {
			continue
		}
		name := path.Join(ImageDir, localizedNames[slot]+mimetype.Detect(data).Extension())
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			return fmt.Errorf("запись %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("запись %s: %w", name, err)
		}
		img, _ := meta.slotRefs(slot)
		*img = &name
	}

	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("сериализация метаданных: %w", err)
	}
	fw, err := zw.Create(BaseName(&meta) + ".json")
	if err != nil {
		return fmt.Errorf("запись метаданных: %w", err)
	}
	if _, err := fw.Write(raw); err != nil {
		return fmt.Errorf("запись метаданных: %w", err)
	}
	return zw.Close()
}

var (
	unsafeChars = regexp.MustCompile(`[\\/:*?"<>|]+`)
	spaces      = regexp.MustCompile(`\s+`)
)

// abilityLabels — подписи способностей по индексу.
var abilityLabels = []string{"C", "Q", "E", "X"}

// BaseName возвращает имя пакета без расширения:
// {карта}_{агент}_{способность}_{название}.
func BaseName(m *Metadata) string {
	ability := "技能"
	if m.AbilityIndex != nil && *m.AbilityIndex >= 0 && *m.AbilityIndex < len(abilityLabels) {
		ability += abilityLabels[*m.AbilityIndex]
	}
	title := m.Title
	if title == "" {
		title = "点位"
	}
	name := fmt.Sprintf("%s_%s_%s_%s", m.MapName, m.AgentName, ability, title)
	name = spaces.ReplaceAllString(unsafeChars.ReplaceAllString(strings.TrimSpace(name), "_"), " ")
	if name == "" {
		return "点位"
	}
	return name
}

func isRemote(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
