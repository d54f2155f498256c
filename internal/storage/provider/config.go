package provider

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// ID — идентификатор провайдера объектного хранилища.
type ID string

const (
	Aliyun  ID = "aliyun"
	Tencent ID = "tencent"
	Qiniu   ID = "qiniu"
	Local   ID = "local"
)

// FieldDescriptor — описание одного поля конфигурации провайдера.
type FieldDescriptor struct {
	Key      string
	Required bool
	// Secret — значение никогда не выводится в логи.
	Secret bool
	// Endpoint — поле переопределяет адрес API. Задаётся только оператором.
	Endpoint bool
	// HostPart — значение входит в имя хоста API провайдера.
	HostPart bool
}

// descriptors — таблица полей конфигурации по провайдерам.
// Валидация выполняется обходом таблицы, без ручных проверок на провайдера.
var descriptors = map[ID][]FieldDescriptor{
	Aliyun: {
		{Key: "accessKeyId", Required: true, Secret: true},
		{Key: "accessKeySecret", Required: true, Secret: true},
		{Key: "bucket", Required: true, HostPart: true},
		{Key: "region", Required: true, HostPart: true},
		{Key: "basePath"},
		{Key: "customDomain"},
		{Key: "processParams"},
		{Key: "endpoint", Endpoint: true},
	},
	Tencent: {
		{Key: "secretId", Required: true, Secret: true},
		{Key: "secretKey", Required: true, Secret: true},
		{Key: "bucket", Required: true, HostPart: true},
		{Key: "appId", Required: true, HostPart: true},
		{Key: "region", Required: true, HostPart: true},
		{Key: "basePath"},
		{Key: "customDomain"},
		{Key: "processParams"},
		{Key: "endpoint", Endpoint: true},
	},
	Qiniu: {
		{Key: "accessKey", Required: true, Secret: true},
		{Key: "secretKey", Required: true, Secret: true},
		{Key: "bucket", Required: true},
		{Key: "region", Required: true, HostPart: true},
		{Key: "domain", Required: true},
		{Key: "basePath"},
		{Key: "processParams"},
		{Key: "upHost", Endpoint: true},
	},
	Local: {
		{Key: "root", Required: true},
		{Key: "baseURL", Required: true},
		{Key: "basePath"},
	},
}

// fieldAliases — имена полей из старых клиентских конфигураций.
var fieldAliases = map[string]string{
	"area":        "region",
	"path":        "basePath",
	"customUrl":   "customDomain",
	"url":         "domain",
	"secretID":    "secretId",
	"accessKeyID": "accessKeyId",
}

// Config — конфигурация конкретного провайдера: идентификатор и значения полей.
// Реализует slog.LogValuer: секретные поля в логах маскируются.
type Config struct {
	Provider ID                `json:"provider"`
	Values   map[string]string `json:"values"`
}

// NewConfig создаёт конфигурацию, приводя устаревшие имена полей к актуальным.
func NewConfig(id ID, values map[string]string) Config {
	normalized := make(map[string]string, len(values))
	for k, v := range values {
		if alias, ok := fieldAliases[k]; ok {
			if _, exists := values[alias]; exists {
				continue
			}
			k = alias
		}
		normalized[k] = strings.TrimSpace(v)
	}
	return Config{Provider: id, Values: normalized}
}

// Get возвращает значение поля (пустая строка, если не задано).
func (c Config) Get(key string) string {
	if c.Values == nil {
		return ""
	}
	return strings.TrimSpace(c.Values[key])
}

// With возвращает копию конфигурации с установленным полем.
func (c Config) With(key, value string) Config {
	values := make(map[string]string, len(c.Values)+1)
	for k, v := range c.Values {
		values[k] = v
	}
	values[key] = value
	return Config{Provider: c.Provider, Values: values}
}

// Descriptor возвращает таблицу полей провайдера.
func Descriptor(id ID) ([]FieldDescriptor, bool) {
	d, ok := descriptors[id]
	return d, ok
}

// Validate проверяет наличие всех обязательных полей.
// Возвращает ErrUnsupportedProvider для неизвестного провайдера
// и *ConfigIncompleteError со списком отсутствующих полей.
func (c Config) Validate() error {
	desc, ok := descriptors[c.Provider]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedProvider, c.Provider)
	}

	var missing []string
	for _, f := range desc {
		if f.Required && c.Get(f.Key) == "" {
			missing = append(missing, f.Key)
		}
	}
	if len(missing) > 0 {
		return &ConfigIncompleteError{Provider: c.Provider, Missing: missing}
	}
	return nil
}

// hostLabel — допустимое значение части имени хоста.
var hostLabel = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`)

// ValidateUserSupplied проверяет конфигурацию, пришедшую от пользователя.
// Запросы по ней уходят только на штатные хосты провайдера: локальное
// хранилище и переопределение адреса API запрещены, части имени хоста
// не могут содержать точек, слешей и прочих разделителей.
func (c Config) ValidateUserSupplied() error {
	if c.Provider == Local {
		return fmt.Errorf("%w: провайдер local недоступен для пользовательских конфигураций", ErrConfigRejected)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	for _, f := range descriptors[c.Provider] {
		v := c.Get(f.Key)
		if v == "" {
			continue
		}
		if f.Endpoint {
			return fmt.Errorf("%w: поле %s задаётся только в конфигурации сервиса", ErrConfigRejected, f.Key)
		}
		if f.HostPart && !hostLabel.MatchString(v) {
			return fmt.Errorf("%w: недопустимое значение поля %s", ErrConfigRejected, f.Key)
		}
	}
	return nil
}

// LogValue реализует slog.LogValuer.
func (c Config) LogValue() slog.Value {
	secret := make(map[string]bool)
	for _, f := range descriptors[c.Provider] {
		if f.Secret {
			secret[f.Key] = true
		}
	}

	keys := make([]string, 0, len(c.Values))
	for k := range c.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := []slog.Attr{slog.String("provider", string(c.Provider))}
	for _, k := range keys {
		v := c.Values[k]
		if secret[k] && v != "" {
			v = "***"
		}
		attrs = append(attrs, slog.String(k, v))
	}
	return slog.GroupValue(attrs...)
}

// ConfigFromEnv собирает конфигурацию из набора переменных окружения.
// Ключи env — имена полей в UPPER_SNAKE_CASE (accessKeyId → ACCESS_KEY_ID).
func ConfigFromEnv(id ID, env map[string]string) Config {
	values := make(map[string]string)
	for _, f := range descriptors[id] {
		if v, ok := env[EnvName(f.Key)]; ok && v != "" {
			values[f.Key] = v
		}
	}
	return Config{Provider: id, Values: values}
}

// EnvName преобразует имя поля в суффикс переменной окружения.
func EnvName(key string) string {
	var b strings.Builder
	runes := []rune(key)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || nextLower {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
