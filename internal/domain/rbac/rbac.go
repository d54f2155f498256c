// Пакет rbac — определение роли субъекта lineup-module.
// Роль вычисляется из групп и ролей IdP. Любой аутентифицированный
// субъект получает как минимум роль user.
package rbac

// Роли в порядке возрастания привилегий.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
)

// roleWeight — вес роли для сравнения.
var roleWeight = map[string]int{
	RoleUser:      1,
	RoleModerator: 2,
}

// maxRole возвращает роль с максимальными привилегиями из двух.
func maxRole(a, b string) string {
	if roleWeight[a] >= roleWeight[b] {
		return a
	}
	return b
}

// HighestRole возвращает максимальную роль из набора.
// Если набор пуст — возвращает пустую строку.
func HighestRole(roles []string) string {
	if len(roles) == 0 {
		return ""
	}
	highest := roles[0]
	for _, r := range roles[1:] {
		highest = maxRole(highest, r)
	}
	return highest
}

// ResolveRole определяет роль по группам и realm-ролям субъекта.
// Группы из moderatorGroups дают роль moderator, realm-роли
// сопоставляются по имени. Без совпадений — RoleUser.
func ResolveRole(groups, realmRoles, moderatorGroups []string) string {
	modSet := toSet(moderatorGroups)

	roles := []string{RoleUser}
	for _, g := range groups {
		if modSet[g] {
			roles = append(roles, RoleModerator)
		}
	}
	for _, r := range realmRoles {
		if IsValidRole(r) {
			roles = append(roles, r)
		}
	}
	return HighestRole(roles)
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

// AtLeast проверяет, что роль не ниже требуемой.
func AtLeast(role, required string) bool {
	w, ok := roleWeight[role]
	if !ok {
		return false
	}
	return w >= roleWeight[required]
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
