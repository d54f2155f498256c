package rbac

import "testing"

func TestResolveRole(t *testing.T) {
	modGroups := []string{"lineup-moderators"}

	tests := []struct {
		name       string
		groups     []string
		realmRoles []string
		want       string
	}{
		{name: "без групп и ролей — user", want: RoleUser},
		{name: "группа модераторов", groups: []string{"players", "lineup-moderators"}, want: RoleModerator},
		{name: "посторонняя группа", groups: []string{"players"}, want: RoleUser},
		{name: "realm-роль moderator", realmRoles: []string{"offline_access", "moderator"}, want: RoleModerator},
		{name: "неизвестная realm-роль игнорируется", realmRoles: []string{"admin"}, want: RoleUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveRole(tt.groups, tt.realmRoles, modGroups)
			if got != tt.want {
				t.Errorf("ResolveRole() = %q, хотели %q", got, tt.want)
			}
		})
	}
}

func TestAtLeast(t *testing.T) {
	if !AtLeast(RoleModerator, RoleUser) {
		t.Error("moderator должен удовлетворять требованию user")
	}
	if AtLeast(RoleUser, RoleModerator) {
		t.Error("user не должен удовлетворять требованию moderator")
	}
	if AtLeast("", RoleUser) {
		t.Error("пустая роль не должна проходить проверку")
	}
}

func TestHighestRole(t *testing.T) {
	if got := HighestRole(nil); got != "" {
		t.Errorf("HighestRole(nil) = %q, хотели пустую строку", got)
	}
	if got := HighestRole([]string{RoleUser, RoleModerator, RoleUser}); got != RoleModerator {
		t.Errorf("HighestRole() = %q, хотели moderator", got)
	}
}
