package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"admin", RoleAdmin},
		{"Administrator", RoleAdmin},
		{"super_admin", RoleAdmin},
		{"MANAGER", RoleManager},
		{"project-manager", RoleManager},
		{" PM ", RoleManager},
		{"Team Lead", RoleManager},
		{"user", RoleMember},
		{"Employee", RoleMember},
		{"developer", RoleMember},
	}
	for _, tt := range tests {
		got, err := NormalizeRole(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNormalizeRoleUnknown(t *testing.T) {
	_, err := NormalizeRole("guest")
	assert.True(t, errors.Is(err, ErrUnknownRole))

	_, err = NormalizeRole("")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestCanManageAndView(t *testing.T) {
	assert.True(t, RoleAdmin.CanManage())
	assert.True(t, RoleManager.CanManage())
	assert.False(t, RoleMember.CanManage())

	member := Identity{UserID: "u1", Role: RoleMember}
	assert.True(t, member.CanView("u1"))
	assert.False(t, member.CanView("u2"))

	manager := Identity{UserID: "m1", Role: RoleManager}
	assert.True(t, manager.CanView("u2"))
}
