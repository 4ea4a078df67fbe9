package auth

import (
	"strings"

	"ATLAS-backend/internal/platform/apperr"
)

// Role は境界で一度だけ正規化される閉じた列挙。
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleMember  Role = "MEMBER"
)

var ErrUnknownRole = apperr.Invalid("UNKNOWN_ROLE", "unknown role")

// 過去のトークン/DBで使われてきた表記ゆれ
var roleAliases = map[string]Role{
	"admin":          RoleAdmin,
	"administrator":  RoleAdmin,
	"superadmin":     RoleAdmin,
	"owner":          RoleAdmin,
	"manager":        RoleManager,
	"projectmanager": RoleManager,
	"pm":             RoleManager,
	"lead":           RoleManager,
	"teamlead":       RoleManager,
	"supervisor":     RoleManager,
	"member":         RoleMember,
	"user":           RoleMember,
	"employee":       RoleMember,
	"developer":      RoleMember,
	"staff":          RoleMember,
}

// NormalizeRole は大文字小文字・空白・"-"・"_" を無視して Role に寄せる。
func NormalizeRole(s string) (Role, error) {
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '\t':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))

	if r, ok := roleAliases[key]; ok {
		return r, nil
	}
	return "", ErrUnknownRole.WithMessage("unknown role %q", s)
}

// CanManage reports whether the role may act on other users' time records.
func (r Role) CanManage() bool {
	return r == RoleAdmin || r == RoleManager
}

// Identity is the authenticated caller threaded into every core call.
type Identity struct {
	UserID string
	Role   Role
}

// CanView は viewer が user 本人か管理ロールかを判定する。
func (id Identity) CanView(userID string) bool {
	return id.UserID == userID || id.Role.CanManage()
}
