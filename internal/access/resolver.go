package access

import (
	"context"
	"crypto/subtle"
	"regexp"
	"strings"

	"github.com/any-hub/nx-cache-server/internal/token"
)

var bearerPattern = regexp.MustCompile(`(?i)^Bearer\s+(.+)$`)

// BearerToken 从 Authorization 头提取令牌，格式不符时返回空字符串。
func BearerToken(header string) string {
	match := bearerPattern.FindStringSubmatch(header)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// TokenFinder 按原始 value 查找令牌。
type TokenFinder interface {
	Find(ctx context.Context, value string) *token.Record
}

// Resolver 把请求携带的令牌换算为权限；管理员令牌不入库，总是拥有 full 权限。
type Resolver struct {
	AdminToken string
	Tokens     TokenFinder
}

// Resolve 返回令牌对应的权限以及是否为管理员。
func (r Resolver) Resolve(ctx context.Context, bearer string) (token.Permission, bool) {
	if bearer == "" {
		return token.PermissionNone, false
	}
	if r.AdminToken != "" && subtle.ConstantTimeCompare([]byte(bearer), []byte(r.AdminToken)) == 1 {
		return token.PermissionFull, true
	}
	if r.Tokens == nil {
		return token.PermissionNone, false
	}
	record := r.Tokens.Find(ctx, bearer)
	if record == nil || !record.Permission.Valid() {
		return token.PermissionNone, false
	}
	return record.Permission, false
}
