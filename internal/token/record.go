// Package token 管理访问令牌：权限模型、展示用的脱敏以及基于 SQLite 的持久化。
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Permission 表示令牌的访问级别，零值表示没有任何权限。
type Permission string

const (
	PermissionNone     Permission = ""
	PermissionReadOnly Permission = "readonly"
	PermissionFull     Permission = "full"
)

// Valid 判断 p 是否为可以写入令牌表的权限。
func (p Permission) Valid() bool {
	return p == PermissionReadOnly || p == PermissionFull
}

// CanRead 报告该权限是否允许读取缓存。
func (p Permission) CanRead() bool {
	return p.Valid()
}

// CanWrite 报告该权限是否允许写入缓存。
func (p Permission) CanWrite() bool {
	return p == PermissionFull
}

// Record 是令牌表中的一行。
type Record struct {
	ID         string     `json:"id"`
	Value      string     `json:"value"`
	Permission Permission `json:"permission"`
}

// NewValue 生成新的令牌值：32 字节随机数的 SHA-256 摘要，十六进制编码后为 64 个字符。
func NewValue() (string, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return "", fmt.Errorf("generate token seed: %w", err)
	}
	sum := sha256.Sum256(seed)
	return hex.EncodeToString(sum[:]), nil
}
