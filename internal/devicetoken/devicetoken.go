// Package devicetoken decrypts client-supplied device tokens used to gate
// trial plan purchases.
//
// A token is base64(iv[12] || ciphertext || tag[16]) produced with
// AES-256-GCM; the plaintext is "deviceID_" followed by the device id.
package devicetoken

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"payment-service/internal/conf"
	payErrors "payment-service/internal/errors"

	"github.com/google/wire"
)

// ProviderSet is devicetoken providers.
var ProviderSet = wire.NewSet(NewVerifierFromConfig)

const (
	prefix    = "deviceID_"
	nonceSize = 12
	tagSize   = 16
	keySize   = 32
)

var (
	errFormat  = errors.New("invalid device token format")
	errOpen    = errors.New("device token verification failed")
	errContent = errors.New("invalid device token content")
	errEmpty   = errors.New("device id cannot be empty")
)

// Verifier 设备令牌解密器
type Verifier struct {
	aead cipher.AEAD
}

// NewVerifier 创建解密器，secret 为 32 字节原文或 "base64:" 前缀的 base64 编码。
// secret 为空时返回未配置的解密器，任何解密请求都会得到配置错误。
func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &Verifier{}, nil
	}
	key := []byte(secret)
	if strings.HasPrefix(secret, "base64:") {
		decoded, err := base64.StdEncoding.DecodeString(secret[len("base64:"):])
		if err != nil {
			return nil, payErrors.Configuration("device secret base64 解码失败")
		}
		key = decoded
	}
	if len(key) != keySize {
		return nil, payErrors.Configuration("device secret 长度必须为 32 字节")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, payErrors.Configuration("device secret 无效").WithCause(err)
	}
	aead, err := cipher.NewGCMWithTagSize(block, tagSize)
	if err != nil {
		return nil, payErrors.Configuration("device secret 无效").WithCause(err)
	}
	return &Verifier{aead: aead}, nil
}

// NewVerifierFromConfig wire provider
func NewVerifierFromConfig(c *conf.Bootstrap) (*Verifier, error) {
	if c == nil || c.Device == nil {
		return NewVerifier("")
	}
	return NewVerifier(c.Device.Secret)
}

// Configured 是否配置了密钥
func (v *Verifier) Configured() bool {
	return v != nil && v.aead != nil
}

// Decrypt 解密令牌返回设备 ID；任何校验失败都返回 INVALID_TOKEN
func (v *Verifier) Decrypt(token string) (string, error) {
	if !v.Configured() {
		return "", payErrors.Configuration("device secret 未配置")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil || len(raw) <= nonceSize+tagSize {
		return "", payErrors.InvalidToken(errFormat)
	}
	plaintext, err := v.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", payErrors.InvalidToken(errOpen)
	}
	s := string(plaintext)
	if !strings.HasPrefix(s, prefix) {
		return "", payErrors.InvalidToken(errContent)
	}
	id := strings.TrimPrefix(s, prefix)
	if id == "" {
		return "", payErrors.InvalidToken(errEmpty)
	}
	return id, nil
}

// Mint 生成设备令牌（客户端 SDK 与测试使用相同格式）
func (v *Verifier) Mint(deviceID string) (string, error) {
	if !v.Configured() {
		return "", payErrors.Configuration("device secret 未配置")
	}
	iv := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}
	sealed := v.aead.Seal(nil, iv, []byte(prefix+deviceID), nil)
	return base64.StdEncoding.EncodeToString(append(iv, sealed...)), nil
}
