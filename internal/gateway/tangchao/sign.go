package tangchao

import (
	"crypto"
	"crypto/rsa"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/url"
	"strings"

	payErrors "payment-service/internal/errors"
)

// 签名字段顺序，出站与回调由网关分别定义，二者不同
var (
	payFields    = []string{"amount", "app_id", "currency", "merchant_id", "order_no", "pay_type", "timestamp"}
	notifyFields = []string{"amount", "invoice_no", "order_no", "pay_type", "success"}
)

// Canonical 按固定字段顺序拼接 k=v&k=v，值使用 RFC3986 编码。缺失字段按空串处理。
func Canonical(fields []string, values map[string]string) string {
	var b strings.Builder
	for i, k := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(escape(values[k]))
	}
	return b.String()
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Sign 私钥 PKCS#1 v1.5 填充加密（不做摘要），base64 输出
func Sign(key *rsa.PrivateKey, content string) (string, error) {
	sig, err := rsa.SignPKCS1v15(nil, key, crypto.Hash(0), []byte(content))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify 重新签名并常量时间比较
func Verify(key *rsa.PrivateKey, content, signature string) bool {
	local, err := Sign(key, content)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(local), []byte(signature)) == 1
}

// ParsePrivateKey 兼容多种私钥写法：
// 无 PEM 头的裸 base64、字面量 \n / \r\n、单行 PEM、PKCS#8 或 PKCS#1。
// 错误信息不包含密钥内容。
func ParsePrivateKey(raw string) (*rsa.PrivateKey, error) {
	block, err := normalizePEM(raw)
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, payErrors.Configuration("唐朝支付私钥不是 RSA 密钥")
		}
		return rsaKey, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, payErrors.Configuration("唐朝支付私钥无法解析，请检查格式（PKCS1 / PKCS8）")
}

func normalizePEM(raw string) (*pem.Block, error) {
	s := strings.TrimSpace(raw)
	s = strings.NewReplacer(`\r\n`, "\n", `\n`, "\n", `\r`, "\n").Replace(s)
	if s == "" {
		return nil, payErrors.Configuration("唐朝支付私钥未配置")
	}

	blockType := "PRIVATE KEY"
	body := s
	if strings.HasPrefix(s, "-----BEGIN ") {
		header := s[len("-----BEGIN "):]
		end := strings.Index(header, "-----")
		if end < 0 {
			return nil, payErrors.Configuration("唐朝支付私钥 PEM 头格式错误")
		}
		blockType = header[:end]
		body = header[end+len("-----"):]
		if footer := strings.Index(body, "-----END "); footer >= 0 {
			body = body[:footer]
		}
	}
	body = strings.Join(strings.Fields(body), "")
	if body == "" {
		return nil, payErrors.Configuration("唐朝支付私钥内容为空")
	}

	var b strings.Builder
	b.WriteString("-----BEGIN " + blockType + "-----\n")
	for len(body) > 64 {
		b.WriteString(body[:64])
		b.WriteByte('\n')
		body = body[64:]
	}
	b.WriteString(body)
	b.WriteString("\n-----END " + blockType + "-----\n")

	block, _ := pem.Decode([]byte(b.String()))
	if block == nil {
		return nil, payErrors.Configuration("唐朝支付私钥无法解析，请检查格式（PKCS1 / PKCS8）")
	}
	return block, nil
}
