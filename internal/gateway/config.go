package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	payErrors "payment-service/internal/errors"
)

// 合并进配置映射的保留字段
const (
	KeyEnable       = "enable"
	KeyID           = "id"
	KeyUUID         = "uuid"
	KeyNotifyDomain = "notify_domain"
)

// Config 单条支付配置，按值传入 Adapter
type Config struct {
	ID           int64
	PublicID     string
	Method       string
	Enable       bool
	NotifyDomain string
	// NotifyURL 编排层计算好的回调地址
	NotifyURL string
	// Fields 插件自定义字段（app_id、private_key 等）
	Fields map[string]string
}

// Get 返回字段值，保留字段优先
func (c Config) Get(key string) string {
	switch key {
	case KeyEnable:
		if c.Enable {
			return "1"
		}
		return "0"
	case KeyID:
		return strconv.FormatInt(c.ID, 10)
	case KeyUUID:
		return c.PublicID
	case KeyNotifyDomain:
		return c.NotifyDomain
	}
	return c.Fields[key]
}

// GetDefault 返回字段值，为空时返回 def
func (c Config) GetDefault(key, def string) string {
	if v := strings.TrimSpace(c.Get(key)); v != "" {
		return v
	}
	return def
}

// Has 字段是否存在（含保留字段）
func (c Config) Has(key string) bool {
	switch key {
	case KeyEnable, KeyID, KeyUUID, KeyNotifyDomain:
		return true
	}
	_, ok := c.Fields[key]
	return ok
}

// Clone 深拷贝，避免 Adapter 之间共享可变状态
func (c Config) Clone() Config {
	out := c
	out.Fields = make(map[string]string, len(c.Fields))
	for k, v := range c.Fields {
		out.Fields[k] = v
	}
	return out
}

// ParseFields 解析存储的 config 字段：JSON 对象，或内容为 JSON 对象的 JSON 字符串。
// 标量统一转为字符串，嵌套结构保留原始 JSON。
func ParseFields(raw []byte) (map[string]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]string{}, nil
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, payErrors.Configuration("支付配置格式错误").WithCause(err)
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			return map[string]string{}, nil
		}
		raw = []byte(inner)
		if raw[0] == '"' {
			return nil, payErrors.Configuration("支付配置格式错误: 多重编码")
		}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, payErrors.Configuration("支付配置格式错误").WithCause(err)
	}

	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		switch value := v.(type) {
		case nil:
			fields[k] = ""
		case string:
			fields[k] = value
		case json.Number:
			fields[k] = value.String()
		case bool:
			if value {
				fields[k] = "1"
			} else {
				fields[k] = "0"
			}
		default:
			b, err := json.Marshal(value)
			if err != nil {
				return nil, payErrors.Configuration("支付配置字段 %s 无法解析", k).WithCause(err)
			}
			fields[k] = string(b)
		}
	}
	return fields, nil
}
