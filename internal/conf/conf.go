package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bootstrap 服务启动配置（对应 configs/config.yaml）
type Bootstrap struct {
	Server  *Server  `json:"server"`
	Data    *Data    `json:"data"`
	Payment *Payment `json:"payment"`
	Device  *Device  `json:"device"`
	Cron    *Cron    `json:"cron"`
	Log     *Log     `json:"log"`
}

// Server HTTP 服务配置
type Server struct {
	Http *Server_HTTP `json:"http"`
}

// Server_HTTP HTTP 监听配置
type Server_HTTP struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
}

// Data 数据层配置
type Data struct {
	Database *Data_Database `json:"database"`
	Redis    *Data_Redis    `json:"redis"`
	Rocketmq *Data_Rocketmq `json:"rocketmq"`
}

// Data_Database 数据库配置
type Data_Database struct {
	Driver string `json:"driver"`
	Source string `json:"source"`
	// AutoMigrate 启动时自动建表
	AutoMigrate bool `json:"auto_migrate"`
}

// Data_Redis Redis 配置
type Data_Redis struct {
	Addr         string    `json:"addr"`
	Password     string    `json:"password"`
	DB           int       `json:"db"`
	ReadTimeout  *Duration `json:"read_timeout"`
	WriteTimeout *Duration `json:"write_timeout"`
}

// Data_Rocketmq RocketMQ 配置（支付结算事件）
type Data_Rocketmq struct {
	Enabled       bool     `json:"enabled"`
	NameServers   []string `json:"name_servers"`
	GroupName     string   `json:"group_name"`
	ProducerGroup string   `json:"producer_group"`
	Topic         string   `json:"topic"`
	RetryTimes    int32    `json:"retry_times"`
}

// Payment 支付编排配置
type Payment struct {
	// AppURL 站点根地址，用于拼接回调地址
	AppURL string `json:"app_url"`
	// ConnectTimeout / Timeout 出站网关请求的连接超时与总超时
	ConnectTimeout *Duration `json:"connect_timeout"`
	Timeout        *Duration `json:"timeout"`
	// SettleLockExpiry 结算分布式锁过期时间
	SettleLockExpiry *Duration `json:"settle_lock_expiry"`
	// TrustProxyHeaders 是否信任 X-Forwarded-For / X-Real-IP 获取回调来源 IP
	TrustProxyHeaders bool `json:"trust_proxy_headers"`
	// Plugins 插件级配置，key 为插件 code
	Plugins map[string]*Plugin `json:"plugins"`
}

// Plugin 插件级配置
type Plugin struct {
	Enabled     bool   `json:"enabled"`
	DisplayName string `json:"display_name"`
	Icon        string `json:"icon"`
	// GatewayURL 覆盖默认网关地址（联调环境）
	GatewayURL string `json:"gateway_url"`
}

// Device 设备试用令牌配置
type Device struct {
	// Secret 32 字节密钥，支持 base64: 前缀
	Secret string `json:"secret"`
}

// Cron 定时任务配置
type Cron struct {
	// ExpirePendingSpec 过期待支付订单扫描周期（秒级 cron 表达式）
	ExpirePendingSpec string `json:"expire_pending_spec"`
	// PendingTTL 待支付订单有效期
	PendingTTL *Duration `json:"pending_ttl"`
}

// Log 日志配置
type Log struct {
	Level    string `json:"level"`
	Format   string `json:"format"`
	Output   string `json:"output"`
	FilePath string `json:"file_path"`
}

// Duration 支持 "1.5s" 字符串或纳秒整数
type Duration struct {
	time.Duration
}

// NewDuration 构造 Duration
func NewDuration(d time.Duration) *Duration {
	return &Duration{Duration: d}
}

// AsDuration 返回 time.Duration，nil 安全
func (d *Duration) AsDuration() time.Duration {
	if d == nil {
		return 0
	}
	return d.Duration
}

// UnmarshalJSON 实现 json.Unmarshaler
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration: %s", string(b))
	}
}

// MarshalJSON 实现 json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
