package service

import (
	"context"
	"encoding/json"
	"net"
	"net/url"
	"strconv"
	"strings"

	"payment-service/internal/constants"
	payErrors "payment-service/internal/errors"

	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(
	NewPaymentService,
	NewOrderService,
	NewAdminService,
)

// Reply 统一响应
type Reply struct {
	Data interface{} `json:"data"`
}

// invoke 通过服务端中间件链执行业务处理并输出 JSON
func invoke(ctx http.Context, operation string, in interface{}, fn func(ctx context.Context, in interface{}) (interface{}, error)) error {
	http.SetOperation(ctx, operation)
	h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
		return fn(c, req)
	})
	out, err := h(ctx, in)
	if err != nil {
		return err
	}
	return ctx.Result(200, &Reply{Data: out})
}

// userID 上游网关注入的用户 ID
func userID(ctx http.Context) (int64, error) {
	raw := strings.TrimSpace(ctx.Header().Get(constants.HeaderUserID))
	if raw == "" {
		return 0, payErrors.ErrUnauthorized
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, payErrors.ErrUnauthorized
	}
	return id, nil
}

// callbackParams 合并 query、表单与 JSON body 中的回调参数，同名取第一个值
func callbackParams(r *http.Request) map[string]string {
	params := map[string]string{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body map[string]interface{}
		dec := json.NewDecoder(r.Body)
		// 数字保留原文，避免 10.00 变成 10 导致验签失败
		dec.UseNumber()
		if err := dec.Decode(&body); err == nil {
			for k, v := range body {
				params[k] = scalar(v)
			}
		}
		mergeValues(params, r.URL.Query())
		return params
	}
	if err := r.ParseForm(); err != nil {
		mergeValues(params, r.URL.Query())
		return params
	}
	mergeValues(params, r.Form)
	return params
}

func mergeValues(dst map[string]string, values url.Values) {
	for k, v := range values {
		if _, ok := dst[k]; ok || len(v) == 0 {
			continue
		}
		dst[k] = v[0]
	}
}

func scalar(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return "0"
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// remoteIP 回调来源 IP；trustProxy 时优先取代理头
func remoteIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
