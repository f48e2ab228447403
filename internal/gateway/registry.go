package gateway

import (
	"context"

	payErrors "payment-service/internal/errors"
	"payment-service/internal/hook"
)

// Registry 启动时构建的封闭插件集合
type Registry struct {
	plugins []Plugin
	byCode  map[string]Plugin
}

// NewRegistry 创建插件注册表，code 重复时后者覆盖前者
func NewRegistry(plugins ...Plugin) *Registry {
	r := &Registry{byCode: make(map[string]Plugin, len(plugins))}
	for _, p := range plugins {
		if _, ok := r.byCode[p.Code()]; ok {
			for i := range r.plugins {
				if r.plugins[i].Code() == p.Code() {
					r.plugins[i] = p
				}
			}
		} else {
			r.plugins = append(r.plugins, p)
		}
		r.byCode[p.Code()] = p
	}
	return r
}

// Plugins 返回全部插件（注册顺序）
func (r *Registry) Plugins() []Plugin {
	out := make([]Plugin, len(r.plugins))
	copy(out, r.plugins)
	return out
}

// Boot 启用的插件向过滤器注册支付方式
func (r *Registry) Boot(methods *hook.Filters[Methods]) {
	for _, p := range r.plugins {
		if p.Enabled() {
			p.Boot(methods)
		}
	}
}

// Active 按 code 查找启用的插件
func (r *Registry) Active(code string) (Plugin, error) {
	p, ok := r.byCode[code]
	if !ok || !p.Enabled() {
		return nil, payErrors.UnknownMethod(code)
	}
	return p, nil
}

// Lookup 按 code 查找插件（不区分是否启用）
func (r *Registry) Lookup(code string) (Plugin, bool) {
	p, ok := r.byCode[code]
	return p, ok
}

// RegisterDescriptor 以插件 code 为 owner 注册支付方式描述
func RegisterDescriptor(methods *hook.Filters[Methods], d Descriptor) {
	methods.Add(d.PluginCode, func(_ context.Context, m Methods) Methods {
		if m == nil {
			m = Methods{}
		}
		m[d.Name] = d
		return m
	})
}
