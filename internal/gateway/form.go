package gateway

import "sort"

// FormField 插件配置表单字段定义
type FormField struct {
	Key         string
	Type        string // 默认 string
	Label       string
	Placeholder string
	Description string
	Default     string
	Required    bool
	// Options 有序选项
	Options []Option
	// SelectOptions 值 -> 名称的关联选项，渲染时按值排序转换为 Options
	SelectOptions map[string]string
}

// Option 下拉选项
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FormValue 渲染后的表单字段，附带当前配置值
type FormValue struct {
	Key         string   `json:"key"`
	Type        string   `json:"type"`
	Label       string   `json:"label"`
	Placeholder string   `json:"placeholder"`
	Description string   `json:"description"`
	Value       string   `json:"value"`
	Required    bool     `json:"required"`
	Options     []Option `json:"options"`
}

// OptionsFromMap 关联选项转为有序列表
func OptionsFromMap(m map[string]string) []Option {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Option, 0, len(keys))
	for _, k := range keys {
		out = append(out, Option{Label: m[k], Value: k})
	}
	return out
}

// RenderForm 按字段顺序渲染表单：值取当前配置，其次默认值，最后空串
func RenderForm(fields []FormField, cfg Config) []FormValue {
	out := make([]FormValue, 0, len(fields))
	for _, f := range fields {
		typ := f.Type
		if typ == "" {
			typ = "string"
		}
		value := f.Default
		if cfg.Has(f.Key) {
			if v := cfg.Get(f.Key); v != "" {
				value = v
			}
		}
		options := f.Options
		if len(options) == 0 {
			options = OptionsFromMap(f.SelectOptions)
		}
		if options == nil {
			options = []Option{}
		}
		out = append(out, FormValue{
			Key:         f.Key,
			Type:        typ,
			Label:       f.Label,
			Placeholder: f.Placeholder,
			Description: f.Description,
			Value:       value,
			Required:    f.Required,
			Options:     options,
		})
	}
	return out
}
