package domain

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PluginConfig planner和attack的配置，ref格式为"unit:TypeName"
type PluginConfig struct {
	Ref  string         `json:"ref" yaml:"ref"`
	Args map[string]any `json:"args" yaml:"args"`
}

// Document 返回配置的JSON通用表示，用于schema校验
func (c PluginConfig) Document() (any, error) {
	return toDocument(c)
}

func toDocument(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode plugin config: %w", err)
	}
	var doc any
	if err = json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode plugin config: %w", err)
	}
	return doc, nil
}
