package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidReference ref不是"unit:TypeName"格式
	ErrInvalidReference = errors.New("invalid reference")
	// ErrLookup ref格式正确但找不到对应的unit或类型
	ErrLookup        = errors.New("plugin lookup failed")
	ErrDuplicateUnit = errors.New("duplicate unit")
)

// LoadError 加载目录失败，整个加载过程放弃
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("unable to load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ValidationError 配置不满足插件声明的schema
type ValidationError struct {
	Ref string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config for %s: %v", e.Ref, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
