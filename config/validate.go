package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ErrNilConfig 配置为空
var ErrNilConfig = errors.New("config is nil")

// Validator 可自校验的子配置
type Validator interface {
	Validate() error
}

// validateAll 依次校验子配置并合并错误
func validateAll(vs ...Validator) error {
	var err error
	for _, v := range vs {
		err = multierr.Append(err, v.Validate())
	}
	return err
}

// ValidationErrors 展开合并后的错误
func ValidationErrors(err error) []error {
	return multierr.Errors(err)
}

// MustValidate 验证配置，失败时 panic
//
// 仅用于初始化阶段或测试代码。
func MustValidate(c *Config) {
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}
}
