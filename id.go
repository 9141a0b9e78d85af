package chaosmonkey

import (
	"strings"

	"github.com/google/uuid"
)

// NewID 生成128位随机ID的十六进制表示
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
