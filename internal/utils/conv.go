package utils

import (
	"strconv"
)

// StringToInt converts string to int, returns 0 if error
func StringToInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

// PositiveIntOr 解析正整数，失败或非正数时返回默认值
func PositiveIntOr(s string, def int) int {
	if i := StringToInt(s); i > 0 {
		return i
	}
	return def
}

// ParseOptionalBool maps "true"/"false" to a pointer; anything else is nil.
func ParseOptionalBool(s string) *bool {
	switch s {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	}
	return nil
}
