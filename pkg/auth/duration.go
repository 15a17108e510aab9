package auth

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var expiresInPattern = regexp.MustCompile(`^(\d+)([smhdwMy])$`)

// ParseExpiresIn 解析形如 30m、7d、1M 的有效期，M 按30天、y 按365天计算
func ParseExpiresIn(s string) (time.Duration, error) {
	matches := expiresInPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("无效的有效期格式: %q", s)
	}

	n, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("无效的有效期数值: %q", s)
	}
	if n == 0 {
		return 0, fmt.Errorf("有效期不能为0: %q", s)
	}

	day := 24 * time.Hour
	var unit time.Duration
	switch matches[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = day
	case "w":
		unit = 7 * day
	case "M":
		unit = 30 * day
	case "y":
		unit = 365 * day
	}

	return time.Duration(n) * unit, nil
}
