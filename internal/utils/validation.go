package utils

import (
	"fmt"
	"time"
)

// ValidateBookingTime 检查预约时间段的格式和对齐：
// 必须是 HH:MM:SS，结束时间大于开始时间，且两端都落在 15 分钟的格子上。
func ValidateBookingTime(startTime, endTime string) error {
	start, err := time.Parse("15:04:05", startTime)
	if err != nil {
		return fmt.Errorf("开始时间格式错误")
	}
	end, err := time.Parse("15:04:05", endTime)
	if err != nil {
		return fmt.Errorf("结束时间格式错误")
	}

	if !end.After(start) {
		return fmt.Errorf("结束时间必须晚于开始时间")
	}

	if start.Minute()%15 != 0 || start.Second() != 0 {
		return fmt.Errorf("开始时间必须是 15 分钟的整数倍")
	}
	if end.Minute()%15 != 0 || end.Second() != 0 {
		return fmt.Errorf("结束时间必须是 15 分钟的整数倍")
	}

	return nil
}
