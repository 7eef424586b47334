package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateBookingTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		startTime string
		endTime   string
		wantErr   bool
	}{
		{"合法的一小时时段", "09:00:00", "10:00:00", false},
		{"结束时间没有对齐", "23:45:00", "23:59:00", true},
		{"十五分钟对齐", "14:15:00", "14:30:00", false},
		{"结束等于开始", "10:00:00", "10:00:00", true},
		{"结束早于开始", "11:00:00", "10:00:00", true},
		{"开始时间没有对齐", "09:10:00", "10:00:00", true},
		{"带秒数", "09:00:30", "10:00:00", true},
		{"格式错误", "9点", "10:00:00", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateBookingTime(tt.startTime, tt.endTime)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestGenerateRandomWindowsAreAligned(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		for _, w := range GenerateRandomWindows() {
			if w.EndTime == "24:00:00" {
				continue
			}
			require.NoError(t, ValidateBookingTime(w.StartTime, w.EndTime))
		}
	}
}
