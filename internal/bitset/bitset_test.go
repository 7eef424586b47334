package bitset

import (
	"testing"

	"github.com/lessonhub-dev/lesson-market/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromWindowsRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		windows []domain.Window
	}{
		{
			name:    "单个窗口",
			windows: []domain.Window{{StartTime: "09:00:00", EndTime: "10:00:00"}},
		},
		{
			name: "多个不相邻的窗口",
			windows: []domain.Window{
				{StartTime: "09:00:00", EndTime: "10:30:00"},
				{StartTime: "14:00:00", EndTime: "15:00:00"},
				{StartTime: "19:15:00", EndTime: "21:00:00"},
			},
		},
		{
			name:    "覆盖一天开头的窗口",
			windows: []domain.Window{{StartTime: "00:00:00", EndTime: "00:15:00"}},
		},
		{
			name:    "覆盖一天末尾的窗口",
			windows: []domain.Window{{StartTime: "23:45:00", EndTime: "24:00:00"}},
		},
		{
			name:    "覆盖全天的窗口",
			windows: []domain.Window{{StartTime: "00:00:00", EndTime: "24:00:00"}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := FromWindows(tt.windows)
			require.NoError(t, err)

			// 非重叠且有序的窗口列表经过编码再解码后应该保持不变
			assert.Equal(t, tt.windows, b.Windows())
		})
	}
}

func TestFromWindowsMerge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		windows []domain.Window
		merged  []domain.Window
	}{
		{
			name: "重叠的窗口合并为一个",
			windows: []domain.Window{
				{StartTime: "09:00:00", EndTime: "11:00:00"},
				{StartTime: "10:00:00", EndTime: "12:00:00"},
			},
			merged: []domain.Window{{StartTime: "09:00:00", EndTime: "12:00:00"}},
		},
		{
			name: "相邻的窗口合并为一个",
			windows: []domain.Window{
				{StartTime: "09:00:00", EndTime: "10:00:00"},
				{StartTime: "10:00:00", EndTime: "11:00:00"},
			},
			merged: []domain.Window{{StartTime: "09:00:00", EndTime: "11:00:00"}},
		},
		{
			name: "乱序提交的窗口按时间升序返回",
			windows: []domain.Window{
				{StartTime: "14:00:00", EndTime: "15:00:00"},
				{StartTime: "09:00:00", EndTime: "10:00:00"},
			},
			merged: []domain.Window{
				{StartTime: "09:00:00", EndTime: "10:00:00"},
				{StartTime: "14:00:00", EndTime: "15:00:00"},
			},
		},
		{
			name: "完全包含的窗口不产生额外的段",
			windows: []domain.Window{
				{StartTime: "09:00:00", EndTime: "12:00:00"},
				{StartTime: "10:00:00", EndTime: "10:15:00"},
			},
			merged: []domain.Window{{StartTime: "09:00:00", EndTime: "12:00:00"}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := FromWindows(tt.windows)
			require.NoError(t, err)
			assert.Equal(t, tt.merged, b.Windows())

			// 编码重叠窗口和编码合并后的最小表示应该得到相同的位图
			mergedBits, err := FromWindows(tt.merged)
			require.NoError(t, err)
			assert.True(t, b.Equal(mergedBits))
		})
	}
}

func TestFromWindowsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		windows []domain.Window
	}{
		{
			name:    "开始时间格式错误",
			windows: []domain.Window{{StartTime: "9点", EndTime: "10:00:00"}},
		},
		{
			name:    "结束时间不大于开始时间",
			windows: []domain.Window{{StartTime: "10:00:00", EndTime: "10:00:00"}},
		},
		{
			name:    "结束时间早于开始时间",
			windows: []domain.Window{{StartTime: "11:00:00", EndTime: "10:00:00"}},
		},
		{
			name:    "没有对齐到 15 分钟",
			windows: []domain.Window{{StartTime: "09:05:00", EndTime: "10:00:00"}},
		},
		{
			name:    "包含秒数",
			windows: []domain.Window{{StartTime: "09:00:30", EndTime: "10:00:00"}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := FromWindows(tt.windows)
			assert.Error(t, err)
		})
	}
}

func TestFromWindowsEmpty(t *testing.T) {
	t.Parallel()

	b, err := FromWindows(nil)
	require.NoError(t, err)
	assert.True(t, b.IsEmpty())
	assert.Empty(t, b.Windows())
}

func TestBytesRoundTrip(t *testing.T) {
	t.Parallel()

	b, err := FromWindows([]domain.Window{
		{StartTime: "00:00:00", EndTime: "00:15:00"},
		{StartTime: "15:45:00", EndTime: "16:15:00"}, // 跨 uint64 边界（第 63、64 位）
		{StartTime: "23:45:00", EndTime: "24:00:00"},
	})
	require.NoError(t, err)

	p := b.Bytes()
	require.Len(t, p, ByteLen)

	decoded, err := FromBytes(p)
	require.NoError(t, err)
	assert.True(t, b.Equal(decoded))
	assert.Equal(t, b.Windows(), decoded.Windows())
}

func TestFromBytesInvalidLength(t *testing.T) {
	t.Parallel()

	_, err := FromBytes(make([]byte, 8))
	assert.Error(t, err)
}

func TestClearsAnyOf(t *testing.T) {
	t.Parallel()

	base, err := FromWindows([]domain.Window{{StartTime: "09:00:00", EndTime: "12:00:00"}})
	require.NoError(t, err)

	wider, err := FromWindows([]domain.Window{{StartTime: "08:00:00", EndTime: "13:00:00"}})
	require.NoError(t, err)

	narrower, err := FromWindows([]domain.Window{{StartTime: "10:00:00", EndTime: "12:00:00"}})
	require.NoError(t, err)

	// 纯新增不算清除
	assert.False(t, base.ClearsAnyOf(wider))
	// 缩小窗口会清掉原有的时段
	assert.True(t, base.ClearsAnyOf(narrower))
	// 清空全部
	assert.True(t, base.ClearsAnyOf(Bitset{}))
}

func TestWindowCount(t *testing.T) {
	t.Parallel()

	b, err := FromWindows([]domain.Window{
		{StartTime: "09:00:00", EndTime: "10:00:00"},
		{StartTime: "14:00:00", EndTime: "15:00:00"},
		{StartTime: "14:30:00", EndTime: "16:00:00"}, // 和上一个窗口重叠，合并后仍是一段
	})
	require.NoError(t, err)
	assert.Equal(t, 2, b.WindowCount())

	assert.Equal(t, 0, Bitset{}.WindowCount())
}
