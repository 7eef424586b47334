package bitset

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/lessonhub-dev/lesson-market/backend/internal/domain"
)

const (
	// 每个时段 15 分钟，一天共 96 个时段
	SlotMinutes = 15
	SlotsPerDay = 24 * 60 / SlotMinutes

	// 96 位存储为 12 字节
	ByteLen = SlotsPerDay / 8
)

// Bitset 是一天的可约位图，第 i 位对应 [i*15min, (i+1)*15min) 这个时段。
// 用两个 uint64 存储，持久化时编码为 12 字节（小端序）。
type Bitset struct {
	words [2]uint64
}

func (b *Bitset) Set(i int) {
	if i < 0 || i >= SlotsPerDay {
		return
	}
	b.words[i/64] |= 1 << uint(i%64)
}

func (b Bitset) Has(i int) bool {
	if i < 0 || i >= SlotsPerDay {
		return false
	}
	return b.words[i/64]&(1<<uint(i%64)) != 0
}

func (b Bitset) IsEmpty() bool {
	return b.words[0] == 0 && b.words[1] == 0
}

func (b Bitset) Equal(other Bitset) bool {
	return b.words == other.words
}

// ClearsAnyOf 判断从 b 切换到 next 是否会清掉 b 中已置位的时段。
// 纯新增的修改返回 false。
func (b Bitset) ClearsAnyOf(next Bitset) bool {
	return b.words[0]&^next.words[0] != 0 || b.words[1]&^next.words[1] != 0
}

func (b Bitset) Bytes() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], b.words[0])
	binary.LittleEndian.PutUint64(buf[8:16], b.words[1])
	return buf[:ByteLen]
}

func FromBytes(p []byte) (Bitset, error) {
	if len(p) != ByteLen {
		return Bitset{}, fmt.Errorf("位图长度错误：期望 %d 字节，实际 %d 字节", ByteLen, len(p))
	}

	buf := make([]byte, 16)
	copy(buf, p)

	var b Bitset
	b.words[0] = binary.LittleEndian.Uint64(buf[0:8])
	b.words[1] = binary.LittleEndian.Uint64(buf[8:16])
	return b, nil
}

// FromWindows 把一组时间窗口编码为位图。
// 窗口之间允许重叠或相邻，编码结果是所有窗口覆盖时段的并集，
// 因此重叠和相邻的窗口会自然合并。空输入返回全零位图。
func FromWindows(windows []domain.Window) (Bitset, error) {
	var b Bitset

	for i, w := range windows {
		start, err := parseClock(w.StartTime)
		if err != nil {
			return Bitset{}, fmt.Errorf("窗口 %d 的开始时间格式错误", i)
		}
		end, err := parseClock(w.EndTime)
		if err != nil {
			return Bitset{}, fmt.Errorf("窗口 %d 的结束时间格式错误", i)
		}

		if start >= end {
			return Bitset{}, fmt.Errorf("窗口 %d 的结束时间必须大于开始时间", i)
		}
		if start%SlotMinutes != 0 || end%SlotMinutes != 0 {
			return Bitset{}, fmt.Errorf("窗口 %d 的时间没有对齐到 %d 分钟", i, SlotMinutes)
		}

		for slot := start / SlotMinutes; slot < end/SlotMinutes; slot++ {
			b.Set(slot)
		}
	}

	return b, nil
}

// Windows 扫描位图中的极大连续置位段，按时间升序返回对应的时间窗口。
// 覆盖到一天末尾的段以 24:00:00 结束。
func (b Bitset) Windows() []domain.Window {
	windows := make([]domain.Window, 0)

	runStart := -1
	for i := 0; i <= SlotsPerDay; i++ {
		if i < SlotsPerDay && b.Has(i) {
			if runStart < 0 {
				runStart = i
			}
			continue
		}

		if runStart >= 0 {
			windows = append(windows, domain.Window{
				StartTime: formatClock(runStart * SlotMinutes),
				EndTime:   formatClock(i * SlotMinutes),
			})
			runStart = -1
		}
	}

	return windows
}

// WindowCount 返回位图中连续置位段的数量。
func (b Bitset) WindowCount() int {
	count := 0
	inRun := false
	for i := 0; i < SlotsPerDay; i++ {
		if b.Has(i) {
			if !inRun {
				count++
				inRun = true
			}
		} else {
			inRun = false
		}
	}
	return count
}

// parseClock 把 HH:MM:SS 解析成一天内的分钟数，24:00:00 表示一天的结束。
func parseClock(s string) (int, error) {
	if s == "24:00:00" {
		return 24 * 60, nil
	}

	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return 0, err
	}
	if t.Second() != 0 {
		return 0, fmt.Errorf("时间 %s 包含秒数", s)
	}

	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(minutes int) string {
	if minutes == 24*60 {
		return "24:00:00"
	}
	return fmt.Sprintf("%02d:%02d:00", minutes/60, minutes%60)
}
