package availability

import (
	"errors"
	"testing"
	"time"

	"github.com/lessonhub-dev/lesson-market/backend/internal/bitset"
	"github.com/lessonhub-dev/lesson-market/backend/internal/config"
	"github.com/lessonhub-dev/lesson-market/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore 是内存实现的 Store，写入方法模拟仓储层的事务语义：
// failWrites 为 true 时整个写入失败且不产生任何修改。
type fakeStore struct {
	days       map[string]*domain.AvailabilityDay
	audits     []*domain.AuditLog
	events     []*domain.OutboxEvent
	failWrites bool
	nextID     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		days: make(map[string]*domain.AvailabilityDay),
	}
}

func (f *fakeStore) GetWeekDays(instructorID int64, weekStart time.Time) (map[string]*domain.AvailabilityDay, error) {
	result := make(map[string]*domain.AvailabilityDay)
	for i := 0; i < 7; i++ {
		ds := weekStart.AddDate(0, 0, i).Format(dateLayout)
		if day, exists := f.days[ds]; exists {
			copied := *day
			result[ds] = &copied
		}
	}
	return result, nil
}

func (f *fakeStore) ReplaceWeek(instructorID int64, weekStart time.Time, upserts []*domain.AvailabilityDay, deletes []time.Time, audit *domain.AuditLog, events []*domain.OutboxEvent) error {
	if f.failWrites {
		return errors.New("数据库写入失败")
	}
	for _, d := range deletes {
		delete(f.days, d.Format(dateLayout))
	}
	f.upsert(upserts)
	f.audits = append(f.audits, audit)
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeStore) BulkUpsertDays(instructorID int64, upserts []*domain.AvailabilityDay, audits []*domain.AuditLog, events []*domain.OutboxEvent) error {
	if f.failWrites {
		return errors.New("数据库写入失败")
	}
	f.upsert(upserts)
	f.audits = append(f.audits, audits...)
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeStore) upsert(upserts []*domain.AvailabilityDay) {
	for _, day := range upserts {
		ds := day.Day.Format(dateLayout)
		if exist, exists := f.days[ds]; exists {
			exist.Bits = day.Bits
			exist.Version++
			continue
		}
		f.nextID++
		f.days[ds] = &domain.AvailabilityDay{
			ID:           f.nextID,
			InstructorID: day.InstructorID,
			Day:          day.Day,
			Bits:         day.Bits,
			Version:      1,
		}
	}
}

func (f *fakeStore) setDay(t *testing.T, instructorID int64, ds string, windows ...domain.Window) {
	t.Helper()
	bits, err := bitset.FromWindows(windows)
	require.NoError(t, err)
	d, err := time.ParseInLocation(dateLayout, ds, time.UTC)
	require.NoError(t, err)
	f.upsert([]*domain.AvailabilityDay{{InstructorID: instructorID, Day: d, Bits: bits.Bytes()}})
}

type fakeOracle struct {
	blocked map[string]bool
}

func (f *fakeOracle) HasBlockingBooking(instructorID int64, day time.Time) (bool, error) {
	return f.blocked[day.Format(dateLayout)], nil
}

type fakeTimezones struct{}

func (fakeTimezones) InstructorTimezone(instructorID int64) (*time.Location, error) {
	return time.UTC, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Availability.PastEditWindowDays = 30
	cfg.Availability.ClampCopyToFuture = true
	return cfg
}

// 固定"今天"为 2026-03-18（周三），让护栏相关的断言是确定性的
var anchorToday = time.Date(2026, 3, 18, 10, 30, 0, 0, time.UTC)

func newTestService(store *fakeStore, oracle *fakeOracle) *Service {
	if oracle == nil {
		oracle = &fakeOracle{blocked: make(map[string]bool)}
	}
	svc := NewService(testConfig(), store, oracle, fakeTimezones{})
	svc.now = func() time.Time { return anchorToday }
	return svc
}

func mustDate(t *testing.T, ds string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation(dateLayout, ds, time.UTC)
	require.NoError(t, err)
	return d
}

func TestSaveWeekAndGetWeek(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, nil)

	weekStart := mustDate(t, "2026-03-23") // 下周一

	summary, err := svc.SaveWeek(1, weekStart, map[string][]domain.Window{
		"2026-03-23": {
			{StartTime: "09:00:00", EndTime: "11:00:00"},
			{StartTime: "10:00:00", EndTime: "12:00:00"}, // 重叠，编码时合并
		},
		"2026-03-25": {{StartTime: "14:00:00", EndTime: "15:00:00"}},
	}, false)
	require.NoError(t, err)

	assert.Equal(t, OutcomeApplied, summary.Outcome)
	assert.Equal(t, 2, summary.DaysWritten)
	assert.Equal(t, 2, summary.WindowsCreated)
	assert.Equal(t, []string{"2026-03-23", "2026-03-25"}, summary.EditedDates)
	assert.False(t, summary.HistoricalEdit)

	view, err := svc.GetWeek(1, weekStart)
	require.NoError(t, err)

	// 一周 7 天都应该出现在结果中，重叠的窗口以最小合并形式返回
	require.Len(t, view.Windows, 7)
	assert.Equal(t, []domain.Window{{StartTime: "09:00:00", EndTime: "12:00:00"}}, view.Windows["2026-03-23"])
	assert.Equal(t, []domain.Window{{StartTime: "14:00:00", EndTime: "15:00:00"}}, view.Windows["2026-03-25"])
	assert.Empty(t, view.Windows["2026-03-24"])

	// 审计日志和 outbox 事件随写入一起产生
	require.Len(t, store.audits, 1)
	assert.Equal(t, domain.AuditActionSaveWeek, store.audits[0].Action)
	assert.Len(t, store.events, 2)
}

func TestSaveWeekETagChangesOnWrite(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, nil)
	weekStart := mustDate(t, "2026-03-23")

	before, err := svc.GetWeek(1, weekStart)
	require.NoError(t, err)

	_, err = svc.SaveWeek(1, weekStart, map[string][]domain.Window{
		"2026-03-24": {{StartTime: "09:00:00", EndTime: "10:00:00"}},
	}, false)
	require.NoError(t, err)

	after, err := svc.GetWeek(1, weekStart)
	require.NoError(t, err)
	assert.NotEqual(t, before.ETag, after.ETag)
}

func TestSaveWeekNoChangeIsSkipped(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, nil)
	weekStart := mustDate(t, "2026-03-23")

	windows := map[string][]domain.Window{
		"2026-03-23": {{StartTime: "09:00:00", EndTime: "10:00:00"}},
	}

	_, err := svc.SaveWeek(1, weekStart, windows, false)
	require.NoError(t, err)

	// 重复提交完全相同的内容不产生写入
	summary, err := svc.SaveWeek(1, weekStart, windows, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, summary.Outcome)
	assert.Zero(t, summary.DaysWritten)
	assert.Len(t, store.audits, 1)
}

func TestSaveWeekAtomicity(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, nil)
	weekStart := mustDate(t, "2026-03-23")

	store.setDay(t, 1, "2026-03-24", domain.Window{StartTime: "08:00:00", EndTime: "09:00:00"})
	before, err := svc.GetWeek(1, weekStart)
	require.NoError(t, err)

	store.failWrites = true
	_, err = svc.SaveWeek(1, weekStart, map[string][]domain.Window{
		"2026-03-23": {{StartTime: "09:00:00", EndTime: "10:00:00"}},
		"2026-03-24": {{StartTime: "13:00:00", EndTime: "14:00:00"}},
	}, false)
	require.Error(t, err)

	// 写入失败后存储内容必须与调用前完全一致
	store.failWrites = false
	after, err := svc.GetWeek(1, weekStart)
	require.NoError(t, err)
	assert.Equal(t, before.Windows, after.Windows)
	assert.Equal(t, before.ETag, after.ETag)
	assert.Empty(t, store.audits)
	assert.Empty(t, store.events)
}

func TestSaveWeekClearExisting(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, nil)
	weekStart := mustDate(t, "2026-03-23")

	store.setDay(t, 1, "2026-03-24", domain.Window{StartTime: "08:00:00", EndTime: "09:00:00"})
	store.setDay(t, 1, "2026-03-26", domain.Window{StartTime: "10:00:00", EndTime: "11:00:00"})

	summary, err := svc.SaveWeek(1, weekStart, map[string][]domain.Window{
		"2026-03-24": {{StartTime: "08:00:00", EndTime: "12:00:00"}},
	}, true)
	require.NoError(t, err)

	assert.Equal(t, OutcomeApplied, summary.Outcome)
	assert.ElementsMatch(t, []string{"2026-03-24", "2026-03-26"}, summary.EditedDates)

	view, err := svc.GetWeek(1, weekStart)
	require.NoError(t, err)
	assert.Equal(t, []domain.Window{{StartTime: "08:00:00", EndTime: "12:00:00"}}, view.Windows["2026-03-24"])
	// 没有重新提交的已有日期被清空
	assert.Empty(t, view.Windows["2026-03-26"])
}

func TestSaveWeekHistoricalEdit(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, nil)

	// 今天是 2026-03-18（周三），本周一在回溯窗口内，允许编辑但标记为历史编辑
	weekStart := mustDate(t, "2026-03-16")

	summary, err := svc.SaveWeek(1, weekStart, map[string][]domain.Window{
		"2026-03-16": {{StartTime: "09:00:00", EndTime: "10:00:00"}},
		"2026-03-19": {{StartTime: "09:00:00", EndTime: "10:00:00"}},
	}, false)
	require.NoError(t, err)

	assert.Equal(t, OutcomeApplied, summary.Outcome)
	assert.True(t, summary.HistoricalEdit)
	assert.Equal(t, []string{"2026-03-16", "2026-03-19"}, summary.EditedDates)
	assert.Empty(t, summary.SkippedDates)
}

func TestSaveWeekFarPastOnlyReportsSkipped(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, nil)

	// 回溯窗口为 30 天，截止日期是 2026-02-16，这一周整周都在截止日期之前
	weekStart := mustDate(t, "2026-02-09")

	summary, err := svc.SaveWeek(1, weekStart, map[string][]domain.Window{
		"2026-02-09": {{StartTime: "09:00:00", EndTime: "10:00:00"}},
		"2026-02-11": {{StartTime: "14:00:00", EndTime: "15:00:00"}},
	}, false)
	require.NoError(t, err)

	// 只包含远过去日期的请求返回成功但零写入，所有日期被列为跳过
	assert.Equal(t, OutcomeSkipped, summary.Outcome)
	assert.Zero(t, summary.DaysWritten)
	assert.Equal(t, []string{"2026-02-09", "2026-02-11"}, summary.SkippedDates)
	assert.Empty(t, store.audits)
	assert.Empty(t, store.events)
}

func TestSaveWeekBookingConflict(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	oracle := &fakeOracle{blocked: map[string]bool{"2026-03-24": true}}
	svc := newTestService(store, oracle)
	weekStart := mustDate(t, "2026-03-23")

	store.setDay(t, 1, "2026-03-24", domain.Window{StartTime: "09:00:00", EndTime: "12:00:00"})

	// 缩小已有窗口会清掉已预约的时段，这一天被跳过
	summary, err := svc.SaveWeek(1, weekStart, map[string][]domain.Window{
		"2026-03-24": {{StartTime: "10:00:00", EndTime: "12:00:00"}},
		"2026-03-25": {{StartTime: "09:00:00", EndTime: "10:00:00"}},
	}, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-03-24"}, summary.ConflictDates)
	assert.Equal(t, []string{"2026-03-25"}, summary.EditedDates)

	view, err := svc.GetWeek(1, weekStart)
	require.NoError(t, err)
	assert.Equal(t, []domain.Window{{StartTime: "09:00:00", EndTime: "12:00:00"}}, view.Windows["2026-03-24"])
}

func TestSaveWeekRejectsNonMonday(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), nil)

	_, err := svc.SaveWeek(1, mustDate(t, "2026-03-24"), nil, false)
	assert.Error(t, err)
}

func TestSaveWeekRejectsDateOutsideWeek(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), nil)

	_, err := svc.SaveWeek(1, mustDate(t, "2026-03-23"), map[string][]domain.Window{
		"2026-03-30": {{StartTime: "09:00:00", EndTime: "10:00:00"}},
	}, false)
	assert.Error(t, err)
}

func TestApplyPatternScenario(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, nil)

	// 源周：周一 09:00-10:00，周三 14:00-15:00
	sourceWeek := mustDate(t, "2026-03-16")
	store.setDay(t, 1, "2026-03-16", domain.Window{StartTime: "09:00:00", EndTime: "10:00:00"})
	store.setDay(t, 1, "2026-03-18", domain.Window{StartTime: "14:00:00", EndTime: "15:00:00"})

	// 应用到未来 4 周
	targetStart := mustDate(t, "2026-03-23")
	targetEnd := mustDate(t, "2026-04-19")

	summary, err := svc.ApplyPatternToRange(1, sourceWeek, targetStart, targetEnd)
	require.NoError(t, err)

	assert.Equal(t, OutcomeApplied, summary.Outcome)
	assert.Equal(t, 4, summary.WeeksApplied)
	assert.Equal(t, 4, summary.WeeksAffected)
	assert.Equal(t, 8, summary.DaysWritten)
	assert.Equal(t, 8, summary.WindowsCreated)
	assert.Zero(t, summary.SkippedPastTargets)

	// 每个目标周恰好写入周一和周三，且窗口与源周逐位一致
	for week := 0; week < 4; week++ {
		blockStart := targetStart.AddDate(0, 0, week*7)
		view, err := svc.GetWeek(1, blockStart)
		require.NoError(t, err)

		monday := blockStart.Format(dateLayout)
		wednesday := blockStart.AddDate(0, 0, 2).Format(dateLayout)
		assert.Equal(t, []domain.Window{{StartTime: "09:00:00", EndTime: "10:00:00"}}, view.Windows[monday])
		assert.Equal(t, []domain.Window{{StartTime: "14:00:00", EndTime: "15:00:00"}}, view.Windows[wednesday])

		for i := 0; i < 7; i++ {
			if i == 0 || i == 2 {
				continue
			}
			assert.Empty(t, view.Windows[blockStart.AddDate(0, 0, i).Format(dateLayout)])
		}
	}

	// 每个教师每个目标周最多一条审计记录
	assert.Len(t, store.audits, 4)
	assert.Len(t, store.events, 8)
}

func TestApplyPatternThreeDaySource(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, nil)

	sourceWeek := mustDate(t, "2026-03-16")
	store.setDay(t, 1, "2026-03-17", domain.Window{StartTime: "08:00:00", EndTime: "09:00:00"})
	store.setDay(t, 1, "2026-03-19", domain.Window{StartTime: "13:00:00", EndTime: "14:00:00"})
	store.setDay(t, 1, "2026-03-21", domain.Window{StartTime: "19:00:00", EndTime: "20:00:00"})

	summary, err := svc.ApplyPatternToRange(1, sourceWeek, mustDate(t, "2026-03-23"), mustDate(t, "2026-04-19"))
	require.NoError(t, err)

	// 3 天的源模式 × 4 个目标周 = 12 个写入的日期
	assert.Equal(t, 12, summary.DaysWritten)
	assert.Equal(t, 4, summary.WeeksApplied)
}

func TestApplyPatternEmptySource(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, nil)

	summary, err := svc.ApplyPatternToRange(1, mustDate(t, "2026-03-16"), mustDate(t, "2026-03-23"), mustDate(t, "2026-04-19"))
	require.NoError(t, err)

	// 空源周不是错误：零写入加说明性消息
	assert.Equal(t, OutcomeSkipped, summary.Outcome)
	assert.Zero(t, summary.WeeksApplied)
	assert.Zero(t, summary.DaysWritten)
	assert.Contains(t, summary.Message, "源周没有任何可约时间位")
	assert.Empty(t, store.events)
}

func TestApplyPatternClampsPastTargets(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, nil)

	sourceWeek := mustDate(t, "2026-03-09")
	store.setDay(t, 1, "2026-03-09", domain.Window{StartTime: "09:00:00", EndTime: "10:00:00"})
	store.setDay(t, 1, "2026-03-11", domain.Window{StartTime: "14:00:00", EndTime: "15:00:00"})

	// 目标区间横跨"今天"（2026-03-18 周三）：本周一、周三在今天之前
	summary, err := svc.ApplyPatternToRange(1, sourceWeek, mustDate(t, "2026-03-16"), mustDate(t, "2026-03-29"))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.WeeksApplied)
	// 2026-03-16（周一）和 2026-03-18 之前没有别的目标日，周三 03-18 等于今天可以写入
	assert.Equal(t, 1, summary.SkippedPastTargets)
	assert.Equal(t, []string{"2026-03-16"}, summary.SkippedDates)
	assert.Equal(t, 3, summary.DaysWritten)

	// 被跳过的日期不产生 outbox 事件
	assert.Len(t, store.events, summary.DaysWritten)

	// 被跳过的日期保持原样（没有行）
	view, err := svc.GetWeek(1, mustDate(t, "2026-03-16"))
	require.NoError(t, err)
	assert.Empty(t, view.Windows["2026-03-16"])
	assert.Equal(t, []domain.Window{{StartTime: "14:00:00", EndTime: "15:00:00"}}, view.Windows["2026-03-18"])
}

func TestApplyPatternSkipsBookedTargets(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	oracle := &fakeOracle{blocked: map[string]bool{"2026-03-23": true}}
	svc := newTestService(store, oracle)

	sourceWeek := mustDate(t, "2026-03-16")
	store.setDay(t, 1, "2026-03-16", domain.Window{StartTime: "09:00:00", EndTime: "10:00:00"})

	// 目标周一已有更宽的窗口且存在预约，复制会清掉已置位时段，这一天被跳过
	store.setDay(t, 1, "2026-03-23", domain.Window{StartTime: "08:00:00", EndTime: "12:00:00"})

	summary, err := svc.ApplyPatternToRange(1, sourceWeek, mustDate(t, "2026-03-23"), mustDate(t, "2026-04-05"))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SkippedBookedTargets)
	assert.Equal(t, 1, summary.DaysWritten)

	view, err := svc.GetWeek(1, mustDate(t, "2026-03-23"))
	require.NoError(t, err)
	assert.Equal(t, []domain.Window{{StartTime: "08:00:00", EndTime: "12:00:00"}}, view.Windows["2026-03-23"])
}

func TestApplyPatternRejectsInvalidRange(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), nil)

	_, err := svc.ApplyPatternToRange(1, mustDate(t, "2026-03-16"), mustDate(t, "2026-03-23"), mustDate(t, "2026-03-22"))
	assert.Error(t, err)
}
