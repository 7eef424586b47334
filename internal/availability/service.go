package availability

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/lessonhub-dev/lesson-market/backend/internal/bitset"
	"github.com/lessonhub-dev/lesson-market/backend/internal/config"
	"github.com/lessonhub-dev/lesson-market/backend/internal/domain"
)

const dateLayout = "2006-01-02"

type Service struct {
	cfg       *config.Config
	store     Store
	bookings  BookingOracle
	timezones TimezoneResolver

	// 测试时可以替换，用于固定"今天"
	now func() time.Time
}

func NewService(cfg *config.Config, store Store, bookings BookingOracle, timezones TimezoneResolver) *Service {
	return &Service{
		cfg:       cfg,
		store:     store,
		bookings:  bookings,
		timezones: timezones,
		now:       time.Now,
	}
}

// GetWeek 返回某位教师一周的可约时间窗口，一周内的 7 天都会出现在结果中。
// ETag 由各行的版本号计算得到，用于 HTTP 层的条件请求。
func (s *Service) GetWeek(instructorID int64, weekStart time.Time) (*WeekView, error) {
	weekStart, err := normalizeWeekStart(weekStart)
	if err != nil {
		return nil, err
	}

	days, err := s.store.GetWeekDays(instructorID, weekStart)
	if err != nil {
		return nil, err
	}

	view := &WeekView{
		WeekStart: weekStart.Format(dateLayout),
		Windows:   make(map[string][]domain.Window, 7),
	}

	etagParts := make([]string, 0, len(days))

	for i := 0; i < 7; i++ {
		ds := weekStart.AddDate(0, 0, i).Format(dateLayout)

		day, exists := days[ds]
		if !exists {
			view.Windows[ds] = []domain.Window{}
			continue
		}

		bits, err := bitset.FromBytes(day.Bits)
		if err != nil {
			return nil, err
		}
		view.Windows[ds] = bits.Windows()

		etagParts = append(etagParts, fmt.Sprintf("%s:%d", ds, day.Version))
	}

	sort.Strings(etagParts)
	sum := sha256.Sum256(fmt.Appendf(nil, "%d|%s|%v", instructorID, view.WeekStart, etagParts))
	view.ETag = hex.EncodeToString(sum[:16])

	return view, nil
}

// SaveWeek 原子地替换某位教师一周的可约时间。
// windowsByDate 的 key 是 ISO 日期字符串，必须落在 weekStart 所在的那一周内。
// clearExisting 为 true 时，本周内没有提交窗口的已有日期会被清空。
// 过去日期按护栏策略处理：超出回溯窗口的日期被静默跳过，
// 回溯窗口内的日期允许编辑但会被标记为历史编辑。
func (s *Service) SaveWeek(instructorID int64, weekStart time.Time, windowsByDate map[string][]domain.Window, clearExisting bool) (*WeekSaveSummary, error) {
	weekStart, err := normalizeWeekStart(weekStart)
	if err != nil {
		return nil, err
	}

	for ds := range windowsByDate {
		d, err := time.ParseInLocation(dateLayout, ds, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("日期 %s 格式错误", ds)
		}
		if d.Before(weekStart) || !d.Before(weekStart.AddDate(0, 0, 7)) {
			return nil, fmt.Errorf("日期 %s 不在 %s 开始的那一周内", ds, weekStart.Format(dateLayout))
		}
	}

	today, err := s.today(instructorID)
	if err != nil {
		return nil, err
	}
	farPastCutoff := today.AddDate(0, 0, -s.cfg.Availability.PastEditWindowDays)

	existing, err := s.store.GetWeekDays(instructorID, weekStart)
	if err != nil {
		return nil, err
	}

	summary := &WeekSaveSummary{
		EditedDates:   make([]string, 0),
		SkippedDates:  make([]string, 0),
		ConflictDates: make([]string, 0),
	}

	detail := domain.AuditDetail{
		BeforeBits: make(map[string]string),
		AfterBits:  make(map[string]string),
	}

	upserts := make([]*domain.AvailabilityDay, 0)
	deletes := make([]time.Time, 0)
	events := make([]*domain.OutboxEvent, 0)

	for i := 0; i < 7; i++ {
		d := weekStart.AddDate(0, 0, i)
		ds := d.Format(dateLayout)

		windows, submitted := windowsByDate[ds]
		exist := existing[ds]

		// 既没有提交这一天，也不需要清空已有数据，直接跳过
		if !submitted && !(clearExisting && exist != nil) {
			continue
		}

		var existBits bitset.Bitset
		if exist != nil {
			existBits, err = bitset.FromBytes(exist.Bits)
			if err != nil {
				return nil, err
			}
		}

		var newBits bitset.Bitset
		if submitted {
			newBits, err = bitset.FromWindows(windows)
			if err != nil {
				return nil, fmt.Errorf("日期 %s：%w", ds, err)
			}
		}

		// 超出回溯窗口的日期无条件跳过，行保持原样
		if d.Before(farPastCutoff) {
			summary.SkippedDates = append(summary.SkippedDates, ds)
			continue
		}

		// 没有任何变化的日期不需要写入
		if newBits.Equal(existBits) {
			continue
		}

		// 只有在会清掉已置位时段的时候才需要询问预约冲突
		if existBits.ClearsAnyOf(newBits) {
			blocked, err := s.bookings.HasBlockingBooking(instructorID, d)
			if err != nil {
				return nil, err
			}
			if blocked {
				summary.ConflictDates = append(summary.ConflictDates, ds)
				continue
			}
		}

		if d.Before(today) {
			summary.HistoricalEdit = true
		}

		summary.EditedDates = append(summary.EditedDates, ds)
		summary.DaysWritten++
		summary.WindowsCreated += newBits.WindowCount()

		detail.BeforeBits[ds] = hex.EncodeToString(existBits.Bytes())
		detail.AfterBits[ds] = hex.EncodeToString(newBits.Bytes())

		if newBits.IsEmpty() {
			deletes = append(deletes, d)
		} else {
			upserts = append(upserts, &domain.AvailabilityDay{
				InstructorID: instructorID,
				Day:          d,
				Bits:         newBits.Bytes(),
			})
		}

		events = append(events, dayChangedEvent(instructorID, ds))
	}

	if len(summary.EditedDates) == 0 {
		summary.Outcome = OutcomeSkipped
		switch {
		case len(summary.SkippedDates) > 0 || len(summary.ConflictDates) > 0:
			summary.Message = "没有可编辑的日期，所有提交的日期均被跳过"
		default:
			summary.Message = "本周可约时间没有变化"
		}
		return summary, nil
	}

	detail.EditedDates = summary.EditedDates
	detail.SkippedDates = summary.SkippedDates
	detail.HistoricalEdit = summary.HistoricalEdit

	audit := &domain.AuditLog{
		InstructorID: instructorID,
		Action:       domain.AuditActionSaveWeek,
		WeekStart:    weekStart,
		Detail:       detail,
	}

	if err := s.store.ReplaceWeek(instructorID, weekStart, upserts, deletes, audit, events); err != nil {
		return nil, err
	}

	summary.Outcome = OutcomeApplied
	summary.Message = "可约时间保存成功"
	return summary, nil
}

// ApplyPatternToRange 把源周的可约模式逐周复制到目标日期区间。
// 目标区间按 7 天一块切分，每块中的每个星期几都从源周对应的星期几原样复制；
// 源周没有置位的星期几被跳过而不是写零。目标区间的两端均为闭区间。
func (s *Service) ApplyPatternToRange(instructorID int64, sourceWeekStart, targetStart, targetEnd time.Time) (*ApplySummary, error) {
	sourceWeekStart, err := normalizeWeekStart(sourceWeekStart)
	if err != nil {
		return nil, err
	}
	targetStart, err = normalizeWeekStart(targetStart)
	if err != nil {
		return nil, err
	}
	targetEnd = normalizeDate(targetEnd)
	if targetEnd.Before(targetStart) {
		return nil, fmt.Errorf("目标结束日期不能早于目标开始日期")
	}

	today, err := s.today(instructorID)
	if err != nil {
		return nil, err
	}
	farPastCutoff := today.AddDate(0, 0, -s.cfg.Availability.PastEditWindowDays)
	clamp := s.cfg.Availability.ClampCopyToFuture

	sourceDays, err := s.store.GetWeekDays(instructorID, sourceWeekStart)
	if err != nil {
		return nil, err
	}

	// 按星期几整理源周的位图，空位图视同没有数据
	var sourceBits [7]*bitset.Bitset
	for i := 0; i < 7; i++ {
		day, exists := sourceDays[sourceWeekStart.AddDate(0, 0, i).Format(dateLayout)]
		if !exists {
			continue
		}
		bits, err := bitset.FromBytes(day.Bits)
		if err != nil {
			return nil, err
		}
		if bits.IsEmpty() {
			continue
		}
		sourceBits[i] = &bits
	}

	summary := &ApplySummary{
		SkippedDates: make([]string, 0),
	}

	hasSource := false
	for _, bits := range sourceBits {
		if bits != nil {
			hasSource = true
			break
		}
	}
	if !hasSource {
		summary.Outcome = OutcomeSkipped
		summary.Message = "源周没有任何可约时间位，未应用任何修改"
		return summary, nil
	}

	upserts := make([]*domain.AvailabilityDay, 0)
	audits := make([]*domain.AuditLog, 0)
	events := make([]*domain.OutboxEvent, 0)

	for blockStart := targetStart; !blockStart.After(targetEnd); blockStart = blockStart.AddDate(0, 0, 7) {
		summary.WeeksApplied++

		existing, err := s.store.GetWeekDays(instructorID, blockStart)
		if err != nil {
			return nil, err
		}

		detail := domain.AuditDetail{
			EditedDates:  make([]string, 0),
			SkippedDates: make([]string, 0),
			BeforeBits:   make(map[string]string),
			AfterBits:    make(map[string]string),
		}

		for i := 0; i < 7; i++ {
			src := sourceBits[i]
			if src == nil {
				// 源周这个星期几没有可约时间位，不写零，直接跳过
				continue
			}

			d := blockStart.AddDate(0, 0, i)
			if d.After(targetEnd) {
				continue
			}
			ds := d.Format(dateLayout)

			// 过去日期的护栏：超出回溯窗口的无条件跳过，
			// 其余过去日期在开启 clamp 时跳过，行保持原样
			if d.Before(farPastCutoff) || (clamp && d.Before(today)) {
				summary.SkippedPastTargets++
				summary.SkippedDates = append(summary.SkippedDates, ds)
				detail.SkippedDates = append(detail.SkippedDates, ds)
				continue
			}

			var existBits bitset.Bitset
			if exist := existing[ds]; exist != nil {
				existBits, err = bitset.FromBytes(exist.Bits)
				if err != nil {
					return nil, err
				}
			}

			// 已确认的预约是"禁止清除"信号：复制会清掉已置位时段时跳过这一天
			if existBits.ClearsAnyOf(*src) {
				blocked, err := s.bookings.HasBlockingBooking(instructorID, d)
				if err != nil {
					return nil, err
				}
				if blocked {
					summary.SkippedBookedTargets++
					summary.SkippedDates = append(summary.SkippedDates, ds)
					detail.SkippedDates = append(detail.SkippedDates, ds)
					continue
				}
			}

			upserts = append(upserts, &domain.AvailabilityDay{
				InstructorID: instructorID,
				Day:          d,
				Bits:         src.Bytes(),
			})
			events = append(events, dayChangedEvent(instructorID, ds))

			summary.DaysWritten++
			summary.WindowsCreated += src.WindowCount()

			detail.EditedDates = append(detail.EditedDates, ds)
			detail.BeforeBits[ds] = hex.EncodeToString(existBits.Bytes())
			detail.AfterBits[ds] = hex.EncodeToString(src.Bytes())
		}

		if len(detail.EditedDates) > 0 {
			summary.WeeksAffected++
			// 每个教师每个目标周起始日期最多一条审计记录
			audits = append(audits, &domain.AuditLog{
				InstructorID: instructorID,
				Action:       domain.AuditActionApplyPattern,
				WeekStart:    blockStart,
				Detail:       detail,
			})
		}
	}

	if summary.DaysWritten == 0 {
		summary.Outcome = OutcomeSkipped
		summary.Message = "目标区间内没有可写入的日期"
		return summary, nil
	}

	if err := s.store.BulkUpsertDays(instructorID, upserts, audits, events); err != nil {
		return nil, err
	}

	summary.Outcome = OutcomeApplied
	summary.Message = fmt.Sprintf("已将周模式应用到 %d 周", summary.WeeksApplied)
	return summary, nil
}

// today 按教师所在时区计算今天的日期（UTC 零点表示）。
func (s *Service) today(instructorID int64) (time.Time, error) {
	loc, err := s.timezones.InstructorTimezone(instructorID)
	if err != nil {
		return time.Time{}, err
	}

	now := s.now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
}

func dayChangedEvent(instructorID int64, day string) *domain.OutboxEvent {
	payload, _ := json.Marshal(domain.AvailabilityDayChangedPayload{
		InstructorID: instructorID,
		Day:          day,
	})
	return &domain.OutboxEvent{
		Topic:   domain.TopicAvailabilityDayChanged,
		Payload: payload,
	}
}

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func normalizeWeekStart(t time.Time) (time.Time, error) {
	d := normalizeDate(t)
	if d.Weekday() != time.Monday {
		return time.Time{}, fmt.Errorf("周起始日期 %s 必须是周一", d.Format(dateLayout))
	}
	return d, nil
}
