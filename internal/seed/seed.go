package seed

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"time"

	"github.com/lessonhub-dev/lesson-market/backend/internal/availability"
	"github.com/lessonhub-dev/lesson-market/backend/internal/config"
	"github.com/lessonhub-dev/lesson-market/backend/internal/domain"
	"github.com/lessonhub-dev/lesson-market/backend/internal/repository"
	"github.com/lessonhub-dev/lesson-market/backend/internal/utils"
)

// SeedDemoData 生成演示数据：随机教师和学员、教师的随机可约时间周、
// 把其中一周的模式批量应用到未来，以及若干条预约。
// 所有用户的密码都是配置中的 SEED_USER_PASSWORD。
func SeedDemoData(cfg *config.Config, repo *repository.Repository, svc *availability.Service, instructorsNum, studentsNum int) {
	instructors := seedUsers(cfg, repo, domain.RoleInstructor, instructorsNum)
	students := seedUsers(cfg, repo, domain.RoleStudent, studentsNum)

	if len(instructors) == 0 || len(students) == 0 {
		slog.Error("没有成功创建任何教师或学员，跳过后续数据生成")
		return
	}

	weekStart := nextMonday(time.Now())

	for _, instructor := range instructors {
		// 为每位教师生成未来两周的随机可约时间
		for i := 0; i < 2; i++ {
			ws := weekStart.AddDate(0, 0, 7*i)
			windows := utils.GenerateRandomWeekWindows(ws.Format("2006-01-02"))
			if len(windows) == 0 {
				continue
			}

			summary, err := svc.SaveWeek(instructor.ID, ws, windows, false)
			if err != nil {
				slog.Error("保存可约时间失败", "instructor", instructor.Username, "error", err)
				continue
			}
			slog.Info("已保存可约时间", "instructor", instructor.Username, "weekStart", ws.Format("2006-01-02"), "daysWritten", summary.DaysWritten)
		}

		// 把第一周的模式应用到之后一个月
		targetStart := weekStart.AddDate(0, 0, 14)
		targetEnd := targetStart.AddDate(0, 0, 27)
		summary, err := svc.ApplyPatternToRange(instructor.ID, weekStart, targetStart, targetEnd)
		if err != nil {
			slog.Error("应用周模式失败", "instructor", instructor.Username, "error", err)
			continue
		}
		slog.Info("已应用周模式", "instructor", instructor.Username, "weeksAffected", summary.WeeksAffected)
	}

	seedBookings(repo, svc, instructors, students, weekStart)
}

func seedUsers(cfg *config.Config, repo *repository.Repository, role domain.Role, num int) []*domain.User {
	users := make([]*domain.User, 0, num)

	for i := 0; i < num; i++ {
		user, err := utils.GenerateRandomUser(role, cfg.Seed.User.Password, cfg.Email.UserDomain)
		if err != nil {
			slog.Error("生成随机用户失败", "error", err)
			continue
		}
		if err := repo.CreateUser(user); err != nil {
			slog.Error("插入用户失败", "username", user.Username, "error", err)
			continue
		}
		slog.Info("已创建用户", "username", user.Username, "role", user.Role)
		users = append(users, user)
	}

	return users
}

// seedBookings 在每位教师的第一个可约窗口上随机安排一个学员的预约。
func seedBookings(repo *repository.Repository, svc *availability.Service, instructors, students []*domain.User, weekStart time.Time) {
	for _, instructor := range instructors {
		view, err := svc.GetWeek(instructor.ID, weekStart)
		if err != nil {
			slog.Error("读取可约时间失败", "instructor", instructor.Username, "error", err)
			continue
		}

		for ds, windows := range view.Windows {
			if len(windows) == 0 {
				continue
			}

			day, _ := time.ParseInLocation("2006-01-02", ds, time.UTC)
			student := students[rand.Intn(len(students))]

			booking := &domain.Booking{
				StudentID:    student.ID,
				InstructorID: instructor.ID,
				Day:          day,
				StartTime:    windows[0].StartTime,
				EndTime:      windows[0].EndTime,
				Status:       domain.BookingStatusConfirmed,
			}

			payload, _ := json.Marshal(booking)
			event := &domain.OutboxEvent{
				Topic:   domain.TopicBookingCreated,
				Payload: payload,
			}

			if err := repo.CreateBooking(booking, event); err != nil {
				slog.Error("插入预约失败", "instructor", instructor.Username, "error", err)
				continue
			}
			slog.Info("已创建预约", "instructor", instructor.Username, "student", student.Username, "day", ds)
			break
		}
	}
}

func nextMonday(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
