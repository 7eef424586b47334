package utils

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/lessonhub-dev/lesson-market/backend/internal/domain"
	"github.com/mozillazg/go-pinyin"
	"golang.org/x/crypto/bcrypt"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

var digits = "0123456789"

func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, pinyin := range pinyinArray {
		length := rand.Intn(len(pinyin)) + 1
		username += pinyin[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

func GenerateRandomUser(role domain.Role, password string, emailDomainName string) (*domain.User, error) {
	fullName := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Role:         role,
	}

	return user, nil
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

func GenerateRandomPassword(length int) string {
	random_password := make([]rune, length)
	for i := range random_password {
		random_password[i] = letters[rand.Intn(len(letters))]
	}
	return string(random_password)
}

// GenerateRandomWindows 生成一天内互不重叠的随机可约时间窗口。
// 先把一天切成上午/下午/晚上三段，每段最多出一个窗口，天然不会重叠。
func GenerateRandomWindows() []domain.Window {
	segments := [][2]int{
		{9 * 4, 12 * 4},  // 上午
		{14 * 4, 18 * 4}, // 下午
		{19 * 4, 22 * 4}, // 晚上
	}

	windows := make([]domain.Window, 0, len(segments))
	for _, seg := range segments {
		if rand.Intn(2) == 0 {
			continue
		}

		segLen := seg[1] - seg[0]
		start := seg[0] + rand.Intn(segLen-1)
		length := rand.Intn(seg[1]-start) + 1

		windows = append(windows, domain.Window{
			StartTime: formatSlot(start),
			EndTime:   formatSlot(start + length),
		})
	}

	return windows
}

func formatSlot(slot int) string {
	if slot == 96 {
		return "24:00:00"
	}
	return fmt.Sprintf("%02d:%02d:00", slot/4, slot%4*15)
}

// GenerateRandomWeekWindows 生成一周的随机可约时间，部分天可能为空。
func GenerateRandomWeekWindows(weekStart string) map[string][]domain.Window {
	windowsByDate := make(map[string][]domain.Window)

	for i := 0; i < 7; i++ {
		if rand.Intn(4) == 0 {
			continue
		}
		windowsByDate[addDays(weekStart, i)] = GenerateRandomWindows()
	}

	return windowsByDate
}

func addDays(date string, n int) string {
	t, _ := time.ParseInLocation("2006-01-02", date, time.UTC)
	return t.AddDate(0, 0, n).Format("2006-01-02")
}
