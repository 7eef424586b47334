package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/lessonhub-dev/lesson-market/backend/internal/availability"
	"github.com/lessonhub-dev/lesson-market/backend/internal/config"
	"github.com/lessonhub-dev/lesson-market/backend/internal/domain"
	"github.com/lessonhub-dev/lesson-market/backend/internal/lock"
	"github.com/lessonhub-dev/lesson-market/backend/internal/repository"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type Handler struct {
	validate     *validator.Validate
	config       *config.Config
	repository   *repository.Repository
	availability *availability.Service
	translator   ut.Translator
	mailChannel  *amqp.Channel
	redisClient  *redis.Client
	bookingLock  *lock.BookingLocker

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, svc *availability.Service, mailCh *amqp.Channel, rdb *redis.Client, bookingLock *lock.BookingLocker) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:     validate,
		config:       cfg,
		repository:   repo,
		availability: svc,
		translator:   trans,
		mailChannel:  mailCh,
		redisClient:  rdb,
		bookingLock:  bookingLock,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/", h.CreateUser)
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Get("/", h.GetAllUserInfo)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.Get("/", h.GetUserInfo)
				r.With(h.preventOperateInitialAdmin).With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Patch("/", h.UpdateUser)
				r.With(h.preventOperateInitialAdmin).With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Delete("/", h.DeleteUser)
			})
		})

		r.Route("/instructors/{id}/availability", func(r chi.Router) {
			r.Use(h.instructorInfo)
			r.Get("/weeks/{weekStart}", h.GetAvailabilityWeek) // 学员查看教师的可约时间也走这个接口
			r.Group(func(r chi.Router) {
				r.Use(h.requireInstructorSelfOrAdmin)
				r.Put("/weeks/{weekStart}", h.SaveAvailabilityWeek)
				r.Post("/apply-pattern", h.ApplyAvailabilityPattern)
				r.Get("/audit-logs", h.GetAvailabilityAuditLogs)
			})
		})

		r.Route("/bookings", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleStudent})).Post("/", h.CreateBooking)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.bookingInfo)
				r.Get("/", h.GetBooking)
				r.Post("/cancel", h.CancelBooking)
			})
		})
	})
}
