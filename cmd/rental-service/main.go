package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SmartLinkDrive/CarRental/internal/booking"
	"github.com/SmartLinkDrive/CarRental/internal/car"
	"github.com/SmartLinkDrive/CarRental/internal/common/config"
	"github.com/SmartLinkDrive/CarRental/internal/common/db"
	"github.com/SmartLinkDrive/CarRental/internal/common/httpserver"
	"github.com/SmartLinkDrive/CarRental/internal/common/logger"
	"github.com/SmartLinkDrive/CarRental/internal/common/middleware"
	"github.com/SmartLinkDrive/CarRental/internal/common/tracing"
	"github.com/SmartLinkDrive/CarRental/internal/media"
	"github.com/SmartLinkDrive/CarRental/internal/user"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

var (
	configPath = flag.String("config", "configs/rental-service.json", "配置文件路径")
	consulKV   = flag.String("consul-kv", "", "从 Consul KV 加载配置，格式 host:port/key（优先于 -config）")
)

func main() {
	flag.Parse()

	// 加载配置（本地文件或 Consul KV）
	cfg, err := loadConfig()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 初始化链路追踪
	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	// 初始化数据库
	gormDB, err := db.NewMySQL(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.MaxIdle,
		cfg.Database.MaxOpen,
	)
	if err != nil {
		log.Fatalf("failed to init mysql: %v", err)
	}
	if err := gormDB.AutoMigrate(&user.User{}, &car.Car{}, &booking.Booking{}); err != nil {
		log.Fatalf("failed to migrate mysql schema: %v", err)
	}

	// 初始化对象存储（车辆图片）
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	imageStore, err := media.NewMinioStore(
		ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.Bucket,
		cfg.Minio.UseSSL,
	)
	cancel()
	if err != nil {
		log.Fatalf("failed to init minio: %v", err)
	}

	// 预订事件发布器
	events := booking.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.BookingTopic)
	defer events.Close()

	// 装配各领域
	carRepo := car.NewRepo(gormDB)
	carSvc := car.NewService(carRepo, log)
	carHandler := car.NewHandler(carSvc, imageStore, log)

	bookingRepo := booking.NewRepo(gormDB)
	bookingSvc := booking.NewService(bookingRepo, carRepo, events, log)
	bookingHandler := booking.NewHandler(bookingSvc, log)

	userRepo := user.NewRepo(gormDB)
	userSvc := user.NewService(userRepo, cfg.Auth, log)
	userHandler := user.NewHandler(userSvc, log)

	mediaHandler := media.NewHandler(imageStore, log)

	router := buildRouter(cfg, log, carHandler, bookingHandler, userHandler, mediaHandler)

	if err := httpserver.Run(cfg, log, router); err != nil {
		log.Fatalf("rental-service exited with error: %v", err)
	}
}

func loadConfig() (*config.Config, error) {
	if *consulKV != "" {
		addr, key, ok := strings.Cut(*consulKV, "/")
		if !ok {
			return nil, fmt.Errorf("invalid -consul-kv value %q, expected host:port/key", *consulKV)
		}
		host, portStr, ok := strings.Cut(addr, ":")
		if !ok {
			return nil, fmt.Errorf("invalid -consul-kv value %q, expected host:port/key", *consulKV)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid consul port %q: %w", portStr, err)
		}
		return config.LoadConfigFromConsulKV(host, port, key)
	}
	return config.LoadConfig(*configPath)
}

func buildRouter(
	cfg *config.Config,
	log logger.Logger,
	cars *car.Handler,
	bookings *booking.Handler,
	users *user.Handler,
	images *media.Handler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(httpserver.Recovery(log))
	r.Use(httpserver.AccessLog(log))
	r.Use(httpserver.Tracing(cfg.Server.Name))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	requireAuth := httpserver.RequireAuth(cfg.Auth, log)
	requireAdmin := httpserver.RequireRole(cfg.Auth, "admin")

	// 预订创建限流与登录限流相互独立
	bookingLimiter := middleware.NewTokenBucket(20, 10)
	loginLimiter := middleware.NewSlidingWindow(time.Minute, 10)

	r.Get("/healthz", httpserver.HealthHandler())
	r.Get("/uploads/{key}", images.Serve)

	r.Route("/cars", func(r chi.Router) {
		r.Get("/", cars.ListAll)
		r.Get("/available", cars.ListAvailable)
		r.Get("/refresh-availability", cars.Refresh)
		r.Get("/{id}", cars.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, requireAdmin)
			r.Post("/addCar", cars.Add)
			r.Put("/{id}", cars.Edit)
			r.Delete("/{id}", cars.Delete)
		})
	})

	r.Route("/bookings", func(r chi.Router) {
		r.Use(requireAuth)
		r.With(httpserver.RateLimit(bookingLimiter)).Post("/", bookings.Create)
		r.Delete("/{id}", bookings.Cancel)
		r.Get("/mybookings", bookings.ListMine)
		r.With(requireAdmin).Get("/admin", bookings.ListAll)
	})

	r.Route("/users", func(r chi.Router) {
		r.Post("/register", users.Register)
		r.With(httpserver.RateLimit(loginLimiter)).Post("/login", users.Login)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", users.Me)
			r.Put("/{id}", users.Update)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, requireAdmin)
			r.Get("/", users.List)
			r.Delete("/{id}", users.Delete)
		})
	})

	return r
}
