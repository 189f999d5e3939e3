package main

import (
	"expvar"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"monkibox/internal/auth"
	"monkibox/internal/cart"
	"monkibox/internal/db"
	"monkibox/internal/domain/carts"
	"monkibox/internal/domain/storage"
	"monkibox/internal/mailer"
	"monkibox/internal/ratelimiter"
)

var version = "1.0.0"

// LoadRateLimiterConfig retrieves rate limiter settings from environment variables
func LoadRateLimiterConfig() ratelimiter.Config {
	defaultRequests := 200
	defaultEnabled := false

	requestsPerTimeFrame := defaultRequests
	if val, exists := os.LookupEnv("RATELIMITER_REQUESTS_COUNT"); exists {
		if parsedVal, err := strconv.Atoi(val); err == nil {
			requestsPerTimeFrame = parsedVal
		} else {
			fmt.Println("Invalid RATELIMITER_REQUESTS_COUNT, defaulting to", defaultRequests)
		}
	}

	enabled := defaultEnabled
	if val, exists := os.LookupEnv("RATE_LIMITER_ENABLED"); exists {
		if parsedVal, err := strconv.ParseBool(val); err == nil {
			enabled = parsedVal
		} else {
			fmt.Println("Invalid RATE_LIMITER_ENABLED, defaulting to", defaultEnabled)
		}
	}

	return ratelimiter.Config{
		RequestsPerTimeFrame: requestsPerTimeFrame,
		TimeFrame:            5 * time.Second,
		Enabled:              enabled,
	}
}

// NewLogger creates a new zap logger with color.
func NewLogger() (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)
	level := zapcore.InfoLevel

	core := zapcore.NewCore(consoleEncoder, zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout)), level)

	return zap.New(core).Sugar(), nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	maxOpenConnsStr := os.Getenv("DB_MAX_OPEN_CONNS")
	maxOpenConns, err := strconv.Atoi(maxOpenConnsStr)
	if err != nil {
		log.Fatalf("Invalid value for DB_MAX_OPEN_CONNS: %v", err)
	}

	mailPort := 587
	if val := os.Getenv("MAIL_PORT"); val != "" {
		if mailPort, err = strconv.Atoi(val); err != nil {
			log.Fatalf("Invalid value for MAIL_PORT: %v", err)
		}
	}

	cfg := config{
		addr:        os.Getenv("ADDR"),
		env:         os.Getenv("ENV"),
		frontendURL: os.Getenv("FRONTEND_URL"),
		apiURL:      os.Getenv("EXTERNAL_URL"),
		db: dbConfig{
			addr:          os.Getenv("DB_ADDR"),
			maxOpenConns:  maxOpenConns,
			maxIdleTime:   os.Getenv("DB_MAX_IDLE_TIME"),
			migrationsDir: os.Getenv("DB_MIGRATIONS_DIR"),
		},
		mail: mailConfig{
			fromEmail: os.Getenv("MAIL_FROM_EMAIL"),
			host:      os.Getenv("MAIL_HOST"),
			port:      mailPort,
			username:  os.Getenv("MAIL_USERNAME"),
			password:  os.Getenv("MAIL_PASSWORD"),
			enabled:   os.Getenv("MAIL_ENABLED") == "true",
		},
		auth: authConfig{
			basic: basicConfig{
				user: os.Getenv("AUTH_BASIC_USER"),
				pass: os.Getenv("AUTH_BASIC_PASS"),
			},
			token: tokenConfig{
				secret:          os.Getenv("AUTH_TOKEN_SECRET"),
				refreshSecret:   os.Getenv("AUTH_TOKEN_REFRESH_SECRET"),
				accessTokenExp:  time.Hour * 24,     // 1 day
				refreshTokenExp: time.Hour * 24 * 9, // 9 days
				iss:             "MonkiBox",
			},
		},
		rateLimiter: LoadRateLimiterConfig(),
		redisAddr:   os.Getenv("REDIS_ADDR"),
		cartStore:   os.Getenv("CART_STORE"),
	}
	if cfg.db.migrationsDir == "" {
		cfg.db.migrationsDir = "migrations"
	}

	logger, err := NewLogger()
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	if err := db.Migrate(cfg.db.addr, cfg.db.migrationsDir); err != nil {
		logger.Fatal(err)
	}
	logger.Info("database migrations applied")

	pool, err := db.New(
		cfg.db.addr,
		int32(cfg.db.maxOpenConns),
		cfg.db.maxIdleTime,
	)
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	logger.Info("database connection pool established")

	store := storage.NewContainer(pool)

	// Carts live in Postgres next to everything else unless a Redis
	// address is configured and selected.
	var cartStore cart.UserCartStore = store.Carts
	if cfg.cartStore == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		cartStore = carts.NewRedisRepository(rdb, 0)
		logger.Infow("using redis cart store", "addr", cfg.redisAddr)
	}

	cartManager := cart.NewManager(cartStore, store.Purchases, cart.DefaultPricing(), logger)

	cloudinaryURL := os.Getenv("CLOUDINARY_URL")
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		logger.Fatal(err)
	}

	smtpMailer := mailer.NewSMTP(
		cfg.mail.fromEmail,
		cfg.mail.host,
		cfg.mail.port,
		cfg.mail.username,
		cfg.mail.password,
	)

	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)

	jwtAuthenticator := auth.NewJWTAuthenticator(
		cfg.auth.token.secret,
		cfg.auth.token.refreshSecret,
		cfg.auth.token.iss,
		cfg.auth.token.iss,
		cfg.auth.token.accessTokenExp,
		cfg.auth.token.refreshTokenExp,
	)

	app := &application{
		config:        cfg,
		store:         store,
		carts:         cartManager,
		logger:        logger,
		cld:           cld,
		mailer:        smtpMailer,
		authenticator: jwtAuthenticator,
		rateLimiter:   rateLimiter,
	}

	// Metrics collected at /v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("database", expvar.Func(func() any {
		stat := pool.Stat()
		return map[string]any{
			"total_conns": stat.TotalConns(),
			"idle_conns":  stat.IdleConns(),
		}
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
