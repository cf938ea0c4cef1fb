package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds the application's configuration values.
type Config struct {
	AppName        string   `json:"appname"`
	AppEnv         string   `json:"appenv"`
	AppPort        uint16   `json:"appport"`
	GinMode        string   `json:"ginmode"`
	DBHost         string   `json:"dbhost"`
	DBPort         uint16   `json:"dbport"`
	DBName         string   `json:"dbname"`
	DBUSER         string   `json:"dbuser"`
	DBPass         string   `json:"dbpass"`
	MapboxToken    string   `json:"-"`
	GeoIPDBPath    string   `json:"geoipdbpath"`
	LogLevel       string   `json:"loglevel"`
	LogFormat      string   `json:"logformat"`
	CORSOrigins    []string `json:"corsorigins"`
	MetricsEnabled bool     `json:"metricsenabled"`
	MetricsToken   string   `json:"-"`

	RedisEnabled bool   `json:"redisenabled"`
	RedisAddr    string `json:"redisaddr"`
	RedisPass    string `json:"-"`
	RedisDB      int    `json:"redisdb"`
}

// IsProduction reports whether the service runs with APPENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// IsTest reports whether the service runs with APPENV=test.
func (c *Config) IsTest() bool {
	return c.AppEnv == "test"
}

var config *Config
var once sync.Once

// LoadConfig loads the environment variables from a .env file, and returns a singleton Config instance.
// A missing .env file is not fatal; the process environment is used as-is.
func LoadConfig() *Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Printf("Error loading .env file: %v", err)
		}

		appPort, _ := strconv.ParseUint(getEnv("APPPORT", "8080"), 10, 16)
		dbPort, _ := strconv.ParseUint(getEnv("DBPORT", "3306"), 10, 16)
		metricsEnabled, _ := strconv.ParseBool(getEnv("METRICS_ENABLED", "false"))
		redisEnabled, _ := strconv.ParseBool(getEnv("REDIS_ENABLED", "true"))
		redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

		config = &Config{
			AppName:        getEnv("APPNAME", "realty-leads"),
			AppEnv:         getEnv("APPENV", "development"),
			AppPort:        uint16(appPort),
			GinMode:        getEnv("GINMODE", "debug"),
			DBHost:         os.Getenv("DBHOST"),
			DBPort:         uint16(dbPort),
			DBName:         os.Getenv("DBNAME"),
			DBUSER:         os.Getenv("DBUSER"),
			DBPass:         os.Getenv("DBPASS"),
			MapboxToken:    os.Getenv("MAPBOX_TOKEN"),
			GeoIPDBPath:    os.Getenv("GEOIP_DB_PATH"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "console"),
			CORSOrigins:    splitList(os.Getenv("CORS_ORIGINS")),
			MetricsEnabled: metricsEnabled,
			MetricsToken:   os.Getenv("METRICS_TOKEN"),
			RedisEnabled:   redisEnabled,
			RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPass:      os.Getenv("REDIS_PASS"),
			RedisDB:        redisDB,
		}
	})
	return config
}

// ResetConfigForTest drops the cached configuration so the next LoadConfig re-reads the environment.
func ResetConfigForTest() {
	config = nil
	once = sync.Once{}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ConnectMySQL establishes a connection to a MySQL database using the configuration values.
// In the test environment an in-memory SQLite database is opened instead.
func ConnectMySQL() (*gorm.DB, error) {
	cfg := LoadConfig()
	if os.Getenv("APPENV") == "test" || cfg.IsTest() {
		return gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
	}

	// Build the Data Source Name (DSN) using the configuration values.
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4", cfg.DBUSER, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	return db, nil
}
