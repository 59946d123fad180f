package config

import (
	"os"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr        string
	MetricsAddr string
	DatabaseURL string
	Redis       RedisConfig
	StudyPath   string
}

// RedisConfig captures the optional Redis connection settings used by the
// plugin result cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("EDC_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	metricsAddr := os.Getenv("EDC_METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":9090"
	}
	studyPath := os.Getenv("EDC_STUDY_PATH")

	return Server{
		Addr:        addr,
		MetricsAddr: metricsAddr,
		DatabaseURL: os.Getenv("EDC_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("EDC_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		StudyPath: studyPath,
	}
}
