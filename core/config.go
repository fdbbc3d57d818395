package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	apiConfig struct {
		BaseURL string
		Timeout time.Duration
	}

	serverConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
		CookieName      string
		AllowOrigins    []string
	}

	sessionConfig struct {
		Store         string // memory | redis | file
		File          string
		TTL           time.Duration
		RedisAddr     string
		RedisPassword string
		RedisDB       int
	}

	listConfig struct {
		PageSize int // 0: use each entity's own page size
	}

	Config struct {
		AppName      string
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		WorkDir      string
		RollbarToken string

		API     apiConfig
		Server  serverConfig
		Session sessionConfig
		List    listConfig
	}
)

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Campus")
	v.SetDefault("build", "dev")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("apiBaseURL", "http://localhost:8000/api/")
	v.SetDefault("apiTimeout", 30*time.Second)
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8080")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("serverCookieName", "campus_sid")
	v.SetDefault("serverAllowOrigins", []string{"http://localhost:3000"})
	v.SetDefault("sessionStore", "memory")
	v.SetDefault("sessionFile", filepath.Join(userConfigDir(), "campus", "session.json"))
	v.SetDefault("sessionTTL", 24*time.Hour)
	v.SetDefault("sessionRedisAddr", "localhost:6379")
	v.SetDefault("sessionRedisPassword", "")
	v.SetDefault("sessionRedisDB", 0)
	v.SetDefault("listPageSize", 0)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:      v.GetString("appName"),
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		WorkDir:      wd,
		RollbarToken: v.GetString("rollbarToken"),
		API: apiConfig{
			BaseURL: v.GetString("apiBaseURL"),
			Timeout: v.GetDuration("apiTimeout"),
		},
		Server: serverConfig{
			Host:            v.GetString("serverHost"),
			Address:         v.GetString("serverAddress"),
			DebugHost:       v.GetString("serverDebugHost"),
			ShutdownTimeout: v.GetDuration("serverShutdownTimeout"),
			CookieName:      v.GetString("serverCookieName"),
			AllowOrigins:    v.GetStringSlice("serverAllowOrigins"),
		},
		Session: sessionConfig{
			Store:         strings.ToLower(v.GetString("sessionStore")),
			File:          v.GetString("sessionFile"),
			TTL:           v.GetDuration("sessionTTL"),
			RedisAddr:     v.GetString("sessionRedisAddr"),
			RedisPassword: v.GetString("sessionRedisPassword"),
			RedisDB:       v.GetInt("sessionRedisDB"),
		},
		List: listConfig{
			PageSize: v.GetInt("listPageSize"),
		},
	}
}

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return os.TempDir()
}
