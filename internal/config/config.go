// Package config centraliza o carregamento de configurações da aplicação.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/JeanGrijp/api-guardian/internal/core/domain"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Admission  AdmissionConfig
	Quarantine QuarantineConfig
	Tiers      TiersConfig
}

type ServerConfig struct {
	Port string
}

type StorageConfig struct {
	Type          string
	Redis         RedisConfig
	SweepInterval time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AdmissionConfig struct {
	Timeout    time.Duration
	FailClosed bool
}

type QuarantineConfig struct {
	Threshold     int
	Window        time.Duration
	BlockDuration time.Duration
}

// TierConfig carrega a política padrão de uma camada e suas sobrescritas por ação.
type TierConfig struct {
	Default domain.Policy
	Actions map[string]domain.Policy
}

type TiersConfig struct {
	IP     TierConfig
	User   TierConfig
	Org    TierConfig
	APIKey TierConfig
}

func Load() (Config, error) {
	_ = godotenv.Load()

	server := ServerConfig{Port: getEnv("SERVER_PORT", "8080")}

	storage, err := buildStorageConfig()
	if err != nil {
		return Config{}, err
	}

	admission, err := buildAdmissionConfig()
	if err != nil {
		return Config{}, err
	}

	quarantine, err := buildQuarantineConfig()
	if err != nil {
		return Config{}, err
	}

	tiers, err := buildTiersConfig()
	if err != nil {
		return Config{}, err
	}

	return Config{
		Server:     server,
		Storage:    storage,
		Admission:  admission,
		Quarantine: quarantine,
		Tiers:      tiers,
	}, nil
}

func buildStorageConfig() (StorageConfig, error) {
	storageType := getEnv("STORAGE_TYPE", "redis")
	if storageType != "redis" && storageType != "memory" {
		return StorageConfig{}, fmt.Errorf("unsupported STORAGE_TYPE: %s", storageType)
	}

	port, err := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	if err != nil {
		return StorageConfig{}, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return StorageConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	sweepMinutes, err := strconv.Atoi(getEnv("SWEEP_INTERVAL_MINUTES", "5"))
	if err != nil || sweepMinutes <= 0 {
		return StorageConfig{}, fmt.Errorf("invalid SWEEP_INTERVAL_MINUTES: %v", err)
	}

	return StorageConfig{
		Type: storageType,
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     port,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       db,
		},
		SweepInterval: time.Duration(sweepMinutes) * time.Minute,
	}, nil
}

func buildAdmissionConfig() (AdmissionConfig, error) {
	timeoutMs, err := strconv.Atoi(getEnv("ADMISSION_TIMEOUT_MS", "800"))
	if err != nil || timeoutMs < 0 {
		return AdmissionConfig{}, fmt.Errorf("invalid ADMISSION_TIMEOUT_MS: %v", err)
	}

	failMode := getEnv("ADMISSION_FAIL_MODE", "open")
	if failMode != "open" && failMode != "closed" {
		return AdmissionConfig{}, fmt.Errorf("ADMISSION_FAIL_MODE must be open or closed, got %s", failMode)
	}

	return AdmissionConfig{
		Timeout:    time.Duration(timeoutMs) * time.Millisecond,
		FailClosed: failMode == "closed",
	}, nil
}

func buildQuarantineConfig() (QuarantineConfig, error) {
	threshold, err := strconv.Atoi(getEnv("QUARANTINE_THRESHOLD", "100"))
	if err != nil || threshold <= 0 {
		return QuarantineConfig{}, fmt.Errorf("invalid QUARANTINE_THRESHOLD: %v", err)
	}
	windowSeconds, err := strconv.Atoi(getEnv("QUARANTINE_WINDOW_SECONDS", "60"))
	if err != nil || windowSeconds <= 0 {
		return QuarantineConfig{}, fmt.Errorf("invalid QUARANTINE_WINDOW_SECONDS: %v", err)
	}
	blockMinutes, err := strconv.Atoi(getEnv("QUARANTINE_BLOCK_MINUTES", "60"))
	if err != nil || blockMinutes <= 0 {
		return QuarantineConfig{}, fmt.Errorf("invalid QUARANTINE_BLOCK_MINUTES: %v", err)
	}

	return QuarantineConfig{
		Threshold:     threshold,
		Window:        time.Duration(windowSeconds) * time.Second,
		BlockDuration: time.Duration(blockMinutes) * time.Minute,
	}, nil
}

func buildTiersConfig() (TiersConfig, error) {
	ip, err := buildTierConfig("IP", 300, 60, "login:20:60")
	if err != nil {
		return TiersConfig{}, err
	}
	user, err := buildTierConfig("USER", 600, 60, "login:10:300,password_reset:5:900,file_upload:50:3600,export:20:3600")
	if err != nil {
		return TiersConfig{}, err
	}
	org, err := buildTierConfig("ORG", 5000, 60, "")
	if err != nil {
		return TiersConfig{}, err
	}
	apiKey, err := buildTierConfig("API_KEY", 1000, 60, "")
	if err != nil {
		return TiersConfig{}, err
	}

	return TiersConfig{IP: ip, User: user, Org: org, APIKey: apiKey}, nil
}

func buildTierConfig(name string, defaultRequests, defaultWindowSeconds int, defaultActions string) (TierConfig, error) {
	requests, err := strconv.Atoi(getEnv("RATE_LIMIT_"+name+"_REQUESTS", strconv.Itoa(defaultRequests)))
	if err != nil {
		return TierConfig{}, fmt.Errorf("invalid RATE_LIMIT_%s_REQUESTS: %w", name, err)
	}
	windowSeconds, err := strconv.Atoi(getEnv("RATE_LIMIT_"+name+"_WINDOW_SECONDS", strconv.Itoa(defaultWindowSeconds)))
	if err != nil {
		return TierConfig{}, fmt.Errorf("invalid RATE_LIMIT_%s_WINDOW_SECONDS: %w", name, err)
	}

	defaultPolicy := domain.Policy{
		Limit:  requests,
		Window: time.Duration(windowSeconds) * time.Second,
	}
	if err := defaultPolicy.Validate(); err != nil {
		return TierConfig{}, fmt.Errorf("RATE_LIMIT_%s default policy: %w", name, err)
	}

	actions, err := buildActionOverrides(name, getEnv("RATE_LIMIT_"+name+"_ACTIONS", defaultActions))
	if err != nil {
		return TierConfig{}, err
	}

	return TierConfig{Default: defaultPolicy, Actions: actions}, nil
}

// buildActionOverrides interpreta listas no formato ACTION:REQUESTS:WINDOW_SECONDS,
// separadas por vírgula.
func buildActionOverrides(tier, raw string) (map[string]domain.Policy, error) {
	overrides := make(map[string]domain.Policy)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return overrides, nil
	}

	for _, item := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(item), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("%s action override must follow ACTION:REQUESTS:WINDOW_SECONDS: %s", tier, item)
		}

		action := strings.TrimSpace(parts[0])
		requests, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid requests for %s action %s: %w", tier, action, err)
		}
		windowSeconds, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("invalid window seconds for %s action %s: %w", tier, action, err)
		}

		policy := domain.Policy{
			Limit:  requests,
			Window: time.Duration(windowSeconds) * time.Second,
		}
		if err := policy.Validate(); err != nil {
			return nil, fmt.Errorf("%s action %s: %w", tier, action, err)
		}
		overrides[action] = policy
	}

	return overrides, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
