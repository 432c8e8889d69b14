package config

import (
	"testing"
	"time"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("CACHE_DRIVER", "")
	t.Setenv("JOB_QUEUE_DRIVER", "")
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("LONGPOLL_MAX_TIMEOUT", "")
	t.Setenv("CLOCK_MAX_SKEW", "")
	t.Setenv("DERIVATION_FINISH_DELAY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StorageDriver != StorageMemory {
		t.Fatalf("unexpected storage driver: %q", cfg.StorageDriver)
	}
	if cfg.CacheDriver != CacheMemory {
		t.Fatalf("unexpected cache driver: %q", cfg.CacheDriver)
	}
	if cfg.JobQueueDriver != QueueLocal {
		t.Fatalf("unexpected job queue driver: %q", cfg.JobQueueDriver)
	}
	if cfg.LongPollMaxTimeout != 25*time.Second {
		t.Fatalf("unexpected long-poll max timeout: %s", cfg.LongPollMaxTimeout)
	}
	if cfg.ClockMaxSkew != time.Minute {
		t.Fatalf("unexpected clock max skew: %s", cfg.ClockMaxSkew)
	}
	if cfg.DerivationFinishDelay != 30*time.Second {
		t.Fatalf("unexpected finish delay: %s", cfg.DerivationFinishDelay)
	}
	if cfg.DerivationDedupWindow != 2*time.Second {
		t.Fatalf("unexpected dedup window: %s", cfg.DerivationDedupWindow)
	}
	if !cfg.QStashCircuit.Enabled || cfg.QStashCircuit.FailureThreshold != 5 {
		t.Fatalf("unexpected qstash circuit defaults: %+v", cfg.QStashCircuit)
	}
}

func TestLoad_DriverValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown storage", env: map[string]string{"STORAGE_DRIVER": "sqlite"}},
		{name: "unknown cache", env: map[string]string{"CACHE_DRIVER": "memcached"}},
		{name: "redis without url", env: map[string]string{"CACHE_DRIVER": "redis", "REDIS_URL": ""}},
		{name: "unknown queue", env: map[string]string{"JOB_QUEUE_DRIVER": "kafka"}},
		{name: "jetstream without url", env: map[string]string{"JOB_QUEUE_DRIVER": "jetstream", "NATS_URL": ""}},
		{name: "qstash without token", env: map[string]string{"JOB_QUEUE_DRIVER": "qstash", "QSTASH_TOKEN": ""}},
		{name: "long-poll above cap", env: map[string]string{"LONGPOLL_MAX_TIMEOUT": "60s"}},
		{name: "negative skew", env: map[string]string{"CLOCK_MAX_SKEW": "-1s"}},
		{name: "zero workers", env: map[string]string{"DERIVATION_WORKERS": "0"}},
		{name: "bad circuit count", env: map[string]string{"REDIS_CIRCUIT_FAILURE_COUNT": "0"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("APP_ENV", EnvDev)
			t.Setenv("UPTRACE_ENABLED", "false")
			for key, value := range tc.env {
				t.Setenv(key, value)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %v", tc.env)
			}
		})
	}
}

func TestLoad_QStashWithRequiredValues(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("JOB_QUEUE_DRIVER", "QStash")
	t.Setenv("QSTASH_TOKEN", "qstash-token")
	t.Setenv("QSTASH_TARGET_BASE_URL", "https://api.example.com")
	t.Setenv("INTERNAL_JOB_TOKEN", "internal-token")
	t.Setenv("QSTASH_RETRIES", "5")
	t.Setenv("QSTASH_CIRCUIT_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.JobQueueDriver != QueueQStash {
		t.Fatalf("expected qstash driver, got %q", cfg.JobQueueDriver)
	}
	if cfg.QStashRetries != 5 {
		t.Fatalf("unexpected retries: %d", cfg.QStashRetries)
	}
	if cfg.QStashCircuit.Enabled {
		t.Fatalf("expected qstash circuit disabled")
	}
	if cfg.InternalJobToken != "internal-token" {
		t.Fatalf("unexpected internal token")
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_UptraceDSNFromOTLPHeaders(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-other=1, uptrace-dsn='https://token@api.uptrace.dev?grpc=4317'")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.UptraceDSN != "https://token@api.uptrace.dev?grpc=4317" {
		t.Fatalf("unexpected dsn: %q", cfg.UptraceDSN)
	}
}

func TestLoad_PyroscopeAppNameDefaultsToServiceName(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("APP_SERVICE_NAME", "korfbal-live-test")
	t.Setenv("PYROSCOPE_ENABLED", "true")
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", "http://pyroscope:4040")
	t.Setenv("PYROSCOPE_APP_NAME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PyroscopeAppName != "korfbal-live-test" {
		t.Fatalf("unexpected pyroscope app name: %q", cfg.PyroscopeAppName)
	}
}

func TestLoad_CORSOriginsParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoad_SpotifyConfigured(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("SPOTIFY_CLIENT_ID", "client")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "")
	t.Setenv("SPOTIFY_REDIRECT_URI", "https://app.example.com/callback")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SpotifyConfigured() {
		t.Fatalf("expected spotify unconfigured without secret")
	}
}
