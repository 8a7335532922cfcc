package redis

import (
	"context"
	"testing"
	"time"

	"github.com/wonny/tradebook/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	if disabledClient(t).Enabled() {
		t.Error("Expected client to be disabled")
	}
}

func TestHealthCheck_Disabled(t *testing.T) {
	client := disabledClient(t)

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	status, err := client.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	if status.Enabled || !status.Healthy {
		t.Errorf("Expected disabled and healthy, got %+v", status)
	}
	if client.Addr() != "" {
		t.Errorf("Expected empty addr, got %q", client.Addr())
	}
}

func TestOptions(t *testing.T) {
	opts := Options(config.RedisConfig{Host: "cache.local", Port: "6380", Password: "pw", DB: 2})
	if opts.Addr != "cache.local:6380" {
		t.Errorf("Addr = %q", opts.Addr)
	}
	if opts.DB != 2 || opts.Password != "pw" {
		t.Errorf("Unexpected options %+v", opts)
	}
	if opts.DialTimeout != connectTimeout {
		t.Errorf("DialTimeout = %v", opts.DialTimeout)
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	start := time.Now()
	_, err := New(&config.Config{Redis: config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: "1"}})
	if err == nil {
		t.Fatal("Expected connection error")
	}
	if elapsed := time.Since(start); elapsed > 2*connectTimeout {
		t.Errorf("New() took %v", elapsed)
	}
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(disabledClient(t), "test")

	var result string
	found, err := cache.Get(context.Background(), "key", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected cache miss when Redis disabled")
	}
}

func TestCache_GetOrSetDisabledCallsLoader(t *testing.T) {
	cache := NewCache(disabledClient(t), "test")

	calls := 0
	var got struct{ Code string }
	err := cache.GetOrSet(context.Background(), SecurityKey(7), &got, TTLMedium, func() (interface{}, error) {
		calls++
		return struct{ Code string }{Code: "BTCUSDT"}, nil
	})
	if err != nil {
		t.Fatalf("GetOrSet() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected loader to be called once, got %d", calls)
	}
	if got.Code != "BTCUSDT" {
		t.Errorf("Expected BTCUSDT, got %q", got.Code)
	}
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		fn       func() string
		expected string
	}{
		{"SecurityKey", func() string { return SecurityKey(42) }, "security:id:42"},
		{"SecurityCodeKey", func() string { return SecurityCodeKey("ETHUSDT") }, "security:code:ETHUSDT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}
