package logger_test

import (
	"errors"

	"github.com/wonny/tradebook/pkg/config"
	"github.com/wonny/tradebook/pkg/logger"
)

// Example_withFields demonstrates structured logging with fields
func Example_withFields() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	}

	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"order_id":    1001,
		"security_id": 42,
		"status":      "live",
	}).Info("Order acknowledged")

	log.WithError(errors.New("broker timeout")).Warn("Cancel failed")
}
