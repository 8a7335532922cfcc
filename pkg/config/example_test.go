package config_test

import (
	"fmt"

	"github.com/wonny/tradebook/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Server running on port: %s\n", cfg.Port)
	fmt.Printf("Database driver: %s\n", cfg.Database.Driver)
	fmt.Printf("Account: %d\n", cfg.Execution.AccountID)
}
