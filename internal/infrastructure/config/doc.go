// Package config handles loading and validating power simulator configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading a local .env file when one exists
//   - Overriding with POWERSIM_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Command-line flags are applied on top of the loaded Config by the
// main package.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Simulation.UpdateInterval)
package config
