// Package config handles loading and validating Gatekeeper Core configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Overriding with environment variables (GATEKEEPER_* and the legacy DB_* / PORT names)
//   - Validation of required fields
//   - Default value handling
//
// The default driver is sqlite. The network store variables (DB_HOST,
// DB_USER, DB_PASSWORD, DB_NAME and their GATEKEEPER_DB_* forms) only take
// effect with GATEKEEPER_DB_DRIVER=mysql or postgres; Config.IgnoredStoreEnv
// reports any that are set under sqlite.
//
// Security Considerations:
//   - Store and broker credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load(os.Getenv("GATEKEEPER_CONFIG"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
