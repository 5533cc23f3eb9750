// Package config handles loading and validating the IR sensor service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (IRSENSOR_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token) should be set via environment variables
//   - sensor.elevation decides how the probe gains GPIO access; keep the
//     sudoers rule as narrow as the configured command line
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Sensor.ScriptName)
package config
