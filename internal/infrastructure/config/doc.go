// Package config handles loading and validating halomqtt configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with HALO_* environment variables and command-line arguments
//   - Validation of required fields
//   - Default value handling
//
// Arguments are parsed once into typed values (see ParseArgs). A value's
// kind is decided from its text at parse time, and accessors fall back to a
// default when the kind does not match.
//
// Security Considerations:
//   - The mesh passphrase lives in the locations file, not in this config
//   - MQTT credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	args, err := config.ParseArgs(os.Args[1:], os.Environ(), config.EnvPrefix)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg, err := config.Load(args.String("config", ""), args)
package config
