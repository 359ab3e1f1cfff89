// Package config loads the gateway's configuration from FEDGATE_* environment
// variables.
//
// # Overview
//
// Configuration is read once at startup, validated, and passed into
// constructors as immutable values. Signing secrets and provider credentials
// are never read from ambient state inside business logic.
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Related Packages
//
//   - cmd/fedgate: the only consumer
package config
