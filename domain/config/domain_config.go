package config

import (
	"fmt"
	"time"
)

// DomainConfig holds the business limits applied by the application layer
type DomainConfig struct {
	// Message constraints
	MaxMessageLength     int
	MaxAttachmentRefLen  int
	MaxCloseReasonLength int

	// Case constraints
	MaxTitleLength  int
	DefaultPriority string
	DefaultPageSize int
	MaxPageSize     int

	// Registration constraints
	MaxNameLength    int
	MaxCompanyLength int

	// Time constraints
	CaseLockTTL       time.Duration
	CaseLockWait      time.Duration
	StreamIdleTimeout time.Duration
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxMessageLength:     4000,
		MaxAttachmentRefLen:  1024,
		MaxCloseReasonLength: 500,

		MaxTitleLength:  200,
		DefaultPriority: "medium",
		DefaultPageSize: 25,
		MaxPageSize:     100,

		MaxNameLength:    120,
		MaxCompanyLength: 120,

		CaseLockTTL:       10 * time.Second,
		CaseLockWait:      3 * time.Second,
		StreamIdleTimeout: 10 * time.Minute,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()
	config.MaxMessageLength = 2000
	config.MaxPageSize = 50
	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()
	config.CaseLockWait = 10 * time.Second
	config.StreamIdleTimeout = time.Hour
	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("max message length must be positive")
	}
	if c.DefaultPageSize <= 0 || c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("default page size must be between 1 and %d", c.MaxPageSize)
	}
	if c.CaseLockTTL <= 0 {
		return fmt.Errorf("case lock ttl must be positive")
	}
	return nil
}
