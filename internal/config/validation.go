package config

import (
	"errors"
)

var (
	ErrMissingRedis         = errors.New("redis configuration is required")
	ErrInvalidRetryAttempts = errors.New("retry max attempts must be at least 1")
	ErrInvalidJournalBatch  = errors.New("journal batch size must be at least 1")
)

// Validate checks if the configuration is valid
func (c *Config) Validate(flags Flags) error {
	// Flag value wins over file and environment
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}

	if err := c.validateRedis(); err != nil {
		return err
	}

	if err := c.validateRetry(); err != nil {
		return err
	}

	if err := c.validateJournal(); err != nil {
		return err
	}

	return nil
}

// validateRedis validates the Redis configuration. Only the journal writes
// through the shared client, so disabling the journal lifts the requirement.
func (c *Config) validateRedis() error {
	if c.DisableJournal {
		return nil
	}
	if c.Redis == nil || c.Redis.Host == "" {
		return ErrMissingRedis
	}
	return nil
}

// validateRetry validates the delivery retry configuration
func (c *Config) validateRetry() error {
	if c.RetryMaxAttempts < 1 {
		return ErrInvalidRetryAttempts
	}
	return nil
}

// validateJournal validates the journal batcher configuration
func (c *Config) validateJournal() error {
	if c.DisableJournal {
		return nil
	}
	if c.JournalBatchSize < 1 {
		return ErrInvalidJournalBatch
	}
	return nil
}
