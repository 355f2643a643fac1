package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/tenantvault/internal/flagx"
	"github.com/dmitrijs2005/tenantvault/internal/timex"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// It uses timex.Duration for interval fields so both string values such as
// "15m" and integer nanoseconds parse. Fields are pointers so that only keys
// present in the file overlay the defaults; absent keys leave the runtime
// Config untouched.
type JsonConfig struct {
	DatabaseDSN           *string         `json:"database_dsn"`
	SecretKey             *string         `json:"secret_key"`
	TokenValidityDuration *timex.Duration `json:"token_validity_duration"`
	SweepInterval         *timex.Duration `json:"sweep_interval"`
	LockThreshold         *int            `json:"lock_threshold"`
	LockDuration          *timex.Duration `json:"lock_duration"`
	CodeTTL               *timex.Duration `json:"code_ttl"`
	BcryptCost            *int            `json:"bcrypt_cost"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; when neither is set, no JSON file is loaded. If the file cannot be
// read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.SecretKey != nil {
		config.SecretKey = *c.SecretKey
	}
	if c.TokenValidityDuration != nil {
		config.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	if c.SweepInterval != nil {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.LockThreshold != nil {
		config.LockThreshold = *c.LockThreshold
	}
	if c.LockDuration != nil {
		config.LockDuration = c.LockDuration.Duration
	}
	if c.CodeTTL != nil {
		config.CodeTTL = c.CodeTTL.Duration
	}
	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
}
