package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/tenantvault/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN of the control-plane database
//	-s string   JWT HMAC secret key
//	-t int      session token validity, minutes
//	-w int      sweep interval, seconds
//	-l int      failed-login lock threshold
//	-k int      lock duration, minutes
//	-e int      code validity window, minutes
//	-b int      bcrypt cost
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integers and converted to time.Duration values.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-s", "-t", "-w", "-l", "-k", "-e", "-b"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidity := fs.Int("t", int(config.TokenValidityDuration.Minutes()), "token_validity_duration (in minutes)")
	sweepInterval := fs.Int("w", int(config.SweepInterval.Seconds()), "sweep_interval (in seconds)")
	lockDuration := fs.Int("k", int(config.LockDuration.Minutes()), "lock_duration (in minutes)")
	codeTTL := fs.Int("e", int(config.CodeTTL.Minutes()), "code_ttl (in minutes)")

	fs.IntVar(&config.LockThreshold, "l", config.LockThreshold, "failed-login lock threshold")
	fs.IntVar(&config.BcryptCost, "b", config.BcryptCost, "bcrypt cost")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidityDuration = time.Duration(*tokenValidity) * time.Minute
	config.SweepInterval = time.Duration(*sweepInterval) * time.Second
	config.LockDuration = time.Duration(*lockDuration) * time.Minute
	config.CodeTTL = time.Duration(*codeTTL) * time.Minute
}
