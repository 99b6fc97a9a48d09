// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
)

type Config struct {
	RPCURL         string `mapstructure:"rpc_url"`
	ProgramID      string `mapstructure:"program_id"`
	RequestTimeout int    `mapstructure:"request_timeout"`
	Retries        int    `mapstructure:"retries"`
	DebugLogging   bool   `mapstructure:"debug_logging"`
	LogFile        string `mapstructure:"log_file"`

	Governance GovernanceConfig `mapstructure:"governance"`
}

type GovernanceConfig struct {
	VotingPeriodHours       int    `mapstructure:"voting_period_hours"`
	MinProposerStake        uint64 `mapstructure:"min_proposer_stake"`
	QuorumStake             uint64 `mapstructure:"quorum_stake"`
	ApprovalMargin          uint64 `mapstructure:"approval_margin"`
	PermissionlessExecution bool   `mapstructure:"permissionless_execution"`
}

const (
	DefaultRPCURL         = "https://api.mainnet-beta.solana.com"
	DefaultProgramID      = "5VFsZC9h31MA9gMkV8ycx8eeyHXJT4QE36SgopWKXnE7"
	DefaultRequestTimeout = 5000
	DefaultRetries        = 3
	DefaultLogFile        = "amm.log"

	DefaultVotingPeriodHours = 168
	DefaultMinProposerStake  = 10_000_000_000
	DefaultQuorumStake       = 100_000_000_000
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"rpc_url":                             DefaultRPCURL,
		"program_id":                          DefaultProgramID,
		"request_timeout":                     DefaultRequestTimeout,
		"retries":                             DefaultRetries,
		"log_file":                            DefaultLogFile,
		"governance.voting_period_hours":      DefaultVotingPeriodHours,
		"governance.min_proposer_stake":       DefaultMinProposerStake,
		"governance.quorum_stake":             DefaultQuorumStake,
		"governance.permissionless_execution": true,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

// VotingPeriod converts the configured hours to a duration.
func (g GovernanceConfig) VotingPeriod() time.Duration {
	return time.Duration(g.VotingPeriodHours) * time.Hour
}

func validateConfig(cfg *Config) error {
	if cfg.RPCURL == "" {
		return errors.New("missing rpc_url in configuration")
	}
	if err := validateURL(cfg.RPCURL, "http"); err != nil {
		return errors.New("invalid RPC URL protocol")
	}
	if _, err := solana.PublicKeyFromBase58(cfg.ProgramID); err != nil {
		return errors.New("invalid program_id")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.RequestTimeout <= 0 {
		return errors.New("invalid request_timeout")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.Governance.VotingPeriodHours <= 0 {
		return errors.New("invalid governance voting_period_hours")
	}
	if cfg.Governance.MinProposerStake == 0 {
		return errors.New("invalid governance min_proposer_stake")
	}
	if cfg.Governance.QuorumStake == 0 {
		return errors.New("invalid governance quorum_stake")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("AMM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envRPC := v.GetString("RPC_URL")
	if envRPC != "" {
		cfg.RPCURL = envRPC
	}

	envProgram := v.GetString("PROGRAM_ID")
	if envProgram != "" {
		cfg.ProgramID = envProgram
	}
	return nil
}
