package node

import (
	"fmt"
	"sync"
	"time"

	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/NethermindEth/stark-state/utils"
	"github.com/go-playground/validator/v10"
)

// Config is the top-level stark-state configuration.
type Config struct {
	LogLevel utils.LogLevel `mapstructure:"log-level" yaml:"log-level"`
	Colour   bool           `mapstructure:"colour" yaml:"colour"`

	DatabasePath    string        `mapstructure:"db-path" yaml:"db-path" validate:"required"`
	DBCacheSize     uint          `mapstructure:"db-cache-size" yaml:"db-cache-size"`
	DBMaxHandles    int           `mapstructure:"db-max-handles" yaml:"db-max-handles" validate:"gte=0"`
	FactCacheSize   int           `mapstructure:"fact-cache-size" yaml:"fact-cache-size" validate:"gte=0"`
	RetryMaxElapsed time.Duration `mapstructure:"retry-max-elapsed" yaml:"retry-max-elapsed" validate:"gte=0"`
	FallbackDBPath  string        `mapstructure:"fallback-db-path" yaml:"fallback-db-path" validate:"omitempty,nefield=DatabasePath"`

	NodeHash    string `mapstructure:"node-hash" yaml:"node-hash" validate:"oneof=pedersen poseidon"`
	ClassHash   string `mapstructure:"class-hash" yaml:"class-hash" validate:"oneof=pedersen poseidon"`
	GlobalHash  string `mapstructure:"global-hash" yaml:"global-hash" validate:"oneof=pedersen poseidon"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency" validate:"gte=1"`

	SequencerAddress felt.Felt `mapstructure:"sequencer-address" yaml:"sequencer-address"`
	UseKZGDA         bool      `mapstructure:"use-kzg-da" yaml:"use-kzg-da"`

	Metrics     bool   `mapstructure:"metrics" yaml:"metrics"`
	MetricsHost string `mapstructure:"metrics-host" yaml:"metrics-host" validate:"required_if=Metrics true"`
	MetricsPort uint16 `mapstructure:"metrics-port" yaml:"metrics-port"`
}

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator returns a singleton that can be used to validate the configuration.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

func (c *Config) Validate() error {
	if err := Validator().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
