package resilience

import (
	"fmt"
	"time"

	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

// Config - конфигурация Circuit Breaker подключения к источнику
type Config struct {
	// Enabled - включить Circuit Breaker
	Enabled bool `yaml:"enabled"`

	// Name - имя для логирования
	Name string `yaml:"name,omitempty"`

	// MaxFailures - подряд идущих ошибок соединения для открытия
	MaxFailures uint32 `yaml:"max_failures"`

	// Timeout - время в Open состоянии перед переходом в Half-Open
	Timeout time.Duration `yaml:"timeout"`

	// MaxConcurrent - одновременных дампов, 0 = без ограничений
	MaxConcurrent uint32 `yaml:"max_concurrent"`

	// SuccessThreshold - успешных вызовов в Half-Open для закрытия
	SuccessThreshold uint32 `yaml:"success_threshold"`

	// OnStateChange вызывается после смены состояния
	OnStateChange func(name string, from State, to State) `yaml:"-"`
}

// Validate - валидация конфигурации
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.MaxFailures == 0 {
		return fmt.Errorf("%w: circuit breaker max_failures must be greater than 0", dumperr.ErrConfig)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("%w: circuit breaker timeout must be greater than 0", dumperr.ErrConfig)
	}

	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = 1
	}

	if c.Name == "" {
		c.Name = "source"
	}

	return nil
}

// DefaultConfig - конфигурация по умолчанию (выключен)
func DefaultConfig() Config {
	return Config{
		Name:             "source",
		MaxFailures:      5,
		Timeout:          60 * time.Second,
		SuccessThreshold: 1,
	}
}
