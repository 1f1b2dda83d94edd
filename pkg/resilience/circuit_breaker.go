// Package resilience защищает источник от лавины подключений в режиме сервера.
//
// Circuit Breaker считает только ошибки соединения: расхождение каталога
// или битые данные говорят о том, что сервер доступен, и цепь не размыкают.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

var (
	// ErrCircuitOpen - источник недоступен, подключение не выполняется
	ErrCircuitOpen = fmt.Errorf("%w: circuit breaker is open", dumperr.ErrConnection)

	// ErrTooManyCalls - превышен лимит одновременных дампов
	ErrTooManyCalls = errors.New("too many concurrent dumps")
)

// State - состояние Circuit Breaker
type State int

const (
	// StateClosed - нормальная работа
	StateClosed State = iota
	// StateHalfOpen - пробный вызов после паузы
	StateHalfOpen
	// StateOpen - вызовы отклоняются до истечения Timeout
	StateOpen
)

// String - строковое представление состояния
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Counts - счетчики текущего поколения
type Counts struct {
	Requests             uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// ExecuteFunc - функция для выполнения с circuit breaker
type ExecuteFunc func(ctx context.Context) error

// CircuitBreaker - защита источника от повторных подключений при сбое
type CircuitBreaker struct {
	config Config
	now    func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
	running    uint32
}

// New - создать новый Circuit Breaker
func New(config Config) (*CircuitBreaker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &CircuitBreaker{config: config, now: time.Now}, nil
}

// Execute выполняет fn, если цепь не разомкнута и лимит не превышен.
// Провалом считаются только ошибки класса соединения.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn ExecuteFunc) error {
	if !cb.config.Enabled {
		return fn(ctx)
	}

	generation, err := cb.before()
	if err != nil {
		return err
	}

	err = fn(ctx)
	cb.after(generation, !dumperr.Retryable(err))
	return err
}

// State - текущее состояние
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.expire()
	return cb.state
}

// Counts - счетчики текущего поколения
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Running - число выполняемых вызовов
func (cb *CircuitBreaker) Running() uint32 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.running
}

// Reset - сбросить состояние в Closed
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.setState(StateClosed)
	cb.mu.Unlock()
	cb.notify(from, StateClosed)
}

func (cb *CircuitBreaker) before() (uint64, error) {
	cb.mu.Lock()
	from := cb.state
	cb.expire()
	to := cb.state
	generation := cb.generation

	var err error
	switch {
	case cb.state == StateOpen:
		err = ErrCircuitOpen
	case cb.config.MaxConcurrent > 0 && cb.running >= cb.config.MaxConcurrent:
		err = ErrTooManyCalls
	default:
		cb.running++
	}
	cb.mu.Unlock()

	cb.notify(from, to)
	return generation, err
}

func (cb *CircuitBreaker) after(generation uint64, success bool) {
	cb.mu.Lock()
	if cb.running > 0 {
		cb.running--
	}
	// Результат вызова из прошлого поколения не влияет на состояние
	if generation != cb.generation {
		cb.mu.Unlock()
		return
	}

	from := cb.state
	cb.counts.Requests++
	if success {
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
		}
	} else {
		cb.counts.ConsecutiveFailures++
		cb.counts.ConsecutiveSuccesses = 0
		if cb.state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.config.MaxFailures {
			cb.setState(StateOpen)
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// expire переводит Open в Half-Open по истечении Timeout. Вызывается под mu.
func (cb *CircuitBreaker) expire() {
	if cb.state == StateOpen && !cb.now().Before(cb.expiry) {
		cb.setState(StateHalfOpen)
	}
}

// setState меняет состояние и начинает новое поколение. Вызывается под mu.
func (cb *CircuitBreaker) setState(s State) {
	if cb.state == s {
		return
	}
	cb.state = s
	cb.generation++
	cb.counts = Counts{}
	if s == StateOpen {
		cb.expiry = cb.now().Add(cb.config.Timeout)
	}
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}
