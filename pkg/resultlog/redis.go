// Package resultlog публикует итог дампа в Redis.
package resultlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ruslano69/tdtp-mysqldump/pkg/dump"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

// Config - параметры публикации
type Config struct {
	// Name - имя задания дампа, входит в ключ и канал
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// TTL ключа состояния в секундах (0 = без срока)
	TTL int `yaml:"ttl"`
}

// DumpResult - состояние дампа, публикуемое в Redis
// после завершения (успешного или с ошибкой).
//
// Redis-ключи:
//
//	SET  mysqldump:<name>:state  <JSON>  EX <ttl>  для GET-запросов оркестратора
//	PUB  mysqldump:<name>                          для подписчиков
type DumpResult struct {
	DumpID     string    `json:"dump_id"`
	Name       string    `json:"name"`
	Database   string    `json:"database"`
	Status     string    `json:"status"` // "success" | "failed"
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMs int64     `json:"duration_ms"`
	Tables     int       `json:"tables"`
	Rows       int64     `json:"rows"`
	Bytes      int64     `json:"bytes"`
	File       string    `json:"file,omitempty"`
	Checksum   string    `json:"checksum,omitempty"`
	Error      *string   `json:"error,omitempty"`
	ErrorClass string    `json:"error_class,omitempty"`
}

// StateKey - ключ последнего состояния задания
func StateKey(name string) string {
	return fmt.Sprintf("mysqldump:%s:state", name)
}

// Channel - канал событий задания
func Channel(name string) string {
	return fmt.Sprintf("mysqldump:%s", name)
}

// NewDumpResult собирает публикуемое состояние.
// res может быть nil, если дамп не начался.
func NewDumpResult(name string, res *dump.Result, execErr error) DumpResult {
	out := DumpResult{Name: name, Status: "success"}

	if res != nil {
		out.DumpID = res.ID
		out.Database = res.Database
		out.StartedAt = res.Started
		out.FinishedAt = res.Finished
		out.DurationMs = res.Duration().Milliseconds()
		out.Tables = len(res.Stats)
		out.Rows = res.TotalRows()
		out.Bytes = res.Bytes
		out.File = res.File
		out.Checksum = res.Checksum
	}

	if execErr != nil {
		out.Status = "failed"
		errStr := execErr.Error()
		out.Error = &errStr
		out.ErrorClass = dumperr.Class(execErr)
	}
	return out
}

// RedisPublisher публикует результат дампа в Redis
type RedisPublisher struct {
	client *redis.Client
	config Config
}

// NewRedisPublisher создает publisher на основе конфигурации
func NewRedisPublisher(config Config) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisPublisher{client: client, config: config}
}

// Publish публикует результат дампа:
//   - SET mysqldump:<name>:state <JSON> EX <ttl>  для опроса
//   - PUBLISH mysqldump:<name> <JSON>              для подписки
//
// Вызывается независимо от исхода дампа. execErr == nil - успех.
func (p *RedisPublisher) Publish(ctx context.Context, res *dump.Result, execErr error) error {
	payload, err := json.Marshal(NewDumpResult(p.config.Name, res, execErr))
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	ttl := time.Duration(p.config.TTL) * time.Second

	if err := p.client.Set(ctx, StateKey(p.config.Name), payload, ttl).Err(); err != nil {
		return dumperr.Connection("redis SET", err)
	}

	if err := p.client.Publish(ctx, Channel(p.config.Name), payload).Err(); err != nil {
		return dumperr.Connection("redis PUBLISH", err)
	}

	return nil
}

// Close закрывает соединение с Redis
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
