package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kochabx/rentoso/core/tag"
)

// Config Kafka 生产者配置
type Config struct {
	Brokers  []string `json:"brokers" mapstructure:"brokers" default:"localhost:9092"`
	Username string   `json:"username" mapstructure:"username"`
	Password string   `json:"password" mapstructure:"password"`
	// Balancer 0: Hash（按用户 id 保序），1: LeastBytes
	Balancer               Balancer      `json:"balancer" mapstructure:"balancer"`
	AllowAutoTopicCreation bool          `json:"allow_auto_topic_creation" mapstructure:"allow_auto_topic_creation"`
	Timeout                time.Duration `json:"timeout" mapstructure:"timeout" default:"3s"`
	BatchTimeout           time.Duration `json:"batch_timeout" mapstructure:"batch_timeout" default:"200ms"`
	CloseTimeout           time.Duration `json:"close_timeout" mapstructure:"close_timeout" default:"5s"`
}

type Balancer int

const (
	BalancerHash Balancer = iota
	BalancerLeastBytes
)

func (c *Config) init() error {
	if err := tag.ApplyDefaults(c); err != nil {
		return err
	}
	if len(c.Brokers) == 0 {
		return ErrEmptyBrokers
	}
	return nil
}

func (c *Config) balancer() kafka.Balancer {
	if c.Balancer == BalancerLeastBytes {
		return &kafka.LeastBytes{}
	}
	return &kafka.Hash{}
}
