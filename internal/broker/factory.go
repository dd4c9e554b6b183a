package broker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"notifilter/internal/config"
	"notifilter/internal/logger"
)

type backend struct {
	producer func(cfg config.BrokerConfig, log logger.Logger) Producer
	consumer func(cfg config.BrokerConfig, log logger.Logger) Consumer
	validate func(cfg config.BrokerConfig) error
}

var backends = map[string]backend{
	"kafka": {
		producer: func(cfg config.BrokerConfig, log logger.Logger) Producer { return NewKafkaProducer(cfg.Kafka, log) },
		consumer: func(cfg config.BrokerConfig, log logger.Logger) Consumer { return NewKafkaConsumer(cfg.Kafka, log) },
		validate: func(cfg config.BrokerConfig) error {
			if len(cfg.Kafka.Brokers) == 0 {
				return fmt.Errorf("broker.kafka.brokers is empty")
			}
			return nil
		},
	},
}

// lookup resolves broker.type and checks the backend section of the config.
func lookup(cfg config.BrokerConfig) (backend, error) {
	b, ok := backends[cfg.Type]
	if !ok {
		names := lo.Keys(backends)
		sort.Strings(names)
		return backend{}, fmt.Errorf("unknown broker type: %q (supported: %s)", cfg.Type, strings.Join(names, ", "))
	}
	if err := b.validate(cfg); err != nil {
		return backend{}, err
	}
	return b, nil
}

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	b, err := lookup(cfg)
	if err != nil {
		return nil, err
	}
	return b.producer(cfg, log), nil
}

func NewConsumer(cfg config.BrokerConfig, log logger.Logger) (Consumer, error) {
	b, err := lookup(cfg)
	if err != nil {
		return nil, err
	}
	return b.consumer(cfg, log), nil
}
