package order

import (
	"time"

	"github.com/rs/zerolog"
)

type Service struct {
	repo  OrderRepo
	cache Cache
	clock Clock

	createdExchange   string
	createdRoutingKey string

	cacheTTL time.Duration

	log zerolog.Logger
}

func New(
	repo OrderRepo,
	cache Cache,
	clock Clock,
	createdExchange, createdRoutingKey string,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	if cacheTTL == 0 {
		cacheTTL = 30 * time.Second
	}

	return &Service{
		repo:              repo,
		cache:             cache,
		clock:             clock,
		createdExchange:   createdExchange,
		createdRoutingKey: createdRoutingKey,
		cacheTTL:          cacheTTL,
		log:               log.With().Str("component", "order_service").Logger(),
	}
}
