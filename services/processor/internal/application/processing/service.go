package processing

import (
	"github.com/rs/zerolog"
)

type Service struct {
	repo  ProcessingRepo
	pub   EventPublisher
	work  Worker
	clock Clock

	log zerolog.Logger
}

func New(
	repo ProcessingRepo,
	pub EventPublisher,
	work Worker,
	clock Clock,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:  repo,
		pub:   pub,
		work:  work,
		clock: clock,
		log:   log.With().Str("component", "processing_service").Logger(),
	}
}
