package storefront

import (
	"time"

	"gorm.io/gorm"

	"github.com/storerunner/storefront/clients"
	"github.com/storerunner/storefront/logger"
	"github.com/storerunner/storefront/metrics"
)

type Option func(*Storefront)

func WithLogger(l logger.Logger) Option {
	return func(s *Storefront) {
		s.logger = logger.OrNoop(l)
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *Storefront) {
		s.metrics = metrics.OrNoop(r)
	}
}

func WithTimeout(t time.Duration) Option {
	return func(s *Storefront) {
		if t > 0 {
			s.timeout = t
		}
	}
}

// WithBackend attaches an RPC connection. Without one the escrow is not
// registered and checkout and proof submission report the chain as
// unavailable.
func WithBackend(b clients.Backend) Option {
	return func(s *Storefront) {
		s.backend = b
	}
}

// WithDB uses an already opened and migrated database instead of the
// configured one. The caller keeps ownership.
func WithDB(db *gorm.DB) Option {
	return func(s *Storefront) {
		s.db = db
	}
}
