package main

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/psichix/opennn-go/pkg/nnsession"
)

// connect opens a ready session, retrying failed connection attempts with
// exponential backoff.
func connect(ctx context.Context, cfg Config, log *zerolog.Logger) (*nnsession.Session, error) {
	expBackoff := backoff.NewExponentialBackOff()
	if cfg.Retry.InitialInterval > 0 {
		expBackoff.InitialInterval = cfg.Retry.InitialInterval
	}
	if cfg.Retry.MaxInterval > 0 {
		expBackoff.MaxInterval = cfg.Retry.MaxInterval
	}
	expBackoff.Reset()

	maxTries := cfg.Retry.MaxTries
	if maxTries == 0 {
		maxTries = 1
	}
	attempt := 0
	operation := func() (*nnsession.Session, error) {
		attempt++
		s, err := nnsession.New(cfg.sessionConfig(log))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if err := s.Ready(ctx); err != nil {
			_ = s.Close()
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		log.Debug().Str("session_id", s.ID()).Int("attempt", attempt).Msg("Session ready")
		return s, nil
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(maxTries),
		backoff.WithNotify(func(err error, delay time.Duration) {
			log.Warn().Err(err).
				Int("attempt", attempt).
				Stringer("retry_in", delay).
				Msg("Failed to connect, retrying")
		}),
	)
}
