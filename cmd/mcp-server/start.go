package main

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
)

// starter is the part of the client startWithRetry needs
type starter interface {
	Start(ctx context.Context) error
}

// startWithRetry runs the session start until every provider loads, the
// backoff gives up or an auth error makes further attempts pointless.
// The last load error is returned; a partially loaded client is still usable.
func startWithRetry(ctx context.Context, c starter, maxElapsed time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = maxElapsed

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := c.Start(ctx)
		if err != nil && pennywise.IsAuthError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		log.Printf("load attempt %d failed, retrying in %s: %v", attempt, wait.Round(time.Millisecond), err)
	})
}
