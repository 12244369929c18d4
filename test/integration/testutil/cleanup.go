//go:build integration

package testutil

import (
	"context"
	"time"
)

// CleanAll empties every table the document store writes.
func (env *TestEnv) CleanAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := env.Pool.Exec(ctx, "TRUNCATE documents, event_outbox RESTART IDENTITY"); err != nil {
		env.t.Fatalf("CleanAll: %v", err)
	}
}
