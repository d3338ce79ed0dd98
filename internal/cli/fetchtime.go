package cli

import (
	"context"
	"time"
)

const lastFetchKey = "last_fetch"

// fetch updates the remote-tracking branch and remembers when it happened
func (c *cmdContext) fetch(ctx context.Context) error {
	if err := c.SyncService().Fetch(ctx); err != nil {
		return err
	}
	if err := c.Store.SetValue(lastFetchKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		c.Logger.Warn("could not record fetch time", "err", err)
	}
	return nil
}

// lastFetch returns when the remote was last fetched; zero if never
func (c *cmdContext) lastFetch() time.Time {
	v, err := c.Store.GetValue(lastFetchKey)
	if err != nil || v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		c.Logger.Debug("ignoring malformed fetch time", "value", v)
		return time.Time{}
	}
	return t
}
