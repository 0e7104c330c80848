package leaselock

import "context"

// StageLocker serializes pipeline stages across processes: a stage runs only
// while its process holds the stage's lease.
type StageLocker struct {
	client *Client
	opts   Options
}

func NewStageLocker(client *Client, opts Options) *StageLocker {
	return &StageLocker{client: client, opts: opts}
}

func (s *StageLocker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return s.client.WithLease(ctx, name, s.opts, fn)
}
