package catalog

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limited wraps a Querier with an optional request rate limit and a
// per-query timeout. Remote catalogs shared between users are the main
// reason to set either.
type Limited struct {
	next    Querier
	limiter *rate.Limiter
	timeout time.Duration
}

// NewLimited returns q unchanged when neither limit is set.
func NewLimited(q Querier, perSecond float64, timeout time.Duration) Querier {
	if perSecond <= 0 && timeout <= 0 {
		return q
	}
	l := &Limited{next: q, timeout: timeout}
	if perSecond > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return l
}

func (l *Limited) Query(ctx context.Context, table string, names []string, values []any) ([]Record, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	return l.next.Query(ctx, table, names, values)
}

var _ Querier = (*Limited)(nil)
var _ Querier = (*Store)(nil)
