package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/auth"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/cache"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/metrics"
)

const unreadGenKey = "curalink:unread:gen"

// unreadCache memoises per-actor unread counts. Any notification write bumps
// a global generation, which orphans every cached count at once; orphans
// expire through the TTL. Cache failures are logged and treated as misses.
type unreadCache struct {
	c       cache.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func (u *unreadCache) generation(ctx context.Context) (string, error) {
	gen, err := u.c.Get(ctx, unreadGenKey)
	if errors.Is(err, cache.ErrMiss) {
		return "0", nil
	}
	return gen, err
}

func (u *unreadCache) key(gen string, actor *auth.Actor) string {
	return fmt.Sprintf("curalink:unread:%s:%s:%s", gen, actor.Role, actor.ID)
}

func (u *unreadCache) get(ctx context.Context, actor *auth.Actor) (count int, gen string, ok bool) {
	gen, err := u.generation(ctx)
	if err != nil {
		u.logger.Warn().Err(err).Msg("unread cache generation lookup failed")
		u.metrics.UnreadCacheLookup("error")
		return 0, "", false
	}
	raw, err := u.c.Get(ctx, u.key(gen, actor))
	if errors.Is(err, cache.ErrMiss) {
		u.metrics.UnreadCacheLookup("miss")
		return 0, gen, false
	}
	if err != nil {
		u.logger.Warn().Err(err).Msg("unread cache lookup failed")
		u.metrics.UnreadCacheLookup("error")
		return 0, "", false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		u.metrics.UnreadCacheLookup("miss")
		return 0, gen, false
	}
	u.metrics.UnreadCacheLookup("hit")
	return n, gen, true
}

// set stores count under the generation observed before it was computed, so
// a write that committed in between leaves the entry unreachable.
func (u *unreadCache) set(ctx context.Context, gen string, actor *auth.Actor, count int) {
	if gen == "" {
		return
	}
	if err := u.c.Set(ctx, u.key(gen, actor), strconv.Itoa(count), u.ttl); err != nil {
		u.logger.Warn().Err(err).Msg("unread cache store failed")
	}
}

func (u *unreadCache) invalidate(ctx context.Context) {
	if _, err := u.c.Incr(ctx, unreadGenKey); err != nil {
		u.logger.Warn().Err(err).Msg("unread cache invalidation failed")
	}
}
