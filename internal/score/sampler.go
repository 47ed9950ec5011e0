package score

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/stylr/migrate/internal/logger"
	"github.com/stylr/migrate/internal/storage"
)

const (
	// DefaultSampleSize bounds the accessibility sample; the check is a
	// statistical probe, never an exhaustive scan of the migrated set.
	DefaultSampleSize = 20

	existsCacheTTL     = 5 * time.Minute
	existsCacheCleanup = 10 * time.Minute
)

// AccessibilitySampler probes a bounded sample of migrated objects for
// reachability. Existence results are cached so repeated scoring runs in the
// same process do not hammer the storage backend.
type AccessibilitySampler struct {
	objects    storage.ObjectStore
	sampleSize int
	cache      *cache.Cache
	log        logger.Logger
}

// NewAccessibilitySampler creates a sampler over the given object store.
func NewAccessibilitySampler(objects storage.ObjectStore, sampleSize int, log logger.Logger) *AccessibilitySampler {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	return &AccessibilitySampler{
		objects:    objects,
		sampleSize: sampleSize,
		cache:      cache.New(existsCacheTTL, existsCacheCleanup),
		log:        log.Module("score.sampler"),
	}
}

// SampleSize returns the configured sample bound.
func (s *AccessibilitySampler) SampleSize() int {
	return s.sampleSize
}

// Sample checks up to sampleSize of the given storage paths and returns how
// many were probed and how many were reachable. Paths are taken in order; the
// caller supplies them pre-ordered (insertion order) so results are stable.
func (s *AccessibilitySampler) Sample(ctx context.Context, paths []string) (sampled, reachable int) {
	limit := min(s.sampleSize, len(paths))

	for _, path := range paths[:limit] {
		if ctx.Err() != nil {
			break
		}
		sampled++

		if hit, found := s.cache.Get(path); found {
			if hit.(bool) {
				reachable++
			}
			continue
		}

		exists, err := s.objects.Exists(ctx, path)
		if err != nil {
			s.log.Warn("accessibility probe failed",
				logger.String("path", path),
				logger.Error(err))
			s.cache.Set(path, false, cache.DefaultExpiration)
			continue
		}
		s.cache.Set(path, exists, cache.DefaultExpiration)
		if exists {
			reachable++
		}
	}

	s.log.Debug("accessibility sample complete",
		logger.Int("sampled", sampled),
		logger.Int("reachable", reachable))
	return sampled, reachable
}
