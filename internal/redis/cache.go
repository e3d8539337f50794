package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"reservation-service/internal/models"
)

// CacheClient wraps Redis for listing availability caching with cluster
// support
type CacheClient struct {
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
}

// NewCacheClient creates a new Redis cache client with cluster support
func NewCacheClient(addrs []string, password string, clusterMode bool, ttl time.Duration, keyPrefix string) *CacheClient {
	var client redis.UniversalClient

	if clusterMode {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        addrs,
			Password:     password,
			MaxRetries:   3,
			PoolSize:     50,
			MinIdleConns: 5,
			PoolTimeout:  30 * time.Second,
			// Cluster-specific options
			MaxRedirects:   8,
			ReadOnly:       false,
			RouteByLatency: true,
		})
	} else {
		addr := "localhost:6379"
		if len(addrs) > 0 {
			addr = addrs[0]
		}
		client = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       0,
			PoolSize: 10,
		})
	}

	return &CacheClient{
		client:    client,
		ttl:       ttl,
		keyPrefix: keyPrefix,
	}
}

// GetListing retrieves a cached listing. Returns nil, nil on a cache miss.
func (c *CacheClient) GetListing(ctx context.Context, listingID string) (*models.Listing, error) {
	key := c.listingKey(listingID)

	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		log.Error().Err(err).Str("listing_id", listingID).Msg("Failed to get listing from cache")
		return nil, fmt.Errorf("failed to get listing from cache: %w", err)
	}

	var listing models.Listing
	if err := json.Unmarshal([]byte(val), &listing); err != nil {
		log.Error().Err(err).Str("listing_id", listingID).Msg("Failed to unmarshal cached listing")
		return nil, fmt.Errorf("failed to unmarshal cached listing: %w", err)
	}

	log.Debug().Str("listing_id", listingID).Msg("Cache hit for listing")
	return &listing, nil
}

// SetListing stores a listing in cache
func (c *CacheClient) SetListing(ctx context.Context, listing *models.Listing) error {
	key := c.listingKey(listing.ListingID)

	data, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("failed to marshal listing: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Error().Err(err).Str("listing_id", listing.ListingID).Msg("Failed to set listing in cache")
		return fmt.Errorf("failed to set listing in cache: %w", err)
	}

	log.Debug().Str("listing_id", listing.ListingID).Msg("Cached listing")
	return nil
}

// DeleteListing removes a listing from cache
func (c *CacheClient) DeleteListing(ctx context.Context, listingID string) error {
	key := c.listingKey(listingID)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.Error().Err(err).Str("listing_id", listingID).Msg("Failed to delete listing from cache")
		return fmt.Errorf("failed to delete listing from cache: %w", err)
	}

	log.Debug().Str("listing_id", listingID).Msg("Deleted listing from cache")
	return nil
}

// Ping checks if Redis is available
func (c *CacheClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *CacheClient) Close() error {
	return c.client.Close()
}

// listingKey generates the cache key for a listing with prefix
func (c *CacheClient) listingKey(listingID string) string {
	return fmt.Sprintf("%slisting:%s", c.keyPrefix, listingID)
}
