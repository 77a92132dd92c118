package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakashimaa/go-marketplace/internal/domain"
)

type cachedProductService struct {
	next        ProductService
	redisClient *redis.Client
	cacheTTL    time.Duration
}

// NewCachedProductService wraps next with a redis read-through cache on
// FindByID. Stock quantities change outside this service, so cached entries
// are only trusted for cacheTTL.
func NewCachedProductService(next ProductService, redisClient *redis.Client, cacheTTL time.Duration) ProductService {
	return &cachedProductService{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
	}
}

func (s *cachedProductService) Create(ctx context.Context, name string, price, quantity int64) (*domain.Product, error) {
	return s.next.Create(ctx, name, price, quantity)
}

func (s *cachedProductService) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	key := fmt.Sprintf("product:%s", id)

	val, err := s.redisClient.Get(ctx, key).Result()
	if err == nil {
		var product domain.Product
		if err := json.Unmarshal([]byte(val), &product); err == nil {
			return &product, nil
		}
	}

	product, err := s.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		s.redisClient.Set(ctx, key, data, s.cacheTTL)
	}

	return product, nil
}

func (s *cachedProductService) List(ctx context.Context, limit, offset int64, search string) ([]domain.Product, int64, error) {
	return s.next.List(ctx, limit, offset, search)
}
