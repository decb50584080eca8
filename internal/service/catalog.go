package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shopworks/storefront-api/internal/docstore"
	"github.com/shopworks/storefront-api/internal/model"
)

const (
	SpecialProductsCategory = "Special Products"
	BestDealsCategory       = "Best Deals"
	BestProductsCategory    = "Best Products"

	bestProductsPageSize = 6
	catalogCacheTTL      = 60 * time.Second
)

// Catalog serves read-only product browsing. Category shelves are cached in
// Redis for a short TTL; the cache is optional and a nil client disables it.
type Catalog struct {
	store       docstore.Store
	redisClient *redis.Client
	log         *slog.Logger
}

func NewCatalog(store docstore.Store, redisClient *redis.Client, log *slog.Logger) *Catalog {
	return &Catalog{store: store, redisClient: redisClient, log: log}
}

// SpecialProducts returns the special-category shelf.
func (c *Catalog) SpecialProducts(ctx context.Context) ([]model.Product, error) {
	return c.categoryShelf(ctx, SpecialProductsCategory)
}

// BestDeals returns the best-deals shelf.
func (c *Catalog) BestDeals(ctx context.Context) ([]model.Product, error) {
	return c.categoryShelf(ctx, BestDealsCategory)
}

func (c *Catalog) categoryShelf(ctx context.Context, category string) ([]model.Product, error) {
	cacheKey := "catalog:category:" + category

	if c.redisClient != nil {
		if cached, err := c.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var products []model.Product
			if json.Unmarshal([]byte(cached), &products) == nil {
				return products, nil
			}
		}
	}

	products, err := c.fetch(ctx, docstore.Query{
		Filters: []docstore.Filter{docstore.Eq("category", category)},
	})
	if err != nil {
		return nil, err
	}

	if c.redisClient != nil {
		if data, err := json.Marshal(products); err == nil {
			c.redisClient.Set(ctx, cacheKey, data, catalogCacheTTL)
		}
	}
	return products, nil
}

// OfferProducts returns the products of a category that carry an offer.
func (c *Catalog) OfferProducts(ctx context.Context, category string) ([]model.Product, error) {
	return c.fetch(ctx, docstore.Query{
		Filters: []docstore.Filter{
			docstore.Eq("category", category),
			docstore.HasField("offerPercentage"),
		},
	})
}

// GetProduct looks a single product up by id.
func (c *Catalog) GetProduct(ctx context.Context, id string) (model.Product, error) {
	doc, err := c.store.Get(ctx, ProductsCollection, id)
	if err != nil {
		return model.Product{}, fmt.Errorf("get product: %w", err)
	}
	var p model.Product
	if err := doc.Decode(&p); err != nil {
		return model.Product{}, fmt.Errorf("decode product: %w", err)
	}
	return p, nil
}

func (c *Catalog) fetch(ctx context.Context, q docstore.Query) ([]model.Product, error) {
	docs, err := c.store.Query(ctx, ProductsCollection, q)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	products := make([]model.Product, 0, len(docs))
	for _, doc := range docs {
		var p model.Product
		if err := doc.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode product %s: %w", doc.ID, err)
		}
		products = append(products, p)
	}
	return products, nil
}

// BestProductsPager pages through a "best products" shelf with a growing
// limit: page n fetches the first n*6 matches. The end of the catalog is
// detected by the fetched list comparing equal to the previous fetch, and
// once ended no further fetches are issued until Reset.
type BestProductsPager struct {
	catalog *Catalog
	query   docstore.Query

	mu   sync.Mutex
	page int
	prev []model.Product
	end  bool
}

// NewHomePager pages the storefront home shelf: the fixed best-products
// category ordered by ascending price.
func (c *Catalog) NewHomePager() *BestProductsPager {
	return &BestProductsPager{
		catalog: c,
		query: docstore.Query{
			Filters:      []docstore.Filter{docstore.Eq("category", BestProductsCategory)},
			OrderBy:      "price",
			OrderNumeric: true,
		},
		page: 1,
	}
}

// NewCategoryPager pages a category's non-offer products.
func (c *Catalog) NewCategoryPager(category string) *BestProductsPager {
	return &BestProductsPager{
		catalog: c,
		query: docstore.Query{
			Filters: []docstore.Filter{
				docstore.Eq("category", category),
				docstore.FieldAbsent("offerPercentage"),
			},
		},
		page: 1,
	}
}

// Next fetches the next page. After the paging end is reached it returns the
// last fetched list without touching the store.
func (p *BestProductsPager) Next(ctx context.Context) ([]model.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.end {
		return p.prev, nil
	}

	q := p.query
	q.Limit = p.page * bestProductsPageSize
	products, err := p.catalog.fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	p.end = sameProducts(products, p.prev)
	p.prev = products
	p.page++
	return products, nil
}

// Ended reports whether the pager has seen the full shelf.
func (p *BestProductsPager) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.end
}

// Reset starts paging over from the first page.
func (p *BestProductsPager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.page = 1
	p.prev = nil
	p.end = false
}

func sameProducts(a, b []model.Product) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
