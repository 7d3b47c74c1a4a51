package enrich

import (
	"sort"

	"github.com/patrickmn/go-cache"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
)

// Cache is the session's merchant intel, keyed by lookup key. Entries never
// expire.
type Cache struct {
	items *cache.Cache
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{items: cache.New(cache.NoExpiration, 0)}
}

// Lookup returns the intel for key.
func (c *Cache) Lookup(key string) (model.MerchantIntel, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		return model.MerchantIntel{}, false
	}
	intel, ok := v.(model.MerchantIntel)
	return intel, ok
}

// Has reports whether key is cached.
func (c *Cache) Has(key string) bool {
	_, ok := c.items.Get(key)
	return ok
}

// Put stores intel under its lookup key. Records without a key are ignored.
func (c *Cache) Put(intel model.MerchantIntel) {
	if intel.LookupKey == "" {
		return
	}
	c.items.Set(intel.LookupKey, intel, cache.NoExpiration)
}

// Load stores every record.
func (c *Cache) Load(items []model.MerchantIntel) {
	for _, it := range items {
		c.Put(it)
	}
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	return c.items.ItemCount()
}

// All returns every record sorted by lookup key.
func (c *Cache) All() []model.MerchantIntel {
	var out []model.MerchantIntel
	for _, it := range c.items.Items() {
		if intel, ok := it.Object.(model.MerchantIntel); ok {
			out = append(out, intel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LookupKey < out[j].LookupKey })
	return out
}
