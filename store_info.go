package kvsql

import (
	"fmt"
	"regexp"
	"time"
)

// StoreCacheConfig declares cache duration and TTL flag for store metadata.
type StoreCacheConfig struct {
	// StoreInfoCacheDuration controls caching of the StoreInfo registry record.
	StoreInfoCacheDuration time.Duration `json:"store_info_cache_duration"`
	// IsStoreInfoCacheTTL enables sliding TTL for the StoreInfo cache.
	IsStoreInfoCacheTTL bool `json:"is_store_info_cache_ttl"`
}

// StoreInfo describes a key-value store registered in the backing engine.
type StoreInfo struct {
	// Name is the short store name.
	Name string `json:"name" minLength:"1" maxLength:"128"`
	// Table is the backing table name derived from Name.
	Table string `json:"table" minLength:"1" maxLength:"140"`
	// Description optionally describes the store.
	Description string `json:"description" maxLength:"500"`
	// Timestamp is the add/update time in milliseconds.
	Timestamp int64 `json:"timestamp"`
	// CacheConfig overrides global cache settings for this store.
	CacheConfig StoreCacheConfig `json:"cache_config"`
}

// StoreOptions contains configuration fields used when opening a store.
type StoreOptions struct {
	// Name is the short name of the store.
	Name string
	// Description is an optional text describing the store.
	Description string
	// CacheConfig optionally overrides the default StoreInfo cache settings.
	CacheConfig *StoreCacheConfig
}

// Registered store names are interpolated into table identifiers, so keep
// them to a safe identifier charset.
var validStoreName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

const maxStoreNameLength = 128

// defaultCacheDuration applies to StoreInfo registry records when options don't override it.
const defaultCacheDuration = time.Duration(10 * time.Minute)

// NewStoreInfo validates options and returns the StoreInfo for a store,
// deriving the backing table name.
func NewStoreInfo(options StoreOptions) (StoreInfo, error) {
	if !validStoreName.MatchString(options.Name) || len(options.Name) > maxStoreNameLength {
		return StoreInfo{}, Error{
			Code:     SchemaError,
			Err:      fmt.Errorf("store name %q is not a valid identifier", options.Name),
			UserData: options.Name,
		}
	}
	cc := StoreCacheConfig{
		StoreInfoCacheDuration: defaultCacheDuration,
	}
	if options.CacheConfig != nil {
		cc = *options.CacheConfig
	}
	return StoreInfo{
		Name:        options.Name,
		Table:       FormatTableName(options.Name),
		Description: options.Description,
		Timestamp:   time.Now().UnixMilli(),
		CacheConfig: cc,
	}, nil
}

// FormatTableName derives the backing table name for a store name.
func FormatTableName(name string) string {
	return fmt.Sprintf("kv_%s", name)
}
