package kvsql

import (
	"strings"
	"testing"
	"time"
)

func Test_NewStoreInfoDefaults(t *testing.T) {
	si, err := NewStoreInfo(StoreOptions{Name: "barstoreco", Description: "persisted user prefs"})
	if err != nil {
		t.Fatalf("NewStoreInfo failed, details: %v.", err)
	}
	if si.Table != "kv_barstoreco" {
		t.Errorf("Table, got = %s, want = kv_barstoreco.", si.Table)
	}
	if si.CacheConfig.StoreInfoCacheDuration != defaultCacheDuration {
		t.Errorf("cache duration, got = %v, want = %v.", si.CacheConfig.StoreInfoCacheDuration, defaultCacheDuration)
	}
	if si.Timestamp == 0 {
		t.Error("Timestamp, got = 0, want = assigned.")
	}
}

func Test_NewStoreInfoCacheOverride(t *testing.T) {
	si, err := NewStoreInfo(StoreOptions{
		Name: "barstoreco",
		CacheConfig: &StoreCacheConfig{
			StoreInfoCacheDuration: time.Minute,
			IsStoreInfoCacheTTL:    true,
		},
	})
	if err != nil {
		t.Fatalf("NewStoreInfo failed, details: %v.", err)
	}
	if si.CacheConfig.StoreInfoCacheDuration != time.Minute || !si.CacheConfig.IsStoreInfoCacheTTL {
		t.Errorf("cache config, got = %+v, want = the override.", si.CacheConfig)
	}
}

func Test_NewStoreInfoRejectsUnsafeNames(t *testing.T) {
	names := []string{
		"",
		"9lives",
		"no-dash",
		"no space",
		"semi;colon",
		`dq"uote`,
		strings.Repeat("a", maxStoreNameLength+1),
	}
	for _, name := range names {
		if _, err := NewStoreInfo(StoreOptions{Name: name}); CodeOf(err) != SchemaError {
			t.Errorf("NewStoreInfo(%q), got = %v, want = SchemaError.", name, err)
		}
	}
}
