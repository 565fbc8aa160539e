package sqlite

import (
	"context"
	"fmt"
	log "log/slog"
	"strconv"
	"time"

	retry "github.com/sethvargo/go-retry"

	"github.com/replisync/kvsql"
	"github.com/replisync/kvsql/redis"
)

// registryTable records every opened store so peers (and the admin API) can
// enumerate them.
const registryTable = "kvsql_stores"

// Lock time out for the cache based locking of registry mutation functions.
const registryLockDuration = time.Duration(5 * time.Minute)

type storeRepository struct {
	engine kvsql.Engine
	cache  kvsql.Cache
}

// NewStoreRepository manages StoreInfo records in the SQLite registry table.
// Passing in nil as "cache" will use the Redis client over the singleton
// connection. The registry table is created on first use.
func NewStoreRepository(ctx context.Context, engine kvsql.Engine, cache kvsql.Cache) (kvsql.StoreRepository, error) {
	if cache == nil {
		cache = redis.NewClient()
	}
	sr := &storeRepository{
		engine: engine,
		cache:  cache,
	}
	if err := sr.ensureRegistry(ctx); err != nil {
		return nil, err
	}
	return sr, nil
}

// ensureRegistry probes for the registry table and creates it when absent.
func (sr *storeRepository) ensureRegistry(ctx context.Context) error {
	btx, err := sr.engine.Begin(ctx, true)
	if err != nil {
		return err
	}
	rows, err := btx.Execute(ctx, `SELECT "name" FROM sqlite_master WHERE "type" = 'table' AND "name" = ?;`, registryTable)
	if err != nil {
		btx.Rollback(ctx)
		return kvsql.Error{Code: kvsql.SchemaError, Err: err, UserData: registryTable}
	}
	if len(rows) == 0 {
		createStatement := fmt.Sprintf(
			`CREATE TABLE %q ("name" TEXT PRIMARY KEY, "tbl" TEXT, "des" TEXT, "ts" INTEGER, "cd" INTEGER, "cd_ttl" INTEGER);`,
			registryTable)
		if _, err := btx.Execute(ctx, createStatement); err != nil {
			btx.Rollback(ctx)
			return kvsql.Error{Code: kvsql.SchemaError, Err: err, UserData: registryTable}
		}
	}
	return btx.Commit(ctx)
}

// lockRegistry acquires the cache locks for the given store names, retrying
// with Fibonacci backoff while another process holds them.
func (sr *storeRepository) lockRegistry(ctx context.Context, names []string) ([]*kvsql.LockKey, error) {
	lockKeys := sr.cache.CreateLockKeys(names...)
	if err := kvsql.Retry(ctx, func(ctx context.Context) error {
		ok, _, err := sr.cache.Lock(ctx, registryLockDuration, lockKeys)
		if err != nil {
			log.Warn(err.Error() + ", will retry")
			return retry.RetryableError(err)
		}
		if !ok {
			return retry.RetryableError(fmt.Errorf("registry lock is held elsewhere"))
		}
		return nil
	}, nil); err != nil {
		// Unlock keys since we failed locking all of them.
		sr.cache.Unlock(ctx, lockKeys)
		return nil, err
	}
	return lockKeys, nil
}

// Add registers store records and creates their entry tables.
func (sr *storeRepository) Add(ctx context.Context, stores ...kvsql.StoreInfo) error {
	names := make([]string, len(stores))
	for i := range stores {
		names[i] = stores[i].Name
	}
	lockKeys, err := sr.lockRegistry(ctx, names)
	if err != nil {
		return err
	}
	defer sr.cache.Unlock(ctx, lockKeys)

	upsertStatement := fmt.Sprintf(
		`INSERT INTO %q ("name", "tbl", "des", "ts", "cd", "cd_ttl") VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT ("name") DO UPDATE SET "tbl" = excluded."tbl", "des" = excluded."des", "ts" = excluded."ts", "cd" = excluded."cd", "cd_ttl" = excluded."cd_ttl";`,
		registryTable)
	btx, err := sr.engine.Begin(ctx, true)
	if err != nil {
		return err
	}
	for _, s := range stores {
		ttl := 0
		if s.CacheConfig.IsStoreInfoCacheTTL {
			ttl = 1
		}
		if _, err := btx.Execute(ctx, upsertStatement,
			s.Name, s.Table, s.Description,
			strconv.FormatInt(s.Timestamp, 10),
			strconv.FormatInt(int64(s.CacheConfig.StoreInfoCacheDuration), 10),
			strconv.Itoa(ttl)); err != nil {
			btx.Rollback(ctx)
			return err
		}
	}
	if err := btx.Commit(ctx); err != nil {
		return err
	}

	for _, s := range stores {
		// Create the entry table of the registered store.
		if err := sr.engine.Open(ctx, s.Table); err != nil {
			return err
		}
		// Tolerate error in Redis caching.
		if err := sr.cache.SetStruct(ctx, s.Name, &s, s.CacheConfig.StoreInfoCacheDuration); err != nil {
			log.Warn(fmt.Sprintf("StoreRepository Add failed (redis setstruct), details: %v", err))
		}
	}
	return nil
}

// Get fetches store records by name, cache-first.
func (sr *storeRepository) Get(ctx context.Context, names ...string) ([]kvsql.StoreInfo, error) {
	result := make([]kvsql.StoreInfo, 0, len(names))
	misses := make([]string, 0, len(names))
	for _, name := range names {
		var si kvsql.StoreInfo
		found, err := sr.cache.GetStruct(ctx, name, &si)
		if err != nil {
			log.Warn(fmt.Sprintf("StoreRepository Get failed (redis getstruct), details: %v", err))
		}
		if found && err == nil {
			result = append(result, si)
			continue
		}
		misses = append(misses, name)
	}
	if len(misses) == 0 {
		return result, nil
	}

	selectStatement := fmt.Sprintf(`SELECT "name", "tbl", "des", "ts", "cd", "cd_ttl" FROM %q WHERE "name" = ?;`, registryTable)
	btx, err := sr.engine.Begin(ctx, false)
	if err != nil {
		return nil, err
	}
	defer btx.Rollback(ctx)
	for _, name := range misses {
		rows, err := btx.Execute(ctx, selectStatement, name)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		si, err := toStoreInfo(rows[0])
		if err != nil {
			return nil, err
		}
		if err := sr.cache.SetStruct(ctx, si.Name, &si, si.CacheConfig.StoreInfoCacheDuration); err != nil {
			log.Warn(fmt.Sprintf("StoreRepository Get failed (redis setstruct), details: %v", err))
		}
		result = append(result, si)
	}
	return result, nil
}

// GetAll returns the names of all registered stores.
func (sr *storeRepository) GetAll(ctx context.Context) ([]string, error) {
	btx, err := sr.engine.Begin(ctx, false)
	if err != nil {
		return nil, err
	}
	defer btx.Rollback(ctx)
	rows, err := btx.Execute(ctx, fmt.Sprintf(`SELECT "name" FROM %q;`, registryTable))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = row[0]
	}
	return names, nil
}

// Remove deregisters stores and drops their entry tables.
func (sr *storeRepository) Remove(ctx context.Context, names ...string) error {
	lockKeys, err := sr.lockRegistry(ctx, names)
	if err != nil {
		return err
	}
	defer sr.cache.Unlock(ctx, lockKeys)

	deleteStatement := fmt.Sprintf(`DELETE FROM %q WHERE "name" = ?;`, registryTable)
	btx, err := sr.engine.Begin(ctx, true)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := btx.Execute(ctx, deleteStatement, name); err != nil {
			btx.Rollback(ctx)
			return err
		}
		if _, err := btx.Execute(ctx, kvsql.DropTableStatement(kvsql.FormatTableName(name))); err != nil {
			btx.Rollback(ctx)
			return err
		}
	}
	if err := btx.Commit(ctx); err != nil {
		return err
	}
	// Tolerate error in Redis cache eviction.
	if err := sr.cache.Delete(ctx, names...); err != nil {
		log.Warn(fmt.Sprintf("StoreRepository Remove failed (redis delete), details: %v", err))
	}
	return nil
}

func toStoreInfo(row kvsql.Row) (kvsql.StoreInfo, error) {
	if len(row) < 6 {
		return kvsql.StoreInfo{}, kvsql.Error{
			Code: kvsql.StatementError,
			Err:  fmt.Errorf("registry row carries %d columns, want 6", len(row)),
		}
	}
	ts, err := strconv.ParseInt(row[3], 10, 64)
	if err != nil {
		return kvsql.StoreInfo{}, kvsql.Error{Code: kvsql.SerializationError, Err: err, UserData: row[0]}
	}
	cd, err := strconv.ParseInt(row[4], 10, 64)
	if err != nil {
		return kvsql.StoreInfo{}, kvsql.Error{Code: kvsql.SerializationError, Err: err, UserData: row[0]}
	}
	return kvsql.StoreInfo{
		Name:        row[0],
		Table:       row[1],
		Description: row[2],
		Timestamp:   ts,
		CacheConfig: kvsql.StoreCacheConfig{
			StoreInfoCacheDuration: time.Duration(cd),
			IsStoreInfoCacheTTL:    row[5] == "1",
		},
	}, nil
}
