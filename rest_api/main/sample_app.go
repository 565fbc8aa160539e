package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/replisync/kvsql"
	"github.com/replisync/kvsql/redis"
	"github.com/replisync/kvsql/rest_api"
	"github.com/replisync/kvsql/sqlite"
)

// SQLite config, please update with your database file path.
var sqliteConfig = sqlite.Config{
	Path:        "/var/lib/kvsql/kvsql.db",
	BusyTimeout: 5 * time.Second,
}

// Redis config, please update with your Redis cluster config.
var redisConfig = redis.Options{
	Address:  "localhost:6379",
	Password: "", // no password set
	DB:       0,  // use default DB
}

const prefsStore = "preferences"

var ctx = context.TODO()

func main() {
	kvsql.ConfigureLogging()

	if _, err := sqlite.OpenConnection(sqliteConfig); err != nil {
		log.Fatal(err)
	}
	defer sqlite.CloseConnection()
	if _, err := redis.OpenConnection(redisConfig); err != nil {
		log.Fatal(err)
	}
	defer redis.CloseConnection()

	engine, err := sqlite.NewEngine()
	if err != nil {
		log.Fatal(err)
	}
	repo, err := sqlite.NewStoreRepository(ctx, engine, nil)
	if err != nil {
		log.Fatal(err)
	}

	// Ensure we have the sample "preferences" store registered.
	if err := createStores(engine, repo); err != nil {
		log.Fatal(err)
	}

	rest_api.Initialize(engine, repo)
	rest_api.Main()
	os.Exit(0)
}

func createStores(engine kvsql.Engine, repo kvsql.StoreRepository) error {
	if _, err := kvsql.OpenStore(ctx, engine, repo, kvsql.StoreOptions{
		Name:        prefsStore,
		Description: "per-user application preferences",
	}); err != nil {
		return err
	}
	// You can add here other create script(s) for other Stores you need in your application...
	return nil
}
