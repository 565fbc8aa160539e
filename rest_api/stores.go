package rest_api

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/replisync/kvsql"
)

var ctx = context.TODO()

var (
	initMux sync.Mutex
	engine  kvsql.Engine
	repo    kvsql.StoreRepository
	stores  = map[string]kvsql.Store{}
)

// Initialize wires the engine adapter and store repository the handlers
// operate on. Call once at startup, before Main.
func Initialize(e kvsql.Engine, r kvsql.StoreRepository) {
	initMux.Lock()
	defer initMux.Unlock()
	engine = e
	repo = r
	stores = map[string]kvsql.Store{}
}

// storeByName returns (and lazily opens) the Store handle for a registered store.
func storeByName(name string) (kvsql.Store, bool, error) {
	initMux.Lock()
	defer initMux.Unlock()
	if s, ok := stores[name]; ok {
		return s, true, nil
	}
	sis, err := repo.Get(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if len(sis) == 0 {
		return nil, false, nil
	}
	s := kvsql.NewStore(engine, sis[0])
	stores[name] = s
	return s, true, nil
}

// GetStores godoc
// @Summary GetStores returns list of stores
// @Schemes
// @Description GetStores responds with the list of all registered store names as JSON.
// @Tags Stores
// @Accept json
// @Produce json
// @Failure 404 {object} map[string]any
// @Success 200 {object} []string
// @Router /stores [get]
// @Security Bearer
func GetStores(c *gin.Context) {
	names, err := repo.GetAll(ctx)
	if err != nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "fetching stores list failed"})
		return
	}
	c.IndentedJSON(http.StatusOK, names)
}

// GetStoreByName godoc
// @Summary GetStoreByName returns the store record
// @Schemes
// @Description GetStoreByName responds with the registered StoreInfo of the named store.
// @Tags Stores
// @Accept json
// @Produce json
// @Param name path string true "store name"
// @Failure 404 {object} map[string]any
// @Success 200 {object} kvsql.StoreInfo
// @Router /stores/{name} [get]
// @Security Bearer
func GetStoreByName(c *gin.Context) {
	name := c.Param("name")
	sis, err := repo.Get(ctx, name)
	if err != nil || len(sis) == 0 {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "store " + name + " not found"})
		return
	}
	c.IndentedJSON(http.StatusOK, sis[0])
}

// GetItem godoc
// @Summary GetItem returns one store entry
// @Schemes
// @Description GetItem reads the keyed entry through a read transaction and responds with its JSON value.
// @Tags Items
// @Accept json
// @Produce json
// @Param name path string true "store name"
// @Param key path string true "entry key"
// @Failure 404 {object} map[string]any
// @Success 200 {object} any
// @Router /stores/{name}/items/{key} [get]
// @Security Bearer
func GetItem(c *gin.Context) {
	s, found, err := storeByName(c.Param("name"))
	if err != nil || !found {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "store " + c.Param("name") + " not found"})
		return
	}
	var value any
	var hit bool
	err = s.WithRead(ctx, func(t kvsql.ReadTransaction) error {
		var err error
		hit, err = t.Get(ctx, c.Param("key"), &value)
		return err
	})
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if !hit {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "key " + c.Param("key") + " not found"})
		return
	}
	c.IndentedJSON(http.StatusOK, value)
}

// PutItem godoc
// @Summary PutItem upserts one store entry
// @Schemes
// @Description PutItem stages the request body as the keyed entry's value and commits it.
// @Tags Items
// @Accept json
// @Produce json
// @Param name path string true "store name"
// @Param key path string true "entry key"
// @Param value body any true "entry value"
// @Failure 404 {object} map[string]any
// @Success 200 {object} map[string]any
// @Router /stores/{name}/items/{key} [put]
// @Security Bearer
func PutItem(c *gin.Context) {
	s, found, err := storeByName(c.Param("name"))
	if err != nil || !found {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "store " + c.Param("name") + " not found"})
		return
	}
	var value any
	if err := c.ShouldBindJSON(&value); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	err = s.WithWrite(ctx, func(t kvsql.WriteTransaction) error {
		if err := t.Put(ctx, c.Param("key"), value); err != nil {
			return err
		}
		return t.Commit(ctx)
	})
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "ok"})
}

// DeleteItem godoc
// @Summary DeleteItem removes one store entry
// @Schemes
// @Description DeleteItem stages a delete of the keyed entry and commits it.
// @Tags Items
// @Accept json
// @Produce json
// @Param name path string true "store name"
// @Param key path string true "entry key"
// @Failure 404 {object} map[string]any
// @Success 200 {object} map[string]any
// @Router /stores/{name}/items/{key} [delete]
// @Security Bearer
func DeleteItem(c *gin.Context) {
	s, found, err := storeByName(c.Param("name"))
	if err != nil || !found {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "store " + c.Param("name") + " not found"})
		return
	}
	err = s.WithWrite(ctx, func(t kvsql.WriteTransaction) error {
		if err := t.Delete(ctx, c.Param("key")); err != nil {
			return err
		}
		return t.Commit(ctx)
	})
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "ok"})
}
