package handlers

import (
	"sync"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/storage"
	"github.com/rs/zerolog/log"
)

// package-level storage shared by all handlers
var (
	store       storage.IStorage
	storageOnce sync.Once
	storageErr  error
)

// getStorage connects to the configured object store and checkpoint store
// once for the lifetime of the process.
func getStorage() (storage.IStorage, error) {
	storageOnce.Do(func() {
		store, storageErr = storage.NewStorageConnector(&config.Cfg)
		if storageErr != nil {
			log.Error().Err(storageErr).Msg("Error creating storage connector")
		}
	})
	return store, storageErr
}

// UseStorage makes the handlers share an already connected storage, as
// when the API runs in the same process as the stages.
func UseStorage(s storage.IStorage) {
	storageOnce.Do(func() {})
	store = s
	storageErr = nil
}
