package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/storage"
)

// RoutingRepository implements storage.RoutingRepository for BadgerDB.
type RoutingRepository struct {
	backend *Backend
}

var _ storage.RoutingRepository = (*RoutingRepository)(nil)

// NewRoutingRepository creates a new RoutingRepository.
func NewRoutingRepository(backend *Backend) *RoutingRepository {
	return &RoutingRepository{backend: backend}
}

// Close is a no-op; the repository holds no resources of its own.
func (r *RoutingRepository) Close() error {
	return nil
}

// AddServer persists a server registration. Registration is idempotent by
// endpoint: re-registering an existing endpoint returns the stored record.
func (r *RoutingRepository) AddServer(ctx context.Context, server *core.A2AServer) (*core.A2AServer, error) {
	var result *core.A2AServer
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		endpointKey := makeServerEndpointKey(server.Endpoint)
		item, err := tx.Get(endpointKey)
		if err == nil {
			var existingID string
			if err := item.Value(func(val []byte) error {
				existingID = string(val)
				return nil
			}); err != nil {
				return err
			}
			result, err = readServer(tx, makeServerKey(existingID))
			if err != nil {
				return err
			}
			if result != nil {
				return nil
			}
			// Dangling endpoint index; fall through and rewrite it.
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		if server.CreatedAt.IsZero() {
			server.CreatedAt = time.Now().UTC()
		}
		if err := tx.Set(makeServerKey(server.ID), storage.MarshalServer(server)); err != nil {
			return err
		}
		if err := tx.Set(endpointKey, []byte(server.ID)); err != nil {
			return err
		}
		result = server
		return tx.Commit()
	}, true)
	return result, err
}

// GetServer retrieves a server by ID.
func (r *RoutingRepository) GetServer(ctx context.Context, id string) (*core.A2AServer, error) {
	var result *core.A2AServer
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readServer(tx, makeServerKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// UpdateServer rewrites an existing server record.
func (r *RoutingRepository) UpdateServer(ctx context.Context, server *core.A2AServer) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeServerKey(server.ID)
		old, err := readServer(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}
		if err := tx.Set(key, storage.MarshalServer(server)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListServers returns all registered servers.
func (r *RoutingRepository) ListServers(ctx context.Context) ([]*core.A2AServer, error) {
	var results []*core.A2AServer
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(serverPrefix + ":")

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if len(key) < len(prefix) || slices.Compare(key[:len(prefix)], prefix) != 0 {
				break
			}

			var server *core.A2AServer
			if err := iter.Item().Value(func(val []byte) error {
				var unmarshalErr error
				server, unmarshalErr = storage.UnmarshalServer(val)
				return unmarshalErr
			}); err != nil {
				return err
			}
			if server != nil {
				results = append(results, server)
			}
		}
		return nil
	}, false)
	return results, err
}

// GetPolicy returns the active routing policy.
func (r *RoutingRepository) GetPolicy(ctx context.Context) (*core.RoutingPolicy, error) {
	var result *core.RoutingPolicy
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makePolicyKey())
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			result, unmarshalErr = storage.UnmarshalPolicy(val)
			return unmarshalErr
		})
	}, false)
	return result, err
}

// PutPolicy replaces the stored policy document.
func (r *RoutingRepository) PutPolicy(ctx context.Context, policy *core.RoutingPolicy) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		policy.UpdatedAt = time.Now().UTC()
		if err := tx.Set(makePolicyKey(), storage.MarshalPolicy(policy)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// readServer reads a server record from the transaction.
func readServer(tx *badger.Txn, key []byte) (*core.A2AServer, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var server *core.A2AServer
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		server, unmarshalErr = storage.UnmarshalServer(val)
		return unmarshalErr
	})
	return server, err
}
