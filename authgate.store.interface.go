// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file defines the narrow persistent-store contract consumed by the key
// cache and the admin service, plus the default adapter over go-datarepository.
// The surrounding application's ORM/schema stays behind this interface.
package authgate

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/itsatony/go-datarepository"
)

// KeyStore is the persistent-store contract for API key records.
// Implementations can sit on Redis, PostgreSQL, or any other backend.
//
// Records are never physically deleted: revocation flips status and sets
// RevokedAt, and revoked records are retained for audit.
type KeyStore interface {
	// ListActiveKeys returns every record with status=active.
	// Used by the key cache for warm-up and periodic re-warm.
	ListActiveKeys(ctx context.Context) ([]*APIKeyRecord, error)

	// GetKeyByLookupKey retrieves a record by its derived lookup key.
	// Returns ErrKeyNotFound if no record exists.
	GetKeyByLookupKey(ctx context.Context, lookupKey string) (*APIKeyRecord, error)

	// GetKeyByID retrieves a record by its numeric id.
	// Returns ErrKeyNotFound if no record exists.
	GetKeyByID(ctx context.Context, id int64) (*APIKeyRecord, error)

	// Create persists a new record, assigning its immutable numeric id.
	Create(ctx context.Context, rec *APIKeyRecord) error

	// Revoke marks the record revoked and sets RevokedAt.
	// Returns the updated record, or ErrKeyNotFound.
	Revoke(ctx context.Context, id int64) (*APIKeyRecord, error)
}

// DataRepositoryAdapter adapts go-datarepository to the KeyStore interface.
// This is the default implementation using the go-datarepository package.
//
// Layout: records live under "record:{lookupKey}", a secondary index
// "id:{id}" -> lookupKey serves id-based access, and ids are assigned from an
// atomic counter.
type DataRepositoryAdapter struct {
	repo datarepository.DataRepository
}

// NewDataRepositoryAdapter creates a new adapter for go-datarepository.
func NewDataRepositoryAdapter(repo datarepository.DataRepository) (*DataRepositoryAdapter, error) {
	if repo == nil {
		return nil, ErrStoreRequired
	}
	return &DataRepositoryAdapter{
		repo: repo,
	}, nil
}

func recordIdentifier(lookupKey string) datarepository.EntityIdentifier {
	return datarepository.SimpleIdentifier(STORE_KEY_RECORD + BUS_KEY_SEPARATOR + lookupKey)
}

func idIdentifier(id int64) datarepository.EntityIdentifier {
	return datarepository.SimpleIdentifier(STORE_KEY_ID_INDEX + BUS_KEY_SEPARATOR + formatKeyID(id))
}

// ListActiveKeys implements KeyStore.ListActiveKeys
func (a *DataRepositoryAdapter) ListActiveKeys(ctx context.Context) ([]*APIKeyRecord, error) {
	pattern := STORE_KEY_RECORD + BUS_KEY_SEPARATOR + "*"

	_, entities, err := a.repo.List(ctx, pattern)
	if err != nil {
		return nil, WrapError(ErrStoreUnavailable, err.Error())
	}

	records := make([]*APIKeyRecord, 0, len(entities))
	for _, entity := range entities {
		// Entity is a string JSON representation from the repository
		entityStr, ok := entity.(string)
		if !ok {
			continue // Skip non-string entities
		}

		var rec APIKeyRecord
		if err := json.Unmarshal([]byte(entityStr), &rec); err != nil {
			continue // Skip malformed entries
		}

		if rec.Status == KeyStatusActive {
			records = append(records, &rec)
		}
	}

	return records, nil
}

// GetKeyByLookupKey implements KeyStore.GetKeyByLookupKey
func (a *DataRepositoryAdapter) GetKeyByLookupKey(ctx context.Context, lookupKey string) (*APIKeyRecord, error) {
	if lookupKey == "" {
		return nil, NewValidationError("lookup_key", "cannot be empty")
	}

	var rec APIKeyRecord
	err := a.repo.Read(ctx, recordIdentifier(lookupKey), &rec)
	if err != nil {
		if datarepository.IsNotFoundError(err) {
			return nil, ErrKeyNotFound
		}
		return nil, WrapError(ErrStoreUnavailable, err.Error())
	}

	return &rec, nil
}

// GetKeyByID implements KeyStore.GetKeyByID
func (a *DataRepositoryAdapter) GetKeyByID(ctx context.Context, id int64) (*APIKeyRecord, error) {
	var lookupKey string
	err := a.repo.Read(ctx, idIdentifier(id), &lookupKey)
	if err != nil {
		if datarepository.IsNotFoundError(err) {
			return nil, ErrKeyNotFound
		}
		return nil, WrapError(ErrStoreUnavailable, err.Error())
	}

	// The id index may arrive JSON-quoted depending on the backend codec.
	lookupKey = strings.Trim(lookupKey, `"`)

	return a.GetKeyByLookupKey(ctx, lookupKey)
}

// Create implements KeyStore.Create
func (a *DataRepositoryAdapter) Create(ctx context.Context, rec *APIKeyRecord) error {
	if rec == nil {
		return NewValidationError("record", "cannot be nil")
	}
	if rec.LookupKey == "" {
		return NewValidationError("lookup_key", "cannot be empty")
	}

	id, err := a.repo.AtomicIncrement(ctx, datarepository.SimpleIdentifier(STORE_KEY_ID_COUNTER))
	if err != nil {
		return WrapError(ErrStoreUnavailable, err.Error())
	}
	rec.ID = id

	if err := a.repo.Upsert(ctx, recordIdentifier(rec.LookupKey), rec); err != nil {
		return WrapError(ErrStoreUnavailable, err.Error())
	}
	if err := a.repo.Upsert(ctx, idIdentifier(rec.ID), rec.LookupKey); err != nil {
		return WrapError(ErrStoreUnavailable, err.Error())
	}

	return nil
}

// Revoke implements KeyStore.Revoke
func (a *DataRepositoryAdapter) Revoke(ctx context.Context, id int64) (*APIKeyRecord, error) {
	rec, err := a.GetKeyByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.Status == KeyStatusRevoked {
		return rec, nil // active -> revoked is monotonic; re-revocation is a no-op
	}

	now := time.Now().UTC()
	rec.Status = KeyStatusRevoked
	rec.RevokedAt = &now

	if err := a.repo.Update(ctx, recordIdentifier(rec.LookupKey), rec); err != nil {
		return nil, WrapError(ErrStoreUnavailable, err.Error())
	}

	return rec, nil
}
