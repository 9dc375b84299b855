// Package queryadapter reads store records back from an indexer database so
// clients can hydrate tables described by a resolved store.
package queryadapter

import (
	"context"

	"storecfg/internal/storeconfig"
)

// EventSetRecord is the event name carried by every log GetLogs returns.
const EventSetRecord = "Store_SetRecord"


// SyncFilter selects records of one table, optionally narrowed by the first
// two key tuple elements.
type SyncFilter struct {
	TableID storeconfig.ResourceID
	Key0    *string
	Key1    *string
}

// LogsRequest scopes a query to a chain and, optionally, a store address.
// No filters means every table.
type LogsRequest struct {
	ChainID uint64
	Address *string
	Filters []SyncFilter
}

// StoreEventLog is one record replayed as a Store_SetRecord event.
type StoreEventLog struct {
	EventName      string                 `json:"eventName"`
	Address        string                 `json:"address"`
	TableID        storeconfig.ResourceID `json:"tableId"`
	KeyTuple       []string               `json:"keyTuple"`
	StaticData     string                 `json:"staticData"`
	EncodedLengths string                 `json:"encodedLengths"`
	DynamicData    string                 `json:"dynamicData"`
	BlockNumber    uint64                 `json:"blockNumber"`
}

// StorageAdapterBlock is the indexer state at BlockNumber, expressed as logs.
// BlockNumber is nil and Logs is empty when the chain is not indexed.
type StorageAdapterBlock struct {
	BlockNumber *uint64         `json:"blockNumber"`
	Logs        []StoreEventLog `json:"logs"`
}

// Record is one live row of a table.
type Record struct {
	Address        string   `json:"address"`
	KeyTuple       []string `json:"keyTuple"`
	StaticData     string   `json:"staticData"`
	EncodedLengths string   `json:"encodedLengths"`
	DynamicData    string   `json:"dynamicData"`
}

// TableWithRecords groups records by table. Table is nil when the table ID is
// not part of the resolved store.
type TableWithRecords struct {
	TableID storeconfig.ResourceID `json:"tableId"`
	Table   *storeconfig.Table     `json:"table,omitempty"`
	Records []Record               `json:"records"`
}

// FindAllResult holds every matching table. BlockNumber is nil when the chain
// is not indexed.
type FindAllResult struct {
	BlockNumber *uint64            `json:"blockNumber"`
	Tables      []TableWithRecords `json:"tables"`
}

// QueryAdapter reads indexed store state.
type QueryAdapter interface {
	GetLogs(ctx context.Context, req LogsRequest) (*StorageAdapterBlock, error)
	// Deprecated: use GetLogs.
	FindAll(ctx context.Context, req LogsRequest) (*FindAllResult, error)
}
