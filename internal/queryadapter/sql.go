package queryadapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"storecfg/internal/storeconfig"
)

// Default indexer table names.
const (
	DefaultChainTable   = "store_sync_chain"
	DefaultRecordsTable = "store_records"
)

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Config controls the SQL adapter.
type Config struct {
	ChainTable   string
	RecordsTable string
	// Store returns the resolved store used to attach table metadata in
	// FindAll. It may be nil or return nil.
	Store func() *storeconfig.Store
}

// SQLAdapter implements QueryAdapter over an indexer database.
type SQLAdapter struct {
	db           Queryer
	chainTable   string
	recordsTable string
	store        func() *storeconfig.Store
}

var _ QueryAdapter = (*SQLAdapter)(nil)

// NewSQLAdapter creates an adapter reading from db.
func NewSQLAdapter(db Queryer, cfg Config) *SQLAdapter {
	if cfg.ChainTable == "" {
		cfg.ChainTable = DefaultChainTable
	}
	if cfg.RecordsTable == "" {
		cfg.RecordsTable = DefaultRecordsTable
	}
	return &SQLAdapter{
		db:           db,
		chainTable:   quoteIdentifier(cfg.ChainTable),
		recordsTable: quoteIdentifier(cfg.RecordsTable),
		store:        cfg.Store,
	}
}

// quoteIdentifier backtick-quotes each dot-separated part of a table name.
func quoteIdentifier(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = "`" + strings.ReplaceAll(part, "`", "``") + "`"
	}
	return strings.Join(parts, ".")
}

// GetLogs returns every live record matching req as Store_SetRecord logs at
// the chain's last indexed block. An unindexed chain yields a nil block number
// and no logs.
func (a *SQLAdapter) GetLogs(ctx context.Context, req LogsRequest) (*StorageAdapterBlock, error) {
	blockNumber, ok, err := a.lastBlock(ctx, req.ChainID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &StorageAdapterBlock{Logs: []StoreEventLog{}}, nil
	}

	rows, err := a.records(ctx, req)
	if err != nil {
		return nil, err
	}

	logs := make([]StoreEventLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, StoreEventLog{
			EventName:      EventSetRecord,
			Address:        row.address,
			TableID:        row.tableID,
			KeyTuple:       row.keyTuple,
			StaticData:     row.staticData,
			EncodedLengths: row.encodedLengths,
			DynamicData:    row.dynamicData,
			BlockNumber:    row.blockNumber,
		})
	}
	return &StorageAdapterBlock{BlockNumber: &blockNumber, Logs: logs}, nil
}

// FindAll groups matching records by table, in first-seen order.
//
// Deprecated: use GetLogs.
func (a *SQLAdapter) FindAll(ctx context.Context, req LogsRequest) (*FindAllResult, error) {
	blockNumber, ok, err := a.lastBlock(ctx, req.ChainID)
	if err != nil {
		return nil, err
	}
	result := &FindAllResult{Tables: []TableWithRecords{}}
	if !ok {
		return result, nil
	}
	result.BlockNumber = &blockNumber

	rows, err := a.records(ctx, req)
	if err != nil {
		return nil, err
	}

	var store *storeconfig.Store
	if a.store != nil {
		store = a.store()
	}

	index := make(map[storeconfig.ResourceID]int)
	for _, row := range rows {
		i, seen := index[row.tableID]
		if !seen {
			group := TableWithRecords{TableID: row.tableID, Records: []Record{}}
			if store != nil {
				if table, found := store.Table(row.tableID); found {
					group.Table = table
				}
			}
			i = len(result.Tables)
			index[row.tableID] = i
			result.Tables = append(result.Tables, group)
		}
		result.Tables[i].Records = append(result.Tables[i].Records, Record{
			Address:        row.address,
			KeyTuple:       row.keyTuple,
			StaticData:     row.staticData,
			EncodedLengths: row.encodedLengths,
			DynamicData:    row.dynamicData,
		})
	}
	return result, nil
}

func (a *SQLAdapter) lastBlock(ctx context.Context, chainID uint64) (uint64, bool, error) {
	query, args, err := sq.Select("last_block_number").
		From(a.chainTable).
		Where(sq.Eq{"chain_id": chainID}).
		Limit(1).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("failed to build chain query: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, false, fmt.Errorf("failed to query chain state: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, false, rows.Err()
	}
	var blockNumber uint64
	if err := rows.Scan(&blockNumber); err != nil {
		return 0, false, fmt.Errorf("failed to scan chain state: %w", err)
	}
	return blockNumber, true, rows.Err()
}

type recordRow struct {
	address        string
	tableID        storeconfig.ResourceID
	keyTuple       []string
	staticData     string
	encodedLengths string
	dynamicData    string
	blockNumber    uint64
}

// buildRecordsQuery selects live records for req, ordered by block and log index.
func (a *SQLAdapter) buildRecordsQuery(req LogsRequest) (string, []any, error) {
	where := sq.And{
		sq.Eq{"chain_id": req.ChainID},
		sq.Eq{"is_deleted": false},
	}
	if req.Address != nil {
		where = append(where, sq.Eq{"address": strings.ToLower(*req.Address)})
	}
	if len(req.Filters) > 0 {
		anyFilter := make(sq.Or, 0, len(req.Filters))
		for _, filter := range req.Filters {
			match := sq.And{sq.Eq{"table_id": string(filter.TableID)}}
			if filter.Key0 != nil {
				match = append(match, sq.Eq{"key0": *filter.Key0})
			}
			if filter.Key1 != nil {
				match = append(match, sq.Eq{"key1": *filter.Key1})
			}
			anyFilter = append(anyFilter, match)
		}
		where = append(where, anyFilter)
	}

	return sq.Select(
		"address", "table_id", "key_tuple",
		"static_data", "encoded_lengths", "dynamic_data", "block_number",
	).
		From(a.recordsTable).
		Where(where).
		OrderBy("block_number", "log_index").
		PlaceholderFormat(sq.Question).
		ToSql()
}

func (a *SQLAdapter) records(ctx context.Context, req LogsRequest) ([]recordRow, error) {
	query, args, err := a.buildRecordsQuery(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build records query: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []recordRow
	for rows.Next() {
		var (
			row      recordRow
			tableID  string
			keyTuple sql.NullString
		)
		if err := rows.Scan(
			&row.address, &tableID, &keyTuple,
			&row.staticData, &row.encodedLengths, &row.dynamicData, &row.blockNumber,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		row.tableID = storeconfig.ResourceID(tableID)
		row.keyTuple, err = decodeKeyTuple(keyTuple)
		if err != nil {
			return nil, fmt.Errorf("record of table %s: %w", tableID, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return out, nil
}

// decodeKeyTuple parses the JSON array stored in key_tuple. NULL is an empty key.
func decodeKeyTuple(raw sql.NullString) ([]string, error) {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return []string{}, nil
	}
	var tuple []string
	if err := json.Unmarshal([]byte(raw.String), &tuple); err != nil {
		return nil, errors.Join(errors.New("invalid key tuple"), err)
	}
	if tuple == nil {
		tuple = []string{}
	}
	return tuple, nil
}
