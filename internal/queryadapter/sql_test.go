package queryadapter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storecfg/internal/logging"
	"storecfg/internal/storeconfig"
)

var recordColumns = []string{
	"address", "table_id", "key_tuple",
	"static_data", "encoded_lengths", "dynamic_data", "block_number",
}

const chainQuery = "SELECT last_block_number FROM `store_sync_chain` WHERE chain_id = ? LIMIT 1"

func ptr[T any](v T) *T {
	return &v
}

func newMock(t *testing.T) (*SQLAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLAdapter(db, Config{}), mock
}

func TestBuildRecordsQuery(t *testing.T) {
	adapter := NewSQLAdapter(nil, Config{RecordsTable: "indexer.store_records"})

	tests := []struct {
		name     string
		req      LogsRequest
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "chain only",
			req:      LogsRequest{ChainID: 31337},
			wantSQL:  "SELECT address, table_id, key_tuple, static_data, encoded_lengths, dynamic_data, block_number FROM `indexer`.`store_records` WHERE (chain_id = ? AND is_deleted = ?) ORDER BY block_number, log_index",
			wantArgs: []any{uint64(31337), false},
		},
		{
			name: "address and filters",
			req: LogsRequest{
				ChainID: 1,
				Address: ptr("0xABC"),
				Filters: []SyncFilter{
					{TableID: "app__Counter"},
					{TableID: "app__Position", Key0: ptr("0x01"), Key1: ptr("0x02")},
				},
			},
			wantSQL:  "SELECT address, table_id, key_tuple, static_data, encoded_lengths, dynamic_data, block_number FROM `indexer`.`store_records` WHERE (chain_id = ? AND is_deleted = ? AND address = ? AND ((table_id = ?) OR (table_id = ? AND key0 = ? AND key1 = ?))) ORDER BY block_number, log_index",
			wantArgs: []any{uint64(1), false, "0xabc", "app__Counter", "app__Position", "0x01", "0x02"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := adapter.buildRecordsQuery(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, "`store_records`", quoteIdentifier("store_records"))
	assert.Equal(t, "`mud`.`store_records`", quoteIdentifier("mud.store_records"))
	assert.Equal(t, "`we``ird`", quoteIdentifier("we`ird"))
}

func TestGetLogs(t *testing.T) {
	adapter, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(chainQuery)).
		WithArgs(31337).
		WillReturnRows(sqlmock.NewRows([]string{"last_block_number"}).AddRow(120))
	mock.ExpectQuery(regexp.QuoteMeta("FROM `store_records` WHERE (chain_id = ? AND is_deleted = ? AND ((table_id = ?)))")).
		WithArgs(31337, false, "app__Counter").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("0xstore", "app__Counter", `["0x01"]`, "0x0000002a", "0x", "0x", 100).
			AddRow("0xstore", "app__Counter", nil, "0x00000001", "0x", "0x", 110))

	block, err := adapter.GetLogs(context.Background(), LogsRequest{
		ChainID: 31337,
		Filters: []SyncFilter{{TableID: "app__Counter"}},
	})
	require.NoError(t, err)

	require.NotNil(t, block.BlockNumber)
	assert.Equal(t, uint64(120), *block.BlockNumber)
	require.Len(t, block.Logs, 2)
	assert.Equal(t, StoreEventLog{
		EventName:      EventSetRecord,
		Address:        "0xstore",
		TableID:        "app__Counter",
		KeyTuple:       []string{"0x01"},
		StaticData:     "0x0000002a",
		EncodedLengths: "0x",
		DynamicData:    "0x",
		BlockNumber:    100,
	}, block.Logs[0])
	assert.Equal(t, []string{}, block.Logs[1].KeyTuple, "singleton tables have an empty key tuple")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLogs_ChainNotIndexed(t *testing.T) {
	adapter, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(chainQuery)).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"last_block_number"}))

	block, err := adapter.GetLogs(context.Background(), LogsRequest{ChainID: 5})
	require.NoError(t, err)
	assert.Nil(t, block.BlockNumber)
	assert.NotNil(t, block.Logs)
	assert.Empty(t, block.Logs)
	assert.NoError(t, mock.ExpectationsWereMet(), "records are not queried for an unindexed chain")
}

func TestGetLogs_QueryErrors(t *testing.T) {
	adapter, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(chainQuery)).WillReturnError(errors.New("connection reset"))
	_, err := adapter.GetLogs(context.Background(), LogsRequest{ChainID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query chain state")

	mock.ExpectQuery(regexp.QuoteMeta(chainQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"last_block_number"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("FROM `store_records`")).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("0xstore", "app__Counter", `{"not":"an array"}`, "0x", "0x", "0x", 1))
	_, err = adapter.GetLogs(context.Background(), LogsRequest{ChainID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key tuple")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := storeconfig.Resolve(storeconfig.StoreInput{
		Namespace: ptr("app"),
		Tables:    []storeconfig.TableInput{storeconfig.TableShorthand("Counter", storeconfig.ShorthandSchema("uint32"))},
	})
	require.NoError(t, err)

	adapter := NewSQLAdapter(db, Config{Store: func() *storeconfig.Store { return store }})

	mock.ExpectQuery(regexp.QuoteMeta(chainQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"last_block_number"}).AddRow(50))
	mock.ExpectQuery(regexp.QuoteMeta("address = ?")).
		WithArgs(1, false, "0xstore").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("0xstore", "app__Counter", `[]`, "0x01", "0x", "0x", 10).
			AddRow("0xstore", "other__Unknown", `["0x02"]`, "0x02", "0x", "0x", 11).
			AddRow("0xstore", "app__Counter", `[]`, "0x03", "0x", "0x", 12))

	result, err := adapter.FindAll(context.Background(), LogsRequest{ChainID: 1, Address: ptr("0xStore")})
	require.NoError(t, err)

	require.NotNil(t, result.BlockNumber)
	assert.Equal(t, uint64(50), *result.BlockNumber)
	require.Len(t, result.Tables, 2)

	assert.Equal(t, storeconfig.ResourceID("app__Counter"), result.Tables[0].TableID)
	require.NotNil(t, result.Tables[0].Table)
	assert.Equal(t, "Counter", result.Tables[0].Table.Label)
	require.Len(t, result.Tables[0].Records, 2)
	assert.Equal(t, "0x03", result.Tables[0].Records[1].StaticData)

	assert.Equal(t, storeconfig.ResourceID("other__Unknown"), result.Tables[1].TableID)
	assert.Nil(t, result.Tables[1].Table)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAll_ChainNotIndexed(t *testing.T) {
	adapter, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(chainQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"last_block_number"}))

	result, err := adapter.FindAll(context.Background(), LogsRequest{ChainID: 9})
	require.NoError(t, err)
	assert.Nil(t, result.BlockNumber)
	assert.Empty(t, result.Tables)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitForDB(t *testing.T) {
	logger := &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("not yet"))
	mock.ExpectPing()
	require.NoError(t, WaitForDB(context.Background(), db, 5*time.Second, logger))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	err = WaitForDB(context.Background(), db, 0, logger)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
