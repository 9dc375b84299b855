package gqlschema

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storecfg/internal/configrefresh"
	"storecfg/internal/queryadapter"
	"storecfg/internal/storeconfig"
)

type staticSource struct {
	snapshot *configrefresh.Snapshot
}

func (s staticSource) CurrentSnapshot() *configrefresh.Snapshot {
	return s.snapshot
}

type fakeAdapter struct {
	requests []queryadapter.LogsRequest
	block    *queryadapter.StorageAdapterBlock
	result   *queryadapter.FindAllResult
	err      error
}

func (f *fakeAdapter) GetLogs(_ context.Context, req queryadapter.LogsRequest) (*queryadapter.StorageAdapterBlock, error) {
	f.requests = append(f.requests, req)
	return f.block, f.err
}

func (f *fakeAdapter) FindAll(_ context.Context, req queryadapter.LogsRequest) (*queryadapter.FindAllResult, error) {
	f.requests = append(f.requests, req)
	return f.result, f.err
}

func ptr[T any](v T) *T {
	return &v
}

func testSnapshot(t *testing.T) *configrefresh.Snapshot {
	t.Helper()
	store, err := storeconfig.Resolve(storeconfig.StoreInput{
		Tables: []storeconfig.TableInput{
			{Label: "Config", Schema: storeconfig.ExplicitSchema(storeconfig.FieldInput{Name: "owner", Type: "address"})},
		},
		Namespaces: []storeconfig.NamespaceInput{
			{
				Label: "App",
				Tables: []storeconfig.TableInput{
					{Label: "Counter", Schema: storeconfig.ShorthandSchema("uint32")},
					{
						Label: "Position",
						Schema: storeconfig.ExplicitSchema(
							storeconfig.FieldInput{Name: "player", Type: "bytes32"},
							storeconfig.FieldInput{Name: "facing", Type: "Direction"},
						),
						Key: []string{"player"},
					},
				},
			},
		},
		Enums: []storeconfig.EnumInput{{Name: "Direction", Members: []string{"North", "South"}}},
	})
	require.NoError(t, err)
	return &configrefresh.Snapshot{
		Store:       store,
		Fingerprint: "abc123",
		BuiltAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Source:      "mud.config.yaml",
	}
}

func execute(t *testing.T, schema graphql.Schema, query string, variables map[string]interface{}) *graphql.Result {
	t.Helper()
	return graphql.Do(graphql.Params{
		Schema:         schema,
		RequestString:  query,
		VariableValues: variables,
		Context:        context.Background(),
	})
}

// decode round-trips the result data through JSON for easy assertions.
func decode(t *testing.T, result *graphql.Result) map[string]interface{} {
	t.Helper()
	require.Empty(t, result.Errors)
	raw, err := json.Marshal(result.Data)
	require.NoError(t, err)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &data))
	return data
}

func TestNewSchema_RequiresSource(t *testing.T) {
	_, err := NewSchema(Config{})
	assert.Error(t, err)
}

func TestNewSchema_AdapterFieldsOptional(t *testing.T) {
	schema, err := NewSchema(Config{Source: staticSource{}})
	require.NoError(t, err)
	fields := schema.QueryType().Fields()
	assert.Contains(t, fields, "store")
	assert.NotContains(t, fields, "logs")
	assert.NotContains(t, fields, "findAll")

	schema, err = NewSchema(Config{Source: staticSource{}, Adapter: &fakeAdapter{}})
	require.NoError(t, err)
	fields = schema.QueryType().Fields()
	assert.Contains(t, fields, "logs")
	require.Contains(t, fields, "findAll")
	assert.Equal(t, "Use logs.", fields["findAll"].DeprecationReason)
}

func TestQuery_Store(t *testing.T) {
	schema, err := NewSchema(Config{Source: staticSource{snapshot: testSnapshot(t)}})
	require.NoError(t, err)

	data := decode(t, execute(t, schema, `{
		store { sourceDirectory fingerprint builtAt source codegen { outputDirectory namespaceDirectories } }
	}`, nil))

	store := data["store"].(map[string]interface{})
	assert.Equal(t, "src", store["sourceDirectory"])
	assert.Equal(t, "abc123", store["fingerprint"])
	assert.Equal(t, "2024-05-01T12:00:00Z", store["builtAt"])
	assert.Equal(t, "mud.config.yaml", store["source"])
	codegen := store["codegen"].(map[string]interface{})
	assert.Equal(t, "codegen", codegen["outputDirectory"])
	assert.Equal(t, true, codegen["namespaceDirectories"])
}

func TestQuery_StoreDocument(t *testing.T) {
	schema, err := NewSchema(Config{Source: staticSource{snapshot: testSnapshot(t)}})
	require.NoError(t, err)

	data := decode(t, execute(t, schema, `{ store { document } }`, nil))
	doc := data["store"].(map[string]interface{})["document"].(string)

	var store storeconfig.Store
	require.NoError(t, json.Unmarshal([]byte(doc), &store))
	assert.Contains(t, store.Tables, storeconfig.ResourceID("App__Counter"))
}

func TestQuery_Namespaces(t *testing.T) {
	schema, err := NewSchema(Config{Source: staticSource{snapshot: testSnapshot(t)}})
	require.NoError(t, err)

	data := decode(t, execute(t, schema, `{ namespaces { label namespace tables { resourceId label } } }`, nil))
	namespaces := data["namespaces"].([]interface{})
	require.Len(t, namespaces, 2)

	root := namespaces[0].(map[string]interface{})
	assert.Equal(t, "", root["namespace"])
	assert.Len(t, root["tables"], 1)

	app := namespaces[1].(map[string]interface{})
	assert.Equal(t, "App", app["label"])
	tables := app["tables"].([]interface{})
	require.Len(t, tables, 2)
	assert.Equal(t, "App__Counter", tables[0].(map[string]interface{})["resourceId"])
	assert.Equal(t, "Position", tables[1].(map[string]interface{})["label"])
}

func TestQuery_NamespaceByLabel(t *testing.T) {
	schema, err := NewSchema(Config{Source: staticSource{snapshot: testSnapshot(t)}})
	require.NoError(t, err)

	data := decode(t, execute(t, schema, `{ app: namespace(label: "App") { namespace } missing: namespace(label: "Nope") { namespace } }`, nil))
	assert.Equal(t, map[string]interface{}{"namespace": "App"}, data["app"])
	assert.Nil(t, data["missing"])
}

func TestQuery_Table(t *testing.T) {
	schema, err := NewSchema(Config{Source: staticSource{snapshot: testSnapshot(t)}})
	require.NoError(t, err)

	data := decode(t, execute(t, schema, `{
		table(id: "App__Position") {
			type namespaceLabel key
			schema { name type internalType }
			codegen { tableIdArgument storeArgument dataStruct }
			deploy { disabled }
		}
	}`, nil))

	table := data["table"].(map[string]interface{})
	assert.Equal(t, "table", table["type"])
	assert.Equal(t, "App", table["namespaceLabel"])
	assert.Equal(t, []interface{}{"player"}, table["key"])
	assert.Equal(t, []interface{}{
		map[string]interface{}{"name": "player", "type": "bytes32", "internalType": "bytes32"},
		map[string]interface{}{"name": "facing", "type": "uint8", "internalType": "Direction"},
	}, table["schema"])
	assert.Equal(t, map[string]interface{}{"disabled": false}, table["deploy"])

	data = decode(t, execute(t, schema, `{ table(id: "App__Missing") { label } }`, nil))
	assert.Nil(t, data["table"])
}

func TestQuery_TablesAndEnums(t *testing.T) {
	schema, err := NewSchema(Config{Source: staticSource{snapshot: testSnapshot(t)}})
	require.NoError(t, err)

	data := decode(t, execute(t, schema, `{
		all: tables { resourceId }
		app: tables(namespace: "App") { resourceId }
		enums { name members }
		userTypes { name }
	}`, nil))

	assert.Equal(t, []interface{}{
		map[string]interface{}{"resourceId": "App__Counter"},
		map[string]interface{}{"resourceId": "App__Position"},
		map[string]interface{}{"resourceId": "Config"},
	}, data["all"])
	assert.Len(t, data["app"], 2)
	assert.Equal(t, []interface{}{
		map[string]interface{}{"name": "Direction", "members": []interface{}{"North", "South"}},
	}, data["enums"])
	assert.Empty(t, data["userTypes"])
}

func TestQuery_NotReady(t *testing.T) {
	schema, err := NewSchema(Config{Source: staticSource{}})
	require.NoError(t, err)

	result := execute(t, schema, `{ tables { resourceId } }`, nil)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Message, ErrNotReady.Error())
}

func TestQuery_Logs(t *testing.T) {
	adapter := &fakeAdapter{block: &queryadapter.StorageAdapterBlock{
		BlockNumber: ptr(uint64(18446744073709551615)),
		Logs: []queryadapter.StoreEventLog{{
			EventName:   queryadapter.EventSetRecord,
			Address:     "0xabc",
			TableID:     "App__Counter",
			KeyTuple:    []string{},
			StaticData:  "0x01",
			BlockNumber: 42,
		}},
	}}
	schema, err := NewSchema(Config{Source: staticSource{snapshot: testSnapshot(t)}, Adapter: adapter})
	require.NoError(t, err)

	data := decode(t, execute(t, schema, `query($filters: [SyncFilterInput!]) {
		logs(chainId: "31337", address: "0xABC", filters: $filters) {
			blockNumber
			logs { eventName tableId keyTuple staticData blockNumber }
		}
	}`, map[string]interface{}{
		"filters": []interface{}{
			map[string]interface{}{"tableId": "App__Position", "key0": "0x01"},
			map[string]interface{}{"tableId": "App__Counter"},
		},
	}))

	logs := data["logs"].(map[string]interface{})
	assert.Equal(t, "18446744073709551615", logs["blockNumber"])
	entries := logs["logs"].([]interface{})
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]interface{})
	assert.Equal(t, "Store_SetRecord", entry["eventName"])
	assert.Equal(t, "42", entry["blockNumber"])
	assert.Equal(t, []interface{}{}, entry["keyTuple"])

	require.Len(t, adapter.requests, 1)
	assert.Equal(t, queryadapter.LogsRequest{
		ChainID: 31337,
		Address: ptr("0xABC"),
		Filters: []queryadapter.SyncFilter{
			{TableID: "App__Position", Key0: ptr("0x01")},
			{TableID: "App__Counter"},
		},
	}, adapter.requests[0])
}

func TestQuery_LogsUnindexedChain(t *testing.T) {
	adapter := &fakeAdapter{block: &queryadapter.StorageAdapterBlock{Logs: []queryadapter.StoreEventLog{}}}
	schema, err := NewSchema(Config{Source: staticSource{}, Adapter: adapter})
	require.NoError(t, err)

	data := decode(t, execute(t, schema, `{ logs(chainId: 5) { blockNumber logs { tableId } } }`, nil))
	logs := data["logs"].(map[string]interface{})
	assert.Nil(t, logs["blockNumber"])
	assert.Equal(t, []interface{}{}, logs["logs"])
}

func TestQuery_LogsAdapterError(t *testing.T) {
	adapter := &fakeAdapter{err: errors.New("indexer unavailable")}
	schema, err := NewSchema(Config{Source: staticSource{}, Adapter: adapter})
	require.NoError(t, err)

	result := execute(t, schema, `{ logs(chainId: 1) { blockNumber } }`, nil)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Message, "indexer unavailable")
}

func TestQuery_FindAll(t *testing.T) {
	snap := testSnapshot(t)
	counter, ok := snap.Store.Table("App__Counter")
	require.True(t, ok)

	adapter := &fakeAdapter{result: &queryadapter.FindAllResult{
		Tables: []queryadapter.TableWithRecords{
			{TableID: "App__Counter", Table: counter, Records: []queryadapter.Record{{Address: "0xabc", KeyTuple: []string{}}}},
			{TableID: "Unknown", Records: []queryadapter.Record{}},
		},
	}}
	schema, err := NewSchema(Config{Source: staticSource{snapshot: snap}, Adapter: adapter})
	require.NoError(t, err)

	data := decode(t, execute(t, schema, `{
		findAll(chainId: 5) { blockNumber tables { tableId table { label } records { address } } }
	}`, nil))

	result := data["findAll"].(map[string]interface{})
	assert.Nil(t, result["blockNumber"])
	tables := result["tables"].([]interface{})
	require.Len(t, tables, 2)
	assert.Equal(t, map[string]interface{}{"label": "Counter"}, tables[0].(map[string]interface{})["table"])
	assert.Nil(t, tables[1].(map[string]interface{})["table"])
	assert.Equal(t, uint64(5), adapter.requests[0].ChainID)
}

func TestLogsRequestFromArgs_Errors(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing chain", map[string]interface{}{}},
		{"negative chain", map[string]interface{}{"chainId": -1}},
		{"filter not an object", map[string]interface{}{"chainId": uint64(1), "filters": []interface{}{"App__Counter"}}},
		{"filter without table", map[string]interface{}{"chainId": uint64(1), "filters": []interface{}{map[string]interface{}{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := logsRequestFromArgs(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestCoerceUint64(t *testing.T) {
	tests := []struct {
		input interface{}
		want  uint64
		ok    bool
	}{
		{uint64(7), 7, true},
		{7, 7, true},
		{int64(-1), 0, false},
		{float64(12), 12, true},
		{1.5, 0, false},
		{"18446744073709551615", 18446744073709551615, true},
		{"abc", 0, false},
		{(*uint64)(nil), 0, false},
		{ptr(uint64(3)), 3, true},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := coerceUint64(tt.input)
		assert.Equal(t, tt.ok, ok, "%v", tt.input)
		if tt.ok {
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestNewHandler(t *testing.T) {
	schema, err := NewSchema(Config{Source: staticSource{snapshot: testSnapshot(t)}})
	require.NoError(t, err)
	h := NewHandler(&schema, false)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ table(id: \"Config\") { label } }"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"label": "Config"`)
}
