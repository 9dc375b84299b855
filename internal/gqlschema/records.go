package gqlschema

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"storecfg/internal/queryadapter"
	"storecfg/internal/storeconfig"
)

func (b *builder) addAdapterFields(fields graphql.Fields) {
	syncFilterInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:        "SyncFilterInput",
		Description: "Selects one table, optionally narrowed by the first two key tuple elements.",
		Fields: graphql.InputObjectConfigFieldMap{
			"tableId": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
			"key0":    &graphql.InputObjectFieldConfig{Type: graphql.String},
			"key1":    &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})

	logType := graphql.NewObject(graphql.ObjectConfig{
		Name: "StoreEventLog",
		Fields: graphql.Fields{
			"eventName":      &graphql.Field{Type: nonNullString()},
			"address":        &graphql.Field{Type: nonNullString()},
			"tableId":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"keyTuple":       &graphql.Field{Type: nonNullStringList()},
			"staticData":     &graphql.Field{Type: nonNullString()},
			"encodedLengths": &graphql.Field{Type: nonNullString()},
			"dynamicData":    &graphql.Field{Type: nonNullString()},
			"blockNumber":    &graphql.Field{Type: graphql.NewNonNull(bigIntScalar)},
		},
	})

	blockType := graphql.NewObject(graphql.ObjectConfig{
		Name: "StorageAdapterBlock",
		Fields: graphql.Fields{
			"blockNumber": &graphql.Field{Type: bigIntScalar},
			"logs":        &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(logType)))},
		},
	})

	recordType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Record",
		Fields: graphql.Fields{
			"address":        &graphql.Field{Type: nonNullString()},
			"keyTuple":       &graphql.Field{Type: nonNullStringList()},
			"staticData":     &graphql.Field{Type: nonNullString()},
			"encodedLengths": &graphql.Field{Type: nonNullString()},
			"dynamicData":    &graphql.Field{Type: nonNullString()},
		},
	})

	tableRecordsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TableWithRecords",
		Fields: graphql.Fields{
			"tableId": &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"table":   &graphql.Field{Type: b.tableType},
			"records": &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(recordType)))},
		},
	})

	findAllType := graphql.NewObject(graphql.ObjectConfig{
		Name: "FindAllResult",
		Fields: graphql.Fields{
			"blockNumber": &graphql.Field{Type: bigIntScalar},
			"tables":      &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(tableRecordsType)))},
		},
	})

	args := graphql.FieldConfigArgument{
		"chainId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(bigIntScalar)},
		"address": &graphql.ArgumentConfig{Type: graphql.String},
		"filters": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.NewNonNull(syncFilterInput))},
	}

	fields["logs"] = &graphql.Field{
		Type:        graphql.NewNonNull(blockType),
		Description: "Live records replayed as Store_SetRecord logs at the indexer's latest block.",
		Args:        args,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			req, err := logsRequestFromArgs(p.Args)
			if err != nil {
				return nil, err
			}
			return b.cfg.Adapter.GetLogs(p.Context, req)
		},
	}
	fields["findAll"] = &graphql.Field{
		Type:              graphql.NewNonNull(findAllType),
		Args:              args,
		DeprecationReason: "Use logs.",
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			req, err := logsRequestFromArgs(p.Args)
			if err != nil {
				return nil, err
			}
			return b.cfg.Adapter.FindAll(p.Context, req)
		},
	}
}

func logsRequestFromArgs(args map[string]interface{}) (queryadapter.LogsRequest, error) {
	var req queryadapter.LogsRequest
	chainID, ok := coerceUint64(args["chainId"])
	if !ok {
		return req, fmt.Errorf("chainId must be an unsigned 64-bit integer")
	}
	req.ChainID = chainID
	if address, ok := args["address"].(string); ok {
		req.Address = &address
	}
	rawFilters, _ := args["filters"].([]interface{})
	for i, raw := range rawFilters {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return req, fmt.Errorf("filters[%d] must be an object", i)
		}
		tableID, _ := m["tableId"].(string)
		if tableID == "" {
			return req, fmt.Errorf("filters[%d].tableId is required", i)
		}
		filter := queryadapter.SyncFilter{TableID: storeconfig.ResourceID(tableID)}
		if key0, ok := m["key0"].(string); ok {
			filter.Key0 = &key0
		}
		if key1, ok := m["key1"].(string); ok {
			filter.Key1 = &key1
		}
		req.Filters = append(req.Filters, filter)
	}
	return req, nil
}
