package storeinput

import (
	"gopkg.in/yaml.v3"

	"storecfg/internal/storeconfig"
)

func decodeStore(node *yaml.Node) (storeconfig.StoreInput, error) {
	var in storeconfig.StoreInput
	entries, err := mappingEntries(node, "")
	if err != nil {
		return in, err
	}
	for _, e := range entries {
		path := e.key
		switch e.key {
		case "namespace":
			in.Namespace, err = decodeStringPtr(e.value, path)
		case "tables":
			in.Tables, err = decodeTables(e.value, path)
		case "deploy":
			in.Deploy, err = decodeDeploy(e.value, path)
		case "namespaces":
			in.Namespaces, err = decodeNamespaces(e.value, path)
		case "sourceDirectory":
			in.SourceDirectory, err = decodeString(e.value, path)
		case "userTypes":
			in.UserTypes, err = decodeUserTypes(e.value, path)
		case "enums":
			in.Enums, err = decodeEnums(e.value, path)
		case "codegen":
			in.Codegen, err = decodeCodegen(e.value, path)
		default:
			err = unknownKey(e, "")
		}
		if err != nil {
			return storeconfig.StoreInput{}, err
		}
	}
	return in, nil
}

func decodeNamespaces(node *yaml.Node, path string) ([]storeconfig.NamespaceInput, error) {
	entries, err := mappingEntries(node, path)
	if err != nil {
		return nil, err
	}
	namespaces := make([]storeconfig.NamespaceInput, 0, len(entries))
	for _, e := range entries {
		ns, err := decodeNamespace(e.key, e.value, join(path, e.key))
		if err != nil {
			return nil, err
		}
		namespaces = append(namespaces, ns)
	}
	return namespaces, nil
}

func decodeNamespace(label string, node *yaml.Node, path string) (storeconfig.NamespaceInput, error) {
	ns := storeconfig.NamespaceInput{Label: label}
	entries, err := mappingEntries(node, path)
	if err != nil {
		return ns, err
	}
	for _, e := range entries {
		p := join(path, e.key)
		switch e.key {
		case "namespace":
			ns.Namespace, err = decodeStringPtr(e.value, p)
		case "tables":
			ns.Tables, err = decodeTables(e.value, p)
		case "codegen":
			ns.Codegen, err = decodeTableCodegen(e.value, p)
		case "deploy":
			ns.Deploy, err = decodeDeploy(e.value, p)
		default:
			err = unknownKey(e, path)
		}
		if err != nil {
			return ns, err
		}
	}
	return ns, nil
}

func decodeUserTypes(node *yaml.Node, path string) ([]storeconfig.UserTypeInput, error) {
	entries, err := mappingEntries(node, path)
	if err != nil {
		return nil, err
	}
	userTypes := make([]storeconfig.UserTypeInput, 0, len(entries))
	for _, e := range entries {
		p := join(path, e.key)
		ut := storeconfig.UserTypeInput{Name: e.key}
		fields, err := mappingEntries(e.value, p)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			switch f.key {
			case "type":
				ut.Type, err = decodeString(f.value, join(p, f.key))
			case "filePath":
				ut.FilePath, err = decodeString(f.value, join(p, f.key))
			default:
				err = unknownKey(f, p)
			}
			if err != nil {
				return nil, err
			}
		}
		userTypes = append(userTypes, ut)
	}
	return userTypes, nil
}

func decodeEnums(node *yaml.Node, path string) ([]storeconfig.EnumInput, error) {
	entries, err := mappingEntries(node, path)
	if err != nil {
		return nil, err
	}
	enums := make([]storeconfig.EnumInput, 0, len(entries))
	for _, e := range entries {
		members, err := decodeStrings(e.value, join(path, e.key))
		if err != nil {
			return nil, err
		}
		enums = append(enums, storeconfig.EnumInput{Name: e.key, Members: members})
	}
	return enums, nil
}

func decodeCodegen(node *yaml.Node, path string) (storeconfig.CodegenInput, error) {
	var c storeconfig.CodegenInput
	entries, err := mappingEntries(node, path)
	if err != nil {
		return c, err
	}
	for _, e := range entries {
		p := join(path, e.key)
		switch e.key {
		case "storeImportPath":
			c.StoreImportPath, err = decodeStringPtr(e.value, p)
		case "userTypesFilename":
			c.UserTypesFilename, err = decodeStringPtr(e.value, p)
		case "outputDirectory":
			c.OutputDirectory, err = decodeStringPtr(e.value, p)
		case "indexFilename":
			c.IndexFilename, err = decodeStringPtr(e.value, p)
		case "namespaceDirectories":
			c.NamespaceDirectories, err = decodeBoolPtr(e.value, p)
		case "table":
			c.Table, err = decodeTableCodegen(e.value, p)
		default:
			err = unknownKey(e, path)
		}
		if err != nil {
			return c, err
		}
	}
	return c, nil
}

func decodeTableCodegen(node *yaml.Node, path string) (storeconfig.TableCodegenInput, error) {
	var c storeconfig.TableCodegenInput
	entries, err := mappingEntries(node, path)
	if err != nil {
		return c, err
	}
	for _, e := range entries {
		p := join(path, e.key)
		switch e.key {
		case "outputDirectory":
			c.OutputDirectory, err = decodeStringPtr(e.value, p)
		case "tableIdArgument":
			c.TableIDArgument, err = decodeBoolPtr(e.value, p)
		case "storeArgument":
			c.StoreArgument, err = decodeBoolPtr(e.value, p)
		case "dataStruct":
			c.DataStruct, err = decodeBoolPtr(e.value, p)
		default:
			err = unknownKey(e, path)
		}
		if err != nil {
			return c, err
		}
	}
	return c, nil
}

func decodeDeploy(node *yaml.Node, path string) (storeconfig.TableDeployInput, error) {
	var d storeconfig.TableDeployInput
	entries, err := mappingEntries(node, path)
	if err != nil {
		return d, err
	}
	for _, e := range entries {
		switch e.key {
		case "disabled":
			d.Disabled, err = decodeBoolPtr(e.value, join(path, e.key))
		default:
			err = unknownKey(e, path)
		}
		if err != nil {
			return d, err
		}
	}
	return d, nil
}
