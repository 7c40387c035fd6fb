// Package plugin loads importers from Go shared libraries built with
// -buildmode=plugin.
//
// A plugin exports two symbols:
//
//	var AssetImporterABI = "1.0.0"
//	func AssetImporters() []simpleasset.Importer
package plugin

import (
	"errors"
	"fmt"
	goplugin "plugin"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

const (
	// ABISymbol names the exported ABI version string
	ABISymbol = "AssetImporterABI"
	// ImportersSymbol names the exported importer constructor
	ImportersSymbol = "AssetImporters"
)

// Open loads the plugin at path and returns its importers after validating
// its ABI.
func Open(path string) ([]simpleasset.Importer, error) {
	p, err := goplugin.Open(path)
	if err != nil {
		return nil, &simpleasset.PluginError{Path: path, Reason: "cannot open shared library", Err: err}
	}
	return fromSymbols(path, func(name string) (any, error) {
		return p.Lookup(name)
	})
}

func fromSymbols(path string, lookup func(string) (any, error)) ([]simpleasset.Importer, error) {
	sym, err := lookup(ABISymbol)
	if err != nil {
		return nil, &simpleasset.PluginError{Path: path, Reason: "missing " + ABISymbol, Err: err}
	}
	var abi string
	switch v := sym.(type) {
	case *string:
		abi = *v
	case string:
		abi = v
	default:
		return nil, &simpleasset.PluginError{Path: path, Reason: fmt.Sprintf("%s has type %T, want string", ABISymbol, sym)}
	}
	if err := simpleasset.CheckABI(abi); err != nil {
		return nil, &simpleasset.PluginError{Path: path, Reason: "ABI mismatch", Err: err}
	}

	sym, err = lookup(ImportersSymbol)
	if err != nil {
		return nil, &simpleasset.PluginError{Path: path, Reason: "missing " + ImportersSymbol, Err: err}
	}
	constructor, ok := sym.(func() []simpleasset.Importer)
	if !ok {
		return nil, &simpleasset.PluginError{Path: path, Reason: fmt.Sprintf("%s has type %T, want func() []simpleasset.Importer", ImportersSymbol, sym)}
	}

	return construct(path, constructor)
}

// construct runs the plugin's constructor and checks what it returns. A
// panic in plugin code rejects the plugin instead of crashing the host.
func construct(path string, constructor func() []simpleasset.Importer) (importers []simpleasset.Importer, err error) {
	defer func() {
		if r := recover(); r != nil {
			importers = nil
			err = &simpleasset.PluginError{Path: path, Reason: "plugin panicked", Err: fmt.Errorf("%v", r)}
		}
	}()

	importers = constructor()
	if len(importers) == 0 {
		return nil, &simpleasset.PluginError{Path: path, Reason: "plugin exports no importers"}
	}
	for i, imp := range importers {
		if imp == nil {
			return nil, &simpleasset.PluginError{Path: path, Reason: fmt.Sprintf("importer %d is nil", i)}
		}
		if imp.Name() == "" {
			return nil, &simpleasset.PluginError{Path: path, Reason: fmt.Sprintf("importer %d has no name", i), Err: errors.New("empty name")}
		}
	}
	return importers, nil
}
