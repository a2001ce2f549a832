// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package cluster

import (
	"path"
	"strings"
)

// Architectural layers a file can belong to.
const (
	LayerModels   = "models"
	LayerServices = "services"
	LayerAPI      = "api"
	LayerTests    = "tests"
	LayerUtils    = "utils"
	LayerWorkers  = "workers"
	LayerUnknown  = "unknown"
)

// FileContext is the architectural classification of one file.
type FileContext struct {
	Dir      string
	FileName string
	Layer    string
	IsTest   bool
}

var layerDirNames = map[string]string{
	"model": LayerModels, "models": LayerModels, "entities": LayerModels,
	"entity": LayerModels, "schemas": LayerModels, "schema": LayerModels,
	"service": LayerServices, "services": LayerServices, "usecase": LayerServices,
	"usecases": LayerServices, "domain": LayerServices,
	"api": LayerAPI, "handlers": LayerAPI, "handler": LayerAPI,
	"routes": LayerAPI, "router": LayerAPI, "controllers": LayerAPI,
	"controller": LayerAPI, "views": LayerAPI, "endpoints": LayerAPI,
	"test": LayerTests, "tests": LayerTests, "testdata": LayerTests,
	"spec": LayerTests, "__tests__": LayerTests, "e2e": LayerTests,
	"util": LayerUtils, "utils": LayerUtils, "helpers": LayerUtils,
	"helper": LayerUtils, "common": LayerUtils, "shared": LayerUtils,
	"lib": LayerUtils, "pkg_utils": LayerUtils, "tools": LayerUtils,
	"worker": LayerWorkers, "workers": LayerWorkers, "jobs": LayerWorkers,
	"tasks": LayerWorkers, "cron": LayerWorkers, "queue": LayerWorkers,
}

var testFileSuffixes = []string{"_test.go", "_test.py", ".test.js", ".test.ts", ".spec.js", ".spec.ts"}

// boilerplateNames are framework-convention symbols expected to look
// like outliers without being dead code.
var boilerplateNames = map[string]bool{
	"main": true, "init": true, "setup": true, "teardown": true,
	"setUp": true, "tearDown": true, "__init__": true, "__main__": true,
	"String": true, "Error": true, "MarshalJSON": true, "UnmarshalJSON": true,
	"TableName": true, "Value": true, "Scan": true,
}

// ClassifyFile derives the architectural context of a path.
func ClassifyFile(filePath string) FileContext {
	dir := path.Dir(filePath)
	base := path.Base(filePath)
	ctx := FileContext{
		Dir:      dir,
		FileName: base,
		Layer:    LayerUnknown,
	}

	lowerBase := strings.ToLower(base)
	for _, suffix := range testFileSuffixes {
		if strings.HasSuffix(lowerBase, suffix) {
			ctx.IsTest = true
			break
		}
	}
	if strings.HasPrefix(lowerBase, "test_") {
		ctx.IsTest = true
	}

	for _, segment := range strings.Split(dir, "/") {
		if layer, ok := layerDirNames[strings.ToLower(segment)]; ok {
			ctx.Layer = layer
			if layer == LayerTests {
				ctx.IsTest = true
			}
			// The deepest matching segment wins, so keep scanning.
		}
	}
	if ctx.IsTest {
		ctx.Layer = LayerTests
	}
	return ctx
}

// SuppressOutlier reports whether an outlier point is an expected one
// (test code, utility code, framework boilerplate) and must stay out of
// the dead-code set.
func SuppressOutlier(ctx FileContext, functionName string) bool {
	if ctx.IsTest || ctx.Layer == LayerTests || ctx.Layer == LayerUtils {
		return true
	}
	if boilerplateNames[functionName] {
		return true
	}
	if strings.HasPrefix(functionName, "Test") || strings.HasPrefix(functionName, "Benchmark") {
		return true
	}
	return false
}
