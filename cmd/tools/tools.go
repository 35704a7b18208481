//go:build tools

// Package tools tracks dependencies on binaries not otherwise referenced by
// the codebase, per luma-pharos's tools.go (see DESIGN.md).
// https://github.com/golang/go/wiki/Modules#how-can-i-track-tool-dependencies-for-a-module
package tools

import (
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
	_ "github.com/onsi/ginkgo/v2/ginkgo"
)
