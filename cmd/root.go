// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package cmd wires the cobra command tree the basedb binary exposes.
package cmd

import (
	"github.com/spf13/cobra"
)

// RootCommand is the base CLI command that every subcommand attaches to.
var RootCommand = &cobra.Command{
	Use:   "basedb",
	Short: "BaseDB analytical database server",
	Long:  "A columnar analytics engine speaking a ClickHouse-compatible wire protocol.",
}
