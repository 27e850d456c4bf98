// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"

	"github.com/hwkim3330/velocitydrivesp-support/internal/schemaload"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/sid"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/yang"
	"github.com/spf13/cobra"
)

// schemaFlags bundles the --yang/--sid/--module flags every command that
// touches a YANG schema shares.
type schemaFlags struct {
	yangDirs []string
	sidFiles []string
	module   string
}

func (f *schemaFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.yangDirs, "yang", nil, "directory to search for .yang module files (repeatable)")
	cmd.Flags().StringArrayVar(&f.sidFiles, "sid", nil, "RFC 9595 .sid file to apply (repeatable)")
	cmd.Flags().StringVar(&f.module, "module", "", "module name to operate on (required if more than one is loaded)")
}

// resolve loads the schema set and selects the target module's Context.
func (f *schemaFlags) resolve(logger *slog.Logger) (*yang.Schema, *sid.Context, error) {
	set, err := schemaload.Load(f.yangDirs, f.sidFiles)
	if err != nil {
		return nil, nil, usageError(err)
	}
	schema, err := set.Select(f.module)
	if err != nil {
		return nil, nil, usageError(err)
	}
	return schema, sid.NewContext(schema, logger), nil
}
