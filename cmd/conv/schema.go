// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/hwkim3330/velocitydrivesp-support/internal/jsonschema"
	"github.com/spf13/cobra"
)

func newSchemaCmd() *cobra.Command {
	var (
		schemaFl   schemaFlags
		contentFl  string
		configOnly bool
		schemaPath string
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Emit the draft-07 JSON Schema for a set of YANG inputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseContentFormat(contentFl)
			if err != nil {
				return usageError(err)
			}

			logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
			schemaTree, ctx, err := schemaFl.resolve(logger)
			if err != nil {
				return err
			}
			node, err := resolveNode(schemaTree, schemaPath)
			if err != nil {
				return usageError(err)
			}

			out := jsonschema.Emit(schemaTree, node, jsonschema.Options{
				Content:         format,
				ConfigOnly:      configOnly,
				LocalIdentities: ctx.Identities,
			})

			raw, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			raw = append(raw, '\n')
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}

	schemaFl.register(cmd)
	cmd.Flags().StringVar(&contentFl, "content", "yang", "content format: yang, fetch, ipatch, get, put, or post")
	cmd.Flags().BoolVar(&configOnly, "config-only", false, "omit non-configuration (status) nodes, per put/ipatch semantics")
	cmd.Flags().StringVar(&schemaPath, "path", "", "schema path to emit, e.g. interfaces/interface (default: module root)")

	return cmd
}
