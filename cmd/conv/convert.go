// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hwkim3330/velocitydrivesp-support/internal/convio"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/sid"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/yang"
	"github.com/spf13/cobra"
)

// attachConvertAction wires the default `conv [flags] <file>` behaviour
// onto root directly — there is no "convert" keyword on the command
// line, only flags and a positional file.
func attachConvertAction(cmd *cobra.Command) {
	var (
		schemaFl   schemaFlags
		inputFmt   string
		outputFmt  string
		contentFl  string
		schemaPath string
		decodeDir  bool
	)

	cmd.Args = cobra.ExactArgs(1)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		in, err := convio.ParseFormat(inputFmt)
		if err != nil {
			return usageError(err)
		}
		out, err := convio.ParseFormat(outputFmt)
		if err != nil {
			return usageError(err)
		}
		format, err := parseContentFormat(contentFl)
		if err != nil {
			return usageError(err)
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		schema, ctx, err := schemaFl.resolve(logger)
		if err != nil {
			return err
		}
		node, err := resolveNode(schema, schemaPath)
		if err != nil {
			return usageError(err)
		}

		raw, err := readInput(args[0])
		if err != nil {
			return usageError(err)
		}

		value, err := convio.Decode(raw, in)
		if err != nil {
			return err
		}

		var result any
		if decodeDir {
			result, err = sid.Decode(ctx, node, value, format)
		} else {
			result, err = sid.Encode(ctx, node, value, format)
		}
		if err != nil {
			return err
		}

		encoded, err := convio.Encode(result, out)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(encoded)
		return err
	}

	schemaFl.register(cmd)
	cmd.Flags().StringVar(&inputFmt, "input", "json", "input format: yaml, json, or cbor")
	cmd.Flags().StringVar(&outputFmt, "output", "yaml", "output format: yaml, json, or cbor")
	cmd.Flags().StringVar(&contentFl, "content", "yang", "content format: yang, fetch, ipatch, get, put, or post")
	cmd.Flags().StringVar(&schemaPath, "path", "", "schema path to convert, e.g. interfaces/interface (default: module root)")
	cmd.Flags().BoolVar(&decodeDir, "decode", false, "decode (CBOR-shaped -> JSON-shaped) instead of encode")
}

func parseContentFormat(s string) (sid.ContentFormat, error) {
	switch strings.ToLower(s) {
	case "yang":
		return sid.FormatYANG, nil
	case "get":
		return sid.FormatGet, nil
	case "put":
		return sid.FormatPut, nil
	case "fetch":
		return sid.FormatFetch, nil
	case "ipatch":
		return sid.FormatIPatch, nil
	case "post":
		return sid.FormatPost, nil
	default:
		return 0, fmt.Errorf("conv: unknown --content %q", s)
	}
}

func resolveNode(schema *yang.Schema, path string) (yang.NodeID, error) {
	if path == "" {
		return schema.Root(), nil
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	id, ok := schema.ResolveSchemaPath(schema.Root(), segs)
	if !ok {
		return yang.NoNode, fmt.Errorf("conv: schema path %q does not resolve", path)
	}
	return id, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
