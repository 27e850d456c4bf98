// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hwkim3330/velocitydrivesp-support/internal/convio"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/blockwise"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/carrier"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/coap"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/driver"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/sid"
	"github.com/spf13/cobra"
)

// liveOp describes one of the live device subcommands: unlike the pure
// format conversion above, these open a carrier and drive the block-wise
// CoAP engine directly against a running device.
type liveOp struct {
	name       string
	method     uint8
	hasBody    bool
	contentFmt sid.ContentFormat
}

var liveOps = []liveOp{
	{name: "get", method: coap.GET, hasBody: false, contentFmt: sid.FormatGet},
	{name: "put", method: coap.PUT, hasBody: true, contentFmt: sid.FormatPut},
	{name: "post", method: coap.POST, hasBody: true, contentFmt: sid.FormatPost},
	{name: "fetch", method: coap.FETCH, hasBody: true, contentFmt: sid.FormatFetch},
	{name: "ipatch", method: coap.IPATCH, hasBody: true, contentFmt: sid.FormatIPatch},
}

func newLiveCmds() []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(liveOps))
	for _, op := range liveOps {
		cmds = append(cmds, newLiveCmd(op))
	}
	return cmds
}

func newLiveCmd(op liveOp) *cobra.Command {
	var (
		schemaFl   schemaFlags
		device     string
		uriPath    string
		schemaPath string
		bodyFile   string
		outputFmt  string
	)

	use := op.name + " --device <carrier-uri> --uri </path>"
	if op.hasBody {
		use += " <body-file>"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: "Issue a CoAP " + op.name + " against a live device",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if device == "" {
				return usageError(errFlagRequired("--device"))
			}
			if uriPath == "" {
				return usageError(errFlagRequired("--uri"))
			}

			logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

			var payload []byte
			if op.hasBody {
				bodyPath := bodyFile
				if len(args) == 1 {
					bodyPath = args[0]
				}
				if bodyPath == "" {
					return usageError(errFlagRequired("<body-file>"))
				}
				raw, err := readInput(bodyPath)
				if err != nil {
					return usageError(err)
				}

				schemaTree, ctx, err := schemaFl.resolve(logger)
				if err != nil {
					return err
				}
				node, err := resolveNode(schemaTree, schemaPath)
				if err != nil {
					return usageError(err)
				}
				value, err := convio.Decode(raw, convio.FormatJSON)
				if err != nil {
					return err
				}
				encoded, err := sid.Encode(ctx, node, value, op.contentFmt)
				if err != nil {
					return err
				}
				cborBody, err := convio.Encode(encoded, convio.FormatCBOR)
				if err != nil {
					return err
				}
				payload = cborBody
			}

			c, err := carrier.Open(device)
			if err != nil {
				return deviceError(err)
			}
			defer c.Close()

			d := driver.New(c, logger)
			defer d.Close()

			outcome, err := d.Do(blockwise.Request{
				Method:  op.method,
				URI:     uriPath,
				Payload: payload,
			})
			if err != nil {
				return deviceError(err)
			}

			out, err := convio.ParseFormat(outputFmt)
			if err != nil {
				return usageError(err)
			}

			var result any = outcome.Payload
			if len(outcome.Payload) > 0 {
				schemaTree, ctx, err := schemaFl.resolve(logger)
				if err != nil {
					return err
				}
				node, err := resolveNode(schemaTree, schemaPath)
				if err != nil {
					return usageError(err)
				}
				decoded, err := convio.Decode(outcome.Payload, convio.FormatCBOR)
				if err != nil {
					return err
				}
				result, err = sid.Decode(ctx, node, decoded, op.contentFmt)
				if err != nil {
					return err
				}
			}

			encoded, err := convio.Encode(result, out)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(encoded)
			return err
		},
	}

	schemaFl.register(cmd)
	cmd.Flags().StringVar(&device, "device", "", "carrier URI: termhub://host:port, telnet://host:port, or a serial device path")
	cmd.Flags().StringVar(&uriPath, "uri", "", "CoAP request URI path")
	cmd.Flags().StringVar(&schemaPath, "path", "", "schema path matching --uri, e.g. interfaces/interface (default: module root)")
	cmd.Flags().StringVar(&outputFmt, "output", "yaml", "output format: yaml, json, or cbor")
	if op.hasBody {
		cmd.Flags().StringVar(&bodyFile, "body", "", "JSON request body file (or pass it as the positional argument)")
	}

	return cmd
}

func errFlagRequired(name string) error {
	return fmt.Errorf("%s is required", name)
}
