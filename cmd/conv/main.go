// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Command conv converts between YAML, JSON, and CBOR encodings of a YANG
// data tree, and drives a live device through pkg/driver for get/put/
// post/fetch/ipatch operations.
package main

import (
	"errors"
	"fmt"
	"os"

	cerrors "github.com/hwkim3330/velocitydrivesp-support/pkg/errors"
	"github.com/spf13/cobra"
)

// Exit codes distinguish usage mistakes from device failures from
// codec/schema errors, so scripts can branch on them.
const (
	exitOK          = 0
	exitCodecError  = 1
	exitDeviceError = 2
	exitUsageError  = 3
)

// exitError pins a specific process exit code to an error, for failures
// that don't fall into the default codec-error bucket.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error  { return &exitError{code: exitUsageError, err: err} }
func deviceError(err error) error { return &exitError{code: exitDeviceError, err: err} }

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "conv:", err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, cerrors.ErrBadCarrierURI) || errors.Is(err, cerrors.ErrCarrierClosed) {
		return exitDeviceError
	}
	// Everything else this CLI surfaces is a schema/codec failure: bad
	// input format, unresolved SID, type mismatch, and so on.
	return exitCodecError
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "conv",
		Short:         "Convert YANG-modelled data between YAML, JSON, and CBOR",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	attachConvertAction(root)
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newLiveCmds()...)

	return root
}
