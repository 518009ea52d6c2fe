/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package commands implements the assettransfer command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/logging"
)

type globalFlags struct {
	config  string
	ledger  string
	dialect string
}

// NewRootCommand returns the assettransfer command tree.
func NewRootCommand() *cobra.Command {
	f := &globalFlags{}
	root := &cobra.Command{
		Use:   "assettransfer",
		Short: "Drive asset transfers between Apple and Fiserv on a permissioned ledger",
		Long: `Drive asset transfers between Apple and Fiserv on a permissioned ledger.

Configuration keys can be overridden with ASSET_TRANSFER_ environment
variables, e.g. ASSET_TRANSFER_LEDGER_MODE=fabric.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.Initialize(logging.NewZapProvider(cmd.ErrOrStderr()))
		},
	}
	root.PersistentFlags().StringVarP(&f.config, "config", "c", "", "configuration file (yaml or json)")
	root.PersistentFlags().StringVar(&f.ledger, "ledger", "", "ledger mode: fabric or simulator")
	root.PersistentFlags().StringVar(&f.dialect, "dialect", "", "contract dialect: sbe, secured or private")

	root.AddCommand(
		enrollAdminCommand(f),
		registerCommand(f),
		assetCommand(f),
		scenarioCommand(f),
	)
	return root
}
