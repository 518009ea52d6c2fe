/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/msp"
)

func enrollAdminCommand(f *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "enroll-admin org",
		Short: "Enroll the bootstrap admin of an organization into its wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := parseOrg(args[0])
			if err != nil {
				return err
			}
			return withEnvironment(cmd, f, func(ctx context.Context, e *environment) error {
				r, err := e.registrar(o)
				if err != nil {
					return err
				}
				id, err := r.EnrollAdmin(ctx, o)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enrolled %s with MSP ID %s\n", msp.Label(o, msp.DefaultAdminID), id.MSPID())
				return nil
			})
		},
	}
}

func registerCommand(f *globalFlags) *cobra.Command {
	var affiliation string
	cmd := &cobra.Command{
		Use:   "register org userId",
		Short: "Register and enroll an application user, enrolling the admin first when needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := parseOrg(args[0])
			if err != nil {
				return err
			}
			return withEnvironment(cmd, f, func(ctx context.Context, e *environment) error {
				r, err := e.registrar(o)
				if err != nil {
					return err
				}
				if affiliation == "" {
					affiliation = e.settings.Org(o).Affiliation
				}
				id, err := r.Enroll(ctx, o, args[1], affiliation)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enrolled %s with MSP ID %s\n", msp.Label(o, args[1]), id.MSPID())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&affiliation, "affiliation", "", "CA affiliation, defaults to the organization's configured affiliation")
	return cmd
}
