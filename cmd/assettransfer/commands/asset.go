/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/assettransfer"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
)

// randomAssetID asks create to pick a fresh asset key.
const randomAssetID = "-"

// assetCall is one asset command bound to a connected orchestrator.
type assetCall struct {
	out   io.Writer
	o     *assettransfer.Orchestrator
	actor org.Org
	// args follow org and userId.
	args []string
	opts []assettransfer.TransitionOption
}

type transitionFlags struct {
	expect    string
	orgs      []string
	discovery bool
}

func (f *transitionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.expect, "expect", status.OK.String(), "expected outcome code, e.g. ENDORSEMENT_DENIED")
	cmd.Flags().StringSliceVar(&f.orgs, "endorsing-orgs", nil, "submit with these endorsing organizations instead of the resolved scope")
	cmd.Flags().BoolVar(&f.discovery, "discovery", false, "let the network choose the endorsers")
}

func (f *transitionFlags) options() ([]assettransfer.TransitionOption, error) {
	name := strings.ToUpper(f.expect)
	expected := status.ParseCode(name)
	if expected == status.Unknown && name != status.Unknown.String() {
		return nil, errors.Errorf("unknown outcome code [%s]", f.expect)
	}
	opts := []assettransfer.TransitionOption{assettransfer.Expect(expected)}
	switch {
	case f.discovery && len(f.orgs) > 0:
		return nil, errors.New("--discovery and --endorsing-orgs are mutually exclusive")
	case f.discovery:
		opts = append(opts, assettransfer.WithDiscovery())
	case len(f.orgs) > 0:
		var orgs []org.Org
		for _, name := range f.orgs {
			o, err := parseOrg(name)
			if err != nil {
				return nil, err
			}
			orgs = append(orgs, o)
		}
		opts = append(opts, assettransfer.WithEndorsingOrgs(orgs...))
	}
	return opts, nil
}

func assetCommand(f *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asset",
		Short: "Run a single asset operation as an organization's user",
	}
	cmd.AddCommand(
		transitionCommand(f, "create org userId assetId args...",
			"Create an asset: sbe takes value ownerName, secured takes description color size [appraisedValue], private takes color size appraisedValue",
			cobra.MinimumNArgs(4), create),
		queryCommand(f, "read org userId assetId", "Read an asset as the organization sees it", cobra.ExactArgs(3), read),
		transitionCommand(f, "update org userId assetId value", "Update the appraised value of an asset", cobra.ExactArgs(4), update),
		transitionCommand(f, "describe org userId assetId description", "Change the public description of an asset", cobra.ExactArgs(4), describe),
		transitionCommand(f, "list-for-sale org userId assetId", "Announce publicly that the asset is for sale", cobra.ExactArgs(3), listForSale),
		transitionCommand(f, "sell org userId assetId price [tradeId]", "Agree to sell the asset at a price", cobra.RangeArgs(4, 5), agree(assettransfer.Seller)),
		transitionCommand(f, "buy org userId assetId price [tradeId]", "Agree to buy the asset at a price", cobra.RangeArgs(4, 5), agree(assettransfer.Buyer)),
		transitionCommand(f, "verify org userId assetId color size salt [appraisedValue]", "Verify private properties against the owner's hash", cobra.RangeArgs(6, 7), verify),
		transitionCommand(f, "transfer org userId assetId newOwnerOrg [newOwnerName]", "Transfer the asset to another organization", cobra.RangeArgs(4, 5), transfer),
		transitionCommand(f, "delete org userId assetId", "Delete the asset", cobra.ExactArgs(3), remove),
		transitionCommand(f, "withdraw org userId assetId", "Withdraw the organization's agreements on the asset", cobra.ExactArgs(3), withdraw),
		queryCommand(f, "private org userId assetId", "Read the private properties the organization holds", cobra.ExactArgs(3), readPrivate),
		queryCommand(f, "price org userId assetId seller|buyer", "Read the organization's own agreed price", cobra.ExactArgs(4), readPrice),
		queryCommand(f, "list org userId [startKey endKey]", "List assets in a key range", cobra.RangeArgs(2, 4), list),
	)
	return cmd
}

type transitionRun func(ctx context.Context, c *assetCall) (*assettransfer.Outcome, error)

// transitionCommand succeeds when the transition ends with the expected code.
func transitionCommand(f *globalFlags, use, short string, args cobra.PositionalArgs, run transitionRun) *cobra.Command {
	tf := &transitionFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := tf.options()
			if err != nil {
				return err
			}
			return runAsset(cmd, f, args, opts, func(ctx context.Context, c *assetCall) error {
				outcome, err := run(ctx, c)
				if outcome == nil {
					return err
				}
				printOutcome(c.out, outcome)
				if outcome.Passed() {
					return nil
				}
				if err == nil {
					err = errors.Errorf("ended with %s", outcome.Code)
				}
				return errors.WithMessagef(err, "%s of asset %s expected %s", outcome.Kind, outcome.AssetID, outcome.Expected)
			})
		},
	}
	tf.register(cmd)
	return cmd
}

type queryRun func(ctx context.Context, c *assetCall) (interface{}, error)

// queryCommand prints the result as JSON.
func queryCommand(f *globalFlags, use, short string, args cobra.PositionalArgs, run queryRun) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsset(cmd, f, args, nil, func(ctx context.Context, c *assetCall) error {
				result, err := run(ctx, c)
				if err != nil {
					return err
				}
				return printJSON(c.out, result)
			})
		},
	}
}

func runAsset(cmd *cobra.Command, f *globalFlags, args []string, opts []assettransfer.TransitionOption, fn func(ctx context.Context, c *assetCall) error) error {
	actor, err := parseOrg(args[0])
	if err != nil {
		return err
	}
	return withEnvironment(cmd, f, func(ctx context.Context, e *environment) error {
		o, err := e.orchestrator(ctx, args[1], actor)
		if err != nil {
			return err
		}
		return fn(ctx, &assetCall{out: cmd.OutOrStdout(), o: o, actor: actor, args: args[2:], opts: opts})
	})
}

func printOutcome(w io.Writer, o *assettransfer.Outcome) {
	fmt.Fprintf(w, "%s of asset %s by %s with scope %s: %s\n", o.Kind, o.AssetID, o.Actor, o.Scope, o.Code)
	if o.Reason != "" {
		fmt.Fprintf(w, "  reason: %s\n", o.Reason)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode result")
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func intArg(name, value string) (int, error) {
	n, err := cast.ToIntE(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s [%s]", name, value)
	}
	return n, nil
}

// optionalArg returns args[i] or the empty string.
func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func create(ctx context.Context, c *assetCall) (*assettransfer.Outcome, error) {
	id := c.args[0]
	if id == randomAssetID {
		id = ""
	}
	var attrs assettransfer.Attributes
	var private *assettransfer.PrivateRecord
	switch c.o.Dialect().Name() {
	case assettransfer.DialectSecured:
		if len(c.args) < 4 || len(c.args) > 5 {
			return nil, errors.New("secured create takes assetId description color size [appraisedValue]")
		}
		size, err := intArg("size", c.args[3])
		if err != nil {
			return nil, err
		}
		appraised := 0
		if v := optionalArg(c.args, 4); v != "" {
			if appraised, err = intArg("appraised value", v); err != nil {
				return nil, err
			}
		}
		if private, err = assettransfer.NewPrivateRecord(id, c.args[2], size, appraised); err != nil {
			return nil, err
		}
		attrs.Description = c.args[1]
	case assettransfer.DialectPrivate:
		if len(c.args) != 4 {
			return nil, errors.New("private create takes assetId color size appraisedValue")
		}
		size, err := intArg("size", c.args[2])
		if err != nil {
			return nil, err
		}
		appraised, err := intArg("appraised value", c.args[3])
		if err != nil {
			return nil, err
		}
		private = &assettransfer.PrivateRecord{AssetID: id, Color: c.args[1], Size: size, AppraisedValue: appraised}
	default:
		if len(c.args) != 3 {
			return nil, errors.New("sbe create takes assetId value ownerName")
		}
		value, err := intArg("value", c.args[1])
		if err != nil {
			return nil, err
		}
		attrs = assettransfer.Attributes{Value: value, Owner: c.args[2]}
	}
	outcome, err := c.o.Create(ctx, c.actor, id, attrs, private, c.opts...)
	if err == nil && private != nil && private.Salt != "" {
		// the salt is needed to verify the properties later
		fmt.Fprintf(c.out, "Private properties of asset %s use salt %s\n", outcome.AssetID, private.Salt)
	}
	return outcome, err
}

func read(ctx context.Context, c *assetCall) (interface{}, error) {
	return c.o.Read(ctx, c.actor, c.args[0])
}

func update(ctx context.Context, c *assetCall) (*assettransfer.Outcome, error) {
	value, err := intArg("value", c.args[1])
	if err != nil {
		return nil, err
	}
	return c.o.Update(ctx, c.actor, c.args[0], value, c.opts...)
}

func describe(ctx context.Context, c *assetCall) (*assettransfer.Outcome, error) {
	return c.o.ChangeDescription(ctx, c.actor, c.args[0], c.args[1], c.opts...)
}

func listForSale(ctx context.Context, c *assetCall) (*assettransfer.Outcome, error) {
	return c.o.ListForSale(ctx, c.actor, c.args[0], c.opts...)
}

func agree(role assettransfer.Role) transitionRun {
	return func(ctx context.Context, c *assetCall) (*assettransfer.Outcome, error) {
		p, err := intArg("price", c.args[1])
		if err != nil {
			return nil, err
		}
		if role == assettransfer.Seller {
			return c.o.AgreeToSell(ctx, c.actor, c.args[0], p, optionalArg(c.args, 2), c.opts...)
		}
		return c.o.AgreeToBuy(ctx, c.actor, c.args[0], p, optionalArg(c.args, 2), c.opts...)
	}
}

func verify(ctx context.Context, c *assetCall) (*assettransfer.Outcome, error) {
	size, err := intArg("size", c.args[2])
	if err != nil {
		return nil, err
	}
	appraised := 0
	if v := optionalArg(c.args, 4); v != "" {
		if appraised, err = intArg("appraised value", v); err != nil {
			return nil, err
		}
	}
	record := &assettransfer.PrivateRecord{AssetID: c.args[0], Color: c.args[1], Size: size, AppraisedValue: appraised, Salt: c.args[3]}
	verified, outcome, err := c.o.Verify(ctx, c.actor, c.args[0], record, c.opts...)
	if err == nil {
		fmt.Fprintf(c.out, "Private properties of asset %s verified: %t\n", c.args[0], verified)
	}
	return outcome, err
}

func transfer(ctx context.Context, c *assetCall) (*assettransfer.Outcome, error) {
	buyer, err := parseOrg(c.args[1])
	if err != nil {
		return nil, err
	}
	return c.o.Transfer(ctx, c.actor, c.args[0], buyer, optionalArg(c.args, 2), c.opts...)
}

func remove(ctx context.Context, c *assetCall) (*assettransfer.Outcome, error) {
	return c.o.Delete(ctx, c.actor, c.args[0], c.opts...)
}

func withdraw(ctx context.Context, c *assetCall) (*assettransfer.Outcome, error) {
	return c.o.WithdrawAgreement(ctx, c.actor, c.args[0], c.opts...)
}

func readPrivate(ctx context.Context, c *assetCall) (interface{}, error) {
	record, err := c.o.ReadPrivate(ctx, c.actor, c.args[0])
	if err != nil || record == nil {
		return nil, err
	}
	return record, nil
}

func readPrice(ctx context.Context, c *assetCall) (interface{}, error) {
	role, err := assettransfer.ParseRole(c.args[1])
	if err != nil {
		return nil, err
	}
	agreement, err := c.o.ReadAgreement(ctx, c.actor, c.args[0], role)
	if err != nil || agreement == nil {
		return nil, err
	}
	return agreement, nil
}

func list(ctx context.Context, c *assetCall) (interface{}, error) {
	return c.o.List(ctx, c.actor, optionalArg(c.args, 0), optionalArg(c.args, 1))
}
