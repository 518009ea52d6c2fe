/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/journal"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/operations"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/scenario"
)

const operationsStopTimeout = 5 * time.Second

type scenarioFlags struct {
	assetID string
	userID  string
	report  string
	reverse bool
}

func scenarioCommand(f *globalFlags) *cobra.Command {
	sf := &scenarioFlags{}
	cmd := &cobra.Command{
		Use:       "scenario sbe|secured|private",
		Short:     "Run an end-to-end transfer scenario between both organizations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: scenario.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(args[0])
			if f.dialect == "" {
				// scenarios are named after the dialect they drive
				f.dialect = name
			}
			return withEnvironment(cmd, f, func(ctx context.Context, e *environment) error {
				return runScenario(ctx, cmd.OutOrStdout(), e, name, sf)
			})
		},
	}
	cmd.Flags().StringVar(&sf.assetID, "asset-id", "", "asset key, random when empty")
	cmd.Flags().StringVar(&sf.userID, "user", "appUser", "application user enrolled in both organizations")
	cmd.Flags().StringVar(&sf.report, "report", "", "write the YAML report to this file")
	cmd.Flags().BoolVar(&sf.reverse, "reverse", false, "start with Fiserv as the owner and Apple as the buyer")
	return cmd
}

func runScenario(ctx context.Context, out io.Writer, e *environment, name string, sf *scenarioFlags) error {
	o, err := e.orchestrator(ctx, sf.userID, org.All()...)
	if err != nil {
		return err
	}
	stop, err := e.startOperations()
	if err != nil {
		return err
	}
	defer stop()

	var opts []scenario.Option
	if sf.assetID != "" {
		opts = append(opts, scenario.WithAssetID(sf.assetID))
	}
	if sf.reverse {
		opts = append(opts, scenario.WithOrgs(org.Fiserv, org.Apple))
	}
	s, err := scenario.New(name, o, opts...)
	if err != nil {
		return err
	}

	result := s.Run(ctx)
	for i, step := range result.Steps {
		verdict := "passed"
		if !step.Passed {
			verdict = "FAILED"
		}
		fmt.Fprintf(out, "%2d. %-45s expected %-20s got %-20s %s\n", i+1, step.Name, step.Expected, step.Code, verdict)
	}
	if result.Skipped > 0 {
		fmt.Fprintf(out, "%d steps skipped\n", result.Skipped)
	}
	if summary, err := journal.Summarize(ctx, e.journal); err == nil {
		fmt.Fprintf(out, "Scenario %s on asset %s: %s\n", name, result.AssetID, summary)
	} else {
		logger.Warnf("Failed to summarize the journal: %s", err)
	}

	if sf.report != "" {
		if err := writeReport(sf.report, result); err != nil {
			return err
		}
	}
	return result.Err()
}

func writeReport(path string, result *scenario.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create report %s", path)
	}
	defer file.Close()
	return result.WriteYAML(file)
}

// startOperations serves health, metrics and outcomes when an operations
// address is configured. The returned func stops the server.
func (e *environment) startOperations() (func(), error) {
	addr := e.settings.Operations.ListenAddress
	if addr == "" {
		return func() {}, nil
	}
	j, err := e.outcomes()
	if err != nil {
		return nil, err
	}
	system := operations.New(operations.Options{
		ListenAddress: addr,
		Gatherer:      e.registry,
		Journal:       j,
		HealthChecks: map[string]operations.HealthCheck{
			"journal": func(ctx context.Context) error {
				_, err := j.Entries(ctx)
				return err
			},
		},
	})
	if err := system.Start(); err != nil {
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), operationsStopTimeout)
		defer cancel()
		if err := system.Stop(ctx); err != nil {
			logger.Warnf("Failed to stop the operations system: %s", err)
		}
	}, nil
}
