/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/journal"
)

func execute(args ...string) (string, error) {
	root := NewRootCommand()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScenarioSBE(t *testing.T) {
	gt := NewGomegaWithT(t)
	out, err := execute("scenario", "sbe", "--asset-id", "asset-7")
	gt.Expect(err).NotTo(HaveOccurred())
	gt.Expect(out).To(ContainSubstring("ENDORSEMENT_DENIED"))
	gt.Expect(out).To(ContainSubstring("Scenario sbe on asset asset-7: 10 transitions, 10 passed, 0 failed"))
	gt.Expect(out).NotTo(ContainSubstring("FAILED"))
}

func TestScenarioSecuredReport(t *testing.T) {
	gt := NewGomegaWithT(t)
	report := filepath.Join(t.TempDir(), "report.yaml")
	out, err := execute("scenario", "secured", "--reverse", "--report", report)
	gt.Expect(err).NotTo(HaveOccurred())
	gt.Expect(out).To(ContainSubstring("PRICE_MISMATCH"))

	b, err := os.ReadFile(report)
	gt.Expect(err).NotTo(HaveOccurred())
	gt.Expect(string(b)).To(ContainSubstring("scenario: secured"))
	gt.Expect(string(b)).To(ContainSubstring("skipped: 0"))
}

func TestScenarioPrivate(t *testing.T) {
	gt := NewGomegaWithT(t)
	out, err := execute("scenario", "private", "--asset-id", "asset-9")
	gt.Expect(err).NotTo(HaveOccurred())
	gt.Expect(out).To(ContainSubstring("PRICE_MISMATCH"))
	gt.Expect(out).To(ContainSubstring("Scenario private on asset asset-9: 10 transitions, 10 passed, 0 failed"))
}

func TestScenarioErrors(t *testing.T) {
	gt := NewGomegaWithT(t)
	_, err := execute("scenario", "secured", "--dialect", "sbe")
	gt.Expect(err).To(HaveOccurred())

	_, err = execute("scenario", "auction")
	gt.Expect(err).To(HaveOccurred())

	_, err = execute("scenario")
	gt.Expect(err).To(MatchError(ContainSubstring("accepts 1 arg(s)")))
}

func TestScenarioWithJournalAndOperations(t *testing.T) {
	gt := NewGomegaWithT(t)
	db := filepath.Join(t.TempDir(), "outcomes.db")
	config := writeConfig(t, `
ledger:
  mode: simulator
  timeout: 10s
journal:
  path: `+db+`
operations:
  listenAddress: 127.0.0.1:0
`)
	_, err := execute("--config", config, "scenario", "sbe")
	gt.Expect(err).NotTo(HaveOccurred())

	j, err := journal.Open(db)
	gt.Expect(err).NotTo(HaveOccurred())
	defer j.Close()
	report, err := journal.Summarize(context.Background(), j)
	gt.Expect(err).NotTo(HaveOccurred())
	gt.Expect(report.Total).To(Equal(10))
	gt.Expect(report.OK()).To(BeTrue())
}

func TestInvalidConfiguration(t *testing.T) {
	gt := NewGomegaWithT(t)
	config := writeConfig(t, "ledger:\n  mode: mainframe\n")
	_, err := execute("--config", config, "register", "apple", "appUser")
	gt.Expect(err).To(MatchError(ContainSubstring("unsupported ledger.mode [mainframe]")))

	_, err = execute("--ledger", "fabric", "register", "apple", "appUser")
	gt.Expect(err).To(MatchError(ContainSubstring("connectionProfile is required in fabric mode")))

	_, err = execute("--config", filepath.Join(t.TempDir(), "missing.yaml"), "register", "apple", "appUser")
	gt.Expect(err).To(HaveOccurred())
}

func TestEnrollment(t *testing.T) {
	gt := NewGomegaWithT(t)
	out, err := execute("enroll-admin", "apple")
	gt.Expect(err).NotTo(HaveOccurred())
	gt.Expect(out).To(ContainSubstring("Enrolled admin@Apple with MSP ID AppleMSP"))

	out, err = execute("register", "FiservMSP", "appUser")
	gt.Expect(err).NotTo(HaveOccurred())
	gt.Expect(out).To(ContainSubstring("Enrolled appUser@Fiserv with MSP ID FiservMSP"))

	_, err = execute("register", "org3", "appUser")
	gt.Expect(err).To(MatchError(ContainSubstring("invalid organization")))
}

func TestAssetCommands(t *testing.T) {
	gt := NewGomegaWithT(t)
	out, err := execute("asset", "create", "apple", "appUser", "asset-1", "100", "Tom")
	gt.Expect(err).NotTo(HaveOccurred())
	gt.Expect(out).To(ContainSubstring("Create of asset asset-1 by Apple"))
	gt.Expect(out).To(HaveSuffix(": OK\n"))

	out, err = execute("--dialect", "secured", "asset", "create", "apple", "appUser", "-", "a blue asset", "blue", "35")
	gt.Expect(err).NotTo(HaveOccurred())
	gt.Expect(out).To(ContainSubstring("use salt"))
	gt.Expect(out).To(MatchRegexp(`Create of asset asset-[0-9a-f]{8} by Apple`))

	out, err = execute("--dialect", "private", "asset", "create", "apple", "appUser", "asset-2", "green", "20", "100")
	gt.Expect(err).NotTo(HaveOccurred())
	gt.Expect(out).To(ContainSubstring("Create of asset asset-2 by Apple"))
	gt.Expect(out).NotTo(ContainSubstring("use salt"))

	_, err = execute("--dialect", "private", "asset", "create", "apple", "appUser", "asset-2", "green", "20")
	gt.Expect(err).To(MatchError(ContainSubstring("private create takes")))

	// every invocation starts a fresh simulated ledger
	_, err = execute("asset", "read", "apple", "appUser", "asset-1")
	gt.Expect(err).To(MatchError(ContainSubstring("does not exist")))

	_, err = execute("asset", "create", "apple", "appUser", "asset-1", "hundred", "Tom")
	gt.Expect(err).To(MatchError(ContainSubstring("invalid value [hundred]")))

	_, err = execute("asset", "create", "apple", "appUser", "asset-1", "100", "Tom", "extra")
	gt.Expect(err).To(MatchError(ContainSubstring("sbe create takes")))

	_, err = execute("asset", "delete", "apple", "appUser", "asset-1", "--expect", "SOMETIMES")
	gt.Expect(err).To(MatchError(ContainSubstring("unknown outcome code [SOMETIMES]")))

	_, err = execute("asset", "delete", "apple", "appUser", "asset-1", "--discovery", "--endorsing-orgs", "apple")
	gt.Expect(err).To(MatchError(ContainSubstring("mutually exclusive")))

	_, err = execute("asset", "price", "apple", "appUser", "asset-1", "broker")
	gt.Expect(err).To(MatchError(ContainSubstring("unknown agreement role")))
}

func TestExpectedFailure(t *testing.T) {
	gt := NewGomegaWithT(t)
	out, err := execute("asset", "update", "apple", "appUser", "asset-1", "300")
	gt.Expect(err).To(MatchError(ContainSubstring("Update of asset asset-1 expected OK")))
	gt.Expect(out).To(ContainSubstring("Update of asset asset-1 by Apple"))
}
