/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"os/exec"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gexec"
)

func TestCompile(t *testing.T) {
	gt := NewGomegaWithT(t)
	_, err := gexec.Build("github.com/hyperledger/fabric-asset-transfer-go/cmd/assettransfer")
	gt.Expect(err).NotTo(HaveOccurred())
	defer gexec.CleanupBuildArtifacts()
}

func TestScenario(t *testing.T) {
	gt := NewGomegaWithT(t)
	bin, err := gexec.Build("github.com/hyperledger/fabric-asset-transfer-go/cmd/assettransfer")
	gt.Expect(err).NotTo(HaveOccurred())
	defer gexec.CleanupBuildArtifacts()

	b, err := exec.Command(bin, "scenario", "sbe", "--asset-id", "asset-1").CombinedOutput()
	gt.Expect(err).NotTo(HaveOccurred(), string(b))
	gt.Expect(string(b)).To(ContainSubstring("Scenario sbe on asset asset-1: 10 transitions, 10 passed, 0 failed"))

	b, err = exec.Command(bin, "asset", "read", "org3", "appUser", "asset-1").CombinedOutput()
	gt.Expect(err).To(HaveOccurred())
	gt.Expect(string(b)).To(ContainSubstring("Error: invalid organization: unknown organization [org3]"))
}
