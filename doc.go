/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package fabricassettransfer orchestrates asset transfers between the Apple
// and Fiserv organizations of a permissioned Hyperledger Fabric network.
//
// # Packages for end developer usage
//
// pkg/assettransfer: The asset lifecycle orchestrator. It gates each transition on the asset's
// lifecycle state, resolves the endorsing organizations, encodes private payloads and records
// every outcome. Contract dialects map transitions onto the asset-transfer-sbe,
// asset-transfer-secured-agreement and asset-transfer-private-data chaincodes.
//
// pkg/ledger: The ledger client facade. Submit and Evaluate classify every failure into the
// workflow status taxonomy (pkg/common/errors/status) and record Prometheus metrics.
//
// pkg/ledger/fabric: Connects the facade and the registrar to a Fabric network through the
// Fabric gateway and CA clients.
//
// pkg/ledger/simulator: An in-process ledger with state-based endorsement, implicit private
// collections and the three contracts, used by tests and by ledger.mode simulator.
//
// pkg/endorsement: Chaincode-wide endorsement policies and the endorsement scope of each
// transition.
//
// pkg/consistency: Reads an asset as every organization and reports divergent views.
//
// pkg/scenario: The SBE, secured agreement and private data flows as ordered,
// expectation-checked steps.
//
// pkg/msp and pkg/wallet: Enrollment of admins and users and the identity wallets they are
// cached in.
//
// Basic workflow
//
//  1. Load settings with config.Load
//  2. Enroll a user of each organization with msp.Registrar
//  3. Connect a ledger.Client per organization
//  4. Create an assettransfer.Orchestrator over the clients
//  5. Run transitions, or a scenario, and inspect the outcomes
//
// The assettransfer command (cmd/assettransfer) wires these steps from a configuration file.
package fabricassettransfer
