/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package assettransfer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/endorsement"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/transient"
)

func TestLegal(t *testing.T) {
	assert.True(t, Legal(endorsement.Create, Nonexistent))
	assert.True(t, Legal(endorsement.Create, Deleted))
	assert.False(t, Legal(endorsement.Create, Owned))

	for _, kind := range []endorsement.Kind{endorsement.Update, endorsement.Transfer, endorsement.Delete, endorsement.Verify} {
		assert.False(t, Legal(kind, Nonexistent), kind.String())
		assert.False(t, Legal(kind, Deleted), kind.String())
		for _, s := range live {
			assert.True(t, Legal(kind, s), "%s from %s", kind, s)
		}
	}

	assert.False(t, Legal(endorsement.WithdrawAgreement, Owned))
	assert.True(t, Legal(endorsement.WithdrawAgreement, SaleAgreed))
	assert.True(t, Legal(endorsement.WithdrawAgreement, BuyAgreed))
	assert.False(t, Legal(endorsement.Read, Owned), "reads are not transitions")
}

func TestAgreementState(t *testing.T) {
	sale := &TransferAgreement{Role: Seller}
	bid := &TransferAgreement{Role: Buyer}

	assert.Equal(t, Owned, (&Record{}).agreementState(0))
	assert.Equal(t, SaleAgreed, (&Record{Sale: sale}).agreementState(Seller))
	assert.Equal(t, BuyAgreed, (&Record{Sale: sale, Bid: bid}).agreementState(Buyer))
	assert.Equal(t, SaleAgreed, (&Record{Sale: sale, Bid: bid}).agreementState(Seller))
	assert.Equal(t, BuyAgreed, (&Record{Bid: bid}).agreementState(0))
}

func TestExpectation(t *testing.T) {
	r := &Record{AssetID: "a", State: Owned, Owner: org.Apple, Attributes: Attributes{Value: 3}}
	exp := r.Expectation()
	assert.Equal(t, org.Apple, exp.Owner)
	assert.Equal(t, org.Apple, exp.PrivateOwner)
	assert.Equal(t, 3, exp.Attributes.Value)

	r.Attributes.Value = 4
	assert.Equal(t, 3, exp.Attributes.Value, "the expectation is a copy")

	assert.Equal(t, org.Unknown, exp.PrivateProspect)

	r.Bid = &TransferAgreement{ProposingOrg: org.Fiserv, Role: Buyer}
	assert.Equal(t, org.Fiserv, r.Expectation().PrivateProspect)

	assert.True(t, (&Record{State: Deleted}).Expectation().Absent)
	assert.True(t, (&Record{State: Nonexistent}).Expectation().Absent)
}

func TestRecordClone(t *testing.T) {
	r := &Record{Override: []org.Org{org.Apple}, Private: &PrivateRecord{Color: "blue"}, Sale: &TransferAgreement{Price: 1}}
	c := r.clone()
	c.Override[0] = org.Fiserv
	c.Private.Color = "red"
	c.Sale.Price = 2
	assert.Equal(t, org.Apple, r.Override[0])
	assert.Equal(t, "blue", r.Private.Color)
	assert.Equal(t, 1, r.Sale.Price)
}

func TestNewDialect(t *testing.T) {
	d, err := NewDialect("sbe")
	require.NoError(t, err)
	assert.Equal(t, DialectSBE, d.Name())
	assert.Empty(t, d.Agreements())
	assert.False(t, d.DefaultPolicy().SatisfiedBy(org.Apple))

	d, err = NewDialect("secured")
	require.NoError(t, err)
	assert.Equal(t, []Role{Seller, Buyer}, d.Agreements())
	assert.True(t, d.DefaultPolicy().SatisfiedBy(org.Fiserv))

	d, err = NewDialect("private")
	require.NoError(t, err)
	assert.Equal(t, []Role{Buyer}, d.Agreements())
	assert.True(t, d.DefaultPolicy().SatisfiedBy(org.Apple))
	_, ok := d.(actorEndorsed)
	assert.True(t, ok)

	_, err = NewDialect("tokens")
	assert.EqualError(t, err, "unknown contract dialect [tokens]: dialect must be one of sbe, secured, private")
}

func TestSBETransitions(t *testing.T) {
	d := SBE()
	p := &Params{AssetID: "asset-1", Attributes: Attributes{Owner: "Tom", Value: 100}, NewOwner: org.Fiserv, NewOwnerName: "Michel"}

	inv, err := d.Transition(endorsement.Create, p)
	require.NoError(t, err)
	assert.Equal(t, &Invocation{Function: "CreateAsset", Args: []string{"asset-1", "100", "Tom"}}, inv)

	inv, err = d.Transition(endorsement.Transfer, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"asset-1", "Michel", "FiservMSP"}, inv.Args)

	_, err = d.Transition(endorsement.Create, &Params{AssetID: "asset-1"})
	assert.Error(t, err)

	for _, kind := range []endorsement.Kind{endorsement.ChangeDescription, endorsement.AgreeToSell, endorsement.Verify, endorsement.WithdrawAgreement} {
		_, err := d.Transition(kind, p)
		assert.True(t, status.Is(err, status.Unsupported), kind.String())
	}
	_, err = d.Query(QueryPrivate, p)
	assert.True(t, status.Is(err, status.Unsupported))

	assert.Equal(t, Attributes{Owner: "Tom", Value: 1}, d.Stored(Attributes{Owner: "Tom", Value: 1, Description: "x"}))
}

func TestSecuredTransitions(t *testing.T) {
	d := Secured()
	private := &PrivateRecord{AssetID: "asset-2", Color: "blue", Size: 35, Salt: "ab"}
	agreement := &TransferAgreement{AssetID: "asset-2", Price: 100, TradeID: "t1"}
	p := &Params{AssetID: "asset-2", Attributes: Attributes{Description: "desc"}, Private: private, Agreement: agreement, NewOwner: org.Fiserv}

	inv, err := d.Transition(endorsement.Create, p)
	require.NoError(t, err)
	assert.Equal(t, "CreateAsset", inv.Function)
	assert.Equal(t, []string{"asset-2", "desc"}, inv.Args)
	payload, err := transient.Encode(inv.Fields)
	require.NoError(t, err)
	assert.Equal(t, []string{transient.KeyAssetProperties}, payload.Keys())

	inv, err = d.Transition(endorsement.Transfer, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"asset-2", "FiservMSP"}, inv.Args)
	payload, err = transient.Encode(inv.Fields)
	require.NoError(t, err)
	assert.Equal(t, []string{transient.KeyAssetPrice, transient.KeyAssetProperties}, payload.Keys())

	inv, err = d.Transition(endorsement.AgreeToBuy, p)
	require.NoError(t, err)
	assert.Equal(t, "AgreeToBuy", inv.Function)
	assert.Equal(t, &transient.AssetPrice{AssetID: "asset-2", Price: 100, TradeID: "t1"}, inv.Fields.Price)

	_, err = d.Transition(endorsement.Update, p)
	assert.True(t, status.Is(err, status.Unsupported))
	_, err = d.Transition(endorsement.Transfer, &Params{AssetID: "asset-2"})
	assert.Error(t, err)

	assert.Equal(t, Attributes{Description: "x"}, d.Stored(Attributes{Owner: "Tom", Value: 1, Description: "x"}))
}

func TestPrivateTransitions(t *testing.T) {
	d := Private()
	private := &PrivateRecord{AssetID: "asset-3", Color: "green", Size: 20, AppraisedValue: 100}
	p := &Params{AssetID: "asset-3", Private: private, Agreement: &TransferAgreement{Price: 100}, NewOwner: org.Fiserv}

	inv, err := d.Transition(endorsement.Create, p)
	require.NoError(t, err)
	assert.Equal(t, "CreateAsset", inv.Function)
	assert.Empty(t, inv.Args)
	assert.Equal(t, &transient.AssetDetails{ObjectType: "asset", AssetID: "asset-3", Color: "green", Size: 20, AppraisedValue: 100}, inv.Fields.Details)
	payload, err := transient.Encode(inv.Fields)
	require.NoError(t, err)
	assert.Equal(t, []string{transient.KeyAssetProperties}, payload.Keys())

	inv, err = d.Transition(endorsement.AgreeToBuy, p)
	require.NoError(t, err)
	assert.Equal(t, "AgreeToTransfer", inv.Function)
	assert.Equal(t, &transient.AssetValue{AssetID: "asset-3", AppraisedValue: 100}, inv.Fields.Value)

	inv, err = d.Transition(endorsement.Transfer, p)
	require.NoError(t, err)
	assert.Equal(t, &transient.AssetOwner{AssetID: "asset-3", BuyerMSP: "FiservMSP"}, inv.Fields.Owner)

	inv, err = d.Transition(endorsement.Delete, p)
	require.NoError(t, err)
	assert.Equal(t, &transient.AssetRef{AssetID: "asset-3"}, inv.Fields.AssetDelete)

	inv, err = d.Transition(endorsement.WithdrawAgreement, p)
	require.NoError(t, err)
	assert.Equal(t, "DeleteTranferAgreement", inv.Function)
	assert.Equal(t, &transient.AssetRef{AssetID: "asset-3"}, inv.Fields.AgreementDelete)

	for _, kind := range []endorsement.Kind{endorsement.Update, endorsement.AgreeToSell, endorsement.Verify, endorsement.ListForSale} {
		_, err := d.Transition(kind, p)
		assert.True(t, status.Is(err, status.Unsupported), kind.String())
	}
	_, err = d.Transition(endorsement.Create, &Params{AssetID: "asset-3"})
	assert.Error(t, err)
	_, err = d.Transition(endorsement.Transfer, &Params{AssetID: "asset-3"})
	assert.Error(t, err)

	inv, err = d.Query(QueryPrivate, &Params{AssetID: "asset-3", Actor: org.Fiserv})
	require.NoError(t, err)
	assert.Equal(t, []string{"FiservMSPPrivateCollection", "asset-3"}, inv.Args)
	_, err = d.Query(QuerySalePrice, p)
	assert.True(t, status.Is(err, status.Unsupported))

	assert.Equal(t, Attributes{}, d.Stored(Attributes{Owner: "Tom", Value: 1, Description: "x"}))
}

func TestPrivateDecode(t *testing.T) {
	d := Private()
	appleUser := "x509::CN=appUser,OU=client,O=apple.example.com::CN=ca.apple.example.com,O=apple.example.com"
	fiservUser := "x509::CN=appUser,OU=client,O=fiserv.example.com::CN=ca.fiserv.example.com,O=fiserv.example.com"

	asset, err := d.DecodeAsset([]byte(`{"objectType":"asset","assetID":"asset-3","color":"green","size":20,"owner":"` + appleUser + `"}`))
	require.NoError(t, err)
	assert.Equal(t, &Asset{ID: "asset-3", OwnerOrg: org.Apple}, asset)

	_, err = d.DecodeAsset([]byte(`{"assetID":"asset-3","owner":"Tom"}`))
	assert.Error(t, err)

	assets, err := d.DecodeAssets([]byte(`[{"assetID":"a","owner":"` + appleUser + `"},{"assetID":"b","owner":"` + fiservUser + `"}]`))
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, org.Fiserv, assets[1].OwnerOrg)

	private, err := d.DecodePrivate([]byte(`{"assetID":"asset-3","appraisedValue":100}`))
	require.NoError(t, err)
	assert.Equal(t, &PrivateRecord{AssetID: "asset-3", AppraisedValue: 100}, private)

	agreement, err := d.DecodeAgreement([]byte(`{"assetID":"asset-3","buyerID":"`+fiservUser+`"}`), org.Apple, Buyer)
	require.NoError(t, err)
	assert.Equal(t, &TransferAgreement{AssetID: "asset-3", ProposingOrg: org.Fiserv, Role: Buyer}, agreement)

	_, err = d.DecodeAgreement(nil, org.Apple, Seller)
	assert.True(t, status.Is(err, status.Unsupported))
}

func TestDecodeAsset(t *testing.T) {
	asset, err := SBE().DecodeAsset([]byte(`{"ID":"asset-1","Value":100,"Owner":"Tom","OwnerOrg":"AppleMSP"}`))
	require.NoError(t, err)
	assert.Equal(t, &Asset{
		ID:                  "asset-1",
		OwnerOrg:            org.Apple,
		Attributes:          Attributes{Owner: "Tom", Value: 100},
		EndorsementOverride: []org.Org{org.Apple},
	}, asset)

	asset, err = Secured().DecodeAsset([]byte(`{"objectType":"asset","assetID":"asset-2","ownerOrg":"FiservMSP","publicDescription":"d"}`))
	require.NoError(t, err)
	assert.Equal(t, org.Fiserv, asset.OwnerOrg)
	assert.Equal(t, "d", asset.Attributes.Description)

	_, err = SBE().DecodeAsset([]byte(`{"ID":"asset-1","OwnerOrg":"Org3MSP"}`))
	assert.Error(t, err)
	_, err = SBE().DecodeAsset([]byte(`{"ID":"","OwnerOrg":"AppleMSP"}`))
	assert.Error(t, err)
	_, err = Secured().DecodeAsset([]byte(`not json`))
	assert.Error(t, err)

	assets, err := Secured().DecodeAssets([]byte(`[{"assetID":"a","ownerOrg":"AppleMSP"},{"assetID":"b","ownerOrg":"FiservMSP"}]`))
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "b", assets[1].ID)
}

func TestPrivateRecord(t *testing.T) {
	r, err := NewPrivateRecord("asset-1", "blue", 35, 500)
	require.NoError(t, err)
	assert.Len(t, r.Salt, 32)

	h1, err := r.Hash()
	require.NoError(t, err)
	r2 := *r
	r2.Size = 36
	h2, err := r2.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	b, err := json.Marshal(r.Properties())
	require.NoError(t, err)
	fields, err := transient.Decode(transient.Payload{transient.KeyAssetProperties: b})
	require.NoError(t, err)
	assert.Equal(t, r, privateRecordFrom(fields.Properties))

	decoded, err := Secured().DecodePrivate(b)
	require.NoError(t, err)
	assert.Equal(t, r, decoded)
	_, err = SBE().DecodePrivate(b)
	assert.True(t, status.Is(err, status.Unsupported))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("Seller")
	require.NoError(t, err)
	assert.Equal(t, Seller, r)
	r, err = ParseRole("buy")
	require.NoError(t, err)
	assert.Equal(t, Buyer, r)
	_, err = ParseRole("broker")
	assert.Error(t, err)
}
