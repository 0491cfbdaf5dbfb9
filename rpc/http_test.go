package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"lifemarket/core/events"
	"lifemarket/core/state"
	"lifemarket/native/market"
	"lifemarket/storage"
)

const testAuthToken = "test-rpc-token"

var (
	rpcOperator = rpcAddr(0x01)
	rpcCustody  = rpcAddr(0x02)
	rpcSeller   = rpcAddr(0x03)
	rpcBidder   = rpcAddr(0x04)
)

func rpcAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	registry := state.NewRegistry(manager, rpcCustody)
	ledger := state.NewPaymentLedger(manager, rpcCustody)
	stream := events.NewStream(nil)

	engine := market.NewEngine()
	engine.SetState(manager)
	engine.SetRegistry(registry)
	engine.SetPayments(ledger)
	engine.SetEmitter(stream)
	engine.SetOperator(rpcOperator)
	engine.SetCustodyAccount(rpcCustody)

	require.NoError(t, registry.Mint(1, rpcSeller))
	require.NoError(t, registry.SetApproval(rpcSeller, rpcCustody, true))
	require.NoError(t, ledger.Credit(rpcBidder, market.NativePayment(), big.NewInt(10_000)))

	server := NewServer(engine, manager, registry, ledger, stream, testAuthToken, nil)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return server, ts
}

func call(t *testing.T, ts *httptest.Server, method string, params interface{}, auth bool) (*http.Response, RPCResponse) {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/rpc", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+testAuthToken)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func hexAddr(addr [20]byte) string {
	return fmt.Sprintf("0x%x", addr)
}

func TestMutatingMethodsRequireAuth(t *testing.T) {
	_, ts := newTestServer(t)
	resp, decoded := call(t, ts, "market_createListing", listingParams{
		Seller:   hexAddr(rpcSeller),
		AssetID:  1,
		Payment:  "native",
		MinPrice: "100",
	}, false)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeUnauthorized, decoded.Error.Code)
}

func TestQueriesDoNotRequireAuth(t *testing.T) {
	_, ts := newTestServer(t)
	resp, decoded := call(t, ts, "market_status", struct{}{}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)
}

func TestListingLifecycleOverRPC(t *testing.T) {
	_, ts := newTestServer(t)

	resp, decoded := call(t, ts, "market_createListing", listingParams{
		Seller:   hexAddr(rpcSeller),
		AssetID:  1,
		Payment:  "native",
		MinPrice: "100",
	}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)

	_, decoded = call(t, ts, "market_getListing", assetParams{AssetID: 1}, false)
	require.Nil(t, decoded.Error)
	var listing listingJSON
	raw, err := json.Marshal(decoded.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &listing))
	require.Equal(t, "100", listing.MinPrice)
	require.Equal(t, "native", listing.Payment)

	_, decoded = call(t, ts, "market_placeBid", bidParams{
		Bidder:  hexAddr(rpcBidder),
		AssetID: 1,
		Amount:  "150",
		Payment: "native",
	}, true)
	require.Nil(t, decoded.Error)

	_, decoded = call(t, ts, "market_acceptBid", assetActorParams{
		Caller:  hexAddr(rpcSeller),
		AssetID: 1,
	}, true)
	require.Nil(t, decoded.Error)

	// Settlement leaves no listing behind.
	_, decoded = call(t, ts, "market_getListing", assetParams{AssetID: 1}, false)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeMarketConflict, decoded.Error.Code)

	_, decoded = call(t, ts, "market_getBalance", balanceParams{
		Account: hexAddr(rpcSeller),
		Payment: "native",
	}, false)
	require.Nil(t, decoded.Error)
	var balance balanceJSON
	raw, err = json.Marshal(decoded.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &balance))
	require.Equal(t, "150", balance.Amount)
}

func TestDomainErrorCodes(t *testing.T) {
	_, ts := newTestServer(t)

	_, decoded := call(t, ts, "market_createListing", listingParams{
		Seller:   hexAddr(rpcSeller),
		AssetID:  1,
		Payment:  "native",
		MinPrice: "100",
	}, true)
	require.Nil(t, decoded.Error)

	// A bid below the minimum maps onto the value-failure code.
	_, decoded = call(t, ts, "market_placeBid", bidParams{
		Bidder:  hexAddr(rpcBidder),
		AssetID: 1,
		Amount:  "50",
		Payment: "native",
	}, true)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeMarketValue, decoded.Error.Code)

	// A rival seller action maps onto the authorization code.
	_, decoded = call(t, ts, "market_cancelListing", assetActorParams{
		Caller:  hexAddr(rpcBidder),
		AssetID: 1,
	}, true)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeMarketForbidden, decoded.Error.Code)

	// An unsupported token maps onto the unsupported-asset code.
	_, decoded = call(t, ts, "market_placeBid", bidParams{
		Bidder:  hexAddr(rpcBidder),
		AssetID: 1,
		Amount:  "150",
		Payment: "token:0x00000000000000000000000000000000000000ee",
	}, true)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeMarketUnsupported, decoded.Error.Code)
}

func TestUnknownMethod(t *testing.T) {
	_, ts := newTestServer(t)
	resp, decoded := call(t, ts, "market_unknown", struct{}{}, false)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeMethodNotFound, decoded.Error.Code)
}

func TestInvalidParams(t *testing.T) {
	_, ts := newTestServer(t)
	resp, decoded := call(t, ts, "market_createListing", listingParams{
		Seller:   "not-an-address",
		AssetID:  1,
		Payment:  "native",
		MinPrice: "100",
	}, true)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeInvalidParams, decoded.Error.Code)
}

func TestProvisioningMethods(t *testing.T) {
	_, ts := newTestServer(t)

	_, decoded := call(t, ts, "market_mintAsset", mintAssetParams{
		AssetID: 9,
		Owner:   hexAddr(rpcSeller),
	}, true)
	require.Nil(t, decoded.Error)

	// Minting the same asset twice conflicts.
	_, decoded = call(t, ts, "market_mintAsset", mintAssetParams{
		AssetID: 9,
		Owner:   hexAddr(rpcSeller),
	}, true)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeMarketConflict, decoded.Error.Code)

	_, decoded = call(t, ts, "market_fundAccount", fundAccountParams{
		Account: hexAddr(rpcBidder),
		Payment: "native",
		Amount:  "500",
	}, true)
	require.Nil(t, decoded.Error)
	var balance balanceJSON
	raw, err := json.Marshal(decoded.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &balance))
	require.Equal(t, "10500", balance.Amount)

	_, decoded = call(t, ts, "market_setApproval", approvalParams{
		Owner:    hexAddr(rpcSeller),
		Approved: true,
	}, true)
	require.Nil(t, decoded.Error)
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
