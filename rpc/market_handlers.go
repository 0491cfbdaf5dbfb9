package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"lifemarket/native/market"
)

type listingParams struct {
	Seller         string `json:"seller"`
	AssetID        uint64 `json:"assetId"`
	Payment        string `json:"payment"`
	MinPrice       string `json:"minPrice"`
	ExclusiveBuyer string `json:"exclusiveBuyer,omitempty"`
}

type assetActorParams struct {
	Caller  string `json:"caller"`
	AssetID uint64 `json:"assetId"`
}

type bidParams struct {
	Bidder    string `json:"bidder"`
	AssetID   uint64 `json:"assetId"`
	Amount    string `json:"amount"`
	Payment   string `json:"payment"`
	SentValue string `json:"sentValue,omitempty"`
}

type buyParams struct {
	Buyer     string `json:"buyer"`
	AssetID   uint64 `json:"assetId"`
	SentValue string `json:"sentValue,omitempty"`
}

type ledgerParams struct {
	Caller  string `json:"caller"`
	Payment string `json:"payment"`
}

type feeParams struct {
	Caller string `json:"caller"`
	FeeBps uint32 `json:"feeBps"`
}

type operatorParams struct {
	Caller   string `json:"caller"`
	Operator string `json:"operator,omitempty"`
}

type mintAssetParams struct {
	AssetID uint64 `json:"assetId"`
	Owner   string `json:"owner"`
}

type fundAccountParams struct {
	Account string `json:"account"`
	Payment string `json:"payment"`
	Amount  string `json:"amount"`
}

type approvalParams struct {
	Owner    string `json:"owner"`
	Operator string `json:"operator,omitempty"`
	Approved bool   `json:"approved"`
}

type balanceParams struct {
	Account string `json:"account"`
	Payment string `json:"payment"`
}

type listingJSON struct {
	AssetID        uint64 `json:"assetId"`
	Seller         string `json:"seller"`
	Payment        string `json:"payment"`
	MinPrice       string `json:"minPrice"`
	ExclusiveBuyer string `json:"exclusiveBuyer,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
}

type bidJSON struct {
	AssetID  uint64 `json:"assetId"`
	Bidder   string `json:"bidder"`
	Amount   string `json:"amount"`
	Payment  string `json:"payment"`
	PlacedAt int64  `json:"placedAt"`
}

type balanceJSON struct {
	Account string `json:"account,omitempty"`
	Payment string `json:"payment"`
	Amount  string `json:"amount"`
}

type feeConfigJSON struct {
	FeeBps    uint32 `json:"feeBps"`
	MaxFeeBps uint32 `json:"maxFeeBps"`
}

type statusJSON struct {
	Paused   bool   `json:"paused"`
	Operator string `json:"operator"`
	Custody  string `json:"custody"`
}

func listingToJSON(l *market.Listing) listingJSON {
	out := listingJSON{
		AssetID:   l.AssetID,
		Seller:    formatAddress(l.Seller),
		Payment:   l.Payment.LedgerKey(),
		MinPrice:  l.MinPrice.String(),
		CreatedAt: l.CreatedAt,
	}
	if l.ExclusiveBuyer != nil {
		out.ExclusiveBuyer = formatAddress(*l.ExclusiveBuyer)
	}
	return out
}

func bidToJSON(b *market.Bid) bidJSON {
	return bidJSON{
		AssetID:  b.AssetID,
		Bidder:   formatAddress(b.Bidder),
		Amount:   b.Amount.String(),
		Payment:  b.Payment.LedgerKey(),
		PlacedAt: b.PlacedAt,
	}
}

func formatAddress(addr [20]byte) string {
	return strings.ToLower(common.Address(addr).Hex())
}

func parseAddress(raw string) ([20]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("invalid address %q", raw)
	}
	addr := common.HexToAddress(trimmed)
	if addr == (common.Address{}) {
		return [20]byte{}, fmt.Errorf("address must be non-zero")
	}
	return addr, nil
}

func parsePositiveBigInt(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return value, nil
}

// parseSentValue resolves the attached value for a payment: an explicit
// override wins, otherwise native payments attach the full amount and token
// payments attach nothing.
func parseSentValue(raw string, method market.PaymentMethod, amount *big.Int) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		value, ok := new(big.Int).SetString(trimmed, 10)
		if !ok || value.Sign() < 0 {
			return nil, fmt.Errorf("invalid sentValue %q", raw)
		}
		return value, nil
	}
	if method.Kind == market.PaymentNative {
		return new(big.Int).Set(amount), nil
	}
	return big.NewInt(0), nil
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func (s *Server) handleCreateListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listingParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	payment, err := market.ParsePaymentMethod(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	minPrice, err := parsePositiveBigInt(params.MinPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}

	var listing *market.Listing
	if strings.TrimSpace(params.ExclusiveBuyer) != "" {
		buyer, err := parseAddress(params.ExclusiveBuyer)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
		listing, err = s.engine.CreateListingToAddress(seller, params.AssetID, payment, minPrice, buyer)
		if err != nil {
			writeEngineError(w, req.ID, err)
			return
		}
	} else {
		listing, err = s.engine.CreateListing(seller, params.AssetID, payment, minPrice)
		if err != nil {
			writeEngineError(w, req.ID, err)
			return
		}
	}
	s.metrics.ObserveListingCreated(payment.LedgerKey())
	writeResult(w, req.ID, listingToJSON(listing))
}

func (s *Server) handleCancelListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params assetActorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.CancelListing(caller, params.AssetID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.metrics.ObserveListingCancelled()
	writeResult(w, req.ID, map[string]bool{"cancelled": true})
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params bidParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	bidder, err := parseAddress(params.Bidder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	payment, err := market.ParsePaymentMethod(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	sentValue, err := parseSentValue(params.SentValue, payment, amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	bid, err := s.engine.PlaceBid(bidder, params.AssetID, amount, payment, sentValue)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.metrics.ObserveBidPlaced(payment.LedgerKey())
	writeResult(w, req.ID, bidToJSON(bid))
}

func (s *Server) handleWithdrawBid(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params assetActorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.WithdrawBid(caller, params.AssetID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"withdrawn": true})
}

func (s *Server) handleAcceptBid(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params assetActorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.AcceptBid(caller, params.AssetID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.metrics.ObserveSettlement("accept")
	writeResult(w, req.ID, map[string]bool{"settled": true})
}

func (s *Server) handleBuy(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params buyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, ok := s.engine.GetListing(params.AssetID)
	if !ok {
		writeEngineError(w, req.ID, market.ErrListingNotFound)
		return
	}
	sentValue, err := parseSentValue(params.SentValue, listing.Payment, listing.MinPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.Buy(buyer, params.AssetID, sentValue); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.metrics.ObserveSettlement("buy")
	writeResult(w, req.ID, map[string]bool{"settled": true})
}

func (s *Server) handleWithdrawRefund(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params ledgerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	payment, err := market.ParsePaymentMethod(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	paid, err := s.engine.WithdrawRefund(caller, payment)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.metrics.ObserveRefundPaid(payment.LedgerKey())
	writeResult(w, req.ID, balanceJSON{Account: formatAddress(caller), Payment: payment.LedgerKey(), Amount: paid.String()})
}

func (s *Server) handleWithdrawEarnings(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params ledgerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	payment, err := market.ParsePaymentMethod(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	paid, err := s.engine.WithdrawEarnings(caller, payment)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.metrics.ObserveEarningsPaid(payment.LedgerKey())
	writeResult(w, req.ID, balanceJSON{Account: formatAddress(caller), Payment: payment.LedgerKey(), Amount: paid.String()})
}

func (s *Server) handleSetFee(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params feeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.SetFee(caller, params.FeeBps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.writeFeeConfig(w, req.ID)
}

func (s *Server) handleSetMaxFee(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params feeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.SetMaxFee(caller, params.FeeBps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.writeFeeConfig(w, req.ID)
}

func (s *Server) writeFeeConfig(w http.ResponseWriter, id interface{}) {
	cfg, err := s.engine.FeeConfig()
	if err != nil {
		writeError(w, http.StatusInternalServerError, id, codeServerError, "failed to load fee config", err.Error())
		return
	}
	writeResult(w, id, feeConfigJSON{FeeBps: cfg.FeeBps, MaxFeeBps: cfg.MaxFeeBps})
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params operatorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.Pause(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.metrics.SetTradingPaused(true)
	writeResult(w, req.ID, map[string]bool{"paused": true})
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params operatorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.Resume(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.metrics.SetTradingPaused(false)
	writeResult(w, req.ID, map[string]bool{"paused": false})
}

func (s *Server) handleTransferOperator(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params operatorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	next, err := parseAddress(params.Operator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.TransferOperator(caller, next); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"operator": formatAddress(next)})
}

func (s *Server) handleMintAsset(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params mintAssetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.registry.Mint(params.AssetID, owner); err != nil {
		writeError(w, http.StatusOK, req.ID, codeMarketConflict, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"assetId": params.AssetID, "owner": formatAddress(owner)})
}

func (s *Server) handleFundAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params fundAccountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	payment, err := market.ParsePaymentMethod(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.ledger.Credit(account, payment, amount); err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return
	}
	balance, err := s.ledger.Balance(account, payment)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, balanceJSON{Account: formatAddress(account), Payment: payment.LedgerKey(), Amount: balance.String()})
}

func (s *Server) handleSetApproval(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params approvalParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	operator := s.engine.CustodyAccount()
	if strings.TrimSpace(params.Operator) != "" {
		operator, err = parseAddress(params.Operator)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	if err := s.registry.SetApproval(owner, operator, params.Approved); err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"owner":    formatAddress(owner),
		"operator": formatAddress(operator),
		"approved": params.Approved,
	})
}

type assetParams struct {
	AssetID uint64 `json:"assetId"`
}

func (s *Server) handleGetListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params assetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, ok := s.engine.GetListing(params.AssetID)
	if !ok {
		writeEngineError(w, req.ID, market.ErrListingNotFound)
		return
	}
	writeResult(w, req.ID, listingToJSON(listing))
}

func (s *Server) handleListListings(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	listings, err := s.store.ListingAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return
	}
	out := make([]listingJSON, 0, len(listings))
	for _, l := range listings {
		out = append(out, listingToJSON(l))
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleGetBid(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params assetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	bid, ok := s.engine.GetBid(params.AssetID)
	if !ok {
		writeEngineError(w, req.ID, market.ErrNoActiveBid)
		return
	}
	writeResult(w, req.ID, bidToJSON(bid))
}

func (s *Server) handleGetRefund(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params balanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	payment, err := market.ParsePaymentMethod(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, err := s.engine.RefundBalance(account, payment)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, balanceJSON{Account: formatAddress(account), Payment: payment.LedgerKey(), Amount: balance.String()})
}

func (s *Server) handleGetEarnings(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params ledgerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	payment, err := market.ParsePaymentMethod(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, err := s.engine.EarningsBalance(payment)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, balanceJSON{Payment: payment.LedgerKey(), Amount: balance.String()})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params balanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	payment, err := market.ParsePaymentMethod(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, err := s.ledger.Balance(account, payment)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, balanceJSON{Account: formatAddress(account), Payment: payment.LedgerKey(), Amount: balance.String()})
}

func (s *Server) handleGetFeeConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.writeFeeConfig(w, req.ID)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, statusJSON{
		Paused:   s.engine.Paused(),
		Operator: formatAddress(s.engine.Operator()),
		Custody:  formatAddress(s.engine.CustodyAccount()),
	})
}
