package scanner

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract event fragments for the exchange, token, and escrow templates.
// Older token templates do not define the approval events; the fetcher treats
// an event name missing from the interface as zero events, so one vocabulary
// can be scanned against every template version.
const exchangeABIJSON = `[
  {"type":"event","name":"NewOrder","anonymous":false,"inputs":[
    {"name":"tokenAddress","type":"address","indexed":true},
    {"name":"orderId","type":"uint256","indexed":false},
    {"name":"accountAddress","type":"address","indexed":false},
    {"name":"isBuy","type":"bool","indexed":false},
    {"name":"price","type":"uint256","indexed":false},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"agentAddress","type":"address","indexed":false}]},
  {"type":"event","name":"CancelOrder","anonymous":false,"inputs":[
    {"name":"tokenAddress","type":"address","indexed":true},
    {"name":"orderId","type":"uint256","indexed":false},
    {"name":"accountAddress","type":"address","indexed":false},
    {"name":"isBuy","type":"bool","indexed":false},
    {"name":"price","type":"uint256","indexed":false},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"agentAddress","type":"address","indexed":false}]},
  {"type":"event","name":"Agree","anonymous":false,"inputs":[
    {"name":"tokenAddress","type":"address","indexed":true},
    {"name":"orderId","type":"uint256","indexed":false},
    {"name":"agreementId","type":"uint256","indexed":false},
    {"name":"buyAddress","type":"address","indexed":false},
    {"name":"sellAddress","type":"address","indexed":false},
    {"name":"price","type":"uint256","indexed":false},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"agentAddress","type":"address","indexed":false}]},
  {"type":"event","name":"SettlementOK","anonymous":false,"inputs":[
    {"name":"tokenAddress","type":"address","indexed":true},
    {"name":"orderId","type":"uint256","indexed":false},
    {"name":"agreementId","type":"uint256","indexed":false},
    {"name":"buyAddress","type":"address","indexed":false},
    {"name":"sellAddress","type":"address","indexed":false},
    {"name":"price","type":"uint256","indexed":false},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"agentAddress","type":"address","indexed":false}]},
  {"type":"event","name":"SettlementNG","anonymous":false,"inputs":[
    {"name":"tokenAddress","type":"address","indexed":true},
    {"name":"orderId","type":"uint256","indexed":false},
    {"name":"agreementId","type":"uint256","indexed":false},
    {"name":"buyAddress","type":"address","indexed":false},
    {"name":"sellAddress","type":"address","indexed":false},
    {"name":"price","type":"uint256","indexed":false},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"agentAddress","type":"address","indexed":false}]}
]`

const tokenABIJSON = `[
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[
    {"name":"from","type":"address","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"value","type":"uint256","indexed":false}]},
  {"type":"event","name":"ApplyForTransfer","anonymous":false,"inputs":[
    {"name":"index","type":"uint256","indexed":true},
    {"name":"from","type":"address","indexed":false},
    {"name":"to","type":"address","indexed":false},
    {"name":"value","type":"uint256","indexed":false},
    {"name":"data","type":"string","indexed":false}]},
  {"type":"event","name":"CancelTransfer","anonymous":false,"inputs":[
    {"name":"index","type":"uint256","indexed":true},
    {"name":"from","type":"address","indexed":false},
    {"name":"to","type":"address","indexed":false},
    {"name":"value","type":"uint256","indexed":false}]},
  {"type":"event","name":"ApproveTransfer","anonymous":false,"inputs":[
    {"name":"index","type":"uint256","indexed":true},
    {"name":"from","type":"address","indexed":false},
    {"name":"to","type":"address","indexed":false},
    {"name":"value","type":"uint256","indexed":false},
    {"name":"data","type":"string","indexed":false}]}
]`

// Legacy token template: Transfer only. Approval events are absent from the
// interface on purpose.
const legacyTokenABIJSON = `[
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[
    {"name":"from","type":"address","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"value","type":"uint256","indexed":false}]}
]`

const escrowABIJSON = `[
  {"type":"event","name":"ApplyForTransfer","anonymous":false,"inputs":[
    {"name":"index","type":"uint256","indexed":true},
    {"name":"from","type":"address","indexed":false},
    {"name":"to","type":"address","indexed":false},
    {"name":"value","type":"uint256","indexed":false},
    {"name":"data","type":"string","indexed":false}]},
  {"type":"event","name":"CancelTransfer","anonymous":false,"inputs":[
    {"name":"index","type":"uint256","indexed":true},
    {"name":"from","type":"address","indexed":false},
    {"name":"to","type":"address","indexed":false},
    {"name":"value","type":"uint256","indexed":false}]},
  {"type":"event","name":"EscrowFinished","anonymous":false,"inputs":[
    {"name":"index","type":"uint256","indexed":true},
    {"name":"from","type":"address","indexed":false},
    {"name":"to","type":"address","indexed":false},
    {"name":"value","type":"uint256","indexed":false}]},
  {"type":"event","name":"ApproveTransfer","anonymous":false,"inputs":[
    {"name":"index","type":"uint256","indexed":true},
    {"name":"from","type":"address","indexed":false},
    {"name":"to","type":"address","indexed":false},
    {"name":"value","type":"uint256","indexed":false},
    {"name":"data","type":"string","indexed":false}]}
]`

// Contract is a handle to a deployed contract: its address plus the event
// interface used for decoding.
type Contract struct {
	Address string
	ABI     abi.ABI
}

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

var (
	exchangeABI    = mustParseABI(exchangeABIJSON)
	tokenABI       = mustParseABI(tokenABIJSON)
	legacyTokenABI = mustParseABI(legacyTokenABIJSON)
	escrowABI      = mustParseABI(escrowABIJSON)
)

// NewExchangeContract returns a handle to an exchange contract.
func NewExchangeContract(address string) Contract {
	return Contract{Address: address, ABI: exchangeABI}
}

// NewTokenContract returns a handle to a token contract.
func NewTokenContract(address string) Contract {
	return Contract{Address: address, ABI: tokenABI}
}

// NewLegacyTokenContract returns a handle to an old-template token that only
// defines Transfer.
func NewLegacyTokenContract(address string) Contract {
	return Contract{Address: address, ABI: legacyTokenABI}
}

// NewEscrowContract returns a handle to an escrow contract.
func NewEscrowContract(address string) Contract {
	return Contract{Address: address, ABI: escrowABI}
}
