// Package ens resolves Ethereum Name Service names through the universal resolver.
//
// The universal resolver walks the registry on chain, so wildcard resolvers
// (ENSIP-10) answer for subnames without a registry entry of their own. Names
// served offchain are followed through EIP-3668 gateways when enabled.
package ens

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned when a name or address has no usable binding
	ErrNotFound = errors.New("ens: no binding")

	// ErrInvalidName is returned for names that fail normalization
	ErrInvalidName = errors.New("ens: invalid name")
)

const universalABIJSON = `[
	{"type":"function","name":"resolve","stateMutability":"view",
	 "inputs":[{"name":"name","type":"bytes"},{"name":"data","type":"bytes"}],
	 "outputs":[{"name":"","type":"bytes"},{"name":"","type":"address"}]},
	{"type":"function","name":"reverse","stateMutability":"view",
	 "inputs":[{"name":"reverseName","type":"bytes"}],
	 "outputs":[{"name":"","type":"string"},{"name":"","type":"address"},{"name":"","type":"address"},{"name":"","type":"address"}]},
	{"type":"error","name":"OffchainLookup",
	 "inputs":[{"name":"sender","type":"address"},{"name":"urls","type":"string[]"},{"name":"callData","type":"bytes"},
	           {"name":"callbackFunction","type":"bytes4"},{"name":"extraData","type":"bytes"}]}
]`

const resolverABIJSON = `[
	{"type":"function","name":"addr","stateMutability":"view",
	 "inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]}
]`

var (
	universalABI = mustParseABI(universalABIJSON)
	resolverABI  = mustParseABI(resolverABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("ens: parse abi: %v", err))
	}
	return parsed
}

// Client performs forward and reverse ENS lookups through a contract caller
type Client struct {
	caller    ethereum.ContractCaller
	universal common.Address
	gateways  *http.Client
	closer    func()
}

// NewClient creates a client over an existing contract caller. A nil gateways
// client disables offchain lookups.
func NewClient(caller ethereum.ContractCaller, universal common.Address, gateways *http.Client) *Client {
	return &Client{
		caller:    caller,
		universal: universal,
		gateways:  gateways,
	}
}

// Dial connects to a JSON-RPC endpoint using httpClient for transport.
// When offchain is set the same client also queries EIP-3668 gateways.
func Dial(ctx context.Context, endpoint string, universal common.Address, httpClient *http.Client, offchain bool) (*Client, error) {
	rpcClient, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("error dialing %s: %w", endpoint, err)
	}

	logrus.WithFields(logrus.Fields{
		"endpoint":  endpoint,
		"universal": universal.Hex(),
		"offchain":  offchain,
	}).Debug("ENS client connected")

	c := NewClient(ethclient.NewClient(rpcClient), universal, nil)
	if offchain {
		c.gateways = httpClient
	}
	c.closer = rpcClient.Close
	return c, nil
}

// Close releases the underlying RPC connection, if any
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Forward returns the address bound to name.
// ErrNotFound is returned when no resolver or no address record exists.
func (c *Client) Forward(ctx context.Context, name string) (common.Address, error) {
	normalized, err := Normalize(name)
	if err != nil {
		return common.Address{}, err
	}
	encoded, err := DNSEncode(normalized)
	if err != nil {
		return common.Address{}, err
	}
	query, err := resolverABI.Pack("addr", [32]byte(Namehash(normalized)))
	if err != nil {
		return common.Address{}, fmt.Errorf("error packing addr: %w", err)
	}

	values, err := c.call(ctx, "resolve", encoded, query)
	if err != nil {
		return common.Address{}, err
	}

	record, ok := values[0].([]byte)
	if !ok {
		return common.Address{}, fmt.Errorf("error decoding resolve: unexpected %T", values[0])
	}
	if len(record) == 0 {
		return common.Address{}, fmt.Errorf("%w: %s has no address record", ErrNotFound, normalized)
	}

	out, err := resolverABI.Unpack("addr", record)
	if err != nil {
		return common.Address{}, fmt.Errorf("error decoding addr: %w", err)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("error decoding addr: unexpected %T", out[0])
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s has no address record", ErrNotFound, normalized)
	}

	return addr, nil
}

// Reverse returns the primary name of addr.
// The name is only returned when it forward-resolves back to addr.
func (c *Client) Reverse(ctx context.Context, addr common.Address) (string, error) {
	encoded, err := DNSEncode(ReverseName(addr))
	if err != nil {
		return "", err
	}

	values, err := c.call(ctx, "reverse", encoded)
	if err != nil {
		return "", err
	}

	name, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("error decoding reverse: unexpected %T", values[0])
	}
	if name == "" {
		return "", fmt.Errorf("%w: no primary name for %s", ErrNotFound, addr.Hex())
	}
	bound, ok := values[1].(common.Address)
	if !ok {
		return "", fmt.Errorf("error decoding reverse: unexpected %T", values[1])
	}
	if bound != addr {
		return "", fmt.Errorf("%w: %s resolves to %s, not %s", ErrNotFound, name, bound.Hex(), addr.Hex())
	}

	return name, nil
}

// call runs method on the universal resolver, following offchain lookups
func (c *Client) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := universalABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("error packing %s: %w", method, err)
	}

	to := c.universal
	for hop := 0; ; hop++ {
		raw, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		if err == nil {
			if len(raw) == 0 {
				return nil, fmt.Errorf("%w: empty %s response from %s", ErrNotFound, method, to.Hex())
			}
			values, err := universalABI.Unpack(method, raw)
			if err != nil {
				return nil, fmt.Errorf("error decoding %s: %w", method, err)
			}
			return values, nil
		}

		reason, reverted := revertData(err)
		if !reverted {
			return nil, fmt.Errorf("error calling %s on %s: %w", method, to.Hex(), err)
		}
		lookup, ok := parseOffchainLookup(reason)
		if !ok {
			return nil, fmt.Errorf("%w: %s reverted: %v", ErrNotFound, method, err)
		}
		if c.gateways == nil {
			return nil, fmt.Errorf("%w: %s needs an offchain lookup", ErrNotFound, method)
		}
		if hop >= maxOffchainHops {
			return nil, fmt.Errorf("error calling %s: more than %d offchain lookups", method, maxOffchainHops)
		}
		if lookup.sender != to {
			return nil, fmt.Errorf("error calling %s: offchain lookup sender %s is not %s", method, lookup.sender.Hex(), to.Hex())
		}

		data, err = c.followLookup(ctx, lookup)
		if err != nil {
			return nil, err
		}
	}
}

// revertData extracts the revert payload of a failed eth_call
func revertData(err error) ([]byte, bool) {
	var de rpc.DataError
	if errors.As(err, &de) {
		if s, ok := de.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(s); decodeErr == nil {
				return data, true
			}
		}
	}
	if strings.Contains(err.Error(), "execution reverted") {
		return nil, true
	}
	return nil, false
}
