package ens

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
)

const (
	// maxOffchainHops bounds chained OffchainLookup reverts for one call
	maxOffchainHops = 4

	// maxGatewayResponse caps the body read from a gateway
	maxGatewayResponse = 1 << 20
)

var callbackArgs = func() abi.Arguments {
	bytesType, err := abi.NewType("bytes", "", nil)
	if err != nil {
		panic(fmt.Sprintf("ens: bytes type: %v", err))
	}
	return abi.Arguments{{Type: bytesType}, {Type: bytesType}}
}()

// offchainLookup is the decoded EIP-3668 OffchainLookup revert
type offchainLookup struct {
	sender    common.Address
	urls      []string
	callData  []byte
	callback  [4]byte
	extraData []byte
}

type gatewayRequest struct {
	Data   string `json:"data"`
	Sender string `json:"sender"`
}

type gatewayResponse struct {
	Data string `json:"data"`
}

func parseOffchainLookup(reason []byte) (offchainLookup, bool) {
	errABI := universalABI.Errors["OffchainLookup"]
	if len(reason) < 4 || !bytes.Equal(reason[:4], errABI.ID[:4]) {
		return offchainLookup{}, false
	}

	unpacked, err := errABI.Unpack(reason)
	if err != nil {
		return offchainLookup{}, false
	}
	values, ok := unpacked.([]interface{})
	if !ok || len(values) != 5 {
		return offchainLookup{}, false
	}

	var l offchainLookup
	if l.sender, ok = values[0].(common.Address); !ok {
		return offchainLookup{}, false
	}
	if l.urls, ok = values[1].([]string); !ok {
		return offchainLookup{}, false
	}
	if l.callData, ok = values[2].([]byte); !ok {
		return offchainLookup{}, false
	}
	if l.callback, ok = values[3].([4]byte); !ok {
		return offchainLookup{}, false
	}
	if l.extraData, ok = values[4].([]byte); !ok {
		return offchainLookup{}, false
	}
	return l, true
}

// followLookup queries the gateways of l in order and returns the callback calldata
func (c *Client) followLookup(ctx context.Context, l offchainLookup) ([]byte, error) {
	var lastErr error
	for _, tmpl := range l.urls {
		response, err := c.queryGateway(ctx, tmpl, l)
		if err != nil {
			logrus.WithError(err).WithField("gateway", tmpl).Debug("Offchain gateway failed")
			lastErr = err
			continue
		}

		args, err := callbackArgs.Pack(response, l.extraData)
		if err != nil {
			return nil, fmt.Errorf("error packing offchain callback: %w", err)
		}
		return append(l.callback[:], args...), nil
	}

	if lastErr == nil {
		lastErr = errors.New("no gateway urls")
	}
	return nil, fmt.Errorf("offchain lookup failed: %w", lastErr)
}

// queryGateway uses GET when the template carries {data}, POST otherwise
func (c *Client) queryGateway(ctx context.Context, tmpl string, l offchainLookup) ([]byte, error) {
	sender := strings.ToLower(l.sender.Hex())
	data := hexutil.Encode(l.callData)
	url := strings.ReplaceAll(tmpl, "{sender}", sender)

	var (
		req *http.Request
		err error
	)
	if strings.Contains(url, "{data}") {
		url = strings.ReplaceAll(url, "{data}", data)
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	} else {
		body, marshalErr := json.Marshal(gatewayRequest{Data: data, Sender: sender})
		if marshalErr != nil {
			return nil, fmt.Errorf("error encoding gateway request: %w", marshalErr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("error creating gateway request: %w", err)
	}

	resp, err := c.gateways.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error querying gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway %s returned status %d", url, resp.StatusCode)
	}

	var out gatewayResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxGatewayResponse)).Decode(&out); err != nil {
		return nil, fmt.Errorf("error decoding gateway response: %w", err)
	}
	response, err := hexutil.Decode(out.Data)
	if err != nil {
		return nil, fmt.Errorf("error decoding gateway data: %w", err)
	}
	return response, nil
}
