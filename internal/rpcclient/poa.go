package rpcclient

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// NewPOARoundTripper wraps an http.RoundTripper so eth_getBlockByNumber and
// eth_getBlockByHash responses from proof-of-authority chains (BSC, Polygon
// PoS, and other clique/parlia forks) decode cleanly. Those chains pack the
// validator signature into the block header's extraData field, which runs
// well past the 32 bytes a vanilla client expects; some downstream decoders
// choke on the longer field, so this truncates it to the first word before
// the body ever reaches the JSON-RPC decoder. Mirrors the same fixup
// web3.py's geth_poa_middleware applies, at the transport layer instead of
// the model layer.
func NewPOARoundTripper(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &poaRoundTripper{base: base}
}

type poaRoundTripper struct {
	base http.RoundTripper
}

func (t *poaRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.Body == nil {
		return resp, err
	}

	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return resp, readErr
	}

	patched, patchErr := patchExtraData(body)
	if patchErr != nil {
		// Not a block response we understand (batch call, error, non-JSON) -
		// pass the original bytes through untouched.
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return resp, nil
	}

	resp.Body = io.NopCloser(bytes.NewReader(patched))
	resp.ContentLength = int64(len(patched))
	return resp, nil
}

// patchExtraData truncates result.extraData to 32 bytes (66 hex chars
// including "0x") when present, leaving every other field untouched.
func patchExtraData(body []byte) ([]byte, error) {
	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Result) == 0 || envelope.Result[0] != '{' {
		return nil, errNotABlock
	}

	var block map[string]any
	if err := json.Unmarshal(envelope.Result, &block); err != nil {
		return nil, err
	}
	extra, ok := block["extraData"].(string)
	if !ok {
		return nil, errNotABlock
	}
	if len(extra) > 66 {
		block["extraData"] = extra[:66]
	}

	newResult, err := json.Marshal(block)
	if err != nil {
		return nil, err
	}

	var full map[string]json.RawMessage
	if err := json.Unmarshal(body, &full); err != nil {
		return nil, err
	}
	full["result"] = newResult
	return json.Marshal(full)
}

var errNotABlock = errNotABlockError{}

type errNotABlockError struct{}

func (errNotABlockError) Error() string { return "rpcclient: response is not a block" }
