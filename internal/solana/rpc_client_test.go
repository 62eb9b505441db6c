package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestHTTPClient_GetBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != "getBalance" {
			t.Errorf("expected getBalance, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"context": map[string]int64{"slot": 100}, "value": 2500000000},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	lamports, err := client.GetBalance(context.Background(), "SomeWallet")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if lamports != 2500000000 {
		t.Errorf("lamports mismatch: got %d", lamports)
	}
}

func TestHTTPClient_GetTokenAccountsByOwner(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != "getTokenAccountsByOwner" {
			t.Errorf("expected getTokenAccountsByOwner, got %s", req.Method)
		}

		w.Write([]byte(`{
			"jsonrpc": "2.0",
			"id": 1,
			"result": {
				"value": [
					{"account": {"data": {"parsed": {"info": {
						"mint": "Mint1",
						"tokenAmount": {"amount": "1500000", "decimals": 6, "uiAmountString": "1.5"}
					}}}}},
					{"account": {"data": {"parsed": {"info": {
						"mint": "Mint2",
						"tokenAmount": {"amount": "0", "decimals": 9, "uiAmountString": "0"}
					}}}}}
				]
			}
		}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	balances, err := client.GetTokenAccountsByOwner(context.Background(), "SomeWallet")
	if err != nil {
		t.Fatalf("GetTokenAccountsByOwner: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("expected 2 balances, got %d", len(balances))
	}
	if balances[0].Mint != "Mint1" || !balances[0].Amount.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("balance 0 mismatch: %+v", balances[0])
	}
	if balances[1].Decimals != 9 || !balances[1].Amount.IsZero() {
		t.Errorf("balance 1 mismatch: %+v", balances[1])
	}
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":7}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	lamports, err := client.GetBalance(context.Background(), "SomeWallet")
	if err != nil {
		t.Fatalf("GetBalance after retries: %v", err)
	}
	if lamports != 7 {
		t.Errorf("lamports mismatch: got %d", lamports)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(10*time.Millisecond))

	_, err := client.GetBalance(context.Background(), "BadWallet")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("RPC errors must not be retried, got %d calls", calls.Load())
	}
}
