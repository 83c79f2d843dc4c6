package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vietddude/walletguard/internal/security/signer"
)

const (
	HeaderCaller    = "X-Caller"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
	HeaderSignature = "X-Signature"

	maxBodySize  = 1 << 20
	maxNonceSize = 64
	maxNonces    = 1 << 16
)

var (
	ErrMissingAuth      = errors.New("missing authentication headers")
	ErrStaleRequest     = errors.New("request timestamp outside the accepted window")
	ErrCallerMismatch   = errors.New("signature does not match caller")
	ErrMalformedRequest = errors.New("malformed authentication headers")
	ErrReplayedRequest  = errors.New("request nonce already used")
)

// RequestDigest is the eth-signed hash a caller signs to authenticate a
// request: keccak256(method ‖ path ‖ timestamp ‖ nonce ‖ body).
func RequestDigest(method, path, timestamp, nonce string, body []byte) common.Hash {
	return signer.EthSignedHash(signer.Keccak256([]byte(method), []byte(path), []byte(timestamp), []byte(nonce), body))
}

// SignRequest sets the authentication headers on req for key. The body must
// already be attached.
func SignRequest(req *http.Request, key *btcec.PrivateKey, now time.Time) error {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	ts := strconv.FormatInt(now.Unix(), 10)
	nonce := uuid.NewString()
	sig, err := signer.Sign(key, RequestDigest(req.Method, req.URL.Path, ts, nonce, body))
	if err != nil {
		return err
	}
	req.Header.Set(HeaderCaller, signer.PubkeyToAddress(key.PubKey()).Hex())
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderNonce, nonce)
	req.Header.Set(HeaderSignature, hexutil.Encode(sig))
	return nil
}

// nonceSet remembers the nonces of accepted requests for twice the auth
// window, after which their timestamps are stale anyway.
type nonceSet struct {
	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

func newNonceSet(window time.Duration) *nonceSet {
	return &nonceSet{seen: expirable.NewLRU[string, struct{}](maxNonces, nil, 2*window)}
}

// claim reports whether caller has not used nonce before, and records it.
func (s *nonceSet) claim(caller common.Address, nonce string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := caller.Hex() + "/" + nonce
	if s.seen.Contains(key) {
		return false
	}
	s.seen.Add(key, struct{}{})
	return true
}

// handleAuth verifies the signed headers, rejects replays and stores the
// caller in the request context.
func handleAuth(window time.Duration, now func() time.Time) func(next http.Handler) http.Handler {
	nonces := newNonceSet(window)
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			caller, err := authenticate(r, window, now())
			if err == nil && !nonces.claim(caller, r.Header.Get(HeaderNonce)) {
				err = ErrReplayedRequest
			}
			if err != nil {
				renderAuthErr(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		}
		return http.HandlerFunc(fn)
	}
}

func authenticate(r *http.Request, window time.Duration, now time.Time) (common.Address, error) {
	callerHex := r.Header.Get(HeaderCaller)
	ts := r.Header.Get(HeaderTimestamp)
	nonce := r.Header.Get(HeaderNonce)
	sigHex := r.Header.Get(HeaderSignature)
	if callerHex == "" || ts == "" || nonce == "" || sigHex == "" {
		return common.Address{}, ErrMissingAuth
	}
	if len(nonce) > maxNonceSize {
		return common.Address{}, fmt.Errorf("%w: nonce", ErrMalformedRequest)
	}
	if !common.IsHexAddress(callerHex) {
		return common.Address{}, fmt.Errorf("%w: caller", ErrMalformedRequest)
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: timestamp", ErrMalformedRequest)
	}
	if skew := now.Sub(time.Unix(unix, 0)); skew > window || skew < -window {
		return common.Address{}, ErrStaleRequest
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: signature", ErrMalformedRequest)
	}

	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodySize))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: body: %v", ErrMalformedRequest, err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	signerAddr, err := signer.Recover(RequestDigest(r.Method, r.URL.Path, ts, nonce, body), sig)
	if err != nil {
		return common.Address{}, err
	}
	caller := common.HexToAddress(callerHex)
	if signerAddr != caller {
		return common.Address{}, ErrCallerMismatch
	}
	return caller, nil
}
