package api

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/security/engine"
)

// Seeding and approvals against a simulated host.

func (s *Server) fundAccount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Account string `json:"account"`
		Amount  string `json:"amount"`
	}
	if err := decode(r, &body); err != nil {
		renderBadRequest(w, err)
		return
	}
	account, err := parseAddress("account", body.Account)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", body.Amount)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
		return s.engine.FundAccount(ctx, caller, account, amount)
	})
}

func (s *Server) mintToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token   string `json:"token"`
		Account string `json:"account"`
		Amount  string `json:"amount"`
	}
	if err := decode(r, &body); err != nil {
		renderBadRequest(w, err)
		return
	}
	token, err := parseAddress("token", body.Token)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	account, err := parseAddress("account", body.Account)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", body.Amount)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
		return s.engine.MintToken(ctx, caller, token, account, amount)
	})
}

func (s *Server) approveToken(w http.ResponseWriter, r *http.Request) {
	token, err := addrParam(r, "token")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	var body struct {
		Amount string `json:"amount"`
	}
	if err := decode(r, &body); err != nil {
		renderBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", body.Amount)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
		return s.engine.ApproveToken(ctx, caller, token, amount)
	})
}

// getHostAccount reports a native balance, or a token balance and allowance
// with ?token=.
func (s *Server) getHostAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := addrParam(r, "addr")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	token := domain.NativeToken
	if q := r.URL.Query().Get("token"); q != "" {
		if token, err = parseAddress("token", q); err != nil {
			renderBadRequest(w, err)
			return
		}
	}
	acct, err := s.engine.GetHostAccount(r.Context(), addr, token)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, acct)
}
