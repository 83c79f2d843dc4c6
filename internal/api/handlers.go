package api

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/security/engine"
)

type operation func(ctx context.Context, caller common.Address) (*engine.Receipt, error)

// run executes op for the authenticated caller and renders its receipt.
func (s *Server) run(w http.ResponseWriter, r *http.Request, op operation) {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		renderAuthErr(w, errNoCaller)
		return
	}
	receipt, err := op(r.Context(), caller)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, receipt)
}

func (s *Server) createWallet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DailyLimit    string `json:"daily_limit"`
		SecurityLevel int    `json:"security_level"`
	}
	if err := decode(r, &body); err != nil {
		renderBadRequest(w, err)
		return
	}
	limit, err := parseAmount("daily_limit", body.DailyLimit)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
		return s.engine.CreateWallet(ctx, caller, limit, domain.SecurityLevel(body.SecurityLevel))
	})
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	owner, err := addrParam(r, "owner")
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
		return s.engine.Deposit(ctx, caller, owner, amount)
	})
}

func (s *Server) updateSecurityLevel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Level int `json:"level"`
	}
	if err := decode(r, &body); err != nil {
		renderBadRequest(w, err)
		return
	}
	s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
		return s.engine.UpdateSecurityLevel(ctx, caller, domain.SecurityLevel(body.Level))
	})
}

func (s *Server) setDailyLimit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DailyLimit string `json:"daily_limit"`
	}
	if err := decode(r, &body); err != nil {
		renderBadRequest(w, err)
		return
	}
	limit, err := parseAmount("daily_limit", body.DailyLimit)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
		return s.engine.SetDailyLimit(ctx, caller, limit)
	})
}

type transferBody struct {
	Token     string `json:"token,omitempty"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Signature string `json:"signature"`
}

func (s *Server) transferNative(w http.ResponseWriter, r *http.Request) {
	s.transfer(w, r, false)
}

func (s *Server) transferTokens(w http.ResponseWriter, r *http.Request) {
	s.transfer(w, r, true)
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request, tokens bool) {
	var body transferBody
	if err := decode(r, &body); err != nil {
		renderBadRequest(w, err)
		return
	}
	to, err := parseAddress("to", body.To)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", body.Amount)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	sig, err := hexutil.Decode(body.Signature)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	if !tokens {
		s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
			return s.engine.TransferNative(ctx, caller, to, amount, sig)
		})
		return
	}
	token, err := parseAddress("token", body.Token)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
		return s.engine.TransferTokens(ctx, caller, token, to, amount, sig)
	})
}

func (s *Server) confirmQueued(w http.ResponseWriter, r *http.Request) {
	hash, err := hashParam(r, "hash")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
		return s.engine.ConfirmQueuedTransaction(ctx, caller, hash)
	})
}

func (s *Server) cancelQueued(w http.ResponseWriter, r *http.Request) {
	hash, err := hashParam(r, "hash")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
		return s.engine.CancelQueuedTransaction(ctx, caller, hash)
	})
}

func (s *Server) addGuardian(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Guardian string `json:"guardian"`
	}
	if err := decode(r, &body); err != nil {
		renderBadRequest(w, err)
		return
	}
	g, err := parseAddress("guardian", body.Guardian)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
		return s.engine.AddGuardian(ctx, caller, g)
	})
}

func (s *Server) removeGuardian(w http.ResponseWriter, r *http.Request) {
	g, err := addrParam(r, "guardian")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
		return s.engine.RemoveGuardian(ctx, caller, g)
	})
}

func (s *Server) initiateRecovery(w http.ResponseWriter, r *http.Request) {
	owner, err := addrParam(r, "owner")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	var body struct {
		NewOwner string `json:"new_owner"`
	}
	if err := decode(r, &body); err != nil {
		renderBadRequest(w, err)
		return
	}
	newOwner, err := parseAddress("new_owner", body.NewOwner)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
		return s.engine.InitiateRecovery(ctx, caller, owner, newOwner)
	})
}

func (s *Server) approveRecovery(w http.ResponseWriter, r *http.Request) {
	owner, err := addrParam(r, "owner")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
		return s.engine.ApproveRecovery(ctx, caller, owner)
	})
}

func (s *Server) cancelRecovery(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, s.engine.CancelRecovery)
}

func (s *Server) receive(w http.ResponseWriter, r *http.Request) {
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
		return s.engine.Receive(ctx, caller, amount)
	})
}

// -----------------------------------------------------------------------------
// Admin
// -----------------------------------------------------------------------------

func (s *Server) initialize(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Admin string `json:"admin"`
	}
	if err := decode(r, &body); err != nil {
		renderBadRequest(w, err)
		return
	}
	admin, err := parseAddress("admin", body.Admin)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
		return s.engine.Initialize(ctx, caller, admin)
	})
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, s.engine.Pause)
}

func (s *Server) unpause(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, s.engine.Unpause)
}

func (s *Server) emergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, s.engine.EmergencyWithdraw)
}

func (s *Server) renounceRole(w http.ResponseWriter, r *http.Request) {
	role, err := roleParam(r)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
		return s.engine.RenounceRole(ctx, caller, role)
	})
}

func (s *Server) grantRole(w http.ResponseWriter, r *http.Request) {
	s.roleOp(w, r, s.engine.GrantRole)
}

func (s *Server) revokeRole(w http.ResponseWriter, r *http.Request) {
	s.roleOp(w, r, s.engine.RevokeRole)
}

func (s *Server) roleOp(w http.ResponseWriter, r *http.Request, fn func(context.Context, common.Address, domain.Role, common.Address) (*engine.Receipt, error)) {
	role, err := roleParam(r)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	account, err := addrParam(r, "account")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
		return fn(ctx, caller, role, account)
	})
}

type addressOp func(ctx context.Context, caller, addr common.Address) (*engine.Receipt, error)

// addressRoute runs fn with the address in URL parameter param.
func (s *Server) addressRoute(param string, fn addressOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr, err := addrParam(r, param)
		if err != nil {
			renderBadRequest(w, err)
			return
		}
		s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
			return fn(ctx, caller, addr)
		})
	}
}

func (s *Server) blacklist(w http.ResponseWriter, r *http.Request) {
	s.addressRoute("addr", s.engine.BlacklistAddress)(w, r)
}

func (s *Server) unblacklist(w http.ResponseWriter, r *http.Request) {
	s.addressRoute("addr", s.engine.UnblacklistAddress)(w, r)
}

func (s *Server) whitelistToken(w http.ResponseWriter, r *http.Request) {
	s.addressRoute("token", s.engine.WhitelistToken)(w, r)
}

func (s *Server) delistToken(w http.ResponseWriter, r *http.Request) {
	s.addressRoute("token", s.engine.DelistToken)(w, r)
}

func (s *Server) lockWallet(w http.ResponseWriter, r *http.Request) {
	s.addressRoute("owner", s.engine.LockWallet)(w, r)
}

func (s *Server) unlockWallet(w http.ResponseWriter, r *http.Request) {
	s.addressRoute("owner", s.engine.UnlockWallet)(w, r)
}

func (s *Server) pauseFunction(w http.ResponseWriter, r *http.Request) {
	s.functionOp(w, r, s.engine.PauseFunction)
}

func (s *Server) unpauseFunction(w http.ResponseWriter, r *http.Request) {
	s.functionOp(w, r, s.engine.UnpauseFunction)
}

func (s *Server) functionOp(w http.ResponseWriter, r *http.Request, fn func(context.Context, common.Address, common.Address, domain.Function) (*engine.Receipt, error)) {
	owner, err := addrParam(r, "owner")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	// Unknown names are passed through so the engine reports InvalidFunction.
	name := domain.Function(chi.URLParam(r, "fn"))
	s.run(w, r, func(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
		return fn(ctx, caller, owner, name)
	})
}
