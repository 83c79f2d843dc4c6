package api

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/walletguard/internal/core/domain"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, s.engine.Stats())
}

func (s *Server) getPolicy(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, s.engine.Policy().Profiles())
}

func eventLimit(r *http.Request) (int, error) {
	limit, err := queryInt(r, "limit", defaultEventLimit)
	if err != nil {
		return 0, err
	}
	if limit <= 0 || limit > maxEventLimit {
		return 0, errors.New("limit must be between 1 and 1000")
	}
	return int(limit), nil
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	since, err := queryInt(r, "since", 0)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	limit, err := eventLimit(r)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	events, err := s.events.List(r.Context(), since, limit)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, nonNil(events))
}

func (s *Server) listWalletEvents(w http.ResponseWriter, r *http.Request) {
	owner, err := addrParam(r, "owner")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	limit, err := eventLimit(r)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	info, err := s.engine.GetWalletInfo(owner)
	if err != nil {
		renderErr(w, err)
		return
	}
	events, err := s.events.ListByWallet(r.Context(), info.ID, limit)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, nonNil(events))
}

func nonNil(events []*domain.SecurityEvent) []*domain.SecurityEvent {
	if events == nil {
		return []*domain.SecurityEvent{}
	}
	return events
}

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	owner, err := addrParam(r, "owner")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	info, err := s.engine.GetWalletInfo(owner)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, info)
}

func (s *Server) getSecurityConfig(w http.ResponseWriter, r *http.Request) {
	owner, err := addrParam(r, "owner")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	cfg, err := s.engine.GetSecurityConfig(owner)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, cfg)
}

func (s *Server) getNonce(w http.ResponseWriter, r *http.Request) {
	owner, err := addrParam(r, "owner")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	nonce, err := s.engine.GetNonce(owner)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, map[string]uint64{"nonce": nonce})
}

func (s *Server) getRateLimit(w http.ResponseWriter, r *http.Request) {
	owner, err := addrParam(r, "owner")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	info, err := s.engine.GetRateLimitInfo(owner)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, info)
}

func (s *Server) getRecovery(w http.ResponseWriter, r *http.Request) {
	owner, err := addrParam(r, "owner")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	info, err := s.engine.GetRecoveryInfo(owner)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, info)
}

func (s *Server) getGuardians(w http.ResponseWriter, r *http.Request) {
	owner, err := addrParam(r, "owner")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	guardians, err := s.engine.GetGuardians(owner)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, guardians)
}

func (s *Server) isGuardian(w http.ResponseWriter, r *http.Request) {
	owner, err := addrParam(r, "owner")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	addr, err := addrParam(r, "addr")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	ok, err := s.engine.IsGuardian(owner, addr)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, map[string]bool{"guardian": ok})
}

func (s *Server) listQueued(w http.ResponseWriter, r *http.Request) {
	owner, err := addrParam(r, "owner")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	txs, err := s.engine.ListQueuedTransactions(owner)
	if err != nil {
		renderErr(w, err)
		return
	}
	if txs == nil {
		txs = []*domain.QueuedTransaction{}
	}
	renderJSON(w, txs)
}

func (s *Server) getQueued(w http.ResponseWriter, r *http.Request) {
	hash, err := hashParam(r, "hash")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	tx, err := s.engine.GetQueuedTransaction(hash)
	if err != nil {
		renderErr(w, err)
		return
	}
	renderJSON(w, tx)
}

func (s *Server) getRoleMembers(w http.ResponseWriter, r *http.Request) {
	role, err := roleParam(r)
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	members := s.engine.RoleMembers(role)
	if members == nil {
		members = []common.Address{}
	}
	renderJSON(w, members)
}

func (s *Server) hasRole(w http.ResponseWriter, r *http.Request) {
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
	renderJSON(w, map[string]bool{"has_role": s.engine.HasRole(role, account)})
}

func (s *Server) isBlacklisted(w http.ResponseWriter, r *http.Request) {
	addr, err := addrParam(r, "addr")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	renderJSON(w, map[string]bool{"blacklisted": s.engine.IsBlacklisted(addr)})
}

func (s *Server) isTokenWhitelisted(w http.ResponseWriter, r *http.Request) {
	token, err := addrParam(r, "token")
	if err != nil {
		renderBadRequest(w, err)
		return
	}
	renderJSON(w, map[string]bool{"whitelisted": s.engine.IsTokenWhitelisted(token)})
}
