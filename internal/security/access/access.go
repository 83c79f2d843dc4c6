// Package access implements role-based permissioning and the contract-wide
// security state: role grants, blacklist, global pause and token whitelist.
package access

import (
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/vietddude/walletguard/internal/core/domain"
)

var (
	// ErrAccessControl matches every missing-role failure via errors.Is.
	ErrAccessControl = errors.New("AccessControl")

	ErrAlreadyInitialized = errors.New("Initializable: already initialized")
	ErrPaused             = errors.New("Pausable: paused")
	ErrNotPaused          = errors.New("Pausable: not paused")
	ErrUnknownRole        = errors.New("AccessControl: unknown role")
)

// MissingRoleError reports that an account lacks every role an operation accepts.
type MissingRoleError struct {
	Account common.Address
	Role    domain.Role
}

func (e *MissingRoleError) Error() string {
	return fmt.Sprintf("AccessControl: account %s is missing role %s",
		strings.ToLower(e.Account.Hex()), RoleID(e.Role).Hex())
}

func (e *MissingRoleError) Is(target error) bool {
	return target == ErrAccessControl
}

// RoleID returns the 32-byte identifier of a role: zero for DEFAULT_ADMIN,
// keccak256 of the role name otherwise.
func RoleID(r domain.Role) common.Hash {
	if r == domain.RoleDefaultAdmin {
		return common.Hash{}
	}
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(r))
	return common.BytesToHash(h.Sum(nil))
}

// State is the global security state shared by every wallet.
// It is not safe for concurrent use; the engine serializes access.
type State struct {
	initialized bool
	paused      bool
	roles       map[domain.Role]mapset.Set[common.Address]
	blacklist   mapset.Set[common.Address]
	tokens      mapset.Set[common.Address]
}

// NewState returns an uninitialized state with no grants.
func NewState() *State {
	s := &State{
		roles:     make(map[domain.Role]mapset.Set[common.Address], len(domain.Roles)),
		blacklist: mapset.NewThreadUnsafeSet[common.Address](),
		tokens:    mapset.NewThreadUnsafeSet[common.Address](),
	}
	for _, r := range domain.Roles {
		s.roles[r] = mapset.NewThreadUnsafeSet[common.Address]()
	}
	return s
}

// Initialize grants the bootstrap roles to admin. It may run only once.
func (s *State) Initialize(admin common.Address) error {
	if s.initialized {
		return ErrAlreadyInitialized
	}
	s.initialized = true
	s.roles[domain.RoleDefaultAdmin].Add(admin)
	s.roles[domain.RoleAdmin].Add(admin)
	s.roles[domain.RoleEmergency].Add(admin)
	return nil
}

// Initialized reports whether Initialize has run.
func (s *State) Initialized() bool { return s.initialized }

// HasRole reports whether account holds role.
func (s *State) HasRole(role domain.Role, account common.Address) bool {
	set, ok := s.roles[role]
	return ok && set.Contains(account)
}

// Require succeeds when account holds at least one of roles. The error names
// the first role listed.
func (s *State) Require(account common.Address, roles ...domain.Role) error {
	for _, r := range roles {
		if s.HasRole(r, account) {
			return nil
		}
	}
	if len(roles) == 0 {
		return ErrUnknownRole
	}
	return &MissingRoleError{Account: account, Role: roles[0]}
}

// Grant adds account to role and reports whether anything changed.
func (s *State) Grant(role domain.Role, account common.Address) (bool, error) {
	set, ok := s.roles[role]
	if !ok {
		return false, ErrUnknownRole
	}
	return set.Add(account), nil
}

// Revoke removes account from role and reports whether anything changed.
func (s *State) Revoke(role domain.Role, account common.Address) (bool, error) {
	set, ok := s.roles[role]
	if !ok {
		return false, ErrUnknownRole
	}
	if !set.Contains(account) {
		return false, nil
	}
	set.Remove(account)
	return true, nil
}

// Members lists the holders of role in address order.
func (s *State) Members(role domain.Role) []common.Address {
	set, ok := s.roles[role]
	if !ok {
		return nil
	}
	return domain.SortAddresses(set.ToSlice())
}

func (s *State) Paused() bool { return s.paused }

// RequireNotPaused fails with ErrPaused while the engine is globally paused.
func (s *State) RequireNotPaused() error {
	if s.paused {
		return ErrPaused
	}
	return nil
}

// Pause stops wallet creation and transfers contract-wide.
func (s *State) Pause() error {
	if s.paused {
		return ErrPaused
	}
	s.paused = true
	return nil
}

// Unpause lifts a global pause.
func (s *State) Unpause() error {
	if !s.paused {
		return ErrNotPaused
	}
	s.paused = false
	return nil
}

func (s *State) IsBlacklisted(a common.Address) bool { return s.blacklist.Contains(a) }

// Blacklist adds a and reports whether it was newly added.
func (s *State) Blacklist(a common.Address) bool { return s.blacklist.Add(a) }

// Unblacklist removes a and reports whether it was present.
func (s *State) Unblacklist(a common.Address) bool {
	if !s.blacklist.Contains(a) {
		return false
	}
	s.blacklist.Remove(a)
	return true
}

func (s *State) IsTokenWhitelisted(token common.Address) bool { return s.tokens.Contains(token) }

// WhitelistToken allows token in token transfers.
func (s *State) WhitelistToken(token common.Address) bool { return s.tokens.Add(token) }

// DelistToken removes token from the whitelist.
func (s *State) DelistToken(token common.Address) bool {
	if !s.tokens.Contains(token) {
		return false
	}
	s.tokens.Remove(token)
	return true
}

// Snapshot exports the state for persistence.
func (s *State) Snapshot() domain.GlobalSnapshot {
	snap := domain.GlobalSnapshot{
		Initialized: s.initialized,
		Paused:      s.paused,
		Roles:       make(map[domain.Role][]common.Address, len(s.roles)),
		Blacklist:   domain.SortAddresses(s.blacklist.ToSlice()),
		Tokens:      domain.SortAddresses(s.tokens.ToSlice()),
	}
	for r, set := range s.roles {
		if set.Cardinality() > 0 {
			snap.Roles[r] = domain.SortAddresses(set.ToSlice())
		}
	}
	return snap
}

// Restore replaces the state with snap.
func (s *State) Restore(snap domain.GlobalSnapshot) {
	*s = *NewState()
	s.initialized = snap.Initialized
	s.paused = snap.Paused
	for r, members := range snap.Roles {
		if set, ok := s.roles[r]; ok {
			set.Append(members...)
		}
	}
	s.blacklist.Append(snap.Blacklist...)
	s.tokens.Append(snap.Tokens...)
}
