package engine

import (
	"errors"

	"github.com/vietddude/walletguard/internal/security/access"
	"github.com/vietddude/walletguard/internal/security/guardian"
	"github.com/vietddude/walletguard/internal/security/ledger"
	"github.com/vietddude/walletguard/internal/security/policy"
	"github.com/vietddude/walletguard/internal/security/ratelimit"
	"github.com/vietddude/walletguard/internal/security/recovery"
	"github.com/vietddude/walletguard/internal/security/signer"
	"github.com/vietddude/walletguard/internal/security/txqueue"
)

var (
	ErrInvalidAddress              = errors.New("InvalidAddress")
	ErrInvalidAmount               = errors.New("InvalidAmount")
	ErrInvalidDailyLimit           = errors.New("InvalidDailyLimit")
	ErrCannotDecreaseSecurityLevel = errors.New("CannotDecreaseSecurityLevel")
	ErrWalletLocked                = errors.New("WalletLocked")
	ErrFunctionPaused              = errors.New("FunctionPaused")
	ErrInvalidFunction             = errors.New("InvalidFunction")
	ErrRecipientBlacklisted        = errors.New("RecipientBlacklisted")
	ErrTokenNotWhitelisted         = errors.New("TokenNotWhitelisted")
	ErrInsufficientAllowance       = errors.New("InsufficientAllowance")
	ErrContractsNotAllowed         = errors.New("ContractsNotAllowed")
	ErrReentrantCall               = errors.New("ReentrancyGuard: reentrant call")
	ErrNotGuardian                 = errors.New("NotGuardian")
	ErrExternalCallFailed          = errors.New("ExternalCallFailed")
	ErrHostNotSimulated            = errors.New("HostNotSimulated")
	ErrUnsupportedSnapshot         = errors.New("unsupported snapshot version")

	// Re-exported so callers can match without importing every component.
	ErrWalletNotFound      = ledger.ErrWalletNotFound
	ErrWalletAlreadyExists = ledger.ErrWalletAlreadyExists
	ErrInsufficientBalance = ledger.ErrInsufficientBalance
	ErrInvalidSignature    = signer.ErrInvalidSignature
)

// Category groups failures by how a caller should react to them.
type Category string

const (
	CategoryNone          Category = ""
	CategoryAuthorization Category = "authorization"
	CategoryState         Category = "state"
	CategoryPolicy        Category = "policy"
	CategoryIntegrity     Category = "integrity"
	CategoryRecovery      Category = "recovery"
	CategoryInternal      Category = "internal"
)

var categories = []struct {
	category Category
	errs     []error
}{
	{CategoryIntegrity, []error{
		signer.ErrInvalidSignature,
		ErrReentrantCall,
		ErrContractsNotAllowed,
	}},
	{CategoryAuthorization, []error{
		access.ErrAccessControl,
		access.ErrUnknownRole,
		ErrNotGuardian,
	}},
	{CategoryPolicy, []error{
		ratelimit.ErrRateLimitExceeded,
		ratelimit.ErrExceedsLimits,
		ledger.ErrInsufficientBalance,
		ErrInsufficientAllowance,
		guardian.ErrMaxGuardiansReached,
	}},
	{CategoryRecovery, []error{
		recovery.ErrAlreadyApproved,
		recovery.ErrRecoveryExpired,
		recovery.ErrNoActiveRecovery,
		recovery.ErrRecoveryAlreadyActive,
		recovery.ErrInsufficientGuardians,
		recovery.ErrNewOwnerIsCurrentOwner,
	}},
	{CategoryState, []error{
		ledger.ErrWalletNotFound,
		ledger.ErrWalletAlreadyExists,
		ledger.ErrNothingToWithdraw,
		access.ErrAlreadyInitialized,
		access.ErrPaused,
		access.ErrNotPaused,
		policy.ErrInvalidSecurityLevel,
		guardian.ErrGuardianIsOwner,
		guardian.ErrGuardianIsBlacklisted,
		guardian.ErrGuardianAlreadyExists,
		guardian.ErrGuardianNotFound,
		txqueue.ErrNotFound,
		txqueue.ErrAlreadyQueued,
		txqueue.ErrAlreadyExecuted,
		txqueue.ErrCancelled,
		txqueue.ErrNotReady,
		ErrInvalidAddress,
		ErrInvalidAmount,
		ErrInvalidDailyLimit,
		ErrCannotDecreaseSecurityLevel,
		ErrWalletLocked,
		ErrFunctionPaused,
		ErrInvalidFunction,
		ErrRecipientBlacklisted,
		ErrTokenNotWhitelisted,
		ErrHostNotSimulated,
	}},
}

// Classify returns the category of err. Errors that did not originate in the
// engine are CategoryInternal.
func Classify(err error) Category {
	if err == nil {
		return CategoryNone
	}
	// host failures carry their cause, which may itself be an engine error
	if errors.Is(err, ErrExternalCallFailed) {
		return CategoryState
	}
	for _, c := range categories {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.category
			}
		}
	}
	return CategoryInternal
}
