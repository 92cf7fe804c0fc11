package treasury

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/treasury/backend/internal/domain/shared"
)

// Error codes, grouped by category. Codes are stable; messages are not.
const (
	// not-found
	CodePoolNotFound         = "POOL_NOT_FOUND"
	CodeSweepNotFound        = "SWEEP_NOT_FOUND"
	CodeAllocationNotFound   = "ALLOCATION_NOT_FOUND"
	CodeConfigChangeNotFound = "CONFIG_CHANGE_NOT_FOUND"

	// state
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodePoolNotActive          = "POOL_NOT_ACTIVE"
	CodePoolSuspended          = "POOL_SUSPENDED"
	CodePendingTransactions    = "PENDING_TRANSACTIONS_EXIST"

	// validation
	CodeInvalidCurrencyMix     = "INVALID_CURRENCY_MIX"
	CodeInvalidRate            = "INVALID_RATE"
	CodeInvalidThreshold       = "INVALID_THRESHOLD"
	CodeInvalidTarget          = "INVALID_TARGET"
	CodeInactiveBankAccount    = "INACTIVE_BANK_ACCOUNT"
	CodeStaleBalance           = "STALE_BALANCE"
	CodeInsufficientMembers    = "INSUFFICIENT_MEMBER_ACCOUNTS"
	CodeDuplicateMemberAccount = "DUPLICATE_MEMBER_ACCOUNT"

	// authorization
	CodeSodViolation              = "SOD_VIOLATION"
	CodeDualAuthorizationRequired = "DUAL_AUTHORIZATION_REQUIRED"
	CodeScopeViolation            = "SCOPE_VIOLATION"
	CodeInsufficientPermissions   = "INSUFFICIENT_PERMISSIONS"

	// sweep
	CodeSweepBelowThreshold    = "SWEEP_BELOW_THRESHOLD"
	CodeSweepExceedsLimit      = "SWEEP_EXCEEDS_LIMIT"
	CodeSweepExecutionFailed   = "SWEEP_EXECUTION_FAILED"
	CodeAccountPairBlocked     = "ACCOUNT_PAIR_BLOCKED"
	CodeSweepAlreadyInProgress = "SWEEP_ALREADY_IN_PROGRESS"

	// interest
	CodeInterestCalculationFailed = "INTEREST_CALCULATION_FAILED"
	CodeInterestAlreadyAllocated  = "INTEREST_ALREADY_ALLOCATED"

	// config
	CodeConfigChangeNotPending      = "CONFIG_CHANGE_NOT_PENDING"
	CodeConfigChangeVersionMismatch = "CONFIG_CHANGE_VERSION_MISMATCH"

	// compliance
	CodeAgreementMissing           = "AGREEMENT_MISSING"
	CodeInterestRateNotBenchmarked = "INTEREST_RATE_NOT_BENCHMARKED"
	CodeEntityLimitExceeded        = "ENTITY_LIMIT_EXCEEDED"

	// concurrency
	CodeVersionConflict = "VERSION_CONFLICT"

	// period
	CodePeriodClosed         = "PERIOD_CLOSED"
	CodeInvalidExecutionDate = "INVALID_EXECUTION_DATE"
)

// not-found

// ErrPoolNotFound indicates the cash pool does not exist for the tenant
func ErrPoolNotFound(poolID uuid.UUID) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodePoolNotFound, "Cash pool not found",
		map[string]any{"pool_id": poolID.String()})
}

// ErrSweepNotFound indicates the cash sweep does not exist for the tenant
func ErrSweepNotFound(sweepID uuid.UUID) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeSweepNotFound, "Cash sweep not found",
		map[string]any{"sweep_id": sweepID.String()})
}

// ErrConfigChangeNotFound indicates the config change does not exist
func ErrConfigChangeNotFound(changeID uuid.UUID) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeConfigChangeNotFound, "Pool config change not found",
		map[string]any{"change_id": changeID.String()})
}

// state

// ErrInvalidStateTransition indicates a transition outside the lifecycle graph
func ErrInvalidStateTransition(from, to PoolStatus) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeInvalidStateTransition,
		fmt.Sprintf("Cannot transition pool from %s to %s", from, to),
		map[string]any{"from": string(from), "to": string(to)})
}

// ErrPoolNotActive indicates the operation requires an Active pool
func ErrPoolNotActive(status PoolStatus) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodePoolNotActive,
		fmt.Sprintf("Operation requires an active pool, pool is %s", status),
		map[string]any{"status": string(status)})
}

// ErrPoolSuspended indicates sweep and interest operations are rejected
// while the pool is suspended
func ErrPoolSuspended() *shared.DomainError {
	return shared.NewDomainError(CodePoolSuspended, "Pool is suspended; sweep and interest operations are rejected")
}

// ErrPendingTransactionsExist blocks closing a pool with open work
func ErrPendingTransactionsExist(pendingSweeps, pendingChanges int64) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodePendingTransactions,
		"Pool cannot be closed while pending sweeps or config changes remain",
		map[string]any{"pending_sweeps": pendingSweeps, "pending_config_changes": pendingChanges})
}

// validation

// ErrInvalidCurrencyMix indicates member accounts do not share the pool currency
func ErrInvalidCurrencyMix(poolCurrency, accountCurrency string) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeInvalidCurrencyMix,
		fmt.Sprintf("Member account currency %s does not match pool currency %s", accountCurrency, poolCurrency),
		map[string]any{"pool_currency": poolCurrency, "account_currency": accountCurrency})
}

// ErrInvalidRate indicates a non-positive or malformed interest rate
func ErrInvalidRate(reason string) *shared.DomainError {
	return shared.NewDomainError(CodeInvalidRate, "Invalid interest rate: "+reason)
}

// ErrInvalidThreshold indicates a negative sweep threshold
func ErrInvalidThreshold() *shared.DomainError {
	return shared.NewDomainError(CodeInvalidThreshold, "Sweep threshold must not be negative")
}

// ErrInvalidTarget indicates a target balance incompatible with the pool type
func ErrInvalidTarget(reason string) *shared.DomainError {
	return shared.NewDomainError(CodeInvalidTarget, "Invalid target balance: "+reason)
}

// ErrInactiveBankAccount indicates a member bank account is not active
func ErrInactiveBankAccount(accountID string) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeInactiveBankAccount,
		"Member bank account is inactive",
		map[string]any{"account_id": accountID})
}

// ErrStaleBalance indicates the balance snapshot is older than the
// configured tolerance and cannot be trusted for sweep sizing
func ErrStaleBalance(age, tolerance time.Duration) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeStaleBalance,
		fmt.Sprintf("Balance snapshot is %s old, tolerance is %s", age, tolerance),
		map[string]any{"age": age.String(), "tolerance": tolerance.String()})
}

// ErrInsufficientMembers indicates a pool needs at least two member accounts
func ErrInsufficientMembers(count int) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeInsufficientMembers,
		"A cash pool requires at least two member accounts",
		map[string]any{"member_count": count})
}

// ErrDuplicateMemberAccount indicates the same bank account appears twice
func ErrDuplicateMemberAccount(accountID string) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeDuplicateMemberAccount,
		"Bank account is already a member of this pool",
		map[string]any{"account_id": accountID})
}

// authorization

// ErrSodViolation indicates segregation-of-duties was violated
func ErrSodViolation(reason string) *shared.DomainError {
	return shared.NewDomainError(CodeSodViolation, "Segregation of duties violation: "+reason)
}

// ErrDualAuthorizationRequired indicates requester and approver must differ
func ErrDualAuthorizationRequired(userID uuid.UUID) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeDualAuthorizationRequired,
		"Dual authorization required: approver must differ from requester",
		map[string]any{"user_id": userID.String()})
}

// ErrScopeViolation indicates the actor may not act on this pool's entities
func ErrScopeViolation(userID, entityID uuid.UUID) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeScopeViolation,
		"User is not scoped to the legal entity owning this pool",
		map[string]any{"user_id": userID.String(), "entity_id": entityID.String()})
}

// ErrInsufficientPermissions carries the policy oracle's denial reason
func ErrInsufficientPermissions(reason string) *shared.DomainError {
	return shared.NewDomainError(CodeInsufficientPermissions, "Permission denied: "+reason)
}

// sweep

// ErrSweepBelowThreshold indicates |balance - target| is under the gate
func ErrSweepBelowThreshold(amount, threshold string) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeSweepBelowThreshold,
		fmt.Sprintf("Sweep amount %s is below threshold %s", amount, threshold),
		map[string]any{"amount": amount, "threshold": threshold})
}

// ErrSweepExceedsLimit carries which limit was hit (single or daily)
func ErrSweepExceedsLimit(limitType LimitType, amount, limit string) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeSweepExceedsLimit,
		fmt.Sprintf("Sweep amount %s exceeds %s transaction limit %s", amount, limitType, limit),
		map[string]any{"limit_type": string(limitType), "amount": amount, "limit": limit})
}

// ErrSweepExecutionFailed indicates a ledger posting failed before any
// entity leg was applied
func ErrSweepExecutionFailed(reason string) *shared.DomainError {
	return shared.NewDomainError(CodeSweepExecutionFailed, "Sweep execution failed: "+reason)
}

// ErrAccountPairBlocked indicates an unreconciled sweep blocks the pair
func ErrAccountPairBlocked(fromAccount, toAccount string) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeAccountPairBlocked,
		"An unreconciled sweep blocks this account pair",
		map[string]any{"from_account": fromAccount, "to_account": toAccount})
}

// ErrSweepAlreadyInProgress guards concurrent submissions of one key
func ErrSweepAlreadyInProgress(idempotencyKey string) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeSweepAlreadyInProgress,
		"A sweep with this idempotency key is already being processed",
		map[string]any{"idempotency_key": idempotencyKey})
}

// interest

// ErrInterestAlreadyAllocated indicates the period was already closed
func ErrInterestAlreadyAllocated(poolID uuid.UUID, periodStart, periodEnd time.Time) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeInterestAlreadyAllocated,
		"Interest has already been allocated for this period",
		map[string]any{
			"pool_id":      poolID.String(),
			"period_start": periodStart.Format("2006-01-02"),
			"period_end":   periodEnd.Format("2006-01-02"),
		})
}

// ErrInterestCalculationFailed indicates the computation could not complete
func ErrInterestCalculationFailed(reason string) *shared.DomainError {
	return shared.NewDomainError(CodeInterestCalculationFailed, "Interest calculation failed: "+reason)
}

// config

// ErrConfigChangeNotPending indicates the change was already decided
func ErrConfigChangeNotPending(status ConfigChangeStatus) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeConfigChangeNotPending,
		fmt.Sprintf("Config change is %s, only pending changes can be decided", status),
		map[string]any{"status": string(status)})
}

// ErrConfigChangeVersionMismatch indicates the pool changed since the
// approver last observed it
func ErrConfigChangeVersionMismatch(expected, actual int) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeConfigChangeVersionMismatch,
		"Pool was modified concurrently; refetch and re-approve",
		map[string]any{"expected_version": expected, "actual_version": actual})
}

// compliance

// ErrAgreementMissing indicates an intercompany pool lacks a legal agreement
func ErrAgreementMissing() *shared.DomainError {
	return shared.NewDomainError(CodeAgreementMissing,
		"Intercompany pools require a legal agreement reference")
}

// ErrInterestRateNotBenchmarked indicates no benchmark rate covers the period
func ErrInterestRateNotBenchmarked(benchmark string) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeInterestRateNotBenchmarked,
		"No benchmarked interest rate is available for the period",
		map[string]any{"benchmark": benchmark})
}

// ErrEntityLimitExceeded indicates too many member accounts for one pool
func ErrEntityLimitExceeded(limit int) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeEntityLimitExceeded,
		fmt.Sprintf("Pool exceeds the member account limit of %d", limit),
		map[string]any{"limit": limit})
}

// concurrency

// ErrVersionConflict indicates a compare-and-swap write lost the race.
// The caller must refetch and retry; the engine never retries silently.
func ErrVersionConflict(aggregate string, version int) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodeVersionConflict,
		"Stale version: the record was modified by another process",
		map[string]any{"aggregate": aggregate, "presented_version": version})
}

// period

// ErrPeriodClosed indicates the fiscal period rejects postings
func ErrPeriodClosed(date time.Time) *shared.DomainError {
	return shared.NewDomainErrorWithDetails(CodePeriodClosed,
		"Fiscal period is closed for the requested date",
		map[string]any{"date": date.Format("2006-01-02")})
}

// ErrInvalidExecutionDate indicates a malformed or out-of-range date
func ErrInvalidExecutionDate(reason string) *shared.DomainError {
	return shared.NewDomainError(CodeInvalidExecutionDate, "Invalid execution date: "+reason)
}
