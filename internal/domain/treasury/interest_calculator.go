package treasury

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/treasury/backend/internal/domain/shared/valueobject"
)

// EntityContribution is one legal entity's time-weighted balance over an
// interest period: the sum of its daily closing balances across all of
// its member accounts.
type EntityContribution struct {
	EntityID            uuid.UUID
	TimeWeightedBalance decimal.Decimal
}

// ComputedAllocationLine is the calculator's per-entity output before it
// is folded into the InterestAllocation aggregate.
type ComputedAllocationLine struct {
	EntityID            uuid.UUID
	TimeWeightedBalance decimal.Decimal
	Share               decimal.Decimal
	RoundingResidual    decimal.Decimal
}

// InterestCalculator computes pool-level interest for a closed period
// and allocates it pro-rata across participating entities. Pure.
type InterestCalculator struct {
	dayCountBasis int
}

// NewInterestCalculator creates a calculator with the given day-count
// basis (360 for ACT/360, 365 for ACT/365)
func NewInterestCalculator(dayCountBasis int) *InterestCalculator {
	return &InterestCalculator{dayCountBasis: dayCountBasis}
}

// DayCountBasis returns the configured basis
func (c *InterestCalculator) DayCountBasis() int {
	return c.dayCountBasis
}

// ComputeTotalInterest computes the pool-level interest:
// sum(daily balance x rate) / day-count basis, rounded to cents.
// The time-weighted balances already carry the daily sum, so the total
// reduces to sum(twb) x rate / basis.
func (c *InterestCalculator) ComputeTotalInterest(
	contributions []EntityContribution,
	rate decimal.Decimal,
	currency valueobject.Currency,
) (valueobject.Money, error) {
	if rate.IsNegative() {
		return valueobject.Money{}, ErrInvalidRate("rate must not be negative")
	}
	if len(contributions) == 0 {
		return valueobject.Money{}, ErrInterestCalculationFailed("no entity contributions for the period")
	}

	twbSum := decimal.Zero
	for _, contrib := range contributions {
		twbSum = twbSum.Add(contrib.TimeWeightedBalance)
	}

	total := twbSum.Mul(rate).Div(decimal.NewFromInt(int64(c.dayCountBasis))).Round(2)
	return valueobject.NewMoney(total, currency)
}

// Allocate distributes the pool interest total across entities pro-rata
// by time-weighted balance contribution.
//
// Fractional cents never divide evenly: each share is floored to cents
// and the residual (total minus the sum of floored shares) is assigned
// entirely to the entity with the largest absolute contribution. Ties
// break on the lexicographically smallest entity ID, so replays are
// deterministic. The returned lines always sum to total exactly.
func (c *InterestCalculator) Allocate(
	total valueobject.Money,
	contributions []EntityContribution,
) ([]ComputedAllocationLine, error) {
	if len(contributions) == 0 {
		return nil, ErrInterestCalculationFailed("no entity contributions to allocate across")
	}

	twbSum := decimal.Zero
	for _, contrib := range contributions {
		twbSum = twbSum.Add(contrib.TimeWeightedBalance)
	}
	if twbSum.IsZero() {
		return nil, ErrInterestCalculationFailed("total time-weighted balance is zero")
	}

	lines := make([]ComputedAllocationLine, 0, len(contributions))
	allocated := decimal.Zero
	for _, contrib := range contributions {
		share := total.Amount().
			Mul(contrib.TimeWeightedBalance).
			Div(twbSum)
		// Truncate toward zero so negative totals (interest charged on
		// net-negative pools) floor symmetrically.
		share = share.Truncate(2)
		allocated = allocated.Add(share)
		lines = append(lines, ComputedAllocationLine{
			EntityID:            contrib.EntityID,
			TimeWeightedBalance: contrib.TimeWeightedBalance,
			Share:               share,
		})
	}

	residual := total.Amount().Sub(allocated)
	if !residual.IsZero() {
		idx := largestContributionIndex(lines)
		lines[idx].Share = lines[idx].Share.Add(residual)
		lines[idx].RoundingResidual = residual
	}

	return lines, nil
}

// largestContributionIndex picks the line with the largest absolute
// time-weighted balance, breaking ties on the smallest entity ID.
func largestContributionIndex(lines []ComputedAllocationLine) int {
	idx := 0
	for i := 1; i < len(lines); i++ {
		cur := lines[i].TimeWeightedBalance.Abs()
		best := lines[idx].TimeWeightedBalance.Abs()
		switch {
		case cur.GreaterThan(best):
			idx = i
		case cur.Equal(best) && lines[i].EntityID.String() < lines[idx].EntityID.String():
			idx = i
		}
	}
	return idx
}

// ContributionsFromDailyBalances folds per-account daily balances into
// per-entity time-weighted contributions, sorted by entity ID for
// deterministic ordering.
func ContributionsFromDailyBalances(balances []DatedEntityBalance) []EntityContribution {
	byEntity := make(map[uuid.UUID]decimal.Decimal)
	for _, b := range balances {
		byEntity[b.EntityID] = byEntity[b.EntityID].Add(b.Balance)
	}

	contributions := make([]EntityContribution, 0, len(byEntity))
	for entityID, twb := range byEntity {
		contributions = append(contributions, EntityContribution{
			EntityID:            entityID,
			TimeWeightedBalance: twb,
		})
	}
	sort.Slice(contributions, func(i, j int) bool {
		return contributions[i].EntityID.String() < contributions[j].EntityID.String()
	})
	return contributions
}
