package subscription

import (
	"context"
	"testing"
	"time"

	"settlement-platform/internal/fulfillment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var catalogPrices = Prices{Physical: decimal.NewFromInt(450), Digital: decimal.NewFromInt(50)}

func fixedLedger(now time.Time) *Ledger {
	return NewLedger(NewMemoryRepo(), time.UTC).WithClock(func() time.Time { return now })
}

func packageSub(granted int, now time.Time) Subscription {
	return Subscription{
		CustomerID:            "c1",
		PlanType:              PlanTypePackage,
		Status:                StatusActive,
		PackageCreditsGranted: granted,
		LastMonthlyReset:      now,
	}
}

func TestRecordUsage_ConsumesCreditsThenFallsThrough(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := fixedLedger(now)
	sub := packageSub(10, now)

	for i := 0; i < 10; i++ {
		u := &fulfillment.Unit{ID: "u", IsPhysical: true}
		d := l.RecordUsage(&sub, u, catalogPrices)
		require.True(t, d.UsedPackageCredit)
		require.True(t, d.Total().IsZero())
		require.Nil(t, u.PriceSnapshot)
		require.True(t, u.CoveredByPackage)
	}
	assert.Equal(t, 10, sub.PackageCreditsUsed)

	u := &fulfillment.Unit{ID: "u11", IsPhysical: true}
	d := l.RecordUsage(&sub, u, catalogPrices)
	assert.False(t, d.UsedPackageCredit)
	assert.True(t, d.PhysicalCharge.Equal(decimal.NewFromInt(450)))
	require.NotNil(t, u.PriceSnapshot)
	assert.True(t, u.PriceSnapshot.Equal(decimal.NewFromInt(450)))
	assert.Equal(t, 10, sub.PackageCreditsUsed)
	assert.Equal(t, 11, sub.UnitsThisMonth)
	assert.LessOrEqual(t, sub.PackageCreditsUsed, sub.PackageCreditsGranted)
}

func TestRecordUsage_InactivePackageDoesNotUseCredits(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := fixedLedger(now)
	sub := packageSub(5, now)
	sub.Status = StatusExpired

	u := &fulfillment.Unit{ID: "u1", IsPhysical: true}
	d := l.RecordUsage(&sub, u, catalogPrices)
	assert.False(t, d.UsedPackageCredit)
	assert.Equal(t, 0, sub.PackageCreditsUsed)
	assert.True(t, d.PhysicalCharge.Equal(decimal.NewFromInt(450)))
}

func TestRecordUsage_UpstreamSnapshotWins(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := fixedLedger(now)
	sub := PayPerUse("c1", now)

	snap := decimal.RequireFromString("399.90")
	u := &fulfillment.Unit{ID: "u1", IsPhysical: true, HasDigitalDeliverable: true, PriceSnapshot: &snap}
	d := l.RecordUsage(&sub, u, catalogPrices)

	assert.True(t, d.PhysicalCharge.Equal(snap))
	assert.True(t, d.DigitalCharge.IsZero(), "physical units with a digital deliverable are charged once")
	assert.True(t, sub.CostThisMonth.Equal(snap))
	assert.Equal(t, 0, sub.DigitalThisMonth)
}

func TestRecordUsage_DigitalOnly(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := fixedLedger(now)
	sub := packageSub(3, now)

	u := &fulfillment.Unit{ID: "u1", HasDigitalDeliverable: true}
	d := l.RecordUsage(&sub, u, catalogPrices)

	assert.True(t, d.DigitalCharge.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 0, sub.PackageCreditsUsed, "digital work never consumes package credits")
	assert.Equal(t, 1, sub.DigitalThisMonth)
}

func TestRecordUsage_IsIdempotentPerUnit(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := fixedLedger(now)
	sub := packageSub(2, now)

	u := &fulfillment.Unit{ID: "u1", IsPhysical: true}
	l.RecordUsage(&sub, u, catalogPrices)
	d := l.RecordUsage(&sub, u, catalogPrices)

	assert.True(t, d.UsedPackageCredit)
	assert.Equal(t, 1, sub.PackageCreditsUsed)
	assert.Equal(t, 1, sub.UnitsThisMonth)
}

func TestMonthlyReset_ZeroesCountersOnly(t *testing.T) {
	loc := time.FixedZone("TRT", 3*60*60)
	march := time.Date(2026, 3, 31, 12, 0, 0, 0, loc)
	sub := packageSub(10, march)
	sub.PackageCreditsUsed = 4
	sub.UnitsThisMonth = 7
	sub.DigitalThisMonth = 2
	sub.CostThisMonth = decimal.NewFromInt(900)
	sub.MonthlyFeePaid = true

	// 22:30 UTC on March 31 is already April 1 in the business timezone.
	april := time.Date(2026, 3, 31, 22, 30, 0, 0, time.UTC)
	require.True(t, MonthlyReset(&sub, april, loc))

	assert.Equal(t, 0, sub.UnitsThisMonth)
	assert.Equal(t, 0, sub.DigitalThisMonth)
	assert.True(t, sub.CostThisMonth.IsZero())
	assert.False(t, sub.MonthlyFeePaid)
	assert.Equal(t, 10, sub.PackageCreditsGranted)
	assert.Equal(t, 4, sub.PackageCreditsUsed)

	assert.False(t, MonthlyReset(&sub, april.Add(time.Hour), loc))
}

func TestLedger_LoadAppliesLazyReset(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	feb := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	sub := packageSub(10, feb)
	sub.UnitsThisMonth = 3
	require.NoError(t, repo.SaveSubscription(ctx, sub))

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l := NewLedger(repo, time.UTC).WithClock(func() time.Time { return now })

	got, ok, err := l.Load(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, got.UnitsThisMonth)

	_, ok, err = l.Load(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrantPackageAndRecalculate(t *testing.T) {
	sub := PayPerUse("c1", time.Now())
	plan := Plan{ID: "p10", Type: PlanTypePackage, PackageCredits: 10, PackagePrice: decimal.NewFromInt(3990)}

	require.NoError(t, GrantPackage(&sub, plan))
	require.NoError(t, GrantPackage(&sub, plan))
	assert.Equal(t, 20, sub.PackageCreditsGranted)
	assert.Equal(t, PlanTypePackage, sub.PlanType)
	assert.Equal(t, StatusActive, sub.Status)

	RecalculateUsage(&sub, 25)
	assert.Equal(t, 20, sub.PackageCreditsUsed)
	RecalculateUsage(&sub, 3)
	assert.Equal(t, 3, sub.PackageCreditsUsed)

	assert.ErrorIs(t, GrantPackage(&sub, Plan{ID: "std", Type: PlanTypeStandard}), ErrInvalidArgument)
}

func TestRevokePackage(t *testing.T) {
	now := time.Now()
	sub := packageSub(20, now)
	sub.PackageCreditsUsed = 8

	require.NoError(t, RevokePackage(&sub, 10))
	assert.Equal(t, 10, sub.PackageCreditsGranted)
	assert.Equal(t, 2, sub.RemainingCredits())

	assert.ErrorIs(t, RevokePackage(&sub, 10), ErrCreditsConsumed)
	assert.Equal(t, 10, sub.PackageCreditsGranted, "a refused revocation changes nothing")
	assert.ErrorIs(t, RevokePackage(&sub, 0), ErrInvalidArgument)
}
