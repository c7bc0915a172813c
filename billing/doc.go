// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

/*
Package billing provides usage metering and billing-cycle accounting for
AI inference consumption.

# Overview

Every inference call the platform makes is recorded as an immutable
UsageRecord: the feature that triggered it, the model, input/output token
counts, and the cost derived from the model's rates at call time. A
per-user BillingAccount tracks tokens consumed within the current
calendar-month billing cycle against the plan's monthly allowance.

# Recording Usage

Create a service with a repository and pricing table:

	svc := billing.NewService(billing.NewPostgresRepository(db), billing.LoadPricingFromEnv())

Record one inference call:

	record, err := svc.RecordUsage(ctx, userID, billing.FeatureAIMatching, "claude-sonnet-4", 1500, 500)

Recording a model absent from the pricing table fails with
ErrUnknownModel; cost is never guessed. The per-1K rates in effect at
call time are pinned on the record, so later repricing never changes
historical costs.

# Billing Cycles

Cycles are calendar months in UTC. When a call arrives and the account's
stored cycle start falls in a prior month, the counter is reset to that
call's tokens alone and the cycle bounds advance; otherwise the tokens
accumulate. Counter updates are single-statement conditional UPDATEs with
a bounded retry, so concurrent calls for the same user never lose
increments. Accounts are created lazily on first usage with the default
allowance.

# Allowance and Overage

CheckAllowance reports whether a user is within their monthly allowance;
it never blocks anything itself. CalculateOverage prices consumption
beyond the allowance at the blended (input+output average) rate of the
reference model.

# Thread Safety

Service and PricingTable are safe for concurrent use.
*/
package billing
