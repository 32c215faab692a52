package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"callcenter-platform/internal/calls"
	"callcenter-platform/internal/credits"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestReporting_CompanyIsolation(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []calls.Call{
		{ID: "c1", CompanyID: "co1", UserID: "u1", Status: calls.CallStatusCompleted, DurationSeconds: 30, Cost: dec("0.05"), CreatedAt: now},
		{ID: "c2", CompanyID: "co2", UserID: "u2", Status: calls.CallStatusCompleted, DurationSeconds: 50, Cost: dec("0.08"), CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{CompanyID: "co1", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 1 {
		t.Fatalf("expected 1 call, got %d", out.TotalCalls)
	}
	if !out.TotalCost.Equal(dec("0.05")) {
		t.Fatalf("expected cost 0.05, got %s", out.TotalCost)
	}
}

func TestReporting_CallsSummaryAggregates(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []calls.Call{
		{ID: "c1", CompanyID: "co", UserID: "u1", Status: calls.CallStatusCompleted, BillingStatus: calls.BillingStatusBilled, DurationSeconds: 60, Cost: dec("0.10"), Sentiment: "positive", RecordingURL: "https://r/1", CreatedAt: now},
		{ID: "c2", CompanyID: "co", UserID: "u1", Status: calls.CallStatusCompleted, BillingStatus: calls.BillingStatusUnbilled, DurationSeconds: 120, Cost: dec("0.20"), Sentiment: "negative", CreatedAt: now},
		{ID: "c3", CompanyID: "co", UserID: "u2", Status: calls.CallStatusFailed, BillingStatus: calls.BillingStatusBilled, DurationSeconds: 0, Sentiment: "positive", CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{CompanyID: "co", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 3 || out.CompletedCalls != 2 || out.FailedCalls != 1 {
		t.Fatalf("unexpected status counts %+v", out)
	}
	if out.BilledCalls != 2 || out.UnbilledCalls != 1 {
		t.Fatalf("unexpected billing counts %+v", out)
	}
	if out.TotalDurationSeconds != 180 || out.AverageDurationSeconds != 60 {
		t.Fatalf("unexpected durations %+v", out)
	}
	if !out.TotalCost.Equal(dec("0.30")) {
		t.Fatalf("expected total cost 0.30, got %s", out.TotalCost)
	}
	if out.SentimentBreakdown["positive"] != 2 || out.SentimentBreakdown["negative"] != 1 {
		t.Fatalf("unexpected sentiment breakdown %v", out.SentimentBreakdown)
	}
	if out.RecordedCalls != 1 {
		t.Fatalf("expected 1 recorded call, got %d", out.RecordedCalls)
	}
}

func TestReporting_SpendSummaryAggregates(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Transactions = []credits.CreditTransaction{
		{ID: "t1", CompanyID: "co", UserID: "u1", Amount: dec("10.00"), Type: credits.TransactionTypeDeposit, CreatedAt: now},
		{ID: "t2", CompanyID: "co", UserID: "u1", Amount: dec("-2.00"), Type: credits.TransactionTypeCallCharge, CreatedAt: now},
		{ID: "t3", CompanyID: "co", UserID: "u1", Amount: dec("-0.50"), Type: credits.TransactionTypeCallCharge, CreatedAt: now},
		{ID: "t4", CompanyID: "co", UserID: "u1", Amount: dec("0.25"), Type: credits.TransactionTypeAdjustment, CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.SpendSummary(context.Background(), SpendSummaryRequest{CompanyID: "co", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !out.TotalDeposits.Equal(dec("10.25")) {
		t.Fatalf("expected deposits 10.25, got %s", out.TotalDeposits)
	}
	if !out.TotalCharges.Equal(dec("2.50")) {
		t.Fatalf("expected charges 2.50, got %s", out.TotalCharges)
	}
	if !out.NetDelta.Equal(dec("7.75")) {
		t.Fatalf("expected net 7.75, got %s", out.NetDelta)
	}
	if !out.CallCharges.Equal(dec("2.50")) {
		t.Fatalf("expected call charges 2.50, got %s", out.CallCharges)
	}
	if !out.AdminAdjustments.Equal(dec("10.25")) {
		t.Fatalf("expected admin adjustments 10.25, got %s", out.AdminAdjustments)
	}
	if out.TransactionCount != 4 {
		t.Fatalf("expected 4 transactions, got %d", out.TransactionCount)
	}
}

func TestReporting_InvalidRange(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Now()

	cases := []CallsSummaryRequest{
		{CompanyID: "", Range: TimeRange{From: now.Add(-time.Hour), To: now}},
		{CompanyID: "co", Range: TimeRange{}},
		{CompanyID: "co", Range: TimeRange{From: now, To: now.Add(-time.Hour)}},
	}
	for _, req := range cases {
		if _, err := svc.CallsSummary(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("request %+v: expected ErrInvalidRequest, got %v", req, err)
		}
	}
}
