package finance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestBuildScheduleSinglePayment(t *testing.T) {
	due := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	for proposal, want := range map[string]struct {
		plan PaymentMethod
		row  PaymentMethod
	}{
		"CASH":        {MethodCash, MethodCash},
		"CHEQUE":      {MethodCheque, MethodCheque},
		"MIXED":       {MethodMixed, MethodCash},
		"":            {MethodCash, MethodCash},
		"SOMETHING":   {MethodCash, MethodCash},
		"INSTALLMENT": {MethodInstallment, MethodTransfer}, // count of 1 still collapses to one row
	} {
		method, rows := BuildSchedule(ScheduleRequest{
			Total:         d("1234.567"),
			Currency:      "TRY",
			PaymentMethod: proposal,
			Installments:  1,
			FirstDue:      due,
		})
		require.Equal(t, want.plan, method, "proposal method %q", proposal)
		require.Len(t, rows, 1)
		require.Equal(t, 1, rows[0].No)
		require.True(t, rows[0].DueDate.Equal(due))
		require.True(t, rows[0].Amount.Equal(d("1234.57")))
		require.Equal(t, want.row, rows[0].Method)
	}
}

// The plan header never stores TRANSFER; that method belongs to derived
// rows only.
func TestBuildSchedulePlanMethodStaysInstallment(t *testing.T) {
	due := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	method, rows := BuildSchedule(ScheduleRequest{
		Total:         d("1000"),
		Currency:      "TRY",
		PaymentMethod: "INSTALLMENT",
		Installments:  4,
		FirstDue:      due,
	})
	require.Equal(t, MethodInstallment, method)
	for _, row := range rows {
		require.Equal(t, MethodTransfer, row.Method)
	}
}

func TestBuildScheduleInstallmentsSumToTotal(t *testing.T) {
	due := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	total := d("100")

	for _, n := range []int{2, 3, 4, 5, 7, 12} {
		method, rows := BuildSchedule(ScheduleRequest{
			Total:         total,
			PaymentMethod: "INSTALLMENT",
			Installments:  n,
			FirstDue:      due,
		})
		require.Equal(t, MethodInstallment, method)
		require.Len(t, rows, n)

		sum := decimal.Zero
		for i, row := range rows {
			require.Equal(t, i+1, row.No)
			require.Equal(t, MethodTransfer, row.Method)
			sum = sum.Add(row.Amount)
		}
		require.True(t, sum.Equal(total), "n=%d sum=%s", n, sum)
	}
}

func TestBuildScheduleRemainderOnLastRow(t *testing.T) {
	_, rows := BuildSchedule(ScheduleRequest{
		Total:         d("100"),
		PaymentMethod: "INSTALLMENT",
		Installments:  3,
		FirstDue:      time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	})
	require.Len(t, rows, 3)
	require.True(t, rows[0].Amount.Equal(d("33.33")))
	require.True(t, rows[1].Amount.Equal(d("33.33")))
	require.True(t, rows[2].Amount.Equal(d("33.34")))
}

func TestBuildScheduleMonthlyDueDates(t *testing.T) {
	// Starting on Jan 31 the day clamps to each month's last day.
	_, rows := BuildSchedule(ScheduleRequest{
		Total:         d("300"),
		PaymentMethod: "INSTALLMENT",
		Installments:  3,
		FirstDue:      time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	})
	require.True(t, rows[0].DueDate.Equal(time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)))
	require.True(t, rows[1].DueDate.Equal(time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)))
	require.True(t, rows[2].DueDate.Equal(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)))
}

func TestBuildScheduleExplicitRows(t *testing.T) {
	firstDue := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rowDue := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

	method, rows := BuildSchedule(ScheduleRequest{
		Total:         d("999"), // ignored when explicit rows are present
		PaymentMethod: "CASH",
		FirstDue:      firstDue,
		Explicit: []ExplicitInstallment{
			{No: 1, DueDate: &rowDue, Amount: d("400.005"), Method: MethodCheque},
			{Amount: d("100")}, // missing no, date and method fall back
		},
	})
	require.Equal(t, MethodMixed, method)
	require.Len(t, rows, 2)

	require.Equal(t, 1, rows[0].No)
	require.True(t, rows[0].DueDate.Equal(rowDue))
	require.True(t, rows[0].Amount.Equal(d("400.01")))
	require.Equal(t, MethodCheque, rows[0].Method)

	require.Equal(t, 2, rows[1].No)
	require.True(t, rows[1].DueDate.Equal(firstDue))
	require.True(t, rows[1].Amount.Equal(d("100.00")))
	require.Equal(t, MethodCash, rows[1].Method)
}

func TestAddMonths(t *testing.T) {
	jan31 := time.Date(2026, 1, 31, 9, 30, 0, 0, time.UTC)
	require.True(t, AddMonths(jan31, 1).Equal(time.Date(2026, 2, 28, 9, 30, 0, 0, time.UTC)))

	// Leap year keeps Feb 29.
	jan31leap := time.Date(2028, 1, 31, 0, 0, 0, 0, time.UTC)
	require.True(t, AddMonths(jan31leap, 1).Equal(time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC)))

	// Mid-month days pass through untouched, including across year ends.
	nov15 := time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC)
	require.True(t, AddMonths(nov15, 3).Equal(time.Date(2027, 2, 15, 0, 0, 0, 0, time.UTC)))

	require.True(t, AddMonths(nov15, 0).Equal(nov15))
}
