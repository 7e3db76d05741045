package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScheduleRequest carries everything needed to derive a payment schedule
// from an approved proposal.
type ScheduleRequest struct {
	Total         decimal.Decimal
	Currency      string
	PaymentMethod string // proposal-level method: CASH, INSTALLMENT, CHEQUE, MIXED
	Installments  int
	FirstDue      time.Time
	Explicit      []ExplicitInstallment
}

// ExplicitInstallment is one row of a hand-entered schedule on the proposal.
// Zero or invalid fields fall back to derived values.
type ExplicitInstallment struct {
	No      int
	DueDate *time.Time
	Amount  decimal.Decimal
	Method  PaymentMethod
}

// ScheduledInstallment is one derived schedule row.
type ScheduledInstallment struct {
	No      int
	DueDate time.Time
	Amount  decimal.Decimal
	Method  PaymentMethod
}

// BuildSchedule derives the plan method and installment rows. An explicit
// schedule on the proposal wins verbatim and makes the plan MIXED; an
// INSTALLMENT proposal keeps INSTALLMENT on the plan header and splits the
// total into equal monthly TRANSFER rows with the rounding remainder on the
// last one; everything else is a single payment.
func BuildSchedule(req ScheduleRequest) (PaymentMethod, []ScheduledInstallment) {
	if len(req.Explicit) > 0 {
		return MethodMixed, explicitRows(req)
	}
	if req.PaymentMethod == "INSTALLMENT" && req.Installments > 1 {
		return MethodInstallment, equalRows(req.Total, req.Installments, req.FirstDue, MethodTransfer)
	}
	return planMethod(req.PaymentMethod), []ScheduledInstallment{{
		No:      1,
		DueDate: req.FirstDue,
		Amount:  req.Total.Round(2),
		Method:  rowMethod(req.PaymentMethod),
	}}
}

func explicitRows(req ScheduleRequest) []ScheduledInstallment {
	rows := make([]ScheduledInstallment, 0, len(req.Explicit))
	for i, ex := range req.Explicit {
		no := ex.No
		if no <= 0 {
			no = i + 1
		}
		due := req.FirstDue
		if ex.DueDate != nil {
			due = *ex.DueDate
		}
		method := ex.Method
		if method == "" {
			method = MethodCash
		}
		rows = append(rows, ScheduledInstallment{
			No:      no,
			DueDate: due,
			Amount:  ex.Amount.Round(2),
			Method:  method,
		})
	}
	return rows
}

func equalRows(total decimal.Decimal, n int, firstDue time.Time, method PaymentMethod) []ScheduledInstallment {
	part := total.Div(decimal.NewFromInt(int64(n))).Round(2)
	rows := make([]ScheduledInstallment, 0, n)
	running := decimal.Zero
	for i := 0; i < n; i++ {
		amount := part
		if i == n-1 {
			amount = total.Round(2).Sub(running)
		}
		running = running.Add(amount)
		rows = append(rows, ScheduledInstallment{
			No:      i + 1,
			DueDate: AddMonths(firstDue, i),
			Amount:  amount,
			Method:  method,
		})
	}
	return rows
}

// planMethod maps the proposal-level method onto the plan header, which only
// carries CASH, INSTALLMENT, CHEQUE or MIXED.
func planMethod(method string) PaymentMethod {
	switch method {
	case "INSTALLMENT":
		return MethodInstallment
	case "CHEQUE":
		return MethodCheque
	case "MIXED":
		return MethodMixed
	}
	return MethodCash
}

// rowMethod maps the proposal-level method onto a derived installment row;
// INSTALLMENT rows settle by bank transfer.
func rowMethod(method string) PaymentMethod {
	switch method {
	case "INSTALLMENT":
		return MethodTransfer
	case "CHEQUE":
		return MethodCheque
	}
	return MethodCash
}

// proposalMethod maps a plan method back to the proposal-level method name,
// used when a rebuild has to re-derive from the stored plan alone.
func proposalMethod(m PaymentMethod) string {
	switch m {
	case MethodInstallment:
		return "INSTALLMENT"
	case MethodCheque:
		return "CHEQUE"
	case MethodMixed:
		return "MIXED"
	}
	return "CASH"
}

// AddMonths advances t by n calendar months, clamping the day to the last
// day of the target month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
