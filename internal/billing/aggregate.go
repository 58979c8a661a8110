package billing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"utility-tracker/internal/models"
)

// MonthLabelLayout formats bucket labels, e.g. "Mar 2026".
const MonthLabelLayout = "Jan 2006"

// MonthBucket totals the payments made in one calendar month.
type MonthBucket struct {
	Label  string          `json:"label"`
	Year   int             `json:"year"`
	Month  time.Month      `json:"month"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// CategoryBucket totals bills of one utility type.
type CategoryBucket struct {
	Type        models.UtilityType `json:"type"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Count       int                `json:"count"`
}

// Average is the mean bill amount. Buckets are only emitted with Count >= 1.
func (c CategoryBucket) Average() decimal.Decimal {
	if c.Count == 0 {
		return decimal.Zero
	}
	return c.TotalAmount.Div(decimal.NewFromInt(int64(c.Count))).Round(2)
}

// MethodBucket totals payments made with one method.
type MethodBucket struct {
	Method      models.PaymentMethod `json:"method"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
}

func monthKey(year int, month time.Month) int {
	return year*12 + int(month) - 1
}

// MonthlySeries buckets payments into the monthCount calendar months ending
// with now's month, oldest first. A payment belongs to the month of its
// payment date as seen in now's location. Months without payments are zero
// buckets, so the result always has exactly monthCount entries.
func MonthlySeries(payments []models.Payment, monthCount int, now time.Time) []MonthBucket {
	if monthCount <= 0 {
		return []MonthBucket{}
	}

	loc := now.Location()
	start := time.Date(now.Year(), now.Month()-time.Month(monthCount-1), 1, 0, 0, 0, 0, loc)

	buckets := make([]MonthBucket, monthCount)
	index := make(map[int]int, monthCount)
	for i := range buckets {
		m := start.AddDate(0, i, 0)
		buckets[i] = MonthBucket{
			Label:  m.Format(MonthLabelLayout),
			Year:   m.Year(),
			Month:  m.Month(),
			Amount: decimal.Zero,
		}
		index[monthKey(m.Year(), m.Month())] = i
	}

	for _, p := range payments {
		d := p.PaymentDate.In(loc)
		i, ok := index[monthKey(d.Year(), d.Month())]
		if !ok {
			continue
		}
		buckets[i].Amount = buckets[i].Amount.Add(p.Amount)
		buckets[i].Count++
	}
	return buckets
}

// BreakdownByType groups bills by utility type. Known types come first in
// their canonical order, any others follow alphabetically.
func BreakdownByType(bills []models.Bill) []CategoryBucket {
	groups := make(map[models.UtilityType]*CategoryBucket)
	for _, b := range bills {
		g, ok := groups[b.UtilityType]
		if !ok {
			g = &CategoryBucket{Type: b.UtilityType, TotalAmount: decimal.Zero}
			groups[b.UtilityType] = g
		}
		g.TotalAmount = g.TotalAmount.Add(b.Amount)
		g.Count++
	}

	out := make([]CategoryBucket, 0, len(groups))
	for _, t := range models.UtilityTypes {
		if g, ok := groups[t]; ok {
			out = append(out, *g)
			delete(groups, t)
		}
	}
	rest := make([]CategoryBucket, 0, len(groups))
	for _, g := range groups {
		rest = append(rest, *g)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Type < rest[j].Type })
	return append(out, rest...)
}

// BreakdownByMethod sums payments by payment method, ordered like BreakdownByType.
func BreakdownByMethod(payments []models.Payment) []MethodBucket {
	sums := make(map[models.PaymentMethod]decimal.Decimal)
	for _, p := range payments {
		sum, ok := sums[p.PaymentMethod]
		if !ok {
			sum = decimal.Zero
		}
		sums[p.PaymentMethod] = sum.Add(p.Amount)
	}

	out := make([]MethodBucket, 0, len(sums))
	for _, m := range models.PaymentMethods {
		if sum, ok := sums[m]; ok {
			out = append(out, MethodBucket{Method: m, TotalAmount: sum})
			delete(sums, m)
		}
	}
	rest := make([]MethodBucket, 0, len(sums))
	for m, sum := range sums {
		rest = append(rest, MethodBucket{Method: m, TotalAmount: sum})
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Method < rest[j].Method })
	return append(out, rest...)
}

// Share returns part as a percentage of total, or zero when total is zero.
func Share(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	f, _ := part.Div(total).Mul(decimal.NewFromInt(100)).Float64()
	return f
}

// TotalBilled sums the bucket totals of a type breakdown.
func TotalBilled(buckets []CategoryBucket) decimal.Decimal {
	total := decimal.Zero
	for _, b := range buckets {
		total = total.Add(b.TotalAmount)
	}
	return total
}
