package deduction

// Guard decides whether a subscription is fundable today. Pure arithmetic
// over cents, no I/O.
type Guard struct {
	// BufferPercent is the safety margin on top of the daily amount,
	// protecting against price and rounding drift between the balance read
	// and the actual charge.
	BufferPercent int64

	// ResumeRunwayDays is how many days of funding a wallet must hold
	// before a low-balance pause is automatically lifted. Deliberately
	// stricter than the pause threshold so a wallet does not resume and
	// immediately re-pause.
	ResumeRunwayDays int64
}

// Decision carries the guard verdict plus the two operands, in cents, for
// user-facing messages.
type Decision struct {
	ShouldPause bool
	Balance     int64
	Required    int64
}

// Evaluate checks balance against the buffered daily amount. The buffered
// requirement rounds half-up on the cent boundary.
func (g Guard) Evaluate(balance, dailyAmount int64) Decision {
	required := (dailyAmount*(100+g.BufferPercent) + 50) / 100
	return Decision{
		ShouldPause: balance < required,
		Balance:     balance,
		Required:    required,
	}
}

// CanAutoResume reports whether balance covers the full resume runway.
// The runway is unbuffered: three whole days of the daily amount.
func (g Guard) CanAutoResume(balance, dailyAmount int64) bool {
	return balance >= g.ResumeRunwayDays*dailyAmount
}
