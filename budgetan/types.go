package budgetan

import (
	"fmt"
	"time"
)

// loginRequest is the payload for POST /login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenPair is returned from POST /login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RegisterRequest is the payload for POST /register. The server, not the
// client, checks that Password and PasswordRepeat match.
type RegisterRequest struct {
	Email          string `json:"email"`
	ProfileName    string `json:"profile_name"`
	Password       string `json:"password"`
	PasswordRepeat string `json:"password_repeat"`
}

// refreshResponse is returned from POST /refresh.
type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

// ChangePasswordRequest is the payload for POST /change_password.
type ChangePasswordRequest struct {
	CurrentPassword   string `json:"current_password"`
	NewPassword       string `json:"new_password"`
	NewPasswordRepeat string `json:"new_password_repeat"`
}

// Profile is returned from GET /profile_info.
type Profile struct {
	ProfileName string `json:"profile_name"`
}

// Expense is a single expense record.
type Expense struct {
	ID       int        `json:"id"`
	Amount   float64    `json:"amount"`
	Time     RecordTime `json:"time"`
	Category string     `json:"category"`
	Priority string     `json:"priority"`
	Status   string     `json:"status"`
	Mood     string     `json:"mood"`
	Note     string     `json:"note"`
}

// Income is a single income record.
type Income struct {
	ID     int        `json:"id"`
	Amount float64    `json:"amount"`
	Time   RecordTime `json:"time"`
	Note   string     `json:"note"`
}

// NewExpense is the payload for POST /add_expense.
type NewExpense struct {
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Priority string  `json:"priority"`
	Status   string  `json:"status"`
	Mood     string  `json:"mood"`
	Note     string  `json:"note,omitempty"`
}

// NewIncome is the payload for POST /add_income.
type NewIncome struct {
	Amount float64 `json:"amount"`
	Note   string  `json:"note,omitempty"`
}

// expenseList is returned from GET /get_monthly_expense.
type expenseList struct {
	Expenses []Expense `json:"expenses"`
}

// incomeList is returned from GET /get_monthly_income.
type incomeList struct {
	Incomes []Income `json:"incomes"`
}

// deleteExpensesRequest is the payload for DELETE /delete_expenses.
type deleteExpensesRequest struct {
	ExpenseIDs []int `json:"expense_ids"`
}

// deleteIncomesRequest is the payload for DELETE /delete_incomes.
type deleteIncomesRequest struct {
	IncomeIDs []int `json:"income_ids"`
}

// recordTimeFormats are the timestamp layouts the service emits, tried in
// order. The first covers both microsecond-fraction and bare timestamps.
var recordTimeFormats = []string{
	"2006-01-02T15:04:05.999999",
	time.RFC3339Nano,
}

// RecordTime is a timestamp that decodes from the service's mix of
// formats: naive microsecond timestamps, naive seconds, or full RFC 3339.
type RecordTime struct {
	time.Time
}

// UnmarshalJSON tries each known layout until one parses.
func (t *RecordTime) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("record time must be a JSON string: %s", s)
	}

	s = s[1 : len(s)-1]

	for _, layout := range recordTimeFormats {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed

			return nil
		}
	}

	return fmt.Errorf("cannot parse record time %q", s)
}

// MarshalJSON emits RFC 3339 with fractional seconds.
func (t RecordTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Format(time.RFC3339Nano) + `"`), nil
}
