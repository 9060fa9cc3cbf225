package budgetan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "github.com/budgetan/budgetan-cli/internal/errors"
)

// Doer issues authenticated exchanges with a fresh access token attached.
// The session manager implements it; record requests never reason about
// token freshness themselves.
type Doer interface {
	Do(ctx context.Context, method, url string, payload any) (*Response, error)
}

// ServiceConfig carries the base URLs of the three Budgetan services.
type ServiceConfig struct {
	AuthBaseURL    string
	ExpenseBaseURL string
	IncomeBaseURL  string
}

// Service exposes the record operations: monthly summaries, adds, and
// deletes for expenses and incomes, plus the profile lookup.
type Service struct {
	doer Doer
	cfg  ServiceConfig
}

// NewService creates a record service routing every call through doer.
func NewService(doer Doer, cfg ServiceConfig) *Service {
	return &Service{doer: doer, cfg: cfg}
}

// MonthlyExpenses fetches all expense records for the given month.
func (s *Service) MonthlyExpenses(ctx context.Context, year, month int) ([]Expense, error) {
	url := fmt.Sprintf("%s/get_monthly_expense?year=%d&month=%d", s.cfg.ExpenseBaseURL, year, month)

	resp, err := s.doer.Do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching monthly expenses: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.Err("fetching expenses failed")
	}

	var list expenseList
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		return nil, fmt.Errorf("%w: decoding expenses: %v", apperrors.ErrInvalidResponse, err)
	}

	return list.Expenses, nil
}

// MonthlyIncomes fetches all income records for the given month.
func (s *Service) MonthlyIncomes(ctx context.Context, year, month int) ([]Income, error) {
	url := fmt.Sprintf("%s/get_monthly_income?year=%d&month=%d", s.cfg.IncomeBaseURL, year, month)

	resp, err := s.doer.Do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching monthly incomes: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.Err("fetching incomes failed")
	}

	var list incomeList
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		return nil, fmt.Errorf("%w: decoding incomes: %v", apperrors.ErrInvalidResponse, err)
	}

	return list.Incomes, nil
}

// AddExpense creates a new expense record.
func (s *Service) AddExpense(ctx context.Context, exp NewExpense) error {
	resp, err := s.doer.Do(ctx, http.MethodPost, s.cfg.ExpenseBaseURL+"/add_expense", exp)
	if err != nil {
		return fmt.Errorf("adding expense: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return resp.Err("failed to add expense")
	}

	return nil
}

// AddIncome creates a new income record.
func (s *Service) AddIncome(ctx context.Context, inc NewIncome) error {
	resp, err := s.doer.Do(ctx, http.MethodPost, s.cfg.IncomeBaseURL+"/add_income", inc)
	if err != nil {
		return fmt.Errorf("adding income: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return resp.Err("failed to add income")
	}

	return nil
}

// DeleteExpenses removes expense records by ID. An empty id list is a
// no-op.
func (s *Service) DeleteExpenses(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}

	resp, err := s.doer.Do(ctx, http.MethodDelete, s.cfg.ExpenseBaseURL+"/delete_expenses", deleteExpensesRequest{ExpenseIDs: ids})
	if err != nil {
		return fmt.Errorf("deleting expenses: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return resp.Err("failed to delete expenses")
	}

	return nil
}

// DeleteIncomes removes income records by ID. An empty id list is a no-op.
func (s *Service) DeleteIncomes(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}

	resp, err := s.doer.Do(ctx, http.MethodDelete, s.cfg.IncomeBaseURL+"/delete_incomes", deleteIncomesRequest{IncomeIDs: ids})
	if err != nil {
		return fmt.Errorf("deleting incomes: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return resp.Err("failed to delete incomes")
	}

	return nil
}

// ProfileInfo fetches the authenticated account's profile.
func (s *Service) ProfileInfo(ctx context.Context) (*Profile, error) {
	resp, err := s.doer.Do(ctx, http.MethodGet, s.cfg.AuthBaseURL+"/profile_info", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.Err("fetching profile failed")
	}

	var p Profile
	if err := json.Unmarshal(resp.Body, &p); err != nil {
		return nil, fmt.Errorf("%w: decoding profile: %v", apperrors.ErrInvalidResponse, err)
	}

	return &p, nil
}
