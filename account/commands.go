package account

import (
	"github.com/shopspring/decimal"
)

// Command type tags.
const (
	CommandOpenAccount   = "account.OpenAccount"
	CommandDepositMoney  = "account.DepositMoney"
	CommandWithdrawMoney = "account.WithdrawMoney"
	CommandWriteCheck    = "account.WriteCheck"
)

// OpenAccount opens a new account for an owner.
type OpenAccount struct {
	AccountID string `json:"account_id" valid:"required"`
	OwnerName string `json:"owner_name" valid:"required"`
}

func (c *OpenAccount) AggregateID() string { return c.AccountID }
func (c *OpenAccount) CommandType() string { return CommandOpenAccount }

// DepositMoney deposits an amount into an account. Commands carry only
// caller-supplied data; the resulting balance is computed by the aggregate.
type DepositMoney struct {
	AccountID string          `json:"account_id" valid:"required"`
	Amount    decimal.Decimal `json:"amount" valid:"-"`
}

func (c *DepositMoney) AggregateID() string { return c.AccountID }
func (c *DepositMoney) CommandType() string { return CommandDepositMoney }

// WithdrawMoney withdraws cash from an account.
type WithdrawMoney struct {
	AccountID string          `json:"account_id" valid:"required"`
	Amount    decimal.Decimal `json:"amount" valid:"-"`
}

func (c *WithdrawMoney) AggregateID() string { return c.AccountID }
func (c *WithdrawMoney) CommandType() string { return CommandWithdrawMoney }

// WriteCheck writes a numbered check against an account.
type WriteCheck struct {
	AccountID   string          `json:"account_id" valid:"required"`
	CheckNumber string          `json:"check_number" valid:"required"`
	Amount      decimal.Decimal `json:"amount" valid:"-"`
}

func (c *WriteCheck) AggregateID() string { return c.AccountID }
func (c *WriteCheck) CommandType() string { return CommandWriteCheck }
