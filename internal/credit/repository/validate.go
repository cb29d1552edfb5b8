package repository

import (
	"strings"

	creditdomain "github.com/smallbiznis/apicredits/internal/credit/domain"
)

func checkUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return creditdomain.ErrInvalidUserID
	}
	return nil
}

func checkAmount(userID string, amount int64) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if amount <= 0 || amount > creditdomain.MaxAmount {
		return creditdomain.ErrInvalidAmount
	}
	return nil
}

func checkBalance(balance int64) error {
	if balance < 0 || balance > creditdomain.MaxBalance {
		return creditdomain.ErrInvalidBalance
	}
	return nil
}

// fits reports whether amount can be added to current without passing
// MaxBalance.
func fits(current, amount int64) bool {
	return current <= creditdomain.MaxBalance-amount
}

func checkGrant(grant creditdomain.Grant) error {
	if strings.TrimSpace(grant.TransactionID) == "" {
		return creditdomain.ErrInvalidTransactionID
	}
	return checkAmount(grant.UserID, grant.Amount)
}
