package notify

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// ItemSubmitted is sent to admins when staff propose a new item.
func ItemSubmitted(itemName string) string {
	return printer.Sprintf("New item '%s' submitted for admin approval.", itemName)
}

// StockProposed is sent to admins when staff propose a stock movement.
// The counterparty is the supplier on stock in and the buyer on stock out.
func StockProposed(txType, company, itemName string, qty int64, unitPrice decimal.Decimal) string {
	prep := "from"
	if strings.EqualFold(txType, "out") {
		prep = "to"
	}
	return printer.Sprintf("New staff proposal: Stock %s %s %s for item '%s' (Qty: %d, Price: %.2f), pending admin approval.",
		strings.ToUpper(txType), prep, company, itemName, qty, unitPrice.Round(2).InexactFloat64())
}
