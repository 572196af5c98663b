package ledger

import "strings"

// Canonical account names. Account identity is the exact string per station,
// so every builder must go through these constructors; an ad hoc variant of
// the same semantic account would split balances across two rows.

// LOAccount tracks purchased-but-undelivered volume value per product.
func LOAccount(productName string) AccountRef {
	return AccountRef{Name: "LO " + strings.TrimSpace(productName), Category: CategoryAsset}
}

// InventoryAccount values on-hand fuel stock per product.
func InventoryAccount(productName string) AccountRef {
	return AccountRef{Name: "Persediaan " + strings.TrimSpace(productName), Category: CategoryAsset}
}

// COGSAccount is the cost-of-goods-sold line per product.
func COGSAccount(productName string) AccountRef {
	return AccountRef{Name: "HPP " + strings.TrimSpace(productName), Category: CategoryCOGS}
}

// ShrinkageAccount absorbs negative tank-reading variance per product.
func ShrinkageAccount(productName string) AccountRef {
	return AccountRef{Name: "Penyusutan " + strings.TrimSpace(productName), Category: CategoryExpense}
}

// SalesAccount records fuel sales revenue per product.
func SalesAccount(productName string) AccountRef {
	return AccountRef{Name: "Penjualan " + strings.TrimSpace(productName), Category: CategoryRevenue}
}

// CashAccount is the station cash drawer.
func CashAccount() AccountRef {
	return AccountRef{Name: "Kas", Category: CategoryAsset}
}

// BankAccount is a named bank account, e.g. "Bank BCA".
func BankAccount(bankName string) AccountRef {
	return AccountRef{Name: "Bank " + strings.TrimSpace(bankName), Category: CategoryAsset}
}

// EquityAccount absorbs opening balances and revaluations.
func EquityAccount() AccountRef {
	return AccountRef{Name: "Modal", Category: CategoryEquity}
}

// TitipanAccount holds third-party funds collected by operators.
func TitipanAccount() AccountRef {
	return AccountRef{Name: "Titipan", Category: CategoryLiability}
}

// EmployeeReceivableAccount carries free-fuel value owed back to the station.
func EmployeeReceivableAccount() AccountRef {
	return AccountRef{Name: "Piutang Karyawan", Category: CategoryAsset}
}
