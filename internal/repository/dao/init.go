package dao

import "gorm.io/gorm"

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Event{},
		&Voucher{},
		&Coupon{},
		&PointsHistory{},
		&Transaction{},
		&TransactionVoucher{},
		&TransactionCoupon{},
	)
}

// dropAllTables is used by integration tests to reset a scratch database.
func dropAllTables(db *gorm.DB) error {
	return db.Migrator().DropTable(
		&TransactionCoupon{},
		&TransactionVoucher{},
		&Transaction{},
		&PointsHistory{},
		&Coupon{},
		&Voucher{},
		&Event{},
		&User{},
	)
}
