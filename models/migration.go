package models

import (
	"log"

	"bitbucket.org/mmdatafocus/leatherworks/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&MaterialCategory{}, &Supplier{}, &Product{}, &ProductVariant{},
		&Material{}, &MaterialVariant{}, &MaterialMovement{},
		&WorkerRole{}, &Worker{},
		&ProductionEvent{}, &ProductionStageMaterialLink{}, &HideConsumptionRecord{},
		&WorkerAllocation{}, &AllocationItem{},
		&Buyer{}, &Sale{}, &SaleLine{}, &SaleReceipt{},
		&PayPeriod{},
		&ExpenseCategory{}, &Expense{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
