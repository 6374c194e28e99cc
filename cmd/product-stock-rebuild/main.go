package main

import (
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/models"
	"gorm.io/gorm"
)

func main() {
	productID := flag.Int("product-id", 0, "Optional: product id (default all products)")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing products and continue rebuilding others")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	var productIds []int
	if *productID > 0 {
		productIds = append(productIds, *productID)
	} else if err := db.Model(&models.Product{}).Order("id").Pluck("id", &productIds).Error; err != nil {
		fmt.Fprintf(os.Stderr, "list products: %v\n", err)
		os.Exit(1)
	}

	for _, id := range productIds {
		if err := db.Transaction(func(tx *gorm.DB) error {
			return models.RecomputeProductStock(tx, id)
		}); err != nil {
			if *continueOnError {
				fmt.Fprintf(os.Stderr, "rebuild product=%d failed (skipping): %v\n", id, err)
				continue
			}
			fmt.Fprintf(os.Stderr, "rebuild product=%d failed: %v\n", id, err)
			os.Exit(1)
		}
	}

	// negative balances can only come from rows edited outside the app
	type negativeRow struct {
		Kind     string
		Id       int
		Name     string
		Quantity string
	}
	var negatives []negativeRow
	if err := db.Raw(`
		SELECT 'material' AS kind, id, name, CAST(quantity AS CHAR) AS quantity FROM materials WHERE quantity < 0
		UNION ALL
		SELECT 'material_variant', id, color, CAST(quantity AS CHAR) FROM material_variants WHERE quantity < 0
		UNION ALL
		SELECT 'product_variant', id, sku, CAST(stock AS CHAR) FROM product_variants WHERE stock < 0
	`).Scan(&negatives).Error; err != nil {
		fmt.Fprintf(os.Stderr, "negative balance scan: %v\n", err)
		os.Exit(1)
	}
	for _, n := range negatives {
		fmt.Printf("NEGATIVE %s id=%d name=%q quantity=%s\n", n.Kind, n.Id, n.Name, n.Quantity)
	}

	fmt.Printf("product stock rebuild complete: products=%d negative=%d\n", len(productIds), len(negatives))
	if len(negatives) > 0 {
		os.Exit(2)
	}
}
