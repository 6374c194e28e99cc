package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/models"
)

func main() {
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	models.MigrateTable()

	categories, err := models.EnsureDefaultCategories(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed categories: %v\n", err)
		os.Exit(1)
	}
	for _, c := range categories {
		stage := "-"
		if c.Stage != nil {
			stage = string(*c.Stage)
		}
		fmt.Printf("category id=%d name=%s kind=%s stage=%s\n", c.ID, c.Name, c.Kind, stage)
	}
}
