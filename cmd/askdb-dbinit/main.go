package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/askdb/askdb/internal/dbinit"
)

func main() {
	dbPath := flag.String("db", "data.sqlite", "path of the SQLite database file to create")
	scriptPath := flag.String("script", "", "SQL script to execute; empty uses the bundled sample dataset")
	flag.Parse()

	script, err := dbinit.LoadScript(*scriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "script error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := dbinit.CreateDatabase(ctx, *dbPath, script); err != nil {
		fmt.Fprintf(os.Stderr, "database creation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("database created at %s\n", *dbPath)
}
