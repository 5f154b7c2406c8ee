// Command gradectl grades submission files from the terminal without the API
// server or a database.
//
//	gradectl keywords --problem problem.txt
//	gradectl evaluate --problem problem.txt essays/*.docx > report.csv
//
// Configuration is read from GRADE_* environment variables and an optional
// .env file, the same as the API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
