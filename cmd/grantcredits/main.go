package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/infra"
	"server/internal/sqlinline"
)

func main() {
	var (
		idFlag     string
		amountFlag int
	)

	flag.StringVar(&idFlag, "id", "", "profile ID to credit (UUID)")
	flag.IntVar(&amountFlag, "amount", 0, "number of credits to grant (must be positive)")
	flag.Parse()

	profileID := strings.TrimSpace(idFlag)
	if profileID == "" {
		exitWithError(errors.New("-id is required"))
	}
	if amountFlag <= 0 {
		exitWithError(errors.New("-amount must be positive"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "grantcredits").Logger()
	runner := infra.NewSQLRunner(pool, logger)

	grantCtx, cancelGrant := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelGrant()
	row := runner.QueryRow(grantCtx, sqlinline.QGrantCredits, profileID, amountFlag)

	var balance int
	if err := row.Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			exitWithError(fmt.Errorf("no credit row for profile %s", profileID))
		}
		exitWithError(fmt.Errorf("failed to grant credits: %w", err))
	}

	fmt.Printf("Granted %d credits to %s, new balance %d\n", amountFlag, profileID, balance)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
