package query

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/ValentinKolb/dQL/cmd/util"
	"github.com/ValentinKolb/dQL/driver"
	"github.com/ValentinKolb/dQL/lib/cursor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"strings"
)

var (
	db *sql.DB

	// QueryCmd executes a single statement and prints its result
	QueryCmd = &cobra.Command{
		Use:   "query <statement> [args...]",
		Short: "Execute a statement and print the result",
		Long: `Execute a statement and print the result. Rows are read batch by batch.
With --scroll the cursor is scrollable and --absolute positions it before printing,
negative positions count from the end (-1 is the last row).`,
		Args:              cobra.MinimumNArgs(1),
		PersistentPreRunE: openDB,
		PersistentPostRun: closeDB,
		RunE:              runQuery,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	util.SetupClientFlags(QueryCmd)
	util.SetupClientFlags(ShellCmd)

	key := "scroll"
	QueryCmd.Flags().Bool(key, false, util.WrapString("Open a scrollable cursor"))

	key = "absolute"
	QueryCmd.Flags().Int(key, 0, util.WrapString("Start printing at this row (requires --scroll, negative values count from the end)"))

	key = "limit"
	QueryCmd.Flags().Int(key, 0, util.WrapString("Print at most this many rows (0 prints all)"))
}

// openDB opens the database of the dsn flag
func openDB(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}

	var err error
	db, err = sql.Open(driver.DriverName, util.GetDSN())
	if err != nil {
		return err
	}
	return db.PingContext(cmd.Context())
}

func closeDB(_ *cobra.Command, _ []string) {
	if db != nil {
		_ = db.Close()
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	statement, params := args[0], toArgs(args[1:])

	if !returnsRows(statement) {
		res, err := db.ExecContext(ctx, statement, params...)
		if err != nil {
			return err
		}
		affected, _ := res.RowsAffected()
		fmt.Printf("OK, %d rows affected\n", affected)
		return nil
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	cur, err := driver.QueryCursor(ctx, conn, statement, cursorOptions(viper.GetBool("scroll")), params...)
	if err != nil {
		return err
	}
	defer cur.Close(context.WithoutCancel(ctx))

	// position the cursor on the row before the first printed one
	if start := viper.GetInt("absolute"); start != 0 {
		ok, err := cur.Absolute(ctx, start)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "row %d does not exist\n", start)
			return nil
		}
		if _, err := cur.Previous(ctx); err != nil {
			return err
		}
	}

	out := newPrinter(os.Stdout, cur.Columns())
	n, err := out.rows(ctx, cur, viper.GetInt("limit"))
	if err != nil {
		return err
	}
	if err := out.flush(); err != nil {
		return err
	}
	fmt.Printf("(%d rows)\n", n)

	return printOutputParameters(ctx, cur)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// cursorOptions builds the cursor options, the fetch size is part of the dsn
func cursorOptions(scrollable bool) driver.CursorOptions {
	return driver.CursorOptions{Scrollable: scrollable}
}

// returnsRows guesses whether a statement produces a result set
func returnsRows(statement string) bool {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "CALL", "WITH", "SHOW", "DESCRIBE", "EXPLAIN", "VALUES":
		return true
	}
	return false
}

// toArgs passes the command line arguments as positional parameters
func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// printOutputParameters prints the output parameters of a procedure call
func printOutputParameters(ctx context.Context, cur *cursor.Cursor) error {
	if cur.ParameterRows() == 0 || !cur.IsAfterLast() {
		return nil
	}
	params, err := cur.OutputParameters(ctx)
	if err != nil {
		return err
	}
	values := make([]string, len(params))
	for i, v := range params {
		values[i] = formatValue(v)
	}
	fmt.Printf("output parameters: %s\n", strings.Join(values, ", "))
	return nil
}
