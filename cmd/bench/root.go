package bench

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/dQL/cmd/util"
	"github.com/ValentinKolb/dQL/driver"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	db *sql.DB

	// BenchCmd runs performance tests against a query server
	BenchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Performance testing tool for dQL servers",
		Long: `Performance testing tool for dQL servers. The scan and scroll tests read
SERIES(n), which is only available on in-memory databases; skip them for other backends.`,
		Args:     cobra.NoArgs,
		PreRunE:  processBenchConfig,
		RunE:     run,
		PostRunE: func(*cobra.Command, []string) error { return db.Close() },
	}
	benchTable   = "__bench"
	benchRows    = 10_000
	benchThreads = 10
	benchSkip    = make([]string, 0)
)

func init() {
	cobra.OnInitialize(util.InitConfig)
	util.SetupClientFlags(BenchCmd)

	// add flags
	key := "skip"
	BenchCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. scan,scroll)"))
	key = "threads"
	BenchCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "rows"
	BenchCmd.Flags().Int(key, 10_000, util.WrapString("Rows of the result read by the scan and scroll tests"))
	key = "csv"
	BenchCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	benchRows = max(viper.GetInt("rows"), 1)
	benchThreads = max(viper.GetInt("threads"), 1)
	benchSkip = strings.Split(viper.GetString("skip"), ",")

	var err error
	db, err = sql.Open(driver.DriverName, util.GetDSN())
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(benchThreads)
	db.SetMaxIdleConns(benchThreads)
	return db.PingContext(cmd.Context())
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	fmt.Println("Performance testing tool for dQL servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("DSN: %s\n", util.GetDSN())
	fmt.Printf("Threads: %d\n", benchThreads)
	fmt.Printf("Rows: %d\n", benchRows)
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map, ops of scan and scroll are rows
	results := make(map[string]testing.BenchmarkResult)

	results["execute"] = testing.Benchmark(func(b *testing.B) {
		if shouldSkip("execute") {
			return
		}

		b.SetParallelism(benchThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				var n int64
				if err := db.QueryRowContext(ctx, "SELECT * FROM SERIES(1)").Scan(&n); err != nil {
					log.Printf("(execute) - error: %v\n", err)
				}
			}
		})
	})
	printResult("execute", results["execute"])

	results["insert"] = testing.Benchmark(func(b *testing.B) {
		if shouldSkip("insert") {
			return
		}

		if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (id INT, payload VARCHAR(64))", benchTable)); err != nil {
			log.Printf("(insert) - error creating table: %v\n", err)
			return
		}

		// cleanup
		b.Cleanup(func() {
			if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", benchTable)); err != nil {
				log.Printf("(insert) - error dropping table: %v\n", err)
			}
		})

		b.SetParallelism(benchThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				_, err := db.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (?, ?)", benchTable), counter, "test")
				if err != nil {
					log.Printf("(insert) - error: %v\n", err)
				}
				counter++
			}
		})
	})
	printResult("insert", results["insert"])

	results["scan"] = testing.Benchmark(func(b *testing.B) {
		if shouldSkip("scan") {
			return
		}

		b.SetParallelism(benchThreads)
		b.ResetTimer()

		// every op is one row, a query is issued whenever a scan ends
		b.RunParallel(func(pb *testing.PB) {
			var rows *sql.Rows
			defer func() {
				if rows != nil {
					_ = rows.Close()
				}
			}()
			for pb.Next() {
				if rows == nil {
					var err error
					rows, err = db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM SERIES(%d)", benchRows))
					if err != nil {
						log.Printf("(scan) - error: %v\n", err)
						continue
					}
				}
				if !rows.Next() {
					if err := rows.Err(); err != nil {
						log.Printf("(scan) - error: %v\n", err)
					}
					_ = rows.Close()
					rows = nil
				}
			}
		})
	})
	printResult("scan", results["scan"])

	results["scroll"] = testing.Benchmark(func(b *testing.B) {
		if shouldSkip("scroll") {
			return
		}

		b.SetParallelism(benchThreads)
		b.ResetTimer()

		// every op is a jump to a random row of a scrollable cursor
		b.RunParallel(func(pb *testing.PB) {
			conn, err := db.Conn(ctx)
			if err != nil {
				log.Printf("(scroll) - error: %v\n", err)
				return
			}
			defer conn.Close()

			cur, err := driver.QueryCursor(ctx, conn, fmt.Sprintf("SELECT * FROM SERIES(%d)", benchRows),
				driver.CursorOptions{Scrollable: true})
			if err != nil {
				log.Printf("(scroll) - error: %v\n", err)
				return
			}
			defer cur.Close(context.WithoutCancel(ctx))

			for pb.Next() {
				if _, err := cur.Absolute(ctx, rand.IntN(benchRows)+1); err != nil {
					log.Printf("(scroll) - error: %v\n", err)
				}
			}
		})
	})
	printResult("scroll", results["scroll"])

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range benchSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"DSN", "Serializer", "Transport", "Threads", "Rows", "FetchSize",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	cfg, err := driver.ParseDSN(util.GetDSN())
	if err != nil {
		return err
	}

	for test, result := range results {
		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			util.GetDSN(),
			cfg.Serializer,
			cfg.Transport,
			strconv.Itoa(benchThreads),
			strconv.Itoa(benchRows),
			strconv.Itoa(cfg.FetchSize),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
