package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dQL/cmd/util"
	"github.com/ValentinKolb/dQL/driver"
	"github.com/ValentinKolb/dQL/lib/cursor"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ShellCmd starts an interactive session with a scrollable cursor
var ShellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive SQL shell",
	Long: `Start an interactive SQL shell. Statements end with a semicolon.
The result of the last query stays open as a scrollable cursor and can be
navigated with the backslash commands (type \help for a list).`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: openDB,
	PersistentPostRun: closeDB,
	RunE:              runShell,
}

func init() {
	key := "page"
	ShellCmd.Flags().Int(key, 20, util.WrapString("Rows printed per page"))
}

const shellHelp = `\next [n]    print the next n rows
\prev [n]    print the n rows before the current one
\abs <row>   move to a row (negative counts from the end) and print a page
\rel <n>     move n rows and print a page
\first       print the first page
\last        move to the last row
\pos         print the cursor position
\params      print the output parameters of a procedure call
\close       close the open result
\help        show this help
\q           quit`

// shell is the state of an interactive session
type shell struct {
	ctx  context.Context
	conn *sql.Conn
	cur  *cursor.Cursor
	page int
}

func runShell(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	s := &shell{ctx: ctx, conn: conn, page: max(viper.GetInt("page"), 1)}
	defer s.closeCursor()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "dql> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "\\q",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem(`\next`), readline.PcItem(`\prev`), readline.PcItem(`\abs`),
			readline.PcItem(`\rel`), readline.PcItem(`\first`), readline.PcItem(`\last`),
			readline.PcItem(`\pos`), readline.PcItem(`\params`), readline.PcItem(`\close`),
			readline.PcItem(`\help`), readline.PcItem(`\q`),
		),
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Printf("connected to %s, type \\help for help\n", util.GetDSN())

	var statement strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			statement.Reset()
			rl.SetPrompt("dql> ")
			continue
		} else if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		// backslash commands are only accepted outside of a statement
		if statement.Len() == 0 && strings.HasPrefix(trimmed, `\`) {
			quit, err := s.command(trimmed)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		statement.WriteString(line)
		statement.WriteString("\n")
		if !strings.HasSuffix(trimmed, ";") {
			rl.SetPrompt("  -> ")
			continue
		}

		if err := s.execute(statement.String()); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		statement.Reset()
		rl.SetPrompt("dql> ")
	}
}

// execute runs a statement, a result set replaces the open cursor
func (s *shell) execute(statement string) error {
	statement = strings.TrimSuffix(strings.TrimSpace(statement), ";")

	if !returnsRows(statement) {
		res, err := s.conn.ExecContext(s.ctx, statement)
		if err != nil {
			return err
		}
		affected, _ := res.RowsAffected()
		fmt.Printf("OK, %d rows affected\n", affected)
		return nil
	}

	s.closeCursor()
	cur, err := driver.QueryCursor(s.ctx, s.conn, statement, cursorOptions(true))
	if err != nil {
		return err
	}
	s.cur = cur
	return s.print(s.page)
}

// command runs a backslash command and reports whether the shell should quit
func (s *shell) command(line string) (bool, error) {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case `\q`, `\quit`:
		return true, nil
	case `\help`, `\?`:
		fmt.Println(shellHelp)
		return false, nil
	}

	if s.cur == nil {
		return false, fmt.Errorf("no open result")
	}

	switch name {
	case `\next`:
		n, err := intArg(args, s.page)
		if err != nil {
			return false, err
		}
		return false, s.print(n)
	case `\prev`:
		n, err := intArg(args, s.page)
		if err != nil {
			return false, err
		}
		// step back before the page and print it forward
		if _, err := s.cur.Relative(s.ctx, -n-1); err != nil {
			return false, err
		}
		return false, s.print(n)
	case `\abs`, `\rel`:
		n, err := intArg(args, 0)
		if err != nil || len(args) == 0 {
			return false, fmt.Errorf("%s needs a row number", name)
		}
		var ok bool
		if name == `\abs` {
			ok, err = s.cur.Absolute(s.ctx, n)
		} else {
			ok, err = s.cur.Relative(s.ctx, n)
		}
		if err != nil {
			return false, err
		}
		if !ok {
			s.position()
			return false, nil
		}
		if _, err := s.cur.Previous(s.ctx); err != nil {
			return false, err
		}
		return false, s.print(s.page)
	case `\first`:
		if err := s.cur.BeforeFirst(s.ctx); err != nil {
			return false, err
		}
		return false, s.print(s.page)
	case `\last`:
		if _, err := s.cur.Last(s.ctx); err != nil {
			return false, err
		}
		if _, err := s.cur.Previous(s.ctx); err != nil {
			return false, err
		}
		return false, s.print(1)
	case `\pos`:
		s.position()
		return false, nil
	case `\params`:
		if err := s.cur.AfterLast(s.ctx); err != nil {
			return false, err
		}
		return false, printOutputParameters(s.ctx, s.cur)
	case `\close`:
		s.closeCursor()
		return false, nil
	}
	return false, fmt.Errorf("unknown command %s, type \\help for help", name)
}

// print prints the next n rows of the open cursor
func (s *shell) print(n int) error {
	out := newPrinter(os.Stdout, s.cur.Columns())
	printed, err := out.rows(s.ctx, s.cur, n)
	if flushErr := out.flush(); err == nil {
		err = flushErr
	}
	if err != nil {
		return err
	}
	if printed < n {
		fmt.Printf("(end of result, %d rows printed)\n", printed)
	}
	return nil
}

// position prints where the cursor is
func (s *shell) position() {
	switch {
	case s.cur.IsBeforeFirst():
		fmt.Println("before the first row")
	case s.cur.IsAfterLast():
		fmt.Println("after the last row")
	default:
		fmt.Printf("on row %d\n", s.cur.RowNumber())
	}
}

func (s *shell) closeCursor() {
	if s.cur == nil {
		return
	}
	if err := s.cur.Close(context.WithoutCancel(s.ctx)); err != nil {
		fmt.Fprintf(os.Stderr, "error closing result: %v\n", err)
	}
	s.cur = nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// intArg parses the first argument, def is returned if there is none
func intArg(args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", args[0])
	}
	return n, nil
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".dql_history")
}
