package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	_ "github.com/tomyedwab/litehost/driver"
	"github.com/tomyedwab/litehost/engine"
	"github.com/tomyedwab/litehost/values"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open an interactive SQL shell",
	Long: `Shell reads statements from stdin, terminated by ";". Statements that
return rows are printed as columns; everything else prints the change count.
Type .quit to exit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := sqlx.Open("litehost", dsn())
		if err != nil {
			return err
		}
		defer db.Close()
		db.SetMaxOpenConns(1)

		if err := db.Ping(); err != nil {
			return err
		}

		fmt.Println(`litehost shell (end statements with ";", exit with .quit)`)
		return repl(db, os.Stdin)
	},
}

func repl(db *sqlx.DB, in *os.File) error {
	scanner := bufio.NewScanner(in)
	var buf strings.Builder

	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if buf.Len() == 0 {
			if line == "" {
				fmt.Print("> ")
				continue
			}
			if line == ".quit" || line == ".exit" {
				return nil
			}
		}

		buf.WriteString(scanner.Text())
		buf.WriteString("\n")
		if !strings.HasSuffix(line, ";") {
			fmt.Print("... ")
			continue
		}

		stmt := buf.String()
		buf.Reset()
		if err := runStatement(db, stmt); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		fmt.Print("> ")
	}
	return scanner.Err()
}

func runStatement(db *sqlx.DB, stmt string) error {
	if engine.IsReader(stmt) {
		return printRows(db, stmt)
	}

	res, err := db.Exec(stmt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	fmt.Printf("(%d rows affected)\n", n)
	return nil
}

func printRows(db *sqlx.DB, stmt string) error {
	rows, err := db.Queryx(stmt)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(cols, " | "))

	count := 0
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return err
		}
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = formatValue(row[c])
		}
		fmt.Println(strings.Join(parts, " | "))
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	fmt.Printf("(%d rows)\n", count)
	return nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("x'%x'", val)
	case time.Time:
		return val.Format(values.TimeFormat)
	default:
		return fmt.Sprint(val)
	}
}
