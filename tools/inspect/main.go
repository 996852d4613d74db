package main

import (
	"context"
	"flag"
	"fmt"
	"group-chat/infrastructure/storage"
	"io"
	"log"
	"os"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	Colours        bool   `envconfig:"INSPECT_COLOURS" default:"true"`
}

func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatal("Config error: ", err)
	}
	dbPath := flag.String("db", config.BadgerFilepath, "Path to badger DB")
	prefix := flag.String("prefix", "", "Prefix to scan, every key family when empty")
	limit := flag.Int("limit", 0, "Maximum entries per prefix, unlimited when 0")
	flag.Parse()

	// Read only, so a running gateway keeps its lock
	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithReadOnly(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer func() { _ = db.Close() }()

	prefixes := storage.Prefixes
	if *prefix != "" {
		prefixes = []string{*prefix}
	}
	if err := inspect(context.Background(), os.Stdout, db, prefixes, *limit, config.Colours); err != nil {
		log.Fatal(err)
	}
}

func inspect(ctx context.Context, out io.Writer, db *badger.DB, prefixes []string, limit int, colours bool) error {
	color.Enable = colours
	for _, prefix := range prefixes {
		entries, err := storage.Scan(ctx, db, prefix, limit)
		if err != nil {
			return fmt.Errorf("scan %s: %w", prefix, err)
		}
		_, _ = fmt.Fprintln(out, color.New(color.BgBlack, color.FgGreen).Sprintf("  ====== %s (%d) ======", prefix, len(entries)))
		render(out, entries)
	}

	counts, err := storage.CountMessages(ctx, db)
	if err != nil {
		return err
	}
	groups := make([]string, 0, len(counts))
	for group := range counts {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	_, _ = fmt.Fprintln(out, color.New(color.BgBlack, color.FgGreen).Sprint("  ====== messages per group ======"))
	table := newTable(out, []string{"Group", "Messages"})
	for _, group := range groups {
		table.Append([]string{group, fmt.Sprint(counts[group])})
	}
	table.Render()
	return nil
}

func render(out io.Writer, entries []storage.Entry) {
	table := newTable(out, []string{"Key", "Kind", "Id", "Time", "Detail"})
	for _, e := range entries {
		table.Append([]string{e.Key, e.Kind, e.ID, e.Timestamp, e.Detail})
	}
	table.Render()
}

func newTable(out io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}
