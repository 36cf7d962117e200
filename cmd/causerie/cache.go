package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	cachepkg "github.com/causerie-app/causerie/pkg/cache/sqlite"
	"github.com/causerie-app/causerie/pkg/models"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the content cache",
	}

	open := func() (*cachepkg.Cache, error) {
		cfg, logger, err := loadConfig(*configPath)
		if err != nil {
			return nil, err
		}
		return openCache(cfg, logger)
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Entries: %s\nSize:    %s\n", humanize.Comma(stats.Entries), humanize.Bytes(uint64(stats.Bytes)))
			stores := make([]string, 0, len(stats.ByStore))
			for s := range stats.ByStore {
				stores = append(stores, string(s))
			}
			sort.Strings(stores)
			for _, s := range stores {
				fmt.Printf("  %-14s %s\n", s, humanize.Comma(stats.ByStore[models.Store(s)]))
			}
			return nil
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export [FILE]",
		Short: "Export every cache entry as JSON (stdout when FILE is omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			snap, err := c.ExportAll(cmd.Context())
			if err != nil {
				return err
			}

			var w io.Writer = os.Stdout
			if len(args) == 1 {
				f, err := os.Create(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := cachepkg.WriteSnapshot(w, snap); err != nil {
				return err
			}
			if len(args) == 1 {
				fmt.Fprintf(os.Stderr, "Exported %d entries to %s\n", snapshotSize(snap), args[0])
			}
			return nil
		},
	}

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Merge a cache export into the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			snap, err := cachepkg.ReadSnapshot(f)
			if err != nil {
				return err
			}

			c, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.ImportAll(cmd.Context(), snap); err != nil {
				return err
			}
			fmt.Printf("Imported %d entries.\n", snapshotSize(snap))
			return nil
		},
	}

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				if !isatty.IsTerminal(os.Stdin.Fd()) {
					return errors.New("refusing to clear the cache without --yes")
				}
				if !confirm(os.Stdin, "Clear every cached lesson, quiz and audio clip?") {
					fmt.Println("Aborted.")
					return nil
				}
			}

			c, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.ClearAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("All cache entries cleared.")
			return nil
		},
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(statsCmd, exportCmd, importCmd, clearCmd)
	return cmd
}

func snapshotSize(snap models.Snapshot) int {
	n := 0
	for _, entries := range snap {
		n += len(entries)
	}
	return n
}

func confirm(r io.Reader, question string) bool {
	fmt.Printf("%s [y/N] ", question)
	answer, _ := bufio.NewReader(r).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
