// Package main implements the REPL driver for kvengine.
//
// EDUCATIONAL NOTES:
// ------------------
// This is the entry point for the key/value engine CLI. It provides:
// 1. A REPL (Read-Eval-Print Loop) for dot commands driving the tree
// 2. A command-line flag for the database file path
//
// This driver is not part of the hard-engineering budget: it fixes no
// inputs and is not test coverage. internal/storage/*_test.go is the
// real test suite; this just exercises the engine interactively.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cabewaldrop/kvengine/internal/config"
	"github.com/cabewaldrop/kvengine/internal/storage"
)

const (
	version = "0.1.0"
	banner  = `
  _             _____ _   ____ ___ _   _ ____
 | | _____   __| ____| | / ___|_ _| \ | | ___|
 | |/ / \ \ / /|  _| | |   \___ \| |  \| |  _|
 | < \ V  V / | |___| |___ ___) | | |\  | |___
 |_|\_\ \_/\_/ |_____|_____|____/___|_| \_|____|

  A paged B+ tree key/value store - Version %s
  Type '.help' for usage hints or '.quit' to exit.
`
)

var dotCommands = map[string]string{
	".insert": "INT VALUE     Insert or overwrite a key",
	".search": "INT           Look up a key",
	".remove": "INT           Tombstone a key's value",
	".scan":   "INT INT       Range scan [start, end] inclusive",
	".stats":  "              Show node capacity constants",
	".help":   "              Show this help message",
	".quit":   "              Flush and exit (alias: .exit)",
}

func main() {
	dbPath := flag.String("db", "kvengine.db", "path to the database file")
	showVersion := flag.Bool("version", false, "show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("kvengine version %s\n", version)
		return
	}

	fmt.Printf(banner, version)

	disk, err := storage.OpenDiskManager(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}

	bp := storage.NewBufferPool(disk)

	tree, err := storage.OpenBTree(bp, disk)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading tree: %v\n", err)
		os.Exit(1)
	}

	if tree.IsEmpty() {
		fmt.Println("Opened empty database.")
	} else {
		fmt.Println("Opened existing database.")
	}

	repl(tree, bp, disk)
}

func repl(tree *storage.BTree, bp *storage.BufferPool, disk *storage.DiskManager) {
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("kvengine> ")

		line, err := reader.ReadString('\n')
		if err != nil {
			closeAll(tree, bp, disk)
			fmt.Println("\nGoodbye!")
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := handleCommand(line, tree, bp, disk); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

// handleCommand dispatches one line of input. .quit exits the process
// directly after flushing rather than returning a sentinel error.
func handleCommand(line string, tree *storage.BTree, bp *storage.BufferPool, disk *storage.DiskManager) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".help":
		fmt.Println("\nAvailable commands:")
		for cmd, desc := range dotCommands {
			fmt.Printf("  %-10s %s\n", cmd, desc)
		}
		fmt.Println()
		return nil

	case ".quit", ".exit":
		closeAll(tree, bp, disk)
		fmt.Println("Goodbye!")
		os.Exit(0)
		return nil

	case ".stats":
		fmt.Printf("PageSize=%d MaxPagesInRAM=%d ValueSize=%d LeafMaxEntries=%d InternalMaxKeys=%d\n",
			config.PageSize, config.MaxPagesInRAM, config.ValueSize,
			storage.LeafMaxEntries, storage.InternalMaxKeys)
		return nil

	case ".insert":
		if len(fields) < 3 {
			return fmt.Errorf("usage: .insert KEY VALUE")
		}
		key, err := parseKey(fields[1])
		if err != nil {
			return err
		}
		value := strings.Join(fields[2:], " ")
		if _, err := tree.Insert(key, []byte(value)); err != nil {
			return err
		}
		fmt.Println("OK")
		return nil

	case ".search":
		if len(fields) < 2 {
			return fmt.Errorf("usage: .search KEY")
		}
		key, err := parseKey(fields[1])
		if err != nil {
			return err
		}
		value, found, err := tree.Search(key)
		if err != nil {
			return err
		}
		if !found {
			fmt.Println("(not found)")
			return nil
		}
		fmt.Println(value)
		return nil

	case ".remove":
		if len(fields) < 2 {
			return fmt.Errorf("usage: .remove KEY")
		}
		key, err := parseKey(fields[1])
		if err != nil {
			return err
		}
		ok, err := tree.Remove(key)
		if err != nil {
			return err
		}
		if ok {
			fmt.Println("OK")
		} else {
			fmt.Println("(not found)")
		}
		return nil

	case ".scan":
		if len(fields) < 3 {
			return fmt.Errorf("usage: .scan START END")
		}
		start, err := parseKey(fields[1])
		if err != nil {
			return err
		}
		end, err := parseKey(fields[2])
		if err != nil {
			return err
		}
		entries, err := tree.Scan(start, end)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%d\t%s\n", e.Key, e.Value)
		}
		fmt.Printf("(%d rows)\n", len(entries))
		return nil

	default:
		fmt.Printf("Unknown command: %s\n", fields[0])
		fmt.Println("Type '.help' for available commands.")
		return nil
	}
}

func parseKey(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return int32(n), nil
}

func closeAll(tree *storage.BTree, bp *storage.BufferPool, disk *storage.DiskManager) {
	if err := tree.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing tree: %v\n", err)
	}
	if err := bp.FlushAllPages(); err != nil {
		fmt.Fprintf(os.Stderr, "error flushing pages: %v\n", err)
	}
	if err := disk.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing database: %v\n", err)
	}
}
