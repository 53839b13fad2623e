package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lmorel/tome/internal/audio"
	"github.com/lmorel/tome/internal/book"
	"github.com/lmorel/tome/internal/config"
	"github.com/lmorel/tome/internal/delay"
	"github.com/lmorel/tome/internal/progress"
	"github.com/lmorel/tome/internal/session"
)

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	pb := cfg.GetPlaybackConfig()

	level, err := zerolog.ParseLevel(cfg.GetLogLevel())
	if err != nil {
		return fmt.Errorf("log_level %q: %w", cfg.GetLogLevel(), err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	cache, err := progress.OpenCache()
	if err != nil {
		return fmt.Errorf("open progress cache: %w", err)
	}
	defer cache.Close()

	var remote progress.Remote
	if cfg.HasServerConfig() {
		remote = progress.NewClient(cfg.ServerURL)
	} else {
		log.Warn().Msg("no server_url configured, progress is local only")
	}
	store := progress.NewStore(remote, cache, log)

	folder := cfg.LibraryFolder
	if len(os.Args) > 1 {
		folder = os.Args[1]
	}
	if folder == "" {
		if client, ok := remote.(*progress.Client); ok {
			return listBooks(client)
		}
		return fmt.Errorf("no audiobook folder: pass a path or set library_folder in config")
	}

	bk, err := book.Scan(folder)
	if err != nil {
		return fmt.Errorf("scan %s: %w", folder, err)
	}
	log.Info().Str("book_id", bk.ID).Str("title", bk.Title).
		Int("segments", len(bk.Segments)).Msg("book discovered")

	// Register the book server-side so progress rows resolve to titles.
	if client, ok := remote.(*progress.Client); ok {
		if err := client.CreateBook(context.Background(), bk); err != nil {
			log.Warn().Err(err).Msg("book registration failed")
		}
	}

	engine := audio.New(time.Duration(pb.StatusIntervalMs) * time.Millisecond)
	coord := session.New(engine, store, delay.New(), log,
		time.Duration(pb.AutosaveSeconds)*time.Second)
	defer coord.Close()

	sub := coord.Subscribe()
	go func() {
		for snap := range sub.Snapshots {
			printSnapshot(snap)
		}
	}()

	if err := coord.Open(context.Background(), bk, true); err != nil {
		return fmt.Errorf("open book: %w", err)
	}

	seekStep := time.Duration(pb.SeekStepSeconds) * time.Second
	commandLoop(coord, bk, seekStep, log)

	coord.Teardown(context.Background())
	return nil
}

func commandLoop(coord *session.Coordinator, bk *book.Book, seekStep time.Duration, log zerolog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	printHelp()

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "p":
			coord.TogglePlayPause(context.Background())
		case "f":
			coord.SeekBy(seekStep)
		case "b":
			coord.SeekBy(-seekStep)
		case "s":
			if len(fields) < 2 {
				fmt.Println("usage: s <minutes>")
				continue
			}
			minutes, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("usage: s <minutes>")
				continue
			}
			if err := coord.ScheduleDelayedStart(context.Background(), bk, minutes); err != nil {
				fmt.Printf("delay: %v\n", err)
			}
		case "c":
			coord.CancelDelayedStart()
		case "r":
			if err := coord.ResetProgress(context.Background(), bk.ID); err != nil {
				log.Error().Err(err).Msg("reset failed")
			} else {
				fmt.Println("progress reset")
			}
		case "i":
			printSnapshot(coord.Snapshot())
		case "h", "?":
			printHelp()
		case "q":
			return
		default:
			fmt.Printf("unknown command %q (h for help)\n", fields[0])
		}
	}
}

// listBooks prints the backend's known books with any saved positions.
func listBooks(client *progress.Client) error {
	ctx := context.Background()

	books, err := client.ListBooks(ctx)
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	if len(books) == 0 {
		fmt.Println("no books registered")
		return nil
	}

	positions := make(map[string]progress.Record)
	if records, err := client.ListProgress(ctx); err == nil {
		for _, rec := range records {
			positions[rec.BookID] = rec
		}
	}

	for _, b := range books {
		total := time.Duration(b.Duration * float64(time.Second))
		line := fmt.Sprintf("%s  (%d files, %s)", b.Title, b.FileCount, formatDuration(total))
		if rec, ok := positions[b.ID]; ok {
			line += fmt.Sprintf("  at %s, segment %d", formatDuration(rec.Position), rec.SegmentIndex+1)
		}
		fmt.Println(line)
	}
	return nil
}

func printHelp() {
	fmt.Println(`commands:
  p        play/pause (cancels a pending delayed start)
  f / b    seek forward / back
  s <min>  start playback after a delay
  c        cancel delayed start
  r        reset saved progress
  i        show status
  q        quit`)
}

func printSnapshot(snap session.Snapshot) {
	switch snap.State {
	case session.StateDelayPending:
		fmt.Printf("[%s] %s, starts at %s\n",
			snap.State, snap.BookTitle, snap.Delay.FireAt.Format(time.Kitchen))
	case session.StateEmpty:
		fmt.Printf("[%s]\n", snap.State)
	default:
		fmt.Printf("[%s] %s (%d/%d) %s / %s\n",
			snap.State, snap.SegmentName, snap.Segment+1, snap.SegmentCount,
			formatDuration(snap.Position), formatDuration(snap.Duration))
	}
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
