package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/xy7z"
	"github.com/nguyengg/xy7z/engine"
	"github.com/nguyengg/xy7z/internal"
)

type List struct {
	ArchiveOptions
	Technical bool `short:"T" long:"technical" description:"also show packed size, CRC and compression method of every item"`
	Args      struct {
		Files []flags.Filename `positional-arg-name:"file" description:"local files or s3://bucket/key URIs" required:"yes"`
	} `positional-args:"yes"`
}

func (c *List) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	success := 0
	n := len(c.Args.Files)
	for i, file := range c.Args.Files {
		logger := internal.NewLogger(i, n, string(file))

		err := c.list(ctx, string(file), os.Stdout)
		if err == nil {
			success++
			continue
		}

		if errors.Is(err, context.Canceled) {
			break
		}

		logger.Printf("list error: %v", err)
	}

	log.Printf("successfully listed %d/%d files", success, n)
	return nil
}

func (c *List) list(ctx context.Context, name string, w io.Writer) error {
	return forEachArchive(ctx, name, c.openOptions(), func(r *xy7z.Reader) error {
		return c.print(r, name, w)
	})
}

// print writes one line per entry, then a summary line.
func (c *List) print(r *xy7z.Reader, name string, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "%s: %s", name, r.Format())
	if r.Offset() > 0 {
		_, _ = fmt.Fprintf(w, " at offset %d", r.Offset())
	}
	if v, err := r.ArchiveProperty(engine.KpidComment); err == nil && !v.IsEmpty() {
		if comment, err := v.Text(); err == nil {
			_, _ = fmt.Fprintf(w, " (%s)", comment)
		}
	}
	_, _ = fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	var files, dirs int
	var size, packed uint64
	for e, err := range r.Entries() {
		if err != nil {
			return err
		}

		attr := "...."
		switch {
		case e.IsDir:
			attr = "D..."
			dirs++
		default:
			files++
			size += e.Size
			packed += e.PackedSize
		}
		if e.Encrypted {
			attr = attr[:3] + "+"
		}

		modified := ""
		if !e.Modified.IsZero() {
			modified = e.Modified.Local().Format(time.DateTime)
		}

		if c.Technical {
			crc := ""
			if e.HasCRC {
				crc = fmt.Sprintf("%08X", e.CRC)
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t %s\n", modified, attr, e.Size, e.PackedSize, crc, e.Method, e.Path)
			continue
		}

		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t %s\n", modified, attr, humanize.IBytes(e.Size), e.Path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "%d files, %d folders, %s (%s packed)\n", files, dirs, humanize.IBytes(size), humanize.IBytes(packed))
	return nil
}
