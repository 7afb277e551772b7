package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/xy7z/detect"
	"github.com/nguyengg/xy7z/internal"
	"github.com/nguyengg/xy7z/internal/s3stream"
)

type Detect struct {
	Args struct {
		Files []flags.Filename `positional-arg-name:"file" description:"local files or s3://bucket/key URIs" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Detect) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	success := 0
	n := len(c.Args.Files)
	for i, file := range c.Args.Files {
		logger := internal.NewLogger(i, n, string(file))

		res, err := detectFormat(ctx, string(file))
		if err == nil {
			logger.Printf("%s (%s)", res, res.Format.ContentType())
			success++
			continue
		}

		if errors.Is(err, context.Canceled) {
			break
		}

		logger.Printf("detect error: %v", err)
	}

	log.Printf("successfully detected %d/%d files", success, n)
	return nil
}

func detectFormat(ctx context.Context, name string) (detect.Result, error) {
	if !s3stream.IsURI(name) {
		return detect.DetectFile(name, detectOptions)
	}

	r, err := openS3(ctx, name)
	if err != nil {
		return detect.Result{}, err
	}
	defer r.Close()

	return detect.Detect(r, detectOptions)
}
