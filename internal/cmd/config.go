package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/nguyengg/xy7z/internal/config"
)

func loadConfig(profile string) error {
	name, err := config.LoadProfile(context.Background(), profile)
	if err != nil {
		return fmt.Errorf(`load config "%s" error: %w`, name, err)
	}

	if name != "" {
		log.Printf(`using config "%s"`, name)
	}

	return nil
}
