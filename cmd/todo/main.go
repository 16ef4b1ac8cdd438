package main

import (
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"bada/internal/config"
	"bada/internal/crud"
	"bada/internal/i18n"
	"bada/internal/storage"
	"bada/internal/ui"
)

func main() {
	configPath := config.ResolveConfigPath()
	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.LogPath != "" {
		f, err := tea.LogToFile(cfg.LogPath, "bada")
		if err != nil {
			fmt.Printf("failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	tr, err := i18n.Load(cfg.Locale)
	if err != nil {
		fmt.Printf("failed to load strings: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		fmt.Printf("failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	mgr := crud.New(store)
	if _, err := mgr.EnsureDefaultCategory(tr.T("Category.default")); err != nil {
		fmt.Printf("failed to create default category: %v\n", err)
		os.Exit(1)
	}

	log.Printf("starting with db %s, locale %s", cfg.DBPath, tr.Language())
	if err := ui.Run(mgr, cfg, tr); err != nil {
		fmt.Printf("error running program: %v\n", err)
		os.Exit(1)
	}
}
