package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	"github.com/oarkflow/rowguard"
	"github.com/oarkflow/rowguard/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "apply":
		handleApply()
	case "breaches":
		handleBreaches()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("rowguard-config - Configuration tool for rowguard")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  rowguard-config convert <input> <output>   - Convert between formats")
	fmt.Println("  rowguard-config validate <file>            - Validate configuration")
	fmt.Println("  rowguard-config stats <file>               - Show configuration statistics")
	fmt.Println("  rowguard-config apply <file>               - Apply configuration to an in-memory engine")
	fmt.Println("  rowguard-config breaches <db> [late]       - Report breach incidents from a sqlite database")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json, .bin, .dsl")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: rowguard-config convert <input> <output>")
		os.Exit(1)
	}

	inputFile := os.Args[2]
	outputFile := os.Args[3]

	cfg, err := loadConfig(inputFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := saveConfig(cfg, outputFile); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Converted %s -> %s\n", inputFile, outputFile)

	inStat, _ := os.Stat(inputFile)
	outStat, _ := os.Stat(outputFile)
	if inStat != nil && outStat != nil {
		reduction := (1 - float64(outStat.Size())/float64(inStat.Size())) * 100
		if reduction > 0 {
			fmt.Printf("Size reduced by %.1f%% (%d -> %d bytes)\n",
				reduction, inStat.Size(), outStat.Size())
		} else {
			fmt.Printf("Size increased by %.1f%% (%d -> %d bytes)\n",
				-reduction, inStat.Size(), outStat.Size())
		}
	}
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: rowguard-config validate <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Version: %d\n", cfg.Version)
	fmt.Printf("  Retention rules: %d\n", len(cfg.Retention))
	fmt.Printf("  Seed organizations: %d\n", len(cfg.Organizations))
	fmt.Printf("  Seed products: %d\n", len(cfg.Products))
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: rowguard-config stats <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	stat, _ := os.Stat(filename)

	fmt.Println("Configuration Statistics")
	fmt.Println("========================")
	if stat != nil {
		fmt.Printf("File size: %d bytes\n", stat.Size())
	}
	fmt.Printf("Version: %d\n", cfg.Version)
	fmt.Println()

	fmt.Println("Components:")
	fmt.Printf("  Retention rules:    %d\n", len(cfg.Retention))
	fmt.Printf("  Seed organizations: %d\n", len(cfg.Organizations))
	fmt.Printf("  Seed products:      %d\n", len(cfg.Products))
	fmt.Println()

	if len(cfg.Organizations) > 0 {
		principals := 0
		distributors := 0
		for _, o := range cfg.Organizations {
			if o.IsPrincipal {
				principals++
			}
			if o.IsDistributor {
				distributors++
			}
		}
		fmt.Println("Organization Details:")
		fmt.Printf("  Principals:   %d\n", principals)
		fmt.Printf("  Distributors: %d\n", distributors)
		fmt.Println()
	}

	if len(cfg.Retention) > 0 {
		fmt.Println("Retention Rules:")
		for _, r := range cfg.Retention {
			if r.MaxAgeDays > 0 {
				fmt.Printf("  %-14s %d days\n", r.Category, r.MaxAgeDays)
			} else {
				fmt.Printf("  %-14s no automatic sweep\n", r.Category)
			}
		}
		fmt.Println()
	}

	fmt.Println("Engine Configuration:")
	fmt.Printf("  Hierarchy cache TTL: %dms\n", cfg.Engine.HierarchyCacheTTL)
	fmt.Printf("  Authority SLA:       %dh\n", cfg.Engine.AuthoritySLAHours)
	if cfg.Engine.AllowAnonymousDemo != nil {
		fmt.Printf("  Anonymous demo:      %v\n", *cfg.Engine.AllowAnonymousDemo)
	}
}

func handleApply() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: rowguard-config apply <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	store := rowguard.NewMemoryEntityStore()
	engine, err := rowguard.NewEngine(
		store,
		store,
		rowguard.NewMemoryBreachStore(),
		rowguard.NewMemoryErasureLog(),
	)
	if err != nil {
		fmt.Printf("Error creating engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	if err := engine.ApplyConfig(ctx, cfg); err != nil {
		fmt.Printf("Error applying config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration applied successfully\n")
	fmt.Printf("  Organizations loaded: %d\n", len(cfg.Organizations))
	fmt.Printf("  Products loaded: %d\n", len(cfg.Products))
	fmt.Printf("  Retention rules loaded: %d\n", len(cfg.Retention))
}

func handleBreaches() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: rowguard-config breaches <db> [late]")
		os.Exit(1)
	}

	dbFile := os.Args[2]
	lateOnly := len(os.Args) > 3 && os.Args[3] == "late"

	sqlDB, err := sql.Open("sqlite", dbFile)
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer sqlDB.Close()
	sqlDB.SetMaxOpenConns(1)
	db := squealx.NewDb(sqlDB, "sqlite", "rowguard")

	if err := stores.Migrate(db); err != nil {
		fmt.Printf("Error migrating database: %v\n", err)
		os.Exit(1)
	}

	entityStore, _ := stores.NewSQLEntityStore(db)
	consentStore, _ := stores.NewSQLConsentStore(db)
	breachStore, _ := stores.NewSQLBreachStore(db)
	erasureLog, _ := stores.NewSQLErasureLog(db)

	engine, err := rowguard.NewEngine(entityStore, consentStore, breachStore, erasureLog)
	if err != nil {
		fmt.Printf("Error creating engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	breaches, err := engine.ListBreaches(ctx, rowguard.BreachFilter{LateOnly: lateOnly})
	if err != nil {
		fmt.Printf("Error listing breaches: %v\n", err)
		os.Exit(1)
	}

	if len(breaches) == 0 {
		fmt.Println("No breach incidents recorded")
		return
	}

	fmt.Printf("%-36s %-22s %-10s %8s  %s\n", "INCIDENT", "STATE", "SEVERITY", "RECORDS", "AUTHORITY NOTIFIED")
	for _, b := range breaches {
		notified := "-"
		if b.SupervisoryAuthorityNotifiedAt != nil {
			notified = b.SupervisoryAuthorityNotifiedAt.Format(time.RFC3339)
			if b.AuthorityNotificationLate(72 * time.Hour) {
				notified += " (LATE)"
			}
		}
		fmt.Printf("%-36s %-22s %-10s %8d  %s\n", b.IncidentID, b.State, b.Severity, b.AffectedRecords, notified)
	}
}

func loadConfig(filename string) (*rowguard.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	loader := rowguard.NewConfigLoader()

	switch ext {
	case ".yaml", ".yml":
		return loader.LoadYAML(data)
	case ".json":
		return loader.LoadJSON(data)
	case ".bin":
		return loader.LoadBinary(data)
	case ".dsl":
		return loader.LoadDSL(data)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func saveConfig(cfg *rowguard.Config, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))

	var data []byte
	var err error

	switch ext {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	case ".bin":
		data, err = rowguard.EncodeBinaryConfig(cfg)
	case ".dsl":
		data, err = rowguard.NewDSLEncoder().Encode(cfg)
	default:
		return fmt.Errorf("unsupported file format: %s", ext)
	}

	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
