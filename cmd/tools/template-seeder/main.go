// cmd/tools/template-seeder/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"ops-notifications/internal/common/config"
	"ops-notifications/internal/common/database"
	"ops-notifications/internal/common/logger"
	"ops-notifications/internal/models"
	"ops-notifications/internal/notification/store"
	"ops-notifications/pkg/registry"
)

const defaultRegistryPath = "configs/notification-templates.json"

// TemplateWriter is the store surface the seeder needs.
type TemplateWriter interface {
	UpsertTemplate(ctx context.Context, t models.NotificationTemplate) error
}

// CacheInvalidator drops cached copies of updated templates.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, id string) error
}

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	seedCmd := flag.NewFlagSet("seed", flag.ExitOnError)

	addPath := addCmd.String("path", defaultRegistryPath, "Path to template registry file")
	id := addCmd.String("id", "", "Template ID (e.g., po-approved)")
	title := addCmd.String("title", "", "Title with {{placeholders}}")
	message := addCmd.String("message", "", "Message with {{placeholders}}")
	ntype := addCmd.String("type", "info", "Notification type (info, success, warning, error)")
	category := addCmd.String("category", "", "Category (e.g., procurement)")
	priority := addCmd.String("priority", "medium", "Priority (low, medium, high, urgent)")
	actionURL := addCmd.String("actionUrl", "", "Optional action URL with {{placeholders}}")

	validatePath := validateCmd.String("path", defaultRegistryPath, "Path to template registry file")
	seedPath := seedCmd.String("path", defaultRegistryPath, "Path to template registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *id == "" || *title == "" || *message == "" {
			fmt.Println("Error: id, title and message are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		t := models.NotificationTemplate{
			ID:        *id,
			Title:     *title,
			Message:   *message,
			Type:      models.NotificationType(*ntype),
			Category:  *category,
			Priority:  models.Priority(*priority),
			ActionURL: *actionURL,
		}
		if err := addTemplate(*addPath, t); err != nil {
			fmt.Printf("Error adding template: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added template: %s (variables: %s)\n", t.ID, strings.Join(registry.Variables(t), ", "))

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := loadValid(*validatePath)
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		for _, t := range reg.Templates {
			fmt.Printf("  %-32s %s\n", t.ID, strings.Join(registry.Variables(t), ", "))
		}
		fmt.Println("Registry validation passed.")

	case "seed":
		seedCmd.Parse(os.Args[2:])
		if err := runSeed(*seedPath); err != nil {
			fmt.Printf("Seeding failed: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func addTemplate(path string, t models.NotificationTemplate) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = &registry.TemplateRegistry{Version: "1.0.0"}
	}

	for _, existing := range reg.Templates {
		if existing.ID == t.ID {
			return fmt.Errorf("template with ID %s already exists", t.ID)
		}
	}
	reg.Templates = append(reg.Templates, t)
	if err := reg.Validate(); err != nil {
		return err
	}
	return registry.SaveRegistry(reg, path)
}

func loadValid(path string) (*registry.TemplateRegistry, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

func runSeed(path string) error {
	reg, err := loadValid(path)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	zapLog, err := logger.New(logger.Options{Level: cfg.Logging.Level, Format: "console"})
	if err != nil {
		return err
	}
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := database.RetryWithBackoff(ctx, pg.Ping, 5, time.Second, log, "PostgreSQL connection"); err != nil {
		return err
	}
	if err := pg.Migrate(ctx, store.Schema); err != nil {
		return err
	}

	rdb := database.NewRedis(cfg.Database.Redis)
	defer rdb.Close()

	s := store.New(pg.DB)
	cache := store.NewCachedTemplates(s, rdb.Client, 0, log)

	n, err := seed(ctx, reg.Templates, s, cache, log)
	if err != nil {
		return err
	}
	fmt.Printf("Seeded %d templates from %s\n", n, path)
	return nil
}

// seed upserts every template and then invalidates its cache entry. A cache failure
// is logged only; the entry expires on its own TTL.
func seed(ctx context.Context, templates []models.NotificationTemplate, w TemplateWriter, cache CacheInvalidator, log logger.Logger) (int, error) {
	for i, t := range templates {
		if err := w.UpsertTemplate(ctx, t); err != nil {
			return i, fmt.Errorf("template %s: %w", t.ID, err)
		}
		if err := cache.Invalidate(ctx, t.ID); err != nil {
			log.Warn("failed to invalidate cached template", map[string]interface{}{
				"templateId": t.ID,
				"error":      err.Error(),
			})
		}
		log.Info("template seeded", map[string]interface{}{"templateId": t.ID})
	}
	return len(templates), nil
}

func help() {
	fmt.Println("Usage: template-seeder <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  add       Append a template to the registry file")
	fmt.Println("  validate  Validate the registry file and list template variables")
	fmt.Println("  seed      Upsert every registry template into PostgreSQL")
	fmt.Println("  help      Show this help")
}
