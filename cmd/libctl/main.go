// cmd/libctl/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"bookhive/internal/accounts"
	"bookhive/internal/catalog"
	"bookhive/internal/config"
	"bookhive/internal/eventlog"
	"bookhive/internal/lending"
	"bookhive/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:   "libctl",
		Short: "Administrative tooling for the BookHive API",
	}

	root.AddCommand(migrateCmd(), seedCmd(), createAdminCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func openDatabase(ctx context.Context) (*storeHandle, error) {
	cfg := config.Load()
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	ledger := lending.NewService(db, eventlog.New(db))
	return &storeHandle{
		close:    db.Close,
		accounts: accounts.NewService(db),
		catalog:  catalog.NewService(db, ledger),
	}, nil
}

type storeHandle struct {
	close    func() error
	accounts accounts.Service
	catalog  catalog.Service
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			db, err := store.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := store.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			log.Println("schema up to date")
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			handle, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer handle.close()

			fmt.Print("Password: ")
			password, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}

			user, err := handle.accounts.CreateUser(cmd.Context(), name, email, string(password), accounts.RoleAdmin)
			if err != nil {
				return err
			}
			log.Printf("admin %s (%s) created", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Admin User", "display name")
	cmd.Flags().StringVar(&email, "email", "admin@example.com", "login email")
	cmd.MarkFlagRequired("email")

	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with sample users, categories and books",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			handle, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer handle.close()

			admin, err := handle.accounts.CreateUser(ctx, "Admin User", "admin@example.com", "password123", accounts.RoleAdmin)
			if err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
			if _, err := handle.accounts.CreateUser(ctx, "John Doe", "john@example.com", "password123", accounts.RoleUser); err != nil {
				return fmt.Errorf("seed user: %w", err)
			}

			categories := []struct{ name, description, icon string }{
				{"Fiction", "Novels, short stories, and other fictional works", "📚"},
				{"Science Fiction", "Books about space, time travel, and futuristic concepts", "🚀"},
				{"Mystery", "Detective stories and mysteries", "🔍"},
				{"Biography", "Life stories of real people", "👤"},
				{"History", "Books about historical events and periods", "🏛️"},
				{"Technology", "Books about computers, programming, and technology", "💻"},
			}
			for _, c := range categories {
				if _, err := handle.catalog.CreateCategory(ctx, c.name, c.description, c.icon); err != nil {
					return fmt.Errorf("seed category %q: %w", c.name, err)
				}
			}

			books := []catalog.BookInput{
				{Title: "Pride and Prejudice", Author: "Jane Austen", Description: "A classic novel of manners.", ISBN: "9780141439518", Category: "Fiction", TotalCopies: 5, AddedBy: admin.ID},
				{Title: "Dune", Author: "Frank Herbert", Description: "A desert planet, a noble house, and a spice that bends minds.", ISBN: "9780441172719", Category: "Science Fiction", TotalCopies: 3, AddedBy: admin.ID},
				{Title: "The Hound of the Baskervilles", Author: "Arthur Conan Doyle", Description: "Sherlock Holmes investigates a spectral hound.", ISBN: "9780451528018", Category: "Mystery", TotalCopies: 2, AddedBy: admin.ID},
				{Title: "The Pragmatic Programmer", Author: "Andrew Hunt and David Thomas", Description: "Your journey to mastery.", ISBN: "9780135957059", Category: "Technology", TotalCopies: 4, AddedBy: admin.ID},
			}
			for _, b := range books {
				if _, err := handle.catalog.CreateBook(ctx, b); err != nil {
					return fmt.Errorf("seed book %q: %w", b.Title, err)
				}
			}

			log.Printf("seeded %d categories and %d books", len(categories), len(books))
			return nil
		},
	}
}
