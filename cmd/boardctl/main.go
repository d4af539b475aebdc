// cmd/boardctl/main.go
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tackboard/tackboard/internal/model"
	"github.com/tackboard/tackboard/internal/ordering"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	dbConnString string
	verbose      bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbConnString, "db", "d", "", "Database connection string")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(rebalanceCmd)
	rootCmd.AddCommand(versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "boardctl",
	Short: "boardctl is a maintenance CLI for the task board database",
	Long:  `boardctl runs schema migrations and board maintenance operations such as position rebalancing.`,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run schema migrations",
	Run: func(cmd *cobra.Command, args []string) {
		db := openDB()
		err := db.AutoMigrate(
			&model.User{},
			&model.Organization{},
			&model.OrganizationMember{},
			&model.Project{},
			&model.ProjectMember{},
			&model.Board{},
			&model.Column{},
			&model.Task{},
			&model.ActivityLogEntry{},
		)
		if err != nil {
			log.Fatalf("Failed to migrate schema: %v", err)
		}
		fmt.Println("Schema migrated")
	},
}

var rebalanceCmd = &cobra.Command{
	Use:   "rebalance [board-id]",
	Short: "Rewrite task positions on a board's columns to evenly spaced values",
	Long: `Rebalance reassigns evenly spaced positions to every column on the board,
preserving current order. Normally this happens automatically when fractional
precision runs out; this command forces it, e.g. after a data import.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		boardID, err := uuid.Parse(args[0])
		if err != nil {
			log.Fatalf("Invalid board id: %v", err)
		}

		db := openDB()
		var columns []model.Column
		if err := db.Where("board_id = ?", boardID).Find(&columns).Error; err != nil {
			log.Fatalf("Failed to load columns: %v", err)
		}
		if len(columns) == 0 {
			log.Fatalf("No columns found for board %s", boardID)
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := ordering.RebalanceColumns(tx, boardID); err != nil {
				return err
			}
			for _, c := range columns {
				if err := ordering.RebalanceTasks(tx, c.ID); err != nil {
					return err
				}
				if verbose {
					fmt.Printf("Rebalanced column %s (%s)\n", c.Name, c.ID)
				}
			}
			return nil
		})
		if err != nil {
			log.Fatalf("Rebalance failed: %v", err)
		}
		fmt.Printf("Rebalanced %d columns\n", len(columns))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the boardctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("boardctl v0.1.0")
	},
}

func openDB() *gorm.DB {
	dsn := dbConnString
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		log.Fatal("No database connection string; use --db or DATABASE_URL")
	}

	logLevel := logger.Silent
	if verbose {
		logLevel = logger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logLevel)})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return db
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
