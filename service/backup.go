package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"blogapi/app/repositories"
	"blogapi/config"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
)

var errBadgerOnly = errors.New("backup and restore need storage.driver=badger; use the database's own tools otherwise")

const (
	outputFlag = "output"
	inputFlag  = "input"
)

func newBackupCommand() *cobra.Command {
	backupFlags := map[string]cobraflags.Flag{
		outputFlag: &cobraflags.StringFlag{
			Name:  outputFlag,
			Value: "",
			Usage: "Backup file to write (default data/backups/backup_<unix>.db)",
		},
	}

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a full backup of a badger post store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			path, err := backup(cfg, backupFlags[outputFlag].GetString())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database backed up successfully to %s\n", path)
			return nil
		},
	}
	cobraflags.RegisterMap(cmd, backupFlags)
	return cmd
}

func newRestoreCommand() *cobra.Command {
	restoreFlags := map[string]cobraflags.Flag{
		inputFlag: &cobraflags.StringFlag{
			Name:  inputFlag,
			Value: "",
			Usage: "Backup file to load (required)",
		},
	}

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Load a backup into a badger post store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			input := restoreFlags[inputFlag].GetString()
			if input == "" {
				return errors.New("backup file is required (use --input)")
			}
			if err := restore(cfg, input); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database restored successfully")
			return nil
		},
	}
	cobraflags.RegisterMap(cmd, restoreFlags)
	return cmd
}

// backup streams every key of the badger store to output and returns the
// file written.
func backup(cfg *config.Config, output string) (string, error) {
	if cfg.Storage.Driver != repositories.DriverBadger {
		return "", errBadgerOnly
	}
	if _, err := os.Stat(cfg.Storage.Badger.Path); os.IsNotExist(err) {
		return "", fmt.Errorf("no database exists at %s", cfg.Storage.Badger.Path)
	}

	if output == "" {
		output = filepath.Join("data", "backups", fmt.Sprintf("backup_%d.db", time.Now().Unix()))
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	repo, err := repositories.OpenBadgerPostRepository(cfg.Storage.Badger.Path)
	if err != nil {
		return "", err
	}
	defer repo.Close()

	f, err := os.Create(output)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	defer f.Close()

	if _, err := repo.DB().Backup(f, 0); err != nil {
		return "", fmt.Errorf("failed to backup database: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("failed to flush backup file: %w", err)
	}
	return output, nil
}

// restore loads a backup written by backup into the configured store.
// Keys already present are overwritten.
func restore(cfg *config.Config, input string) (err error) {
	if cfg.Storage.Driver != repositories.DriverBadger {
		return errBadgerOnly
	}

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat backup file: %w", err)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("backup file is empty: %s", input)
	}

	if err := os.MkdirAll(cfg.Storage.Badger.Path, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	repo, err := repositories.OpenBadgerPostRepository(cfg.Storage.Badger.Path)
	if err != nil {
		return err
	}
	defer repo.Close()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic occurred during restore: %v", r)
		}
	}()
	if err := repo.DB().Load(f, 4); err != nil {
		return fmt.Errorf("failed to restore database: %w", err)
	}
	return nil
}
