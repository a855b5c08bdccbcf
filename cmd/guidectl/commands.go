package main

import "github.com/urfave/cli/v3"

func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Apply pending database migrations",
		Action: r.Migrate,
	}
}

func backupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Export or restore the database as JSON",
		Commands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Export the database to a JSON file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: backup_YYYYMMDD_HHMMSS.json)",
					},
				},
				Action: r.BackupExport,
			},
			{
				Name:  "import",
				Usage: "Import a JSON backup",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Input file path",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "clear",
						Usage: "Delete existing data before import (destructive)",
					},
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Do not ask for confirmation with --clear",
					},
				},
				Action: r.BackupImport,
			},
		},
	}
}

func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Inspect chapter and book catalogs",
		Commands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Check that a catalog directory loads and every book reference resolves",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Catalog directory (default: configured catalog_dir, else the built-in catalog)",
					},
				},
				Action: r.CatalogValidate,
			},
		},
	}
}

func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "library",
		Usage: "Inspect purchased titles",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the titles owned by an account",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "owner",
						Usage:    "Library owner, for example user:42",
						Required: true,
					},
				},
				Action: r.LibraryList,
			},
		},
	}
}

func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage accounts",
		Commands: []*cli.Command{
			{
				Name:      "promote",
				Usage:     "Grant admin access to an account",
				ArgsUsage: "<email>",
				Action:    r.UserPromote,
			},
			{
				Name:      "demote",
				Usage:     "Revoke admin access from an account",
				ArgsUsage: "<email>",
				Action:    r.UserDemote,
			},
		},
	}
}
