package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/diogo464/sonar-sub000/internal/catalog"
)

func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage server users",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Create a user",
				ArgsUsage: "<username> <password>",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "admin",
						Usage: "Grant admin privileges",
					},
				},
				Action: r.UserAdd,
			},
			{
				Name:   "list",
				Usage:  "List users",
				Flags:  []cli.Flag{configFlag()},
				Action: r.UserList,
			},
			{
				Name:      "remove",
				Usage:     "Delete a user",
				ArgsUsage: "<username>",
				Flags:     []cli.Flag{configFlag()},
				Action:    r.UserRemove,
			},
		},
	}
}

// UserAdd creates a user directly against the catalog.
func (r *Runner) UserAdd(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("expected <username> <password>")
	}
	username, err := catalog.ParseUsername(cmd.Args().Get(0))
	if err != nil {
		return err
	}

	c, db, err := r.openCatalog(r.loadConfig(cmd.String("config")))
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := c.CreateUser(ctx, catalog.UserCreate{
		Username: username,
		Password: cmd.Args().Get(1),
		Admin:    cmd.Bool("admin"),
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	r.logger.Info("user created", "id", user.ID, "username", user.Username, "admin", user.Admin)
	return nil
}

// UserList prints every user as JSON lines.
func (r *Runner) UserList(ctx context.Context, cmd *cli.Command) error {
	c, db, err := r.openCatalog(r.loadConfig(cmd.String("config")))
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := c.ListUsers(ctx, catalog.ListParams{})
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	for _, user := range users {
		entry := map[string]any{
			"id":       user.ID.String(),
			"username": user.Username,
			"admin":    user.Admin,
		}
		if err := r.writeJSON(entry, false); err != nil {
			return err
		}
	}
	return nil
}

// UserRemove deletes a user by username.
func (r *Runner) UserRemove(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected <username>")
	}
	username, err := catalog.ParseUsername(cmd.Args().Get(0))
	if err != nil {
		return err
	}

	c, db, err := r.openCatalog(r.loadConfig(cmd.String("config")))
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := c.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if err := c.DeleteUser(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	r.logger.Info("user deleted", "username", username)
	return nil
}
