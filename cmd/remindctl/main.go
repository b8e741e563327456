// remindctl inspects the reminder snapshot and manages the notification
// permission from a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"lifebook-backend/internal/app"
	"lifebook-backend/internal/auth"
	"lifebook-backend/internal/permission"
	"lifebook-backend/internal/reminder/matcher"
	"lifebook-backend/internal/reminder/snapshot"
	"lifebook-backend/pkg/clock"
	"lifebook-backend/pkg/config"
)

const usage = `Usage: remindctl <command> [args]

Commands:
  due [HH:MM]      show reminders due now (or at HH:MM today)
  snapshot         show the stored reminder snapshot
  permission       ask for notification permission and store the answer
  token <user-id>  issue a development access token
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(context.Background(), os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, warningStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if command == "token" {
		if len(args) != 1 {
			return fmt.Errorf("usage: remindctl token <user-id>")
		}
		token, err := auth.GenerateToken(cfg.Auth.JWTSecret, args[0], 24*time.Hour)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	stores, err := app.OpenStores(cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	switch command {
	case "snapshot":
		snap := snapshot.NewStore(stores.Cache).Get(ctx)
		fmt.Println(renderSnapshot(snap))
		return nil

	case "due":
		clk, err := clock.NewSystem(cfg.Reminder.Timezone)
		if err != nil {
			return err
		}
		now := clk.Now()
		if len(args) > 0 {
			if now, err = parseAt(now, args[0]); err != nil {
				return err
			}
		}
		snap := snapshot.NewStore(stores.Cache).Get(ctx)
		fmt.Println(renderDue(matcher.DueReminders(snap.Reminders, now), now))
		return nil

	case "permission":
		gate := permission.NewGate(stores.Permissions, &permission.TerminalPrompter{})
		granted, err := gate.RequestPermission(ctx)
		if err != nil {
			return err
		}
		if granted {
			fmt.Println(successStyle.Render("✓ Đã bật thông báo nhắc nhở"))
		} else {
			fmt.Println(warningStyle.Render("Thông báo nhắc nhở chưa được bật (" + string(gate.State(ctx)) + ")"))
		}
		return nil
	}

	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", command)
}
