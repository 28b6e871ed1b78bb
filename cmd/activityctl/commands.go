package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/example/activity-store/internal/persistence"
	"github.com/example/activity-store/internal/persistence/sqlite"
)

var commands = map[string]command{
	"init": {
		summary: "create the schema (and the test user with --seed)",
		flags:   initCommand,
	},
	"add-user": {
		summary: "create a user account",
		flags:   addUserCommand,
	},
	"users": {
		summary: "list user accounts",
		flags:   usersCommand,
	},
	"check-password": {
		summary: "verify a username and password (exit 1 on mismatch)",
		flags:   checkPasswordCommand,
	},
	"add-device": {
		summary: "register a device for a user",
		flags:   addDeviceCommand,
	},
	"devices": {
		summary: "list a user's devices with last seen time",
		flags:   devicesCommand,
	},
	"add-ruleset": {
		summary: "store a categorization ruleset for a user",
		flags:   addRulesetCommand,
	},
	"report": {
		summary: "append one hour of events for a device",
		flags:   reportCommand,
	},
	"activity": {
		summary: "print the stored events of a device",
		flags:   activityCommand,
	},
}

func initCommand(fs *pflag.FlagSet) func(context.Context, *environment) error {
	return func(ctx context.Context, env *environment) error {
		missing, err := sqlite.MissingTables(ctx, env.pool)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return fmt.Errorf("schema incomplete, missing tables: %s", strings.Join(missing, ", "))
		}
		fmt.Fprintf(env.stdout, "schema ready: %s\n", strings.Join(sqlite.Tables, ", "))
		return nil
	}
}

func addUserCommand(fs *pflag.FlagSet) func(context.Context, *environment) error {
	username := fs.String("username", "", "login name (required)")
	email := fs.String("email", "", "email address (required)")
	password := fs.String("password", "", "plaintext password (required)")

	return func(ctx context.Context, env *environment) error {
		if *username == "" || *email == "" || *password == "" {
			return usagef("add-user: --username, --email and --password are required")
		}
		if err := env.store.CreateUser(ctx, *username, *email, *password); err != nil {
			return err
		}
		user, err := env.store.GetUser(ctx, *username)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.stdout, "created user %d (%s)\n", user.ID, user.Username)
		return nil
	}
}

func usersCommand(fs *pflag.FlagSet) func(context.Context, *environment) error {
	return func(ctx context.Context, env *environment) error {
		users, err := env.store.ListUsers(ctx)
		if err != nil {
			return err
		}
		writer := tabwriter.NewWriter(env.stdout, 2, 0, 3, ' ', 0)
		fmt.Fprintf(writer, "ID\tUSERNAME\tEMAIL\n")
		for _, user := range users {
			fmt.Fprintf(writer, "%d\t%s\t%s\n", user.ID, user.Username, user.Email)
		}
		return writer.Flush()
	}
}

func checkPasswordCommand(fs *pflag.FlagSet) func(context.Context, *environment) error {
	username := fs.String("username", "", "login name (required)")
	password := fs.String("password", "", "plaintext password (required)")

	return func(ctx context.Context, env *environment) error {
		if *username == "" || *password == "" {
			return usagef("check-password: --username and --password are required")
		}
		ok, err := env.store.VerifyCredentials(ctx, *username, *password)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(env.stdout, "invalid credentials")
			return &exitError{code: 1}
		}
		fmt.Fprintln(env.stdout, "ok")
		return nil
	}
}

func addDeviceCommand(fs *pflag.FlagSet) func(context.Context, *environment) error {
	username := fs.String("user", "", "owning username (required)")
	name := fs.String("name", "", "device name (required)")
	rawID := fs.String("id", "", "device UUID (default: newly generated)")

	return func(ctx context.Context, env *environment) error {
		if *username == "" || *name == "" {
			return usagef("add-device: --user and --name are required")
		}
		id := env.newID()
		if *rawID != "" {
			parsed, err := uuid.Parse(*rawID)
			if err != nil {
				return usagef("add-device: --id: %v", err)
			}
			id = parsed
		}

		user, err := env.store.GetUser(ctx, *username)
		if err != nil {
			return err
		}
		if err := env.store.RegisterDevice(ctx, user.ID, id, *name); err != nil {
			return err
		}
		fmt.Fprintln(env.stdout, id)
		return nil
	}
}

func devicesCommand(fs *pflag.FlagSet) func(context.Context, *environment) error {
	username := fs.String("user", "", "owning username (required)")

	return func(ctx context.Context, env *environment) error {
		if *username == "" {
			return usagef("devices: --user is required")
		}
		user, err := env.store.GetUser(ctx, *username)
		if err != nil {
			return err
		}
		devices, err := env.store.ListDevices(ctx, user.ID)
		if err != nil {
			return err
		}

		writer := tabwriter.NewWriter(env.stdout, 2, 0, 3, ' ', 0)
		fmt.Fprintf(writer, "ID\tNAME\tLAST SEEN\n")
		for _, device := range devices {
			lastSeen := "never"
			if device.LastSeen != nil {
				lastSeen = device.LastSeen.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(writer, "%s\t%s\t%s\n", device.ID, device.Name, lastSeen)
		}
		return writer.Flush()
	}
}

func addRulesetCommand(fs *pflag.FlagSet) func(context.Context, *environment) error {
	username := fs.String("user", "", "owning username (required)")
	name := fs.String("name", "default", "ruleset name")
	rawRules := fs.StringArray("rule", nil, `rule as "Name[,Name...]=pattern" (repeatable, order kept)`)

	return func(ctx context.Context, env *environment) error {
		if *username == "" {
			return usagef("add-ruleset: --user is required")
		}
		rules := make([]persistence.Rule, 0, len(*rawRules))
		for _, raw := range *rawRules {
			rule, err := parseRule(raw)
			if err != nil {
				return usagef("add-ruleset: --rule %q: %v", raw, err)
			}
			rules = append(rules, rule)
		}

		user, err := env.store.GetUser(ctx, *username)
		if err != nil {
			return err
		}
		id, err := env.store.CreateRuleset(ctx, user.ID, *name, rules)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.stdout, "created ruleset %d\n", id)
		return nil
	}
}

func reportCommand(fs *pflag.FlagSet) func(context.Context, *environment) error {
	rawDevice := fs.String("device", "", "device UUID (required)")
	rulesetID := fs.Int64("ruleset", 0, "ruleset ID the events were categorized with (required)")
	rawHour := fs.String("hour", "", "hour bucket as RFC 3339 (default: the current UTC hour)")
	rawEvents := fs.StringArray("event", nil, `event as "timestamp,duration,category" (repeatable)`)

	return func(ctx context.Context, env *environment) error {
		deviceID, err := uuid.Parse(*rawDevice)
		if err != nil {
			return usagef("report: --device: %v", err)
		}
		if *rulesetID <= 0 {
			return usagef("report: --ruleset is required")
		}

		hour := env.now().UTC().Truncate(time.Hour)
		if *rawHour != "" {
			hour, err = time.Parse(time.RFC3339Nano, *rawHour)
			if err != nil {
				return usagef("report: --hour: %v", err)
			}
		}

		events := make([]persistence.Event, 0, len(*rawEvents))
		for _, raw := range *rawEvents {
			event, err := parseEvent(raw)
			if err != nil {
				return usagef("report: --event %q: %v", raw, err)
			}
			events = append(events, event)
		}

		if err := env.store.ReportActivity(ctx, deviceID, *rulesetID, hour, events); err != nil {
			return err
		}
		fmt.Fprintf(env.stdout, "reported %d events for %s at %s\n", len(events), deviceID, hour.UTC().Format(time.RFC3339))
		return nil
	}
}

func activityCommand(fs *pflag.FlagSet) func(context.Context, *environment) error {
	rawDevice := fs.String("device", "", "device UUID (required)")

	return func(ctx context.Context, env *environment) error {
		deviceID, err := uuid.Parse(*rawDevice)
		if err != nil {
			return usagef("activity: --device: %v", err)
		}
		activities, err := env.store.FetchActivity(ctx, deviceID)
		if err != nil {
			return err
		}

		writer := tabwriter.NewWriter(env.stdout, 2, 0, 3, ' ', 0)
		fmt.Fprintf(writer, "HOUR\tTIMESTAMP\tDURATION\tCATEGORY\tRULESET\n")
		for _, activity := range activities {
			for _, event := range activity.Events {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%d\n",
					activity.Timestamp.Format(time.RFC3339),
					event.Timestamp.Format(time.RFC3339),
					event.Duration,
					event.Category,
					activity.RulesetID,
				)
			}
		}
		return writer.Flush()
	}
}

// parseRule reads "Name[,Name...]=pattern". The pattern is everything after
// the first '=' so it may itself contain '='.
func parseRule(raw string) (persistence.Rule, error) {
	names, pattern, ok := strings.Cut(raw, "=")
	if !ok {
		return persistence.Rule{}, fmt.Errorf("missing '='")
	}
	return persistence.Rule{Names: strings.Split(names, ","), Pattern: pattern}, nil
}

// parseEvent reads "timestamp,duration,category". The category is
// everything after the second comma. A duration without a unit is seconds.
func parseEvent(raw string) (persistence.Event, error) {
	parts := strings.SplitN(raw, ",", 3)
	if len(parts) != 3 {
		return persistence.Event{}, fmt.Errorf("want timestamp,duration,category")
	}

	timestamp, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(parts[0]))
	if err != nil {
		return persistence.Event{}, fmt.Errorf("timestamp: %w", err)
	}

	rawDuration := strings.TrimSpace(parts[1])
	var duration time.Duration
	if seconds, err := strconv.ParseInt(rawDuration, 10, 64); err == nil {
		duration = time.Duration(seconds) * time.Second
	} else if duration, err = time.ParseDuration(rawDuration); err != nil {
		return persistence.Event{}, fmt.Errorf("duration: %w", err)
	}

	return persistence.Event{Timestamp: timestamp, Duration: duration, Category: parts[2]}, nil
}
