package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/balaji090804/placement-portal/internal/errors"
	"github.com/balaji090804/placement-portal/internal/metrics"
	"github.com/balaji090804/placement-portal/internal/ops"
	"github.com/balaji090804/placement-portal/internal/web"
)

// stdout is where command results are written.
var stdout io.Writer = os.Stdout

// errorCode colours the error code prefix on terminals.
var errorCode = color.New(color.FgRed, color.Bold).SprintFunc()

// newCLIApp creates the CLI application with all commands.
func newCLIApp(o *ops.Orchestrator, m *metrics.Metrics) *cli.App {
	app := &cli.App{
		Name:    "placement",
		Usage:   "Campus placement workflow",
		Version: Version,
		Commands: []*cli.Command{
			applyCmd(o),
			showCmd(o),
			transitionCmd(o),
			scheduleCmd(o),
			archiveCmd(o),
			notesCmd(o),
			applicationsCmd(o),
			slotCreateCmd(o),
			bookCmd(o),
			cancelCmd(o),
			slotsCmd(o),
			offerCreateCmd(o),
			releaseCmd(o),
			respondCmd(o),
			offersCmd(o),
			historyCmd(o),
			serveCmd(o, m),
		},
	}
	for _, cmd := range app.Commands {
		if cmd.Name != "serve" {
			cmd.Flags = append(cmd.Flags, actorFlag())
		}
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func applyCmd(o *ops.Orchestrator) *cli.Command {
	return &cli.Command{
		Name:  "apply",
		Usage: "Register a student's application to a drive",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "student", Aliases: []string{"s"}, Required: true, Usage: "Student ID"},
			&cli.StringFlag{Name: "drive", Aliases: []string{"d"}, Required: true, Usage: "Drive ID"},
			&cli.StringFlag{Name: "notes", Usage: "Free-text notes"},
		},
		Action: func(c *cli.Context) error {
			out, err := o.CreateApplication(c.Context, ops.CreateApplicationInput{
				StudentID: c.String("student"),
				DriveID:   c.String("drive"),
				Notes:     c.String("notes"),
				ActorID:   c.String("actor"),
			})
			return result(out, err)
		},
	}
}

func showCmd(o *ops.Orchestrator) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show an application with its history",
		ArgsUsage: "<application-id>",
		Action: func(c *cli.Context) error {
			id, err := firstArg(c, "application-id")
			if err != nil {
				return outputError(err)
			}
			out, err := o.GetApplication(c.Context, id)
			return result(out, err)
		},
	}
}

func transitionCmd(o *ops.Orchestrator) *cli.Command {
	return &cli.Command{
		Name:      "transition",
		Usage:     "Move an application to a new status",
		ArgsUsage: "<application-id> <status>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return outputError(errors.NewInvalidRequest("usage: placement transition <application-id> <status>"))
			}
			out, err := o.ApplyTransition(c.Context, ops.TransitionInput{
				ApplicationID: c.Args().Get(0),
				ToStatus:      c.Args().Get(1),
				ActorID:       staffActor(c),
			})
			return result(out, err)
		},
	}
}

func scheduleCmd(o *ops.Orchestrator) *cli.Command {
	return &cli.Command{
		Name:      "schedule",
		Usage:     "Book an interview slot and move the application to interview_scheduled",
		ArgsUsage: "<application-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "slot", Required: true, Usage: "Slot ID"},
		},
		Action: func(c *cli.Context) error {
			id, err := firstArg(c, "application-id")
			if err != nil {
				return outputError(err)
			}
			out, err := o.ScheduleInterview(c.Context, ops.ScheduleInput{
				ApplicationID: id,
				SlotID:        c.String("slot"),
				ActorID:       staffActor(c),
			})
			return result(out, err)
		},
	}
}

func archiveCmd(o *ops.Orchestrator) *cli.Command {
	return &cli.Command{
		Name:      "archive",
		Usage:     "Archive an application",
		ArgsUsage: "<application-id>",
		Action: func(c *cli.Context) error {
			id, err := firstArg(c, "application-id")
			if err != nil {
				return outputError(err)
			}
			out, err := o.ArchiveApplication(c.Context, ops.ArchiveInput{ApplicationID: id, ActorID: staffActor(c)})
			return result(out, err)
		},
	}
}

func notesCmd(o *ops.Orchestrator) *cli.Command {
	return &cli.Command{
		Name:      "notes",
		Usage:     "Replace an application's notes (reads markdown from stdin)",
		ArgsUsage: "<application-id>",
		Action: func(c *cli.Context) error {
			id, err := firstArg(c, "application-id")
			if err != nil {
				return outputError(err)
			}
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("notes must be piped via stdin"))
			}
			notes, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			out, err := o.UpdateNotes(c.Context, ops.NotesInput{ApplicationID: id, Notes: notes, ActorID: staffActor(c)})
			return result(out, err)
		},
	}
}

func applicationsCmd(o *ops.Orchestrator) *cli.Command {
	return &cli.Command{
		Name:  "applications",
		Usage: "List applications",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "drive", Aliases: []string{"d"}, Usage: "Filter by drive"},
			&cli.StringFlag{Name: "student", Aliases: []string{"s"}, Usage: "Filter by student"},
			&cli.StringFlag{Name: "status", Usage: "Filter by status"},
			&cli.BoolFlag{Name: "include-archived", Usage: "Include archived applications"},
		}, pageFlags()...),
		Action: func(c *cli.Context) error {
			out, err := o.ListApplications(c.Context, ops.ListApplicationsInput{
				DriveID:         c.String("drive"),
				StudentID:       c.String("student"),
				Status:          c.String("status"),
				IncludeArchived: c.Bool("include-archived"),
				Limit:           c.Int("limit"),
				Offset:          c.Int("offset"),
			})
			return result(out, err)
		},
	}
}

func slotCreateCmd(o *ops.Orchestrator) *cli.Command {
	return &cli.Command{
		Name:  "slot-create",
		Usage: "Open an interview slot for a drive",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "drive", Aliases: []string{"d"}, Required: true, Usage: "Drive ID"},
			&cli.StringFlag{Name: "start", Required: true, Usage: "Start time (RFC 3339 or unix seconds)"},
			&cli.StringFlag{Name: "end", Required: true, Usage: "End time (RFC 3339 or unix seconds)"},
			&cli.IntFlag{Name: "capacity", Aliases: []string{"c"}, Required: true, Usage: "Seats in the slot"},
		},
		Action: func(c *cli.Context) error {
			start, err := parseTime(c.String("start"))
			if err != nil {
				return outputError(errors.NewInvalidRequest("start: " + err.Error()))
			}
			end, err := parseTime(c.String("end"))
			if err != nil {
				return outputError(errors.NewInvalidRequest("end: " + err.Error()))
			}
			out, err := o.CreateSlot(c.Context, ops.CreateSlotInput{
				DriveID:  c.String("drive"),
				Start:    start,
				End:      end,
				Capacity: c.Int("capacity"),
				ActorID:  staffActor(c),
			})
			return result(out, err)
		},
	}
}

func bookCmd(o *ops.Orchestrator) *cli.Command {
	return &cli.Command{
		Name:      "book",
		Usage:     "Book a student into a slot",
		ArgsUsage: "<slot-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "student", Aliases: []string{"s"}, Required: true, Usage: "Student ID"},
		},
		Action: func(c *cli.Context) error {
			id, err := firstArg(c, "slot-id")
			if err != nil {
				return outputError(err)
			}
			out, err := o.BookSlot(c.Context, ops.BookInput{SlotID: id, StudentID: c.String("student"), ActorID: c.String("actor")})
			return result(out, err)
		},
	}
}

func cancelCmd(o *ops.Orchestrator) *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "Cancel a student's booking",
		ArgsUsage: "<slot-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "student", Aliases: []string{"s"}, Required: true, Usage: "Student ID"},
		},
		Action: func(c *cli.Context) error {
			id, err := firstArg(c, "slot-id")
			if err != nil {
				return outputError(err)
			}
			out, err := o.CancelSlot(c.Context, ops.BookInput{SlotID: id, StudentID: c.String("student"), ActorID: c.String("actor")})
			return result(out, err)
		},
	}
}

func slotsCmd(o *ops.Orchestrator) *cli.Command {
	return &cli.Command{
		Name:  "slots",
		Usage: "List interview slots",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "drive", Aliases: []string{"d"}, Usage: "Filter by drive"},
			&cli.BoolFlag{Name: "available", Usage: "Only slots with free seats"},
		}, pageFlags()...),
		Action: func(c *cli.Context) error {
			out, err := o.ListSlots(c.Context, ops.ListSlotsInput{
				DriveID:       c.String("drive"),
				AvailableOnly: c.Bool("available"),
				Limit:         c.Int("limit"),
				Offset:        c.Int("offset"),
			})
			return result(out, err)
		},
	}
}

func offerCreateCmd(o *ops.Orchestrator) *cli.Command {
	return &cli.Command{
		Name:      "offer-create",
		Usage:     "Draft the offer for an application",
		ArgsUsage: "<application-id>",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "ctc", Usage: "Cost to company"},
			&cli.StringFlag{Name: "accept-by", Usage: "Response deadline (RFC 3339 or unix seconds)"},
		},
		Action: func(c *cli.Context) error {
			id, err := firstArg(c, "application-id")
			if err != nil {
				return outputError(err)
			}
			input := ops.CreateOfferInput{ApplicationID: id, CTC: c.Float64("ctc"), ActorID: staffActor(c)}
			if s := c.String("accept-by"); s != "" {
				at, err := parseTime(s)
				if err != nil {
					return outputError(errors.NewInvalidRequest("accept-by: " + err.Error()))
				}
				input.AcceptBy = &at
			}
			out, err := o.CreateOffer(c.Context, input)
			return result(out, err)
		},
	}
}

func releaseCmd(o *ops.Orchestrator) *cli.Command {
	return &cli.Command{
		Name:      "release",
		Usage:     "Release a draft offer to the student",
		ArgsUsage: "<offer-id>",
		Action: func(c *cli.Context) error {
			id, err := firstArg(c, "offer-id")
			if err != nil {
				return outputError(err)
			}
			out, err := o.ReleaseOffer(c.Context, ops.ReleaseInput{OfferID: id, ActorID: staffActor(c)})
			return result(out, err)
		},
	}
}

func respondCmd(o *ops.Orchestrator) *cli.Command {
	return &cli.Command{
		Name:      "respond",
		Usage:     "Accept or decline a released offer",
		ArgsUsage: "<offer-id> <accept|decline>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return outputError(errors.NewInvalidRequest("usage: placement respond <offer-id> <accept|decline>"))
			}
			out, err := o.RespondOffer(c.Context, ops.RespondInput{
				OfferID:  c.Args().Get(0),
				Decision: c.Args().Get(1),
				ActorID:  staffActor(c),
			})
			return result(out, err)
		},
	}
}

func offersCmd(o *ops.Orchestrator) *cli.Command {
	return &cli.Command{
		Name:  "offers",
		Usage: "List offers",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "student", Aliases: []string{"s"}, Usage: "Filter by student"},
			&cli.StringFlag{Name: "drive", Aliases: []string{"d"}, Usage: "Filter by drive"},
			&cli.StringFlag{Name: "status", Usage: "Filter by status"},
		}, pageFlags()...),
		Action: func(c *cli.Context) error {
			out, err := o.ListOffers(c.Context, ops.ListOffersInput{
				StudentID: c.String("student"),
				DriveID:   c.String("drive"),
				Status:    c.String("status"),
				Limit:     c.Int("limit"),
				Offset:    c.Int("offset"),
			})
			return result(out, err)
		},
	}
}

func historyCmd(o *ops.Orchestrator) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show the audit trail of an application, slot or offer",
		ArgsUsage: "<application|slot|offer> <id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return outputError(errors.NewInvalidRequest("usage: placement history <application|slot|offer> <id>"))
			}
			out, err := o.History(c.Context, ops.HistoryInput{EntityKind: c.Args().Get(0), EntityID: c.Args().Get(1)})
			return result(out, err)
		},
	}
}

func serveCmd(o *ops.Orchestrator, m *metrics.Metrics) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API, timeline pages and /metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			cfg := o.Config()
			bind := cfg.HTTPBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := cfg.HTTPPort
			if c.IsSet("port") {
				port = c.Int("port")
			}
			return web.Run(web.NewServer(o, m, Version, bind, port))
		},
	}
}

// staffActor returns --actor, falling back to the login name for
// operations that must record who acted.
func staffActor(c *cli.Context) string {
	if a := strings.TrimSpace(c.String("actor")); a != "" {
		return a
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

func actorFlag() cli.Flag {
	return &cli.StringFlag{Name: "actor", Aliases: []string{"a"}, EnvVars: []string{"PLACEMENT_ACTOR"}, Usage: "Who performs the action"}
}

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max items"},
		&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Items to skip"},
	}
}

// result prints out as JSON, or the error.
func result(out any, err error) error {
	if err != nil {
		return outputError(err)
	}
	return outputJSON(out)
}

// outputJSON writes v as indented JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if pErr, ok := err.(*errors.PlacementError); ok {
		return cli.Exit(fmt.Sprintf("%s %s", errorCode("["+string(pErr.Code)+"]"), pErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

func firstArg(c *cli.Context, name string) (string, error) {
	if c.NArg() < 1 || strings.TrimSpace(c.Args().First()) == "" {
		return "", errors.NewInvalidRequest(name + " is required")
	}
	return c.Args().First(), nil
}

// parseTime accepts RFC 3339 timestamps or unix seconds.
func parseTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want RFC 3339 or unix seconds", s)
	}
	return t.Unix(), nil
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
