package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"recstatus-dashboard/internal/dashboard"

	"github.com/spf13/pflag"
)

func commands() []*command {
	return []*command{
		loginCommand(),
		logoutCommand(),
		roomsCommand(),
		serversCommand(),
		addRoomCommand(),
		deleteRoomCommand(),
		recordCommand(),
		addServerCommand(),
		deleteServerCommand(),
	}
}

func loginCommand() *command {
	var user, password string
	return &command{
		name:    "login",
		usage:   "login --user NAME [--password PASS]",
		summary: "log in and store the session token (password may come from RECCTL_PASSWORD)",
		flags: func(fs *pflag.FlagSet) {
			fs.StringVarP(&user, "user", "u", "", "username")
			fs.StringVarP(&password, "password", "p", "", "password")
		},
		run: func(ctx context.Context, a *app, args []string) error {
			if password == "" {
				password = passwordFromEnv()
			}
			ok, err := a.dash.Session.Login(ctx, user, password)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("server did not issue a token")
			}
			return nil
		},
	}
}

func logoutCommand() *command {
	return &command{
		name:    "logout",
		usage:   "logout",
		summary: "forget the stored session token",
		run: func(ctx context.Context, a *app, args []string) error {
			a.dash.Session.Logout()
			return nil
		},
	}
}

func roomsCommand() *command {
	var typeFlag, statusFlag, search string
	return &command{
		name:    "rooms",
		usage:   "rooms [--type all|recheme|blrec] [--status all|streaming|recording] [--search TEXT]",
		summary: "list rooms from every recorder",
		flags: func(fs *pflag.FlagSet) {
			fs.StringVarP(&typeFlag, "type", "t", dashboard.FilterAll, "recorder type filter")
			fs.StringVarP(&statusFlag, "status", "s", dashboard.FilterAll, "room status filter")
			fs.StringVarP(&search, "search", "q", "", "match room id, name or title")
		},
		run: func(ctx context.Context, a *app, args []string) error {
			t, err := dashboard.ParseTypeFilter(typeFlag)
			if err != nil {
				return err
			}
			st, err := dashboard.ParseStatusFilter(statusFlag)
			if err != nil {
				return err
			}
			if err := a.dash.Rooms.Refresh(ctx); err != nil {
				return err
			}
			if msg := a.dash.Rooms.LastError(); msg != "" {
				fmt.Fprintf(a.stderr, "warning: %s\n", msg)
			}
			a.dash.Rooms.SetFilter(dashboard.RoomFilter{Type: t, Status: st, Query: search})
			rooms := a.dash.Rooms.FilteredRooms()

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tROOM\tNAME\tLIVE\tREC\tSERVER\tDOWNLOAD\tRECORD\tELAPSED")
			for _, r := range rooms {
				stats := r.Stats()
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.UniqueKey(), r.RoomID(), r.Name(),
					yesNo(r.IsStreaming()), yesNo(r.IsRecording()),
					r.RecServer().Name,
					dashboard.FormatDataRate(stats.DownloadRate),
					dashboard.FormatDataRate(stats.RecordRate),
					dashboard.FormatDuration(stats.Elapsed))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			c := a.dash.Rooms.Counts()
			fmt.Fprintf(a.stdout, "\n%d rooms shown, %d total, %d streaming, %d recording\n",
				len(rooms), c.Total, c.Streaming, c.Recording)
			return nil
		},
	}
}

func serversCommand() *command {
	var typeFlag string
	var withStats bool
	return &command{
		name:    "servers",
		usage:   "servers [--type all|recheme|blrec] [--stats]",
		summary: "list registered recorder servers",
		flags: func(fs *pflag.FlagSet) {
			fs.StringVarP(&typeFlag, "type", "t", dashboard.FilterAll, "recorder type filter")
			fs.BoolVar(&withStats, "stats", false, "include per-server room counts")
		},
		run: func(ctx context.Context, a *app, args []string) error {
			t, err := dashboard.ParseTypeFilter(typeFlag)
			if err != nil {
				return err
			}
			if withStats {
				if err := a.dash.Rooms.Refresh(ctx); err != nil {
					return err
				}
			}
			if err := a.dash.Servers.Refresh(ctx); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			if !withStats {
				fmt.Fprintln(tw, "NAME\tTYPE\tHOST\tSTATUS\tMANAGED")
				for _, s := range a.dash.Servers.Filtered(t) {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.Type, s.Host, s.Status, yesNo(s.Manage))
				}
				return tw.Flush()
			}
			fmt.Fprintln(tw, "NAME\tTYPE\tHOST\tSTATUS\tROOMS\tSTREAMING\tRECORDING")
			for _, s := range a.dash.Servers.Stats() {
				if t != dashboard.FilterAll && s.Type != dashboard.RecType(t) {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					s.Name, s.Type, s.Host, s.Status, s.TotalRooms, s.StreamingRooms, s.RecordingRooms)
			}
			return tw.Flush()
		},
	}
}

func addTargetFlags(fs *pflag.FlagSet, target *dashboard.Target) {
	fs.Var(newRecTypeValue(&target.RecType), "rec-type", "recorder type (recheme or blrec)")
	fs.StringVar(&target.RecName, "rec-name", "", "recorder name")
}

func addRoomCommand() *command {
	var target dashboard.Target
	var noAutoRecord bool
	return &command{
		name:    "add-room",
		usage:   "add-room ROOM_ID... [--no-auto-record] [--rec-type TYPE] [--rec-name NAME]",
		summary: "add one or more rooms",
		flags: func(fs *pflag.FlagSet) {
			addTargetFlags(fs, &target)
			fs.BoolVar(&noAutoRecord, "no-auto-record", false, "do not start recording automatically")
		},
		run: func(ctx context.Context, a *app, args []string) error {
			ids, err := parseRoomIDs(args)
			if err != nil {
				return err
			}
			auto := !noAutoRecord
			if len(ids) == 1 {
				return a.dash.Service.AddRoom(ctx, ids[0], dashboard.AddRoomOptions{AutoRecord: &auto, Target: target})
			}
			reqs := make([]dashboard.RoomRequest, len(ids))
			for i, id := range ids {
				reqs[i] = dashboard.RoomRequest{RoomID: id, AutoRecord: &auto}
			}
			return a.dash.Service.AddRoomsBatch(ctx, reqs, target)
		},
	}
}

func deleteRoomCommand() *command {
	var target dashboard.Target
	return &command{
		name:    "delete-room",
		usage:   "delete-room ROOM_ID... [--rec-type TYPE] [--rec-name NAME]",
		summary: "delete rooms",
		flags: func(fs *pflag.FlagSet) {
			addTargetFlags(fs, &target)
		},
		run: func(ctx context.Context, a *app, args []string) error {
			ids, err := parseRoomIDs(args)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if err := a.dash.Service.DeleteRoom(ctx, id, target); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func recordCommand() *command {
	var target dashboard.Target
	return &command{
		name:    "record",
		usage:   "record ROOM_ID start|stop [--rec-type TYPE] [--rec-name NAME]",
		summary: "start or stop recording a room",
		flags: func(fs *pflag.FlagSet) {
			addTargetFlags(fs, &target)
		},
		run: func(ctx context.Context, a *app, args []string) error {
			if len(args) != 2 {
				return errors.New("usage: recctl record ROOM_ID start|stop")
			}
			ids, err := parseRoomIDs(args[:1])
			if err != nil {
				return err
			}
			var enabled bool
			switch args[1] {
			case "start":
				enabled = true
			case "stop":
			default:
				return fmt.Errorf("record: expected start or stop, got %q", args[1])
			}
			return a.dash.Service.ToggleRecording(ctx, ids[0], enabled, target)
		},
	}
}

func addServerCommand() *command {
	var spec dashboard.ServerSpec
	var noManage bool
	return &command{
		name:    "add-server",
		usage:   "add-server --rec-type TYPE --rec-name NAME --url URL [--no-manage] [--basic-user U --basic-pass P | --basic-key K]",
		summary: "register a recorder server",
		flags: func(fs *pflag.FlagSet) {
			fs.Var(newRecTypeValue(&spec.RecType), "rec-type", "recorder type (recheme or blrec)")
			fs.StringVar(&spec.RecName, "rec-name", "", "recorder name")
			fs.StringVar(&spec.URL, "url", "", "recorder URL (http or https)")
			fs.BoolVar(&noManage, "no-manage", false, "register without management rights")
			fs.StringVar(&spec.BasicUser, "basic-user", "", "basic auth user (recheme)")
			fs.StringVar(&spec.BasicPass, "basic-pass", "", "basic auth password (recheme)")
			fs.StringVar(&spec.BasicKey, "basic-key", "", "API key (blrec)")
		},
		run: func(ctx context.Context, a *app, args []string) error {
			manage := !noManage
			spec.Manage = &manage
			basic := spec.BasicUser != "" || spec.BasicPass != "" || spec.BasicKey != ""
			spec.Basic = &basic
			return a.dash.Service.AddServer(ctx, spec)
		},
	}
}

func deleteServerCommand() *command {
	var recType dashboard.RecType
	return &command{
		name:    "delete-server",
		usage:   "delete-server NAME... --rec-type TYPE",
		summary: "unregister recorder servers",
		flags: func(fs *pflag.FlagSet) {
			fs.Var(newRecTypeValue(&recType), "rec-type", "recorder type (recheme or blrec)")
		},
		run: func(ctx context.Context, a *app, args []string) error {
			if len(args) == 0 {
				return errors.New("delete-server: at least one recorder name is required")
			}
			refs := make([]dashboard.ServerRef, len(args))
			for i, name := range args {
				refs[i] = dashboard.ServerRef{RecName: name, RecType: recType}
			}
			if len(refs) == 1 {
				return a.dash.Service.DeleteServer(ctx, refs[0])
			}
			return a.dash.Service.DeleteServers(ctx, refs)
		},
	}
}

func parseRoomIDs(args []string) ([]int64, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one room id is required")
	}
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid room id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// recTypeValue is a pflag.Value accepting only known recorder types.
type recTypeValue struct {
	target *dashboard.RecType
}

func newRecTypeValue(target *dashboard.RecType) *recTypeValue {
	return &recTypeValue{target: target}
}

func (v *recTypeValue) String() string {
	if v.target == nil {
		return ""
	}
	return string(*v.target)
}

func (v *recTypeValue) Set(s string) error {
	t, err := dashboard.ParseRecType(s)
	if err != nil {
		return err
	}
	*v.target = t
	return nil
}

func (v *recTypeValue) Type() string { return "recType" }
