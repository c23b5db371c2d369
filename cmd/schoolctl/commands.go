package main

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"musicschool_go/client"
	"musicschool_go/services/weekgrid"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// parseDay reads an optional yyyy-MM-dd flag value.
func parseDay(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseInLocation(weekgrid.DateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected yyyy-MM-dd", value)
	}
	return d, nil
}

func parseID(value string) (uint, error) {
	id, err := strconv.ParseUint(value, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return uint(id), nil
}

func newLoginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and save the token to the config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := newClient().Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			path, err := configPath()
			if err != nil {
				return err
			}
			viper.Set("token", res.Token)
			if err := viper.WriteConfigAs(path); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", res.User.Username, res.User.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newWeekCmd() *cobra.Command {
	var (
		date, day                    string
		teacher, student, lessonType uint
		local                        bool
		startHour, endHour           int
	)
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Show the weekly lesson grid",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := parseDay(date)
			if err != nil {
				return err
			}
			filter := weekgrid.Filter{TeacherID: teacher, StudentID: student, LessonTypeID: lessonType, Day: strings.ToUpper(day)}

			var grid *weekgrid.Grid
			if local {
				if ref.IsZero() {
					ref = time.Now()
				}
				in, err := newClient().LoadWeek(cmd.Context(), ref)
				if err != nil {
					return err
				}
				in.Filter = filter
				in.Slots = weekgrid.HourSlots(startHour, endHour)
				grid = weekgrid.Resolve(in)
			} else {
				grid, err = newClient().WeeklyGrid(cmd.Context(), client.WeekQuery{Date: ref, Filter: filter})
				if err != nil {
					return err
				}
			}
			printGrid(cmd.OutOrStdout(), grid)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&date, "date", "", "any date in the week (yyyy-MM-dd, default today)")
	f.UintVar(&teacher, "teacher", 0, "teacher id")
	f.UintVar(&student, "student", 0, "student id")
	f.UintVar(&lessonType, "lesson-type", 0, "lesson type id")
	f.StringVar(&day, "day", "", "day of week, e.g. MONDAY")
	f.BoolVar(&local, "local", false, "fetch the collections and resolve the grid locally")
	f.IntVar(&startHour, "start-hour", 9, "first hour slot when resolving locally")
	f.IntVar(&endHour, "end-hour", 21, "hour after the last slot when resolving locally")
	return cmd
}

func printGrid(out io.Writer, grid *weekgrid.Grid) {
	fmt.Fprintf(out, "Week of %s\n\n", grid.WeekStart)
	rooms := make(map[uint]string, len(grid.Classrooms))
	for _, r := range grid.Classrooms {
		rooms[r.ID] = r.Name
	}

	w := table(out)
	fmt.Fprintln(w, "DATE\tDAY\tTIME\tROOM\tSTUDENT\tTEACHER\tLESSON\tSTATUS\tID")
	for _, c := range grid.Cells {
		room := rooms[c.ClassroomID]
		if room == "" {
			room = weekgrid.UnknownClassroom
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			c.Date, c.Day, c.Slot, room, c.StudentName, c.TeacherName, c.LessonTypeName, c.Display.Label, c.Schedule.ID)
	}
	_ = w.Flush()

	for _, cf := range grid.Conflicts {
		fmt.Fprintf(out, "overlap: schedule %d hidden behind %d on %s %s (room %d)\n",
			cf.HiddenScheduleID, cf.ShownScheduleID, cf.Day, cf.Slot, cf.ClassroomID)
	}
	if len(grid.Unplaced) > 0 {
		fmt.Fprintf(out, "outside the grid hours: %v\n", grid.Unplaced)
	}
}

func newMarkCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "mark <schedule-id> <date> <status>",
		Short: "Set the attendance status of one lesson",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			change, err := newClient().MarkAttendance(cmd.Context(), client.MarkAttendanceRequest{
				LessonScheduleID: id,
				LessonDate:       args[1],
				Status:           strings.ToUpper(args[2]),
				Notes:            notes,
			})
			if err != nil {
				return err
			}
			a := change.Attendance
			if change.Created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created attendance %d: %s on %s\n", a.ID, a.Status, a.LessonDate)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Updated attendance %d: %s -> %s on %s\n", a.ID, change.PreviousStatus, a.Status, a.LessonDate)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "note stored on the record")
	return cmd
}

func newFinanceCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "finance",
		Short: "Show income, expense and net with a per-category breakdown",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := parseDay(from)
			if err != nil {
				return err
			}
			end, err := parseDay(to)
			if err != nil {
				return err
			}
			c := newClient()
			totals, err := c.FinanceSummary(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			categories, err := c.FinanceByCategory(cmd.Context(), start, end)
			if err != nil {
				return err
			}

			w := table(cmd.OutOrStdout())
			fmt.Fprintf(w, "Income\t%.2f\n", totals.Income)
			fmt.Fprintf(w, "Expense\t%.2f\n", totals.Expense)
			fmt.Fprintf(w, "Net\t%.2f\n", totals.Net)
			fmt.Fprintf(w, "Transactions\t%d\n\n", totals.Count)
			fmt.Fprintln(w, "TYPE\tCATEGORY\tAMOUNT\tCOUNT")
			for _, ct := range categories {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\n", ct.Type, ct.Category, ct.Amount, ct.Count)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day (yyyy-MM-dd)")
	cmd.Flags().StringVar(&to, "to", "", "last day (yyyy-MM-dd)")
	return cmd
}

func newStudentsCmd() *cobra.Command {
	var status, search string
	cmd := &cobra.Command{
		Use:   "students",
		Short: "List students",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", strings.ToUpper(status))
			}
			if search != "" {
				q.Set("search", search)
			}
			students, err := newClient().ListStudents(cmd.Context(), q)
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPHONE\tPARENT")
			for _, s := range students {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.FullName(), s.Status, s.Phone, s.ParentName)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "ACTIVE, INACTIVE, FROZEN or GRADUATED")
	cmd.Flags().StringVar(&search, "search", "", "name or phone fragment")
	return cmd
}

func newTeachersCmd() *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:   "teachers",
		Short: "List teachers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			if active {
				q.Set("is_active", "true")
			}
			teachers, err := newClient().ListTeachers(cmd.Context(), q)
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tNAME\tSPECIALIZATION\tCOMMISSION\tACTIVE")
			for _, t := range teachers {
				fmt.Fprintf(w, "%d\t%s\t%s\t%.0f%%\t%t\n", t.ID, t.FullName(), t.Specialization, t.CommissionRate, t.IsActive)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&active, "active", false, "only active teachers")
	return cmd
}

func newSmsCmd() *cobra.Command {
	var studentID uint
	cmd := &cobra.Command{
		Use:   "sms <recipient> <message>",
		Short: "Send a message over LINE; use - as recipient together with --student",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.SendSmsRequest{Message: args[1]}
			if args[0] != "-" {
				req.Recipient = args[0]
			}
			if studentID != 0 {
				req.StudentID = &studentID
			}
			msg, err := newClient().SendSms(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Message %d to %s: %s\n", msg.ID, msg.Recipient, msg.Status)
			return nil
		},
	}
	cmd.Flags().UintVar(&studentID, "student", 0, "student id whose LINE id is used")
	return cmd
}
