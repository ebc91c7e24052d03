package db

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

func PrintSessionsCLI(dbPath string, limit int, w io.Writer) error {
	dbConn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	sessions, err := ListSessions(dbConn, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTARGET\tSOURCE\tSTARTED\tDURATION\tEND\tEND TEMP")
	for _, s := range sessions {
		end, duration, endTemp := "open", "-", "-"
		if s.EndedAt != nil {
			end = s.EndReason
			duration = s.Duration().Round(time.Second).String()
		}
		if s.EndTemp != nil {
			endTemp = fmt.Sprintf("%.1f", *s.EndTemp)
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, int(s.Target), s.Source, s.StartedAt.Local().Format(time.DateTime), duration, end, endTemp)
	}
	return tw.Flush()
}

func PrintEventsCLI(dbPath, eventType string, limit int, w io.Writer) error {
	dbConn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	records, err := ListEvents(dbConn, eventType, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tAT\tTYPE\tMODE\tTEMP\tSOURCE\tREASON")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.1f\t%s\t%s\n", r.Seq, r.At, r.Type, r.Mode, r.Temperature, r.Source, r.Reason)
	}
	return tw.Flush()
}
