package records

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/portion-tracker-go/log"
	"github.com/mpapenbr/portion-tracker-go/pkg/cmd/common"
	"github.com/mpapenbr/portion-tracker-go/pkg/model"
	"github.com/mpapenbr/portion-tracker-go/pkg/store"
	"github.com/mpapenbr/portion-tracker-go/pkg/tracker"
)

const (
	formatYAML = "yaml"
	formatJSON = "json"
)

// recordView is the printable form of a record
type recordView struct {
	Date    string         `json:"date" yaml:"date"`
	DayType string         `json:"dayType" yaml:"dayType"`
	Total   int            `json:"total" yaml:"total"`
	Groups  map[string]int `json:"groups" yaml:"groups"`
}

func NewRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "inspect and maintain stored compliance records",
	}
	cmd.AddCommand(newListCmd(), newDeleteTodayCmd())
	return cmd
}

func newListCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "prints all stored records",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closer()
			recs, err := svc.Records(cmd.Context())
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), format, recs)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatYAML,
		"output format (yaml, json)")
	return cmd
}

func newDeleteTodayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-today",
		Short: "removes the records of today",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closer()
			found, err := svc.DeleteToday(cmd.Context())
			if err != nil {
				return err
			}
			if found {
				fmt.Fprintln(cmd.OutOrStdout(), "deleted records of", store.DateKey(svc.Today()))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "no record found for", store.DateKey(svc.Today()))
			}
			return nil
		},
	}
}

//nolint:whitespace // can't make both editor and linter happy
func newService(cmd *cobra.Command) (
	svc *tracker.Service, closer func(), err error,
) {
	if _, err = common.SetupLogger(); err != nil {
		return nil, nil, err
	}
	s, err := common.NewRecordStore(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	closer = func() {
		if err := s.Close(); err != nil {
			log.Warn("close record store", log.ErrorField(err))
		}
	}
	return tracker.NewService(tracker.WithStore(s), tracker.WithClock(timeNow)), closer, nil
}

//nolint:gochecknoglobals // replaced in tests
var timeNow = time.Now

func printRecords(w io.Writer, format string, recs []*model.ComplianceRecord) error {
	views := make([]recordView, len(recs))
	for i, r := range recs {
		groups := make(map[string]int, model.NumFoodGroups)
		for j, g := range model.FoodGroups {
			groups[string(g.Key)] = r.Groups[j]
		}
		views[i] = recordView{
			Date:    store.DateKey(r.Date),
			DayType: string(r.DayType),
			Total:   r.Total,
			Groups:  groups,
		}
	}
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(views)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
