package gsheet

import (
	"context"
	"fmt"
	"os"

	"github.com/samber/lo"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// sheetsAPI is the subset of the Google Sheets API used by the store.
type sheetsAPI interface {
	GetValues(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	AppendValues(ctx context.Context, spreadsheetID, rng string, values [][]any) error
	UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]any) error
	SheetID(ctx context.Context, spreadsheetID, title string) (int64, error)
	// DeleteRows removes the given zero based row indexes in a single batch.
	// Indexes must be sorted in descending order.
	DeleteRows(ctx context.Context, spreadsheetID string, sheetID int64, rows []int64) error
}

type serviceAPI struct {
	srv *sheets.Service
}

func newServiceAPI(ctx context.Context, credentialsFile string) (*serviceAPI, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		data, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("parse credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &serviceAPI{srv: srv}, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (a *serviceAPI) GetValues(
	ctx context.Context, spreadsheetID, rng string,
) ([][]any, error) {
	resp, err := a.srv.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (a *serviceAPI) AppendValues(
	ctx context.Context, spreadsheetID, rng string, values [][]any,
) error {
	_, err := a.srv.Spreadsheets.Values.Append(spreadsheetID, rng,
		&sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return err
}

//nolint:whitespace // can't make both editor and linter happy
func (a *serviceAPI) UpdateValues(
	ctx context.Context, spreadsheetID, rng string, values [][]any,
) error {
	_, err := a.srv.Spreadsheets.Values.Update(spreadsheetID, rng,
		&sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	return err
}

//nolint:whitespace // can't make both editor and linter happy
func (a *serviceAPI) SheetID(
	ctx context.Context, spreadsheetID, title string,
) (int64, error) {
	ss, err := a.srv.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrSheetNotFound, title)
}

//nolint:whitespace // can't make both editor and linter happy
func (a *serviceAPI) DeleteRows(
	ctx context.Context, spreadsheetID string, sheetID int64, rows []int64,
) error {
	reqs := lo.Map(rows, func(idx int64, _ int) *sheets.Request {
		return &sheets.Request{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: idx,
					EndIndex:   idx + 1,
				},
			},
		}
	})
	_, err := a.srv.Spreadsheets.BatchUpdate(spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: reqs}).Context(ctx).Do()
	return err
}
